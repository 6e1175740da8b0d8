// Package store implements the Repository (spec.md §4.3): append-only
// persistence of Block and versioned entity rows under the supersession
// model, with rollback and point-in-time query operations.
package store

import (
	"context"

	"github.com/wavesplatform/assetindex/internal/model"
)

// Tx is one open ingest-batch transaction (spec.md §4.3: "one open
// transaction per ingest batch"). Callers obtain one from Repository.Begin,
// drive AppendVersions/InsertBlock calls against it, then Commit or
// Rollback exactly once.
type Tx interface {
	// InsertBlock appends a Block row, rejecting it if Height violates
	// ordering (spec.md §3 invariant: height must be >= the last committed
	// canonical block's height, equal only for microblocks).
	InsertBlock(ctx context.Context, b model.Block) (uid int64, err error)

	// AppendVersions appends rows of one entity kind. Rows within one call
	// are applied in the given order: each new row supersedes whichever row
	// (if any, including one just inserted earlier in this same call) was
	// previously live for its natural key.
	AppendVersions(ctx context.Context, kind model.EntityKind, rows []model.NaturalKeyed) error

	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Repository is the full Repository contract (spec.md §4.3).
type Repository interface {
	Begin(ctx context.Context) (Tx, error)

	// CurrentHeight returns the tip: the highest committed, non-rolled-back
	// block's height and id.
	CurrentHeight(ctx context.Context) (height int64, blockID string, err error)

	// HeightForBlockID resolves a block id to its height, for translating a
	// RollbackEvent's ToBlockID into the target height RollbackTo expects.
	HeightForBlockID(ctx context.Context, blockID string) (height int64, ok bool, err error)

	// RollbackTo deletes every Block with Height >= targetHeight (cascading
	// to every versioned row anchored to them), then reopens every
	// versioned table so rows superseded only by now-deleted rows become
	// live again. Per spec.md §9, every reopen_<table> function the schema
	// defines is invoked, regardless of which tables this particular
	// rollback is known to have touched.
	RollbackTo(ctx context.Context, targetHeight int64) error

	// PointInTime returns the unique row live as of asOfBlockUID for
	// natural key k in the given entity kind, or ok=false if none existed
	// at that point.
	PointInTime(ctx context.Context, kind model.EntityKind, naturalKey string, asOfBlockUID int64) (payload model.NaturalKeyed, ok bool, err error)

	// Live returns the current live row for a natural key, or ok=false.
	Live(ctx context.Context, kind model.EntityKind, naturalKey string) (payload model.NaturalKeyed, ok bool, err error)

	// IssuerBalance and OutLeasing return the current live cumulative value
	// for an address, used by the Coordinator to build projector.PriorState
	// before calling Project (spec.md §4.2: "a read-only view of the
	// current live state needed for delta computation").
	IssuerBalance(ctx context.Context, issuer string) (balance int64, ok bool, err error)
	OutLeasing(ctx context.Context, address string) (amount int64, ok bool, err error)
}

package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wavesplatform/assetindex/internal/store"
)

// Repository is the store.Repository implementation backed by a pair of
// pgxpool.Pool instances: writer for the Coordinator's single write path,
// reader for everything else (spec.md §5).
type Repository struct {
	writer *pgxpool.Pool
	reader *pgxpool.Pool
}

var _ store.Repository = (*Repository)(nil)

// Begin opens one transaction for an ingest batch on the dedicated writer
// pool. The Coordinator is the only caller; spec.md §5 reserves it a
// dedicated pool slot so read traffic from the Search Service can never
// starve the writer.
func (r *Repository) Begin(ctx context.Context) (store.Tx, error) {
	pgxtx, err := r.writer.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	return &tx{pgxtx: pgxtx}, nil
}

// CurrentHeight returns the tip: the highest block not superseded by a
// rollback. Because RollbackTo deletes rows rather than marking them, the
// tip is simply the max-height surviving block.
func (r *Repository) CurrentHeight(ctx context.Context) (height int64, blockID string, err error) {
	err = r.reader.QueryRow(ctx, `
		SELECT height, id FROM block ORDER BY height DESC, uid DESC LIMIT 1`,
	).Scan(&height, &blockID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return -1, "", nil
		}
		return 0, "", fmt.Errorf("current_height: %w", err)
	}
	return height, blockID, nil
}

// HeightForBlockID resolves id to the height it was committed at.
func (r *Repository) HeightForBlockID(ctx context.Context, blockID string) (int64, bool, error) {
	var height int64
	err := r.reader.QueryRow(ctx, `SELECT height FROM block WHERE id = $1`, blockID).Scan(&height)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("height_for_block_id: %w", err)
	}
	return height, true, nil
}

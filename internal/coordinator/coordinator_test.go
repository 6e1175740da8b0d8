package coordinator_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/coordinator"
	"github.com/wavesplatform/assetindex/internal/errs"
	"github.com/wavesplatform/assetindex/internal/events"
	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/store"
)

// fakeTx is an in-memory store.Tx good enough to exercise the Coordinator's
// batching/commit logic without a database.
type fakeTx struct {
	repo       *fakeRepo
	blocks     []model.Block
	appended   map[model.EntityKind][]model.NaturalKeyed
	committed  bool
	rolledBack bool
}

func (t *fakeTx) InsertBlock(ctx context.Context, b model.Block) (int64, error) {
	if t.repo.rejectInsertCount > 0 {
		t.repo.rejectInsertCount--
		return 0, errors.New("simulated constraint violation")
	}
	if len(t.repo.blocks) > 0 {
		last := t.repo.blocks[len(t.repo.blocks)-1]
		if b.Height < last.Height {
			return 0, errors.New("height went backwards")
		}
	}
	uid := int64(len(t.repo.blocks) + len(t.blocks) + 1)
	b.UID = uid
	t.blocks = append(t.blocks, b)
	return uid, nil
}

func (t *fakeTx) AppendVersions(ctx context.Context, kind model.EntityKind, rows []model.NaturalKeyed) error {
	if t.appended == nil {
		t.appended = make(map[model.EntityKind][]model.NaturalKeyed)
	}
	t.appended[kind] = append(t.appended[kind], rows...)
	return nil
}

func (t *fakeTx) Commit(ctx context.Context) error {
	t.committed = true
	t.repo.mu.Lock()
	defer t.repo.mu.Unlock()
	t.repo.blocks = append(t.repo.blocks, t.blocks...)
	for k, rows := range t.appended {
		t.repo.rows[k] = append(t.repo.rows[k], rows...)
	}
	return nil
}

func (t *fakeTx) Rollback(ctx context.Context) error {
	t.rolledBack = true
	return nil
}

// fakeRepo is an in-memory store.Repository.
type fakeRepo struct {
	mu     sync.Mutex
	blocks []model.Block
	rows   map[model.EntityKind][]model.NaturalKeyed

	// rejectInsertCount, when > 0, makes the next that many InsertBlock
	// calls (across retries) fail with a simulated constraint violation,
	// decrementing on each call regardless of which block is being
	// inserted. Lets tests drive both a persistent violation (set once,
	// never decremented back to 0 before the batch's last retry) and a
	// transient one that clears after N attempts.
	rejectInsertCount int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{rows: make(map[model.EntityKind][]model.NaturalKeyed)}
}

func (r *fakeRepo) Begin(ctx context.Context) (store.Tx, error) {
	return &fakeTx{repo: r}, nil
}

func (r *fakeRepo) CurrentHeight(ctx context.Context) (int64, string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.blocks) == 0 {
		return -1, "", nil
	}
	last := r.blocks[len(r.blocks)-1]
	return last.Height, last.ID, nil
}

func (r *fakeRepo) HeightForBlockID(ctx context.Context, blockID string) (int64, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, b := range r.blocks {
		if b.ID == blockID {
			return b.Height, true, nil
		}
	}
	return 0, false, nil
}

func (r *fakeRepo) RollbackTo(ctx context.Context, targetHeight int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.blocks[:0]
	for _, b := range r.blocks {
		if b.Height < targetHeight {
			kept = append(kept, b)
		}
	}
	r.blocks = kept
	return nil
}

func (r *fakeRepo) PointInTime(ctx context.Context, kind model.EntityKind, naturalKey string, asOfBlockUID int64) (model.NaturalKeyed, bool, error) {
	return nil, false, nil
}

func (r *fakeRepo) Live(ctx context.Context, kind model.EntityKind, naturalKey string) (model.NaturalKeyed, bool, error) {
	return nil, false, nil
}

func (r *fakeRepo) IssuerBalance(ctx context.Context, issuer string) (int64, bool, error) {
	return 0, false, nil
}

func (r *fakeRepo) OutLeasing(ctx context.Context, address string) (int64, bool, error) {
	return 0, false, nil
}

// fakeCache is an in-memory cache.Cache recording Invalidate calls.
type fakeCache struct {
	mu          sync.Mutex
	invalidated []model.InvalidationMode
	failNext    bool
}

func (c *fakeCache) Get(ctx context.Context, key string) ([]byte, bool, error) { return nil, false, nil }
func (c *fakeCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}
func (c *fakeCache) Invalidate(ctx context.Context, mode model.InvalidationMode) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failNext {
		c.failNext = false
		return errors.New("redis unreachable")
	}
	c.invalidated = append(c.invalidated, mode)
	return nil
}
func (c *fakeCache) FlushAll(ctx context.Context) error { return nil }

var _ cache.Cache = (*fakeCache)(nil)

// fakeSource replays a fixed slice of events, then blocks until ctx is
// cancelled (mirroring a real subscription idling at the tip).
type fakeSource struct {
	events []events.BlockchainEvent
	idx    int
}

func (s *fakeSource) Next(ctx context.Context) (events.BlockchainEvent, error) {
	if s.idx < len(s.events) {
		ev := s.events[s.idx]
		s.idx++
		return ev, nil
	}
	<-ctx.Done()
	return events.BlockchainEvent{}, ctx.Err()
}

func (s *fakeSource) Close() error { return nil }

func issueTx(assetID string) events.Transaction {
	return events.Transaction{Type: 1, AssetID: assetID, Sender: "issuer1", Recipient: "Token", Amount: 100}
}

func blockEvent(height int64, id, parentID string) events.BlockchainEvent {
	return events.BlockchainEvent{
		Kind: events.KindBlock,
		Block: &events.BlockEvent{
			Height: height, ID: id, ParentID: parentID,
			Transactions: []events.Transaction{issueTx(id)},
		},
	}
}

func TestCoordinatorCommitsEachBlockImmediatelyOnceLive(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{}
	src := &fakeSource{events: []events.BlockchainEvent{
		blockEvent(1, "b1", ""),
		blockEvent(2, "b2", "b1"),
	}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.Equal(t, coordinator.StateLive, co.State())
	assert.Equal(t, int64(2), co.Tip().Height)
	assert.Len(t, repo.blocks, 2)
	require.Len(t, repo.rows[model.KindAsset], 2)
}

func TestCoordinatorDetectsForkAndRollsBack(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{}
	src := &fakeSource{events: []events.BlockchainEvent{
		blockEvent(1, "b1", ""),
		blockEvent(2, "b2", "b1"),
		// forked block: parent doesn't match tip "b2"
		blockEvent(2, "b2-fork", "b1"),
	}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.Equal(t, "b2-fork", co.Tip().ID)
	for _, b := range repo.blocks {
		assert.NotEqual(t, "b2", b.ID, "the forked-away block must have been rolled back")
	}
}

func TestCoordinatorHaltsAfterOneConstraintRetry(t *testing.T) {
	repo := newFakeRepo()
	// A violation that never clears: every InsertBlock attempt fails, so
	// the one bounded retry spec.md §7 allows also fails, and the
	// Coordinator must halt rather than retry forever.
	repo.rejectInsertCount = 1 << 30
	c := &fakeCache{}
	src := &fakeSource{events: []events.BlockchainEvent{
		blockEvent(1, "b1", ""),
	}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 10, ReconnectBackoff: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.Equal(t, coordinator.StateHalted, co.State())
	require.Error(t, co.HaltReason())
	kind, ok := errs.KindOf(co.HaltReason())
	require.True(t, ok)
	assert.Equal(t, errs.KindConstraint, kind)
	assert.Empty(t, repo.blocks, "the persistently rejected block must never have committed")
}

func TestCoordinatorRetriesSameEventOnceOnTransientConstraintViolation(t *testing.T) {
	repo := newFakeRepo()
	// Fails exactly once, then succeeds: the Coordinator's single
	// constraint retry must reprocess b1 itself, not skip ahead to b2.
	repo.rejectInsertCount = 1
	c := &fakeCache{}
	src := &fakeSource{events: []events.BlockchainEvent{
		blockEvent(1, "b1", ""),
		blockEvent(2, "b2", "b1"),
	}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 1, ReconnectBackoff: time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.NotEqual(t, coordinator.StateHalted, co.State())
	assert.NoError(t, co.HaltReason())
	require.Len(t, repo.blocks, 2, "both events must commit, including the one retried after the transient violation")
	assert.Equal(t, "b1", repo.blocks[0].ID, "the retried event must be the same one that failed, not the next one")
	assert.Equal(t, "b2", repo.blocks[1].ID)
}

func TestCoordinatorHaltsOnProjectionError(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{}
	// Cancelling an unopened lease drives the derived balance negative,
	// a fatal projection error (spec.md §4.2/§7).
	badTx := events.Transaction{Type: 6, Sender: "addr1", Amount: 100}
	src := &fakeSource{events: []events.BlockchainEvent{
		{Kind: events.KindBlock, Block: &events.BlockEvent{Height: 1, ID: "b1", Transactions: []events.Transaction{badTx}}},
	}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 10})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.Equal(t, coordinator.StateHalted, co.State())
	require.Error(t, co.HaltReason())
	kind, ok := errs.KindOf(co.HaltReason())
	require.True(t, ok)
	assert.Equal(t, errs.KindProjection, kind)
	assert.Empty(t, repo.blocks, "the batch that hit a fatal projection error must never have committed")
}

func TestCoordinatorCacheInvalidationFailureDoesNotUndoCommit(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{failNext: true}
	src := &fakeSource{events: []events.BlockchainEvent{blockEvent(1, "b1", "")}}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{BatchSize: 1, CacheRetryDelay: 10 * time.Millisecond})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	_ = co.Run(ctx)

	assert.Len(t, repo.blocks, 1, "commit must succeed even though cache invalidation failed")
}

func TestCoordinatorHealthReflectsState(t *testing.T) {
	repo := newFakeRepo()
	c := &fakeCache{}
	src := &fakeSource{}
	co := coordinator.New(src, repo, c, zap.NewNop(), coordinator.Config{})

	live, ready, err := co.Health()
	assert.True(t, live)
	assert.False(t, ready)
	assert.NoError(t, err)
}

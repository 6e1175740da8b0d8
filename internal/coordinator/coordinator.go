// Package coordinator drives the ingestion state machine (spec.md §4.5):
// it is the sole writer, batching canonical blocks while SYNCING, committing
// each block or microblock immediately once LIVE, detecting forks, and
// issuing best-effort cache invalidation after every commit.
package coordinator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/errs"
	"github.com/wavesplatform/assetindex/internal/events"
	"github.com/wavesplatform/assetindex/internal/metrics"
	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/projector"
	"github.com/wavesplatform/assetindex/internal/store"
)

// DefaultBatchSize is how many canonical blocks the Coordinator accumulates
// per transaction while SYNCING (spec.md §4.5).
const DefaultBatchSize = 256

// DefaultMaxSyncLag is how many blocks behind the highest height seen on the
// wire the Coordinator may sit and still report ready (spec.md §4.5
// supplement).
const DefaultMaxSyncLag = 100

// Config holds the tunables a deployment sets; zero values take the spec's
// defaults.
type Config struct {
	BatchSize        int
	ReconnectBackoff time.Duration
	CacheRetryDelay  time.Duration

	// MaxSyncLag is the readiness threshold: Health reports not-ready while
	// the committed tip trails the highest height observed on the source by
	// more than this many blocks.
	MaxSyncLag int64
}

// Coordinator is the single writer. It owns the write path end-to-end;
// nothing else in the process mutates the store.
type Coordinator struct {
	source events.Source
	repo   store.Repository
	cache  cache.Cache
	logger *zap.Logger
	cfg    Config

	state atomic.Int32
	tip   atomic.Pointer[Tip]

	// lastSeenHeight is the highest height observed on an incoming Block or
	// UpdatesBatch event, regardless of whether it has committed yet. It is
	// the closest available proxy for "the node's reported height" (spec.md
	// §4.5 supplement): the wire protocol carries each event's own height
	// but no separate upstream-tip signal.
	lastSeenHeight atomic.Int64

	haltErr atomic.Pointer[error]

	batch *openBatch
}

// heightSetter is the optional capability a Source implements when it can
// be told to resume from a specific height on its next (re)dial, e.g.
// *events.Client. Expressed as an interface so Coordinator doesn't need to
// import events.Client directly, and test fakes that don't support it keep
// compiling.
type heightSetter interface {
	SetFromHeight(height int64)
}

// advanceSourceHeight tells the source where to resume if it has to
// redial, per spec.md §4.1/§6 ("reconnect with from_height derived from the
// repository's current tip"). No-op if the source doesn't support it.
func (co *Coordinator) advanceSourceHeight(height int64) {
	if hs, ok := co.source.(heightSetter); ok {
		hs.SetFromHeight(height + 1)
	}
}

// recordSeenHeight tracks the highest height carried by any event read off
// the source, committed or not, for the readiness lag check in Health.
func (co *Coordinator) recordSeenHeight(height int64) {
	for {
		cur := co.lastSeenHeight.Load()
		if height <= cur {
			return
		}
		if co.lastSeenHeight.CompareAndSwap(cur, height) {
			return
		}
	}
}

// openBatch accumulates projected updates for the transaction currently
// open against the Repository, across one or more source events, until
// commitBatch flushes it.
type openBatch struct {
	tx         store.Tx
	blockCount int
	mode       model.InvalidationMode
	lastTip    Tip
}

// New builds a Coordinator. The source's initial subscription point is set
// by whoever constructs the source; Run reads the starting tip from
// repo.CurrentHeight.
func New(source events.Source, repo store.Repository, c cache.Cache, logger *zap.Logger, cfg Config) *Coordinator {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = time.Second
	}
	if cfg.CacheRetryDelay <= 0 {
		cfg.CacheRetryDelay = 5 * time.Second
	}
	if cfg.MaxSyncLag <= 0 {
		cfg.MaxSyncLag = DefaultMaxSyncLag
	}
	co := &Coordinator{source: source, repo: repo, cache: c, logger: logger, cfg: cfg}
	co.state.Store(int32(StateDisconnected))
	co.tip.Store(&Tip{Height: -1})
	co.lastSeenHeight.Store(-1)
	return co
}

// State returns the current machine state.
func (co *Coordinator) State() State { return State(co.state.Load()) }

// Tip returns the last committed tip, safe to call concurrently from
// Search Service handlers (spec.md §5: "read under a memory-ordered
// acquire").
func (co *Coordinator) Tip() Tip { return *co.tip.Load() }

// HaltReason returns the fatal error that halted the Coordinator, if any.
func (co *Coordinator) HaltReason() error {
	p := co.haltErr.Load()
	if p == nil {
		return nil
	}
	return *p
}

// Run drives the state machine until ctx is cancelled or a fatal error
// halts it. A cancelled ctx always returns nil after the in-flight batch
// either commits cleanly or rolls back (spec.md §5 cancellation).
func (co *Coordinator) Run(ctx context.Context) error {
	height, id, err := co.repo.CurrentHeight(ctx)
	if err != nil {
		return fmt.Errorf("coordinator: read initial tip: %w", err)
	}
	co.tip.Store(&Tip{Height: height, ID: id})
	co.state.Store(int32(StateSyncing))

	for {
		select {
		case <-ctx.Done():
			return co.shutdown()
		default:
		}

		ev, err := co.source.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return co.shutdown()
			}
			if kind, ok := errs.KindOf(err); ok && kind == errs.KindTransient {
				co.logger.Warn("event source transient error, backing off", zap.Error(err))
				co.state.Store(int32(StateDisconnected))
				time.Sleep(co.cfg.ReconnectBackoff)
				continue
			}
			return co.halt(fmt.Errorf("event source: %w", err))
		}
		co.state.CompareAndSwap(int32(StateDisconnected), int32(StateSyncing))

		if err := co.handleWithRetry(ctx, ev); err != nil {
			if ctx.Err() != nil {
				return co.shutdown()
			}
			return co.halt(err)
		}
	}
}

// handleWithRetry applies ev, retrying the SAME event rather than fetching
// a new one from the source — fetching a replacement would silently drop
// the failed block. Per spec.md §7: a transient failure (store or cache I/O)
// retries with backoff indefinitely; a constraint violation on append
// retries exactly once and then halts; every other kind is fatal
// immediately.
func (co *Coordinator) handleWithRetry(ctx context.Context, ev events.BlockchainEvent) error {
	constraintRetried := false
	for {
		err := co.handle(ctx, ev)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		kind, ok := errs.KindOf(err)
		if !ok {
			return err
		}
		switch kind {
		case errs.KindTransient:
			co.logger.Warn("transient error handling event, retrying", zap.Error(err))
			time.Sleep(co.cfg.ReconnectBackoff)
			continue
		case errs.KindConstraint:
			if constraintRetried {
				return err
			}
			constraintRetried = true
			co.logger.Warn("constraint violation handling event, retrying once", zap.Error(err))
			time.Sleep(co.cfg.ReconnectBackoff)
			continue
		default:
			return err
		}
	}
}

func (co *Coordinator) halt(err error) error {
	co.state.Store(int32(StateHalted))
	metrics.ConsumerState.Set(float64(StateHalted))
	co.haltErr.Store(&err)
	co.logger.Error("coordinator halted", zap.Error(err))
	return err
}

func (co *Coordinator) shutdown() error {
	if co.batch != nil {
		// A cancelled ctx mid-batch: never externalise a partial batch.
		_ = co.batch.tx.Rollback(context.Background())
		co.batch = nil
	}
	return nil
}

func (co *Coordinator) handle(ctx context.Context, ev events.BlockchainEvent) error {
	switch ev.Kind {
	case events.KindRollback:
		return co.handleRollback(ctx, ev.Rollback)
	case events.KindBlock:
		co.recordSeenHeight(ev.Block.Height)
		return co.handleBlock(ctx, ev)
	case events.KindMicroblock, events.KindUpdatesBatch:
		if ev.Kind == events.KindUpdatesBatch {
			co.recordSeenHeight(ev.Batch.Height)
		}
		return co.handleNonForking(ctx, ev)
	default:
		return errs.Ordering(0, fmt.Errorf("unrecognised event kind %d", ev.Kind))
	}
}

// handleBlock applies fork detection before projecting: if the incoming
// block's ParentID doesn't match the stored tip, the chain has forked and
// everything since the fork point must be discarded first (spec.md §4.5).
func (co *Coordinator) handleBlock(ctx context.Context, ev events.BlockchainEvent) error {
	b := ev.Block
	tip := co.Tip()
	if tip.Height >= 0 && b.ParentID != "" && b.ParentID != tip.ID {
		if err := co.rollbackTo(ctx, tip.Height); err != nil {
			return err
		}
	}
	return co.applyAndMaybeCommit(ctx, ev, b.Height, b.ID, b.ParentID, false)
}

// handleNonForking applies a Microblock or UpdatesBatch, which extend the
// current tip rather than replace it.
func (co *Coordinator) handleNonForking(ctx context.Context, ev events.BlockchainEvent) error {
	tip := co.Tip()
	var height int64
	var id, parentID string
	isMicroblock := ev.Kind == events.KindMicroblock
	if isMicroblock {
		height = tip.Height
		id = ev.Microblock.ReferenceBlockID
		parentID = tip.ID
	} else {
		height = ev.Batch.Height
		id = ev.Batch.ID
		parentID = tip.ID
	}
	return co.applyAndMaybeCommit(ctx, ev, height, id, parentID, isMicroblock)
}

func (co *Coordinator) applyAndMaybeCommit(ctx context.Context, ev events.BlockchainEvent, height int64, blockID, parentID string, isMicroblock bool) error {
	if co.batch == nil {
		tx, err := co.repo.Begin(ctx)
		if err != nil {
			return errs.Transient(fmt.Errorf("begin batch: %w", err))
		}
		co.batch = &openBatch{tx: tx}
	}

	blockUID, err := co.batch.tx.InsertBlock(ctx, model.Block{
		Height: height, ID: blockID, ParentID: parentID, IsMicroblock: isMicroblock,
	})
	if err != nil {
		_ = co.batch.tx.Rollback(ctx)
		co.batch = nil
		return errs.Constraint(fmt.Errorf("insert_block: %w", err))
	}

	prior, err := co.readPriorState(ctx, ev)
	if err != nil {
		_ = co.batch.tx.Rollback(ctx)
		co.batch = nil
		return errs.Transient(fmt.Errorf("read prior state: %w", err))
	}

	updates, err := projector.Project(ev, blockUID, prior)
	if err != nil {
		_ = co.batch.tx.Rollback(ctx)
		co.batch = nil
		return errs.Projection(height, err)
	}

	grouped := groupByKind(updates)
	for kind, rows := range grouped {
		if err := co.batch.tx.AppendVersions(ctx, kind, rows); err != nil {
			_ = co.batch.tx.Rollback(ctx)
			co.batch = nil
			return errs.Constraint(fmt.Errorf("append_versions(%s): %w", kind, err))
		}
		co.batch.mode = model.WidestMode(co.batch.mode, model.ModeForKind(kind))
	}

	co.batch.blockCount++
	co.batch.lastTip = Tip{Height: height, ID: blockID, UID: blockUID}

	if co.shouldCommitNow() {
		return co.commitBatch(ctx)
	}
	return nil
}

// shouldCommitNow implements spec.md §4.5's batching rule: SYNCING
// accumulates up to BatchSize blocks per transaction; LIVE commits
// immediately to bound staleness.
func (co *Coordinator) shouldCommitNow() bool {
	if co.State() == StateLive {
		return true
	}
	return co.batch.blockCount >= co.cfg.BatchSize
}

// commitBatch runs the five-step commit protocol (spec.md §4.5): commit,
// then invalidate — a cache failure is logged and scheduled for retry
// without undoing the commit, since the store is authoritative.
func (co *Coordinator) commitBatch(ctx context.Context) error {
	b := co.batch
	co.batch = nil

	if err := b.tx.Commit(ctx); err != nil {
		return errs.Constraint(fmt.Errorf("commit batch: %w", err))
	}

	co.tip.Store(&b.lastTip)
	co.advanceSourceHeight(b.lastTip.Height)
	if co.State() == StateSyncing && b.lastTip.Height >= 0 {
		co.state.CompareAndSwap(int32(StateSyncing), int32(StateLive))
	}

	metrics.BatchesCommitted.Inc()
	metrics.BlocksCommitted.Add(float64(b.blockCount))
	metrics.ConsumerState.Set(float64(co.State()))
	metrics.CurrentHeight.Set(float64(b.lastTip.Height))

	if err := co.cache.Invalidate(ctx, b.mode); err != nil {
		metrics.CacheInvalidationFailures.Inc()
		co.logger.Warn("cache invalidation failed after commit, will retry",
			zap.String("mode", string(b.mode)), zap.Error(err))
		go co.retryInvalidate(b.mode)
	}
	return nil
}

func (co *Coordinator) retryInvalidate(mode model.InvalidationMode) {
	ctx, cancel := context.WithTimeout(context.Background(), co.cfg.CacheRetryDelay*3)
	defer cancel()
	time.Sleep(co.cfg.CacheRetryDelay)
	if err := co.cache.Invalidate(ctx, mode); err != nil {
		co.logger.Warn("cache invalidation retry failed, leaving cache stale",
			zap.String("mode", string(mode)), zap.Error(err))
	}
}

func (co *Coordinator) handleRollback(ctx context.Context, ev *events.RollbackEvent) error {
	if co.batch != nil {
		_ = co.batch.tx.Rollback(ctx)
		co.batch = nil
	}
	height, ok, err := co.repo.HeightForBlockID(ctx, ev.ToBlockID)
	if err != nil {
		return errs.Transient(fmt.Errorf("resolve rollback target: %w", err))
	}
	if !ok {
		return errs.ReopenInconsistency(fmt.Errorf("rollback target block %q not found", ev.ToBlockID))
	}
	// ToBlockID itself survives; only the blocks above it are discarded.
	return co.rollbackTo(ctx, height+1)
}

func (co *Coordinator) rollbackTo(ctx context.Context, targetHeight int64) error {
	depth := co.Tip().Height - targetHeight + 1
	co.state.Store(int32(StateRollingBack))
	metrics.ConsumerState.Set(float64(StateRollingBack))
	if err := co.repo.RollbackTo(ctx, targetHeight); err != nil {
		return errs.ReopenInconsistency(fmt.Errorf("rollback_to(%d): %w", targetHeight, err))
	}
	if depth > 0 {
		metrics.RollbackDepth.Observe(float64(depth))
	}
	height, id, err := co.repo.CurrentHeight(ctx)
	if err != nil {
		return errs.Transient(fmt.Errorf("read tip after rollback: %w", err))
	}
	co.tip.Store(&Tip{Height: height, ID: id})
	co.advanceSourceHeight(height)
	metrics.CurrentHeight.Set(float64(height))

	if err := co.cache.Invalidate(ctx, model.InvalidateAll); err != nil {
		metrics.CacheInvalidationFailures.Inc()
		co.logger.Warn("cache flush after rollback failed, will retry", zap.Error(err))
		go co.retryInvalidate(model.InvalidateAll)
	}
	co.state.Store(int32(StateLive))
	metrics.ConsumerState.Set(float64(StateLive))
	return nil
}

func (co *Coordinator) readPriorState(ctx context.Context, ev events.BlockchainEvent) (projector.PriorState, error) {
	senders := senderAddresses(ev)
	prior := projector.PriorState{
		IssuerBalances: make(map[string]int64, len(senders)),
		OutLeasings:    make(map[string]int64, len(senders)),
	}
	for _, addr := range senders {
		if balance, ok, err := co.repo.IssuerBalance(ctx, addr); err != nil {
			return prior, err
		} else if ok {
			prior.IssuerBalances[addr] = balance
		}
		if amount, ok, err := co.repo.OutLeasing(ctx, addr); err != nil {
			return prior, err
		} else if ok {
			prior.OutLeasings[addr] = amount
		}
	}
	return prior, nil
}

func senderAddresses(ev events.BlockchainEvent) []string {
	var txs []events.Transaction
	switch ev.Kind {
	case events.KindBlock:
		txs = ev.Block.Transactions
	case events.KindMicroblock:
		txs = ev.Microblock.Transactions
	default:
		return nil
	}
	seen := make(map[string]struct{}, len(txs))
	var out []string
	for _, tx := range txs {
		if _, ok := seen[tx.Sender]; !ok && tx.Sender != "" {
			seen[tx.Sender] = struct{}{}
			out = append(out, tx.Sender)
		}
	}
	return out
}

func groupByKind(updates []model.Update) map[model.EntityKind][]model.NaturalKeyed {
	grouped := make(map[model.EntityKind][]model.NaturalKeyed)
	for _, u := range updates {
		grouped[u.Kind] = append(grouped[u.Kind], u.Payload)
	}
	return grouped
}

// Health reports liveness/readiness for the admin HTTP surface (spec.md
// §4.5 supplement): live iff the writer loop is not HALTED; ready iff it is
// not more than cfg.MaxSyncLag blocks behind the highest height seen on the
// source. The lag is recomputed on every call, so readiness can drop again
// after reaching LIVE once, e.g. during a later large resync.
func (co *Coordinator) Health() (live bool, ready bool, reason error) {
	s := co.State()
	if s == StateHalted {
		return false, false, co.HaltReason()
	}
	if s != StateLive && s != StateSyncing {
		return true, false, nil
	}
	seen := co.lastSeenHeight.Load()
	if seen < 0 {
		return true, false, nil
	}
	lag := seen - co.Tip().Height
	return true, lag <= co.cfg.MaxSyncLag, nil
}

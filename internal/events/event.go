// Package events implements the Event Source Client (spec.md §4.1): a pull
// interface over a length-prefixed, protobuf-encoded stream of blockchain
// update events, with back-pressure and reconnect-on-drop semantics.
package events

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/wavesplatform/assetindex/internal/errs"
	"github.com/wavesplatform/assetindex/internal/events/wire"
)

// Transaction is a minimal decoded transaction, enough for the Projector to
// compute derived balances/leasings (spec.md §4.2). The full transaction
// body is opaque to this layer; only the fields the Projector needs are
// decoded here.
type Transaction struct {
	ID         string
	Type       int32
	Sender     string
	Recipient  string
	Amount     int64
	AssetID    string
	DataEntries []DataEntryDelta
}

// DataEntryDelta is a single (address, key) -> value write carried by a
// DataTransaction.
type DataEntryDelta struct {
	Address string
	Key     string
	Type    string // "integer" | "boolean" | "binary" | "string"
	Int     int64
	Bool    bool
	Binary  []byte
	String  string
}

// Kind discriminates the BlockchainEvent sum type (spec.md §4.1).
type Kind int

const (
	KindBlock Kind = iota
	KindMicroblock
	KindRollback
	KindUpdatesBatch
)

// BlockchainEvent is one of Block, Microblock, Rollback, or UpdatesBatch.
// Exactly one of the corresponding fields is populated, selected by Kind.
type BlockchainEvent struct {
	Kind Kind

	Block      *BlockEvent
	Microblock *MicroblockEvent
	Rollback   *RollbackEvent
	Batch      *UpdatesBatchEvent
}

// BlockEvent is a new canonical block.
type BlockEvent struct {
	Height       int64
	ID           string
	ParentID     string
	Timestamp    int64
	Transactions []Transaction
}

// MicroblockEvent extends the current canonical block with more
// transactions before the next canonical block closes it out.
type MicroblockEvent struct {
	ReferenceBlockID string
	Transactions     []Transaction
}

// RollbackEvent instructs the consumer to discard everything after
// ToBlockID (spec.md §8, scenario 3).
type RollbackEvent struct {
	ToBlockID string
}

// UpdatesBatchEvent is a merged-form event carrying pre-computed state
// diffs, used by some upstream nodes instead of raw transactions.
type UpdatesBatchEvent struct {
	Height int64
	ID     string
	Diffs  []StateDiff
}

// StateDiff is one entry of an UpdatesBatchEvent's merged diff list.
type StateDiff struct {
	Address string
	Key     string
	Value   string
}

// Source is the pull interface the Coordinator consumes. Next blocks until
// an event is available, ctx is cancelled, or the stream terminates with a
// (possibly transient) error.
type Source interface {
	Next(ctx context.Context) (BlockchainEvent, error)
	Close() error
}

// Dialer opens the raw framed connection used by Subscribe. Production
// wires this to a net.Dialer; tests use an in-memory pipe.
type Dialer func(ctx context.Context) (io.ReadWriteCloser, error)

// Client is a reconnecting Source: on a terminal read error it redials with
// FromHeight advanced to the Coordinator's last committed tip, per spec.md
// §4.1 ("reconnecting with a fresh from_height derived from the
// repository's current tip").
type Client struct {
	dial   Dialer
	logger *zap.Logger

	conn       io.ReadWriteCloser
	fromHeight int64
}

// NewClient builds a Client that will dial fromHeight on first Next call.
func NewClient(dial Dialer, fromHeight int64, logger *zap.Logger) *Client {
	return &Client{dial: dial, fromHeight: fromHeight, logger: logger}
}

// SetFromHeight updates the height used on the next (re)dial. The
// Coordinator calls this after every committed batch so a reconnect resumes
// exactly where the store left off.
func (c *Client) SetFromHeight(h int64) { c.fromHeight = h }

// Next returns the next decoded event. If the connection drops, Next closes
// it and returns the error; the following call redials from the current
// FromHeight.
func (c *Client) Next(ctx context.Context) (BlockchainEvent, error) {
	if c.conn == nil {
		if err := c.connect(ctx); err != nil {
			return BlockchainEvent{}, fmt.Errorf("subscribe: %w", err)
		}
	}
	ev, err := c.readEvent(ctx)
	if err != nil {
		c.logger.Warn("event source dropped, will redial on next call",
			zap.Int64("from_height", c.fromHeight), zap.Error(err))
		_ = c.conn.Close()
		c.conn = nil
		return BlockchainEvent{}, err
	}
	return ev, nil
}

func (c *Client) connect(ctx context.Context) error {
	conn, err := c.dial(ctx)
	if err != nil {
		return errs.Transient(err)
	}
	req := &wire.SubscribeRequest{FromHeight: c.fromHeight}
	frame, err := req.Marshal()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("marshal subscribe request: %w", err)
	}
	if err := writeFrame(conn, frame); err != nil {
		_ = conn.Close()
		return errs.Transient(fmt.Errorf("write subscribe request: %w", err))
	}
	c.conn = conn
	return nil
}

// Close releases the underlying connection, if any.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Client) readEvent(ctx context.Context) (BlockchainEvent, error) {
	type result struct {
		ev  BlockchainEvent
		err error
	}
	done := make(chan result, 1)
	go func() {
		frame, err := readFrame(c.conn)
		if err != nil {
			done <- result{err: errs.Transient(err)}
			return
		}
		var w wire.SubscribeEvent
		if err := w.Unmarshal(frame); err != nil {
			done <- result{err: fmt.Errorf("decode frame: %w", err)}
			return
		}
		ev, err := fromWire(&w)
		done <- result{ev: ev, err: err}
	}()
	select {
	case <-ctx.Done():
		return BlockchainEvent{}, ctx.Err()
	case r := <-done:
		return r.ev, r.err
	}
}

const maxFrameSize = 64 << 20 // 64MiB, generous upper bound for one block's worth of events

func writeFrame(w io.Writer, payload []byte) error {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readFrame(r io.Reader) ([]byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(prefix[:])
	if n > maxFrameSize {
		return nil, fmt.Errorf("frame too large: %d bytes", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WithTimeout wraps ctx with a read deadline, used by callers that want a
// bounded wait for the next event rather than blocking forever.
func WithTimeout(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, d)
}

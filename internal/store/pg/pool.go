// Package pg is the PostgreSQL implementation of store.Repository,
// grounded on the jackc/pgx/v5 batch/COPY/UNNEST idioms used by the
// Outblock-flowindex and jordigilh-kubernaut repository examples.
package pg

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// writerMaxConns is the size of the dedicated writer pool. The Coordinator
// is the sole writer and never holds more than one transaction open at a
// time, so one connection is enough; a second is kept in reserve so a slow
// commit never blocks a concurrent RollbackTo.
const writerMaxConns = 2

// Config configures the connection pools. The writer (Coordinator) and the
// readers (Search Service handlers, plus the Coordinator's own
// readPriorState lookups) are given separate pgxpool.Pool instances so read
// load can never starve the writer of a connection, per spec.md §5
// ("Connection pools ... one dedicated slot reserved for the writer").
type Config struct {
	DSN      string
	MaxConns int32
}

// Pool holds the writer and reader connection pools opened against the same
// DSN.
type Pool struct {
	writer *pgxpool.Pool
	reader *pgxpool.Pool
}

// Open connects both pools and verifies reachability with a ping.
func Open(ctx context.Context, cfg Config) (*Pool, error) {
	writer, err := openPool(ctx, cfg.DSN, writerMaxConns)
	if err != nil {
		return nil, fmt.Errorf("open postgres writer pool: %w", err)
	}

	readerMaxConns := cfg.MaxConns - writerMaxConns
	if readerMaxConns <= 0 {
		readerMaxConns = 0 // let pgxpool fall back to its own default
	}
	reader, err := openPool(ctx, cfg.DSN, readerMaxConns)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open postgres reader pool: %w", err)
	}

	return &Pool{writer: writer, reader: reader}, nil
}

func openPool(ctx context.Context, dsn string, maxConns int32) (*pgxpool.Pool, error) {
	pcfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if maxConns > 0 {
		pcfg.MaxConns = maxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

// Close releases both pools.
func (p *Pool) Close() {
	p.writer.Close()
	p.reader.Close()
}

// Repository builds a store.Repository backed by this pool pair.
func (p *Pool) Repository() *Repository { return &Repository{writer: p.writer, reader: p.reader} }

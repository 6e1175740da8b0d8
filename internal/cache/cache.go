// Package cache defines the Cache contract (spec.md §4.4): a Redis-shaped
// key/value store holding pre-computed search artifacts, invalidated by
// pattern on every commit.
package cache

import (
	"context"
	"time"

	"github.com/wavesplatform/assetindex/internal/model"
)

// Cache is implemented by internal/cache/rediscache.Cache. Get/Set are used
// by the Search Service; Invalidate/FlushAll are used by the Coordinator.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Invalidate removes every key matching the namespace(s) implied by
	// mode. It is best-effort from the caller's point of view: a failed
	// invalidation must never block or undo the commit that triggered it
	// (spec.md §4.5 step 5 — "a stale cache is degraded but not
	// incorrect").
	Invalidate(ctx context.Context, mode model.InvalidationMode) error

	// FlushAll discards every key. Used for all_data and the operator's
	// manual-rollback runbook.
	FlushAll(ctx context.Context) error
}

// Key namespaces (spec.md §6 glossary: "fingerprints over search queries
// and per-entity lookup keys"). rediscache.Cache prefixes every key it
// writes with one of these so Invalidate can SCAN by pattern.
const (
	NamespaceAsset  = "asset"  // asset:<asset_id> -> resolved entity payload
	NamespaceSearch = "search" // search:<fingerprint> -> serialised search response
	NamespaceLabel  = "label"  // label:<name> -> asset ids carrying that label
	NamespaceTicker = "ticker" // ticker:<value> -> asset id
)

// Key builds a namespaced cache key.
func Key(namespace, id string) string { return namespace + ":" + id }

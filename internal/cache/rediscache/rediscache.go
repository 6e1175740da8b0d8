// Package rediscache implements cache.Cache on top of redis/go-redis/v9.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/metrics"
	"github.com/wavesplatform/assetindex/internal/model"
)

// Cache is the cache.Cache implementation backed by one redis.Client.
type Cache struct {
	rdb *redis.Client
}

var _ cache.Cache = (*Cache)(nil)

// Config is the subset of redis connection options this service exposes.
type Config struct {
	Addr     string
	Password string
	DB       int
}

// Open connects and pings, returning a ready Cache.
func Open(ctx context.Context, cfg Config) (*Cache, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("open redis: %w", err)
	}
	return &Cache{rdb: rdb}, nil
}

// Close releases the underlying client.
func (c *Cache) Close() error { return c.rdb.Close() }

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			metrics.CacheHits.WithLabelValues(namespaceOf(key), "miss").Inc()
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache get %q: %w", key, err)
	}
	metrics.CacheHits.WithLabelValues(namespaceOf(key), "hit").Inc()
	return val, true, nil
}

// namespaceOf extracts the "<namespace>:" prefix of a cache key for metric
// labelling, falling back to "unknown" for keys that don't follow it.
func namespaceOf(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == ':' {
			return key[:i]
		}
	}
	return "unknown"
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

// namespacesFor maps an invalidation mode to the key namespaces it clears
// (spec.md §4.4). assets_blockchain_data and assets_user_defined_data both
// reach search results, since any mutation can change which assets a query
// matches; asset_labels only clears label lookups and the search cache that
// might be keyed off them.
func namespacesFor(mode model.InvalidationMode) []string {
	switch mode {
	case model.InvalidateBlockchainData:
		return []string{cache.NamespaceAsset, cache.NamespaceSearch}
	case model.InvalidateUserDefinedData:
		return []string{cache.NamespaceAsset, cache.NamespaceSearch, cache.NamespaceLabel, cache.NamespaceTicker}
	case model.InvalidateLabels:
		return []string{cache.NamespaceLabel, cache.NamespaceSearch}
	default:
		return nil // InvalidateAll goes through FlushAll instead
	}
}

// Invalidate SCANs (never KEYS, to avoid blocking a shared Redis under
// load) each namespace's "<namespace>:*" pattern and pipelines the
// resulting DELs in batches.
func (c *Cache) Invalidate(ctx context.Context, mode model.InvalidationMode) error {
	if mode == model.InvalidateAll {
		return c.FlushAll(ctx)
	}
	for _, ns := range namespacesFor(mode) {
		if err := c.deleteNamespace(ctx, ns); err != nil {
			return fmt.Errorf("invalidate %s: %w", ns, err)
		}
	}
	return nil
}

func (c *Cache) deleteNamespace(ctx context.Context, namespace string) error {
	pattern := namespace + ":*"
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 500).Result()
		if err != nil {
			return fmt.Errorf("scan %q: %w", pattern, err)
		}
		if len(keys) > 0 {
			pipe := c.rdb.Pipeline()
			for _, k := range keys {
				pipe.Del(ctx, k)
			}
			if _, err := pipe.Exec(ctx); err != nil {
				return fmt.Errorf("pipelined del under %q: %w", pattern, err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func (c *Cache) FlushAll(ctx context.Context) error {
	if err := c.rdb.FlushDB(ctx).Err(); err != nil {
		return fmt.Errorf("flush_all: %w", err)
	}
	return nil
}

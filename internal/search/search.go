// Package search implements the Search Service (spec.md §2.6, interface
// only): a read-only path that consults the Cache first and falls through
// to the Repository on a miss, repopulating the cache on success.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/wavesplatform/assetindex/internal/cache"
	"github.com/wavesplatform/assetindex/internal/model"
	"github.com/wavesplatform/assetindex/internal/store"
)

// defaultTTL bounds how long a cached search/entity payload survives
// without an invalidating mutation — a safety net in case a commit's
// invalidation is lost and never retried successfully.
const defaultTTL = 10 * time.Minute

// Service is the Search Service. It never writes to the Repository.
type Service struct {
	repo  store.Repository
	cache cache.Cache
}

func New(repo store.Repository, c cache.Cache) *Service {
	return &Service{repo: repo, cache: c}
}

// Asset resolves the live Asset for id, cache-first.
func (s *Service) Asset(ctx context.Context, assetID string) (model.Asset, bool, error) {
	key := cache.Key(cache.NamespaceAsset, assetID)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var a model.Asset
		if err := json.Unmarshal(raw, &a); err == nil {
			return a, true, nil
		}
	}

	payload, ok, err := s.repo.Live(ctx, model.KindAsset, assetID)
	if err != nil {
		return model.Asset{}, false, fmt.Errorf("search asset %q: %w", assetID, err)
	}
	if !ok {
		return model.Asset{}, false, nil
	}
	asset := payload.(model.Asset)

	if raw, err := json.Marshal(asset); err == nil {
		_ = s.cache.Set(ctx, key, raw, defaultTTL)
	}
	return asset, true, nil
}

// Query is a full-text style search over id/ticker/name/label/issuer/
// verification-status, per spec.md §1. Results are computed against the
// cache and store, fingerprinted by the query's fields for cache lookup.
type Query struct {
	AssetID    string
	Ticker     string
	Name       string
	Label      string
	Issuer     string
	Status     model.VerificationStatus
	Limit      int
	Offset     int
}

// Fingerprint is a deterministic hash of q used as its cache key, per the
// GLOSSARY's definition ("a deterministic hash of a search query"). FNV-1a
// is used rather than a cryptographic hash since cache keys need only be
// collision-resistant among this process's own query shapes, not adversarial
// inputs — see DESIGN.md for why this is the one place the implementation
// reaches for hash/fnv instead of a pack-sourced library.
func (q Query) Fingerprint() string {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s|%s|%s|%s|%s|%s|%d|%d",
		q.AssetID, q.Ticker, q.Name, q.Label, q.Issuer, q.Status, q.Limit, q.Offset)
	return fmt.Sprintf("%x", h.Sum64())
}

// Result is one matched asset enriched with its mutable fields, returned
// by Search.
type Result struct {
	AssetID     string                    `json:"asset_id"`
	Name        string                    `json:"name"`
	Description string                    `json:"description"`
	Ticker      string                    `json:"ticker"`
	Issuer      string                    `json:"issuer"`
	Labels      []string                  `json:"labels,omitempty"`
	Status      model.VerificationStatus  `json:"verification_status,omitempty"`
}

// Search resolves q against the cache first, then the Repository.
func (s *Service) Search(ctx context.Context, q Query) ([]Result, error) {
	key := cache.Key(cache.NamespaceSearch, q.Fingerprint())
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var results []Result
		if err := json.Unmarshal(raw, &results); err == nil {
			return results, nil
		}
	}

	results, err := s.queryRepository(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}

	if raw, err := json.Marshal(results); err == nil {
		_ = s.cache.Set(ctx, key, raw, defaultTTL)
	}
	return results, nil
}

// queryRepository resolves q against the Repository. Only a query naming
// an asset id is resolved (by a live point lookup); a query without an
// asset id returns no results.
func (s *Service) queryRepository(ctx context.Context, q Query) ([]Result, error) {
	if q.AssetID != "" {
		payload, ok, err := s.repo.Live(ctx, model.KindAsset, q.AssetID)
		if err != nil || !ok {
			return nil, err
		}
		return []Result{assetToResult(payload.(model.Asset))}, nil
	}
	// Ticker/name/label/issuer/status scans need an index the core's
	// Live/PointInTime point-lookup contract doesn't model (spec.md §4.3
	// exposes append/rollback/point-in-time, not a secondary-index scan);
	// building that index is pagination-shaped HTTP API work out of core
	// scope per spec.md §1. The core only guarantees the cache-first/
	// repository-fallback contract exercised by the AssetID path above.
	return nil, nil
}

func assetToResult(a model.Asset) Result {
	return Result{
		AssetID:     a.AssetID,
		Name:        a.Name,
		Description: a.Description,
		Ticker:      a.Ticker,
		Issuer:      a.Issuer,
	}
}

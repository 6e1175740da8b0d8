// Package metrics exposes Prometheus collectors for the ingestion pipeline,
// registered against the default registry and served by the admin HTTP
// surface's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	BatchesCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assetindex",
		Name:      "batches_committed_total",
		Help:      "Number of ingest batches committed to the store.",
	})

	BlocksCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assetindex",
		Name:      "blocks_committed_total",
		Help:      "Number of canonical blocks and microblocks committed.",
	})

	RollbackDepth = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "assetindex",
		Name:      "rollback_depth_blocks",
		Help:      "Number of blocks discarded per rollback_to invocation.",
		Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 256},
	})

	CacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "assetindex",
		Name:      "cache_requests_total",
		Help:      "Cache lookups by namespace and outcome (hit/miss).",
	}, []string{"namespace", "outcome"})

	CacheInvalidationFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "assetindex",
		Name:      "cache_invalidation_failures_total",
		Help:      "Cache invalidations that failed after a commit and were scheduled for retry.",
	})

	ConsumerState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "assetindex",
		Name:      "consumer_state",
		Help:      "Current Coordinator state (0=DISCONNECTED,1=SYNCING,2=LIVE,3=ROLLING_BACK,4=HALTED).",
	})

	CurrentHeight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "assetindex",
		Name:      "current_height",
		Help:      "Height of the last committed tip.",
	})
)

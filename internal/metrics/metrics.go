// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RecommendationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_recommendations_total",
			Help: "Total number of recommendation requests by outcome",
		},
		[]string{"outcome"}, // "ok", "not_found", "out_of_range", "error"
	)

	RecommendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cinematch_recommend_duration_seconds",
			Help:    "Duration of recommendation requests including enrichment",
			Buckets: prometheus.DefBuckets,
		},
	)

	MetadataRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_metadata_requests_total",
			Help: "Total number of metadata lookups by kind and outcome",
		},
		[]string{"kind", "outcome"}, // kind: "movie", "videos"
	)

	MetadataAttemptsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_metadata_attempts_total",
			Help: "Total number of HTTP attempts made to the metadata API, retries included",
		},
	)

	MetadataCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_metadata_cache_hits_total",
			Help: "Total number of metadata cache hits",
		},
	)

	MetadataCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cinematch_metadata_cache_misses_total",
			Help: "Total number of metadata cache misses",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cinematch_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	ArtifactReloadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cinematch_artifact_reloads_total",
			Help: "Total number of artifact reload attempts by outcome",
		},
		[]string{"outcome"}, // "ok", "error"
	)

	CatalogItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cinematch_catalog_items",
			Help: "Number of items in the catalog being served",
		},
	)
)

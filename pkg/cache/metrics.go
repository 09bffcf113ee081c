package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by layer (redis)
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qualys_cache_hits_total",
			Help: "Total number of Qualys response cache hits",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "qualys_cache_misses_total",
			Help: "Total number of Qualys response cache misses",
		},
	)

	// CacheSize tracks bytes written to the cache by layer
	CacheSize = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "qualys_cache_size_bytes",
			Help: "Bytes written to the Qualys response cache",
		},
		[]string{"layer"}, // "redis"
	)

	// CacheSkipped tracks responses that were read but not stored
	CacheSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qualys_cache_skipped_total",
			Help: "Total number of responses not cached",
		},
		[]string{"reason"}, // "too_large", "incomplete"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qualys_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)

// Package metrics provides Prometheus instrumentation for carscout.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GenerationAttemptsTotal counts individual calls to the generation endpoint.
	GenerationAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carscout_generation_attempts_total",
			Help: "Total number of generation attempts by outcome.",
		},
		[]string{"outcome"}, // success, transport, server_error, client_error, malformed, parse
	)

	// GenerationRequestsTotal counts Generate calls by terminal status.
	GenerationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carscout_generation_requests_total",
			Help: "Total number of generation requests by terminal status.",
		},
		[]string{"status"}, // success, exhausted, parse_error, cancelled
	)

	// GenerationLatency tracks the duration of a whole Generate call, backoff included.
	GenerationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carscout_generation_latency_seconds",
			Help:    "Generate call latency in seconds, including retries.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"structured"},
	)

	// TokenUsageTotal tracks the total number of tokens consumed.
	TokenUsageTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carscout_token_usage_total",
			Help: "Total number of tokens consumed.",
		},
		[]string{"direction"}, // input, output
	)

	// RequestLatency tracks end-to-end lookup latency on the serving surfaces.
	RequestLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "carscout_request_latency_seconds",
			Help:    "End-to-end request latency in seconds.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"method", "status"},
	)

	// RequestsTotal tracks served requests by method and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "carscout_requests_total",
			Help: "Total number of served requests by method and status.",
		},
		[]string{"method", "status"},
	)

	// ActiveRequests tracks the number of currently in-flight requests.
	ActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carscout_active_requests",
			Help: "Number of currently in-flight requests.",
		},
	)

	// CacheLookupsTotal tracks the total number of cache lookups.
	CacheLookupsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carscout_cache_lookups_total",
			Help: "Total number of lookup cache reads.",
		},
	)

	// CacheHitsTotal tracks the total number of cache hits.
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "carscout_cache_hits_total",
			Help: "Total number of lookup cache hits.",
		},
	)

	// CacheHitRatio is hits / lookups, refreshed on every lookup.
	CacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "carscout_cache_hit_ratio",
			Help: "Current cache hit ratio (hits / lookups).",
		},
	)

	// CircuitBreakerState tracks the current state of each circuit breaker.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "carscout_circuit_breaker_state",
			Help: "Current circuit breaker state: 0=closed, 1=open, 2=half-open.",
		},
		[]string{"upstream"},
	)

	ratioMu      sync.Mutex
	totalHits    float64
	totalLookups float64
)

// RecordCacheLookup records a cache lookup and updates the hit ratio.
func RecordCacheLookup(hit bool) {
	CacheLookupsTotal.Inc()
	if hit {
		CacheHitsTotal.Inc()
	}

	ratioMu.Lock()
	defer ratioMu.Unlock()
	totalLookups++
	if hit {
		totalHits++
	}
	CacheHitRatio.Set(totalHits / totalLookups)
}

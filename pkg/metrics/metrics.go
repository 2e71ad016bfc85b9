package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// SlippageChecks counts slippage policy evaluations.
var SlippageChecks = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexcore_slippage_checks_total",
		Help: "Total number of slippage policy checks performed",
	},
)

// SlippageRejected counts trades rejected by slippage policy.
var SlippageRejected = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexcore_slippage_rejected_total",
		Help: "Total number of trades rejected for exceeding slippage policy",
	},
)

// BreakerTransitions counts circuit breaker state transitions by dependency
// and target state.
var BreakerTransitions = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "dexcore_circuit_breaker_transitions_total",
		Help: "Circuit breaker state transitions",
	},
	[]string{"dependency", "state"},
)

// BreakerState exposes the current breaker state per dependency
// (0=closed, 1=open, 2=half-open).
var BreakerState = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "dexcore_circuit_breaker_state",
		Help: "Current circuit breaker state (0=closed, 1=open, 2=half-open)",
	},
	[]string{"dependency"},
)

// Route cache effectiveness counters
var (
	RouteCacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dexcore_route_cache_hits_total",
			Help: "Route cache hits",
		},
	)

	RouteCacheMisses = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dexcore_route_cache_misses_total",
			Help: "Route cache misses",
		},
	)
)

// SwapDuration records end-to-end swap execution latency.
var SwapDuration = prometheus.NewHistogram(
	prometheus.HistogramOpts{
		Name:    "dexcore_swap_duration_seconds",
		Help:    "Latency in seconds to execute a full multi-hop swap",
		Buckets: prometheus.DefBuckets,
	},
)

// ChunkSplits counts order-size halvings during chunked execution.
var ChunkSplits = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "dexcore_chunk_splits_total",
		Help: "Total number of order chunk halvings during execution",
	},
)

func init() {
	prometheus.MustRegister(SlippageChecks, SlippageRejected)
	prometheus.MustRegister(BreakerTransitions, BreakerState)
	prometheus.MustRegister(RouteCacheHits, RouteCacheMisses)
	prometheus.MustRegister(SwapDuration, ChunkSplits)
}

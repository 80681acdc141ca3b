package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RedisErrors counts Redis errors by operation type.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_redis_errors_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// ActiveWebSockets is the gauge of open realtime connections.
	ActiveWebSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "aiverselabs_websocket_connections",
		Help: "Number of active realtime WebSocket connections",
	})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// ChangeEventsPublished counts realtime change events by table and action.
	ChangeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_change_events_total",
		Help: "Total realtime change events published",
	}, []string{"table", "action"})

	// ProviderCallLatency records proxy function latency by function and outcome.
	ProviderCallLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aiverselabs_provider_call_seconds",
		Help:    "Latency of AI provider proxy functions",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"function", "outcome"})

	// GenerationJobs counts finished generation jobs by kind and final status.
	GenerationJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_generation_jobs_total",
		Help: "Total generation jobs by kind and final status",
	}, []string{"kind", "status"})

	// GenerationPolls counts status polls issued by the job poller.
	GenerationPolls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_generation_polls_total",
		Help: "Total status polls issued by kind",
	}, []string{"kind"})

	// StorageOperations counts file storage calls by driver, operation and outcome.
	StorageOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "aiverselabs_storage_operations_total",
		Help: "Total file storage operations",
	}, []string{"driver", "operation", "outcome"})

	// DatabaseQueryLatency records repository latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "aiverselabs_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}

// Outcome maps an error to the "ok"/"error" label used by counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

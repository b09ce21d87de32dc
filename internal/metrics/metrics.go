// Package metrics defines Prometheus metrics for fluxtrace.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxtrace_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxtrace_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	StreamDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fluxtrace_http_stream_duration_seconds",
			Help:    "Duration of streaming trace responses in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 9),
		},
		[]string{"path"},
	)

	ErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxtrace_errors_total",
			Help: "Total errors by type",
		},
		[]string{"type"},
	)

	// TracesTotal counts finished traces by outcome: completed, stopped,
	// truncated or failed.
	TracesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fluxtrace_traces_total",
			Help: "Finished traces by outcome",
		},
		[]string{"outcome"},
	)

	TraceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fluxtrace_trace_duration_seconds",
			Help:    "Wall time from trace start to the end of iteration",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		},
	)

	TraceHits = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fluxtrace_trace_hits",
			Help:    "Hits emitted per trace",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	TracePrunedEdges = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxtrace_trace_pruned_edges_total",
			Help: "Edges rejected by the contribution threshold",
		},
	)

	TraceSkippedBranches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fluxtrace_trace_skipped_branches_total",
			Help: "Branches not expanded because of malformed edge amounts",
		},
	)

	ActiveTraces = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluxtrace_active_traces",
			Help: "Traces with an open graph snapshot",
		},
	)

	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fluxtrace_websocket_connections",
			Help: "Active WebSocket connections",
		},
	)
)

// RegisterPool exports the database pool's connection counts, read on every
// scrape.
func RegisterPool(inUse, idle func() int32) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fluxtrace_db_connections_in_use",
			Help: "Database connections currently acquired",
		}, func() float64 { return float64(inUse()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "fluxtrace_db_connections_idle",
			Help: "Idle database connections",
		}, func() float64 { return float64(idle()) }),
	)
}

func init() {
	prometheus.MustRegister(
		RequestDuration, RequestsTotal, StreamDuration, ErrorsTotal,
		TracesTotal, TraceDuration, TraceHits,
		TracePrunedEdges, TraceSkippedBranches,
		ActiveTraces, WSConnections,
	)
}

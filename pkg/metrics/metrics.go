package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks document sessions with at least one connection.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "penflow_active_document_sessions",
			Help: "Number of live collaborative document sessions",
		},
	)

	// ActiveConnections tracks open collaborative websocket connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "penflow_active_connections",
			Help: "Number of open collaborative websocket connections",
		},
	)

	// Operations counts edit operations by kind (insert|delete) and outcome
	// (applied|transformed|dropped|resync).
	Operations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "penflow_operations_total",
			Help: "Total number of edit operations processed",
		},
		[]string{"kind", "outcome"},
	)

	// SlowClientEvictions counts connections dropped for backpressure.
	SlowClientEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "penflow_slow_client_evictions_total",
			Help: "Connections evicted because their outbound buffer was full",
		},
	)

	// CheckpointFailures counts failed document checkpoints.
	CheckpointFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "penflow_checkpoint_failures_total",
			Help: "Document checkpoint attempts that returned an error",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "penflow_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

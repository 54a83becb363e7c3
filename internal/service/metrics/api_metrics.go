package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// APILatency is the end-to-end latency of a quant operation including the price fetch.
	APILatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "quant",
			Subsystem: "api",
			Name:      "latency_seconds",
			Help:      "Latency of quant operations by entry point",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// APIOutcomes counts results by operation and outcome (ok, insufficient_data, bad_request, error).
	APIOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "api",
			Name:      "outcomes_total",
			Help:      "Quant operation outcomes",
		},
		[]string{"operation", "outcome"},
	)

	// SnapshotComponentErrors counts snapshot components that failed while the snapshot succeeded.
	SnapshotComponentErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "quant",
			Subsystem: "snapshot",
			Name:      "component_errors_total",
			Help:      "Snapshot components that returned an error",
		},
		[]string{"component"},
	)
)

// Register registers the API collectors once on the default registry.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(APILatency, APIOutcomes, SnapshotComponentErrors)
	})
}

// Observe records the latency and outcome of one operation.
func Observe(op, outcome string, start time.Time) {
	APILatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	APIOutcomes.WithLabelValues(op, outcome).Inc()
}

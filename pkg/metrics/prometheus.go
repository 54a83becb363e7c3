package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	fallbacks   *prometheus.CounterVec
	predictions *prometheus.CounterVec
}

var (
	defaultOnce     sync.Once
	defaultRecorder *Recorder
)

// New returns the process-wide Prometheus recorder, registering collectors on first use.
func New() *Recorder {
	defaultOnce.Do(func() {
		defaultRecorder = newRecorder(prometheus.DefaultRegisterer)
	})
	return defaultRecorder
}

// NewWithRegistry builds a recorder on a caller-owned registry.
func NewWithRegistry(reg prometheus.Registerer) *Recorder {
	return newRecorder(reg)
}

func newRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quant_operation_duration_seconds",
				Help:    "Duration of engine operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		fallbacks: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_model_fallbacks_total",
				Help: "Model fits that took the deterministic fallback path",
			},
			[]string{"model"},
		),
		predictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quant_predictions_total",
				Help: "Prediction ledger records by state transition",
			},
			[]string{"state"},
		),
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// RecordFallback counts a fit that used the fallback model.
func (r *Recorder) RecordFallback(model string) {
	r.fallbacks.WithLabelValues(model).Inc()
}

// RecordPredictions counts ledger records logged, scored or archived.
func (r *Recorder) RecordPredictions(state string, n int) {
	if n <= 0 {
		return
	}
	r.predictions.WithLabelValues(state).Add(float64(n))
}

// Package analytics holds the quantitative engines. Every engine is a pure
// function of its input series; fits are request-scoped and never cached.
package analytics

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/optimize"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/domain/repository"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

// Option configures an engine.
type Option func(*engineBase)

func WithLogger(l *logger.Logger) Option {
	return func(b *engineBase) { b.log = l }
}

func WithMetrics(m repository.Metrics) Option {
	return func(b *engineBase) { b.metrics = m }
}

// engineBase carries the logger and metrics shared by all engines.
type engineBase struct {
	log     *logger.Logger
	metrics repository.Metrics
}

func newBase(opts []Option) engineBase {
	var b engineBase
	for _, o := range opts {
		o(&b)
	}
	return b
}

// observe records latency and errors of one engine call.
func (b engineBase) observe(op string, start time.Time, err error) {
	if b.metrics == nil {
		return
	}
	b.metrics.RecordLatency(op, time.Since(start).Seconds())
	if err != nil {
		b.metrics.RecordError(op)
	}
}

// fellBack logs and counts a fit that used its fallback model.
func (b engineBase) fellBack(model, ticker string, cause error) {
	b.log.Warn("model fit fell back",
		logger.String("model", model),
		logger.String("ticker", ticker),
		logger.Error(cause),
	)
	if b.metrics != nil {
		b.metrics.RecordFallback(model)
	}
}

func insufficient(ticker, op string, required, got int) error {
	return &models.InsufficientDataError{Ticker: ticker, Operation: op, Required: required, Got: got}
}

func ptr[T any](v T) *T { return &v }

func finite(xs ...float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

// stopOnDone is an optimize.Problem status hook that ends a fit once ctx is done.
func stopOnDone(ctx context.Context) func() (optimize.Status, error) {
	return func() (optimize.Status, error) {
		if err := ctx.Err(); err != nil {
			return optimize.RuntimeLimit, err
		}
		return optimize.NotTerminated, nil
	}
}

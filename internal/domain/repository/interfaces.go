package repository

import (
	"context"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// PredictionStore is the durable record store behind the prediction ledger.
// Records are keyed by (ticker, prediction date, horizon).
type PredictionStore interface {
	// Put creates a record and fails with models.ErrDuplicatePrediction if the key exists.
	Put(ctx context.Context, rec models.PredictionRecord) error
	// Replace writes a new version of an existing record.
	Replace(ctx context.Context, rec models.PredictionRecord) error
	Get(ctx context.Context, key string) (models.PredictionRecord, error)
	// List never fails on individual unreadable records; they are skipped.
	List(ctx context.Context, f models.PredictionFilter) ([]models.PredictionRecord, error)
	// Archive moves records created before the cutoff out of the active set.
	Archive(ctx context.Context, before time.Time) (int, error)
}

// EventPublisher publishes ledger events to downstream consumers.
type EventPublisher interface {
	PublishPrediction(ctx context.Context, topic string, rec models.PredictionRecord) error
	Close() error
}

type Metrics interface {
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordFallback(model string)
	RecordPredictions(state string, n int)
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	pkgkafka "github.com/arg-foo/zaza-sub000/pkg/kafka"
)

// ErrNoQuotes is returned by providers that cannot produce a live last price.
var ErrNoQuotes = errors.New("provider does not support quotes")

// PredictionEvent is the payload published for ledger changes.
type PredictionEvent struct {
	Event     string                  `json:"event"`
	Key       string                  `json:"key"`
	Record    models.PredictionRecord `json:"record"`
	Published time.Time               `json:"published_at"`
}

// KafkaPublisher publishes prediction events keyed by ticker so one ticker stays ordered.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	prefix   string
}

// NewKafkaPublisher prefixes every topic with prefix (for example "quant.").
func NewKafkaPublisher(p *pkgkafka.Producer, prefix string) *KafkaPublisher {
	return &KafkaPublisher{producer: p, prefix: prefix}
}

func (k *KafkaPublisher) PublishPrediction(ctx context.Context, topic string, rec models.PredictionRecord) error {
	return k.producer.Publish(ctx, k.prefix+topic, []byte(rec.Ticker), PredictionEvent{
		Event:     topic,
		Key:       rec.Key(),
		Record:    rec,
		Published: time.Now().UTC(),
	})
}

func (k *KafkaPublisher) Close() error { return k.producer.Close() }

var _ domrepo.EventPublisher = (*KafkaPublisher)(nil)

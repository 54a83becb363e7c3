package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	xhttp "github.com/arg-foo/zaza-sub000/pkg/http"
	pkgkafka "github.com/arg-foo/zaza-sub000/pkg/kafka"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

// PredictionLogger is the part of QuantService the consumer needs.
type PredictionLogger interface {
	LogPrediction(ctx context.Context, req models.LogPredictionRequest) (models.PredictionRecord, error)
}

// SubmittedPredictionsHandler logs predictions published by upstream forecasters.
// Malformed or invalid payloads are permanent failures; duplicates are acknowledged.
type SubmittedPredictionsHandler struct {
	topic   string
	svc     PredictionLogger
	metrics domrepo.Metrics
	log     *logger.Logger
}

func NewSubmittedPredictionsHandler(topic string, svc PredictionLogger, metrics domrepo.Metrics, l *logger.Logger) *SubmittedPredictionsHandler {
	return &SubmittedPredictionsHandler{topic: topic, svc: svc, metrics: metrics, log: l}
}

func (h *SubmittedPredictionsHandler) Topic() string { return h.topic }

func (h *SubmittedPredictionsHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()
	var req models.LogPredictionRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.recordError("consumer_unmarshal")
		return &pkgkafka.PermanentError{Err: err}
	}
	if err := xhttp.ValidateStruct(ctx, &req); err != nil {
		h.recordError("consumer_validate")
		return &pkgkafka.PermanentError{Err: err}
	}

	rec, err := h.svc.LogPrediction(ctx, req)
	if h.metrics != nil {
		h.metrics.RecordLatency("consume_prediction", time.Since(start).Seconds())
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, models.ErrDuplicatePrediction):
		h.log.Info("duplicate prediction ignored", logger.String("key", rec.Key()))
		return nil
	case models.IsInsufficientData(err):
		h.recordError("consumer_no_price")
		return &pkgkafka.PermanentError{Err: err}
	default:
		h.recordError("consumer_log")
		return err
	}
}

func (h *SubmittedPredictionsHandler) recordError(kind string) {
	if h.metrics != nil {
		h.metrics.RecordError(kind)
	}
}

var _ pkgkafka.MessageHandler = (*SubmittedPredictionsHandler)(nil)

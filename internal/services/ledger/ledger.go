// Package ledger records forecasts and scores them once their target date has passed.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/domain/repository"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

const (
	DefaultArchiveAge = 365 * 24 * time.Hour

	TopicLogged  = "predictions.logged"
	TopicScored  = "predictions.scored"
	realizedBack = 10 * 24 * time.Hour

	pricePlaces  = 4
	metricPlaces = 4
)

type Ledger struct {
	store      repository.PredictionStore
	prices     repository.PriceProvider
	publisher  repository.EventPublisher
	log        *logger.Logger
	metrics    repository.Metrics
	archiveAge time.Duration
	clock      func() time.Time
}

type Option func(*Ledger)

func WithLogger(l *logger.Logger) Option { return func(s *Ledger) { s.log = l } }

func WithMetrics(m repository.Metrics) Option { return func(s *Ledger) { s.metrics = m } }

// WithPublisher emits logged and scored records to downstream consumers.
func WithPublisher(p repository.EventPublisher) Option { return func(s *Ledger) { s.publisher = p } }

func WithArchiveAge(d time.Duration) Option {
	return func(s *Ledger) {
		if d > 0 {
			s.archiveAge = d
		}
	}
}

func WithClock(now func() time.Time) Option { return func(s *Ledger) { s.clock = now } }

func New(store repository.PredictionStore, prices repository.PriceProvider, opts ...Option) *Ledger {
	l := &Ledger{
		store:      store,
		prices:     prices,
		archiveAge: DefaultArchiveAge,
		clock:      time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Log validates and persists a new record. The target date is the prediction date plus
// the horizon in calendar days. A record with the same key fails with ErrDuplicatePrediction.
func (l *Ledger) Log(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error) {
	rec.Ticker = util.NormalizeTicker(rec.Ticker)
	if rec.Ticker == "" {
		return rec, errors.New("log prediction: ticker is required")
	}
	if !util.ValidTicker(rec.Ticker) {
		return rec, fmt.Errorf("log prediction: ticker %q: %w", rec.Ticker, models.ErrInvalidParameter)
	}
	if rec.HorizonDays <= 0 {
		return rec, fmt.Errorf("log prediction %s: horizon must be positive, got %d", rec.Ticker, rec.HorizonDays)
	}
	if rec.CurrentPrice <= 0 || math.IsNaN(rec.CurrentPrice) {
		return rec, fmt.Errorf("log prediction %s: current price must be positive", rec.Ticker)
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = l.clock()
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	if rec.PredictionDate == "" {
		rec.PredictionDate = rec.CreatedAt.Format(time.DateOnly)
	}
	day, err := time.Parse(time.DateOnly, rec.PredictionDate)
	if err != nil {
		return rec, fmt.Errorf("log prediction %s: invalid prediction date: %w", rec.Ticker, err)
	}
	rec.TargetDate = day.AddDate(0, 0, rec.HorizonDays).Format(time.DateOnly)
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	rec.Version = 1
	rec.Scored = false
	rec.Score = nil
	rec.CurrentPrice = roundPrice(rec.CurrentPrice)
	rec.PredictedRange = models.PriceRange{
		Low:  roundPrice(rec.PredictedRange.Low),
		Mid:  roundPrice(rec.PredictedRange.Mid),
		High: roundPrice(rec.PredictedRange.High),
	}
	rec.ConfidenceInterval = models.ConfidenceInterval{
		CI5:  roundPrice(rec.ConfidenceInterval.CI5),
		CI25: roundPrice(rec.ConfidenceInterval.CI25),
		CI75: roundPrice(rec.ConfidenceInterval.CI75),
		CI95: roundPrice(rec.ConfidenceInterval.CI95),
	}

	if err := l.store.Put(ctx, rec); err != nil {
		return rec, fmt.Errorf("log prediction: %w", err)
	}
	l.publish(ctx, TopicLogged, rec)
	l.count("logged", 1)
	l.log.Info("prediction logged",
		logger.String("key", rec.Key()),
		logger.String("target_date", rec.TargetDate),
	)
	return rec, nil
}

// Score evaluates every unscored record whose target date is on or before now. The
// realized price is the last close on or before the target date. Scored records are
// never rescored. Records whose price cannot be fetched stay pending and are counted
// as skipped.
func (l *Ledger) Score(ctx context.Context, ticker string, now time.Time) (models.ScoreSummary, error) {
	var sum models.ScoreSummary
	recs, err := l.store.List(ctx, models.PredictionFilter{Ticker: ticker})
	if err != nil {
		return sum, fmt.Errorf("score predictions: %w", err)
	}
	sum.TotalPredictions = len(recs)

	due := map[string][]int{}
	for i, r := range recs {
		if !r.Scored && r.Due(now) {
			due[r.Ticker] = append(due[r.Ticker], i)
		}
	}
	for tk, idx := range due {
		series, err := l.fetchRealized(ctx, tk, recs, idx)
		if err != nil {
			if ctx.Err() != nil {
				return sum, ctx.Err()
			}
			l.log.Warn("realized prices unavailable",
				logger.String("ticker", tk),
				logger.Error(err),
			)
			sum.Skipped += len(idx)
			continue
		}
		for _, i := range idx {
			next, ok, err := l.scoreOne(ctx, recs[i], series, now)
			switch {
			case err != nil:
				l.log.Warn("prediction not scored",
					logger.String("key", recs[i].Key()),
					logger.Error(err),
				)
				sum.Skipped++
			case !ok:
				sum.Skipped++
			default:
				recs[i] = next
				sum.NewlyScored++
			}
		}
	}

	var dirOK, within int
	var absErr, pctErr, signed []float64
	for _, r := range recs {
		if !r.Scored || r.Score == nil {
			sum.Pending++
			continue
		}
		sum.Scored++
		s := r.Score
		if s.DirectionCorrect {
			dirOK++
		}
		if s.WithinInterval {
			within++
		}
		absErr = append(absErr, s.AbsError)
		signed = append(signed, s.SignedError)
		if s.PctError != nil {
			pctErr = append(pctErr, *s.PctError)
		}
	}
	if sum.Scored > 0 {
		sum.DirectionalAccuracy = ratio(dirOK, sum.Scored)
		sum.RangeAccuracy = ratio(within, sum.Scored)
		sum.MAE = mean(absErr)
		sum.MAPE = mean(pctErr)
		sum.Bias = mean(signed)
	}
	sum.Predictions = recs

	l.count("scored", sum.NewlyScored)
	l.count("skipped", sum.Skipped)
	l.log.Info("predictions scored",
		logger.String("ticker", ticker),
		logger.Int("total", sum.TotalPredictions),
		logger.Int("newly_scored", sum.NewlyScored),
		logger.Int("pending", sum.Pending),
	)
	return sum, nil
}

// Archive moves records created more than the archive age before now out of the active set.
func (l *Ledger) Archive(ctx context.Context, now time.Time) (models.ArchiveResult, error) {
	res := models.ArchiveResult{Cutoff: now.Add(-l.archiveAge).UTC()}
	n, err := l.store.Archive(ctx, res.Cutoff)
	res.Archived = n
	if err != nil {
		return res, fmt.Errorf("archive predictions: %w", err)
	}
	l.count("archived", n)
	l.log.Info("predictions archived",
		logger.Int("archived", n),
		logger.String("cutoff", res.Cutoff.Format(time.DateOnly)),
	)
	return res, nil
}

// fetchRealized loads one window of bars covering every due target of a ticker.
func (l *Ledger) fetchRealized(ctx context.Context, ticker string, recs []models.PredictionRecord, idx []int) (models.PriceSeries, error) {
	var first, last time.Time
	for _, i := range idx {
		t, err := recs[i].Target()
		if err != nil {
			continue
		}
		if first.IsZero() || t.Before(first) {
			first = t
		}
		if t.After(last) {
			last = t
		}
	}
	if first.IsZero() {
		return models.PriceSeries{}, errors.New("no valid target dates")
	}
	return l.prices.Fetch(ctx, ticker, first.Add(-realizedBack), last.Add(24*time.Hour-time.Nanosecond))
}

// scoreOne builds the scored version of rec and replaces the stored one. ok is false
// when no close exists on or before the target date, or another writer scored it first.
func (l *Ledger) scoreOne(ctx context.Context, rec models.PredictionRecord, series models.PriceSeries, now time.Time) (models.PredictionRecord, bool, error) {
	target, err := rec.Target()
	if err != nil {
		return rec, false, err
	}
	realized, found := closeAsOf(series, target)
	if !found {
		return rec, false, nil
	}
	next := rec
	next.Score = Evaluate(rec, realized, now)
	next.Scored = true
	next.Version = rec.Version + 1
	if err := l.store.Replace(ctx, next); err != nil {
		if errors.Is(err, models.ErrStalePrediction) {
			return rec, false, nil
		}
		return rec, false, err
	}
	l.publish(ctx, TopicScored, next)
	return next, true, nil
}

// Evaluate scores one record against a realized price. Direction compares the predicted
// mid and the realized price with the price at creation; errors are mid minus realized.
func Evaluate(rec models.PredictionRecord, realized float64, now time.Time) *models.PredictionScore {
	mid := rec.PredictedRange.Mid
	s := &models.PredictionScore{
		RealizedPrice:    roundPrice(realized),
		DirectionCorrect: (mid >= rec.CurrentPrice) == (realized >= rec.CurrentPrice),
		AbsError:         roundPrice(math.Abs(mid - realized)),
		SignedError:      roundPrice(mid - realized),
		WithinInterval:   rec.ConfidenceInterval.CI5 <= realized && realized <= rec.ConfidenceInterval.CI95,
		ScoredAt:         now.UTC(),
	}
	if realized != 0 {
		pct := decimal.NewFromFloat(math.Abs(mid-realized) / math.Abs(realized)).Round(6).InexactFloat64()
		s.PctError = &pct
	}
	return s
}

func closeAsOf(series models.PriceSeries, target time.Time) (float64, bool) {
	end := target.Add(24 * time.Hour)
	for i := len(series.Bars) - 1; i >= 0; i-- {
		if series.Bars[i].Date.Before(end) {
			return series.Bars[i].Close, true
		}
	}
	return 0, false
}

func (l *Ledger) publish(ctx context.Context, topic string, rec models.PredictionRecord) {
	if l.publisher == nil {
		return
	}
	if err := l.publisher.PublishPrediction(ctx, topic, rec); err != nil {
		l.log.Warn("prediction event not published",
			logger.String("topic", topic),
			logger.String("key", rec.Key()),
			logger.Error(err),
		)
	}
}

func (l *Ledger) count(state string, n int) {
	if l.metrics != nil {
		l.metrics.RecordPredictions(state, n)
	}
}

func roundPrice(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(pricePlaces).InexactFloat64()
}

func ratio(n, d int) *float64 {
	v := decimal.NewFromInt(int64(n)).DivRound(decimal.NewFromInt(int64(d)), metricPlaces).InexactFloat64()
	return &v
}

func mean(xs []float64) *float64 {
	if len(xs) == 0 {
		return nil
	}
	total := decimal.Zero
	for _, x := range xs {
		total = total.Add(decimal.NewFromFloat(x))
	}
	v := total.DivRound(decimal.NewFromInt(int64(len(xs))), metricPlaces).InexactFloat64()
	return &v
}

var _ domsvc.PredictionLedger = (*Ledger)(nil)

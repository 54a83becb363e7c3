package models

import (
	"fmt"
	"strings"
	"time"
)

// PriceRange is the predicted low/mid/high price at the target date.
type PriceRange struct {
	Low  float64 `json:"low"`
	Mid  float64 `json:"mid"`
	High float64 `json:"high"`
}

// ConfidenceInterval holds percentile bounds of the predicted price.
type ConfidenceInterval struct {
	CI5  float64 `json:"ci_5"`
	CI25 float64 `json:"ci_25"`
	CI75 float64 `json:"ci_75"`
	CI95 float64 `json:"ci_95"`
}

// PredictionScore is written once, when the target date has passed.
type PredictionScore struct {
	RealizedPrice    float64   `json:"realized_price"`
	DirectionCorrect bool      `json:"direction_correct"`
	AbsError         float64   `json:"abs_error"`
	PctError         *float64  `json:"pct_error"`
	SignedError      float64   `json:"signed_error"`
	WithinInterval   bool      `json:"within_interval"`
	ScoredAt         time.Time `json:"scored_at"`
}

// PredictionRecord is the durable ledger entry, keyed by (ticker, creation date, horizon).
type PredictionRecord struct {
	ID                 string             `json:"id"`
	Ticker             string             `json:"ticker"`
	CreatedAt          time.Time          `json:"created_at"`
	PredictionDate     string             `json:"prediction_date"`
	HorizonDays        int                `json:"horizon_days"`
	TargetDate         string             `json:"target_date"`
	CurrentPrice       float64            `json:"current_price"`
	PredictedRange     PriceRange         `json:"predicted_range"`
	ConfidenceInterval ConfidenceInterval `json:"confidence_interval"`
	ModelWeights       map[string]float64 `json:"model_weights"`
	KeyFactors         []string           `json:"key_factors"`
	Scored             bool               `json:"scored"`
	Score              *PredictionScore   `json:"score"`
	Version            int                `json:"version"`
}

// Key returns the natural primary key of the record.
func (r PredictionRecord) Key() string {
	return fmt.Sprintf("%s_%s_%dd", strings.ToUpper(r.Ticker), r.PredictionDate, r.HorizonDays)
}

// Target parses TargetDate.
func (r PredictionRecord) Target() (time.Time, error) {
	return time.Parse(time.DateOnly, r.TargetDate)
}

// Due reports whether the target date is on or before now.
func (r PredictionRecord) Due(now time.Time) bool {
	t, err := r.Target()
	if err != nil {
		return false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return !t.After(today)
}

// PredictionFilter narrows ledger listings.
type PredictionFilter struct {
	Ticker string
}

// Match reports whether r passes the filter.
func (f PredictionFilter) Match(r PredictionRecord) bool {
	return f.Ticker == "" || strings.EqualFold(f.Ticker, r.Ticker)
}

// ScoreSummary aggregates accuracy over scored records.
type ScoreSummary struct {
	TotalPredictions    int                `json:"total_predictions"`
	Scored              int                `json:"scored"`
	Pending             int                `json:"pending"`
	NewlyScored         int                `json:"newly_scored"`
	Skipped             int                `json:"skipped"`
	DirectionalAccuracy *float64           `json:"directional_accuracy"`
	MAE                 *float64           `json:"mae"`
	MAPE                *float64           `json:"mape"`
	Bias                *float64           `json:"bias"`
	RangeAccuracy       *float64           `json:"range_accuracy"`
	Predictions         []PredictionRecord `json:"predictions"`
}

// ArchiveResult reports an archival sweep.
type ArchiveResult struct {
	Cutoff   time.Time `json:"cutoff"`
	Archived int       `json:"archived"`
}

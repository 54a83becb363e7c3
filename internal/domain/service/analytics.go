package service

import (
	"context"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// DistributionAnalyzer characterizes a return series.
type DistributionAnalyzer interface {
	Analyze(ctx context.Context, returns models.ReturnSeries, period string, confidence float64) (models.DistributionResult, error)
}

// MeanReversionAnalyzer estimates Hurst exponent and OU half-life from prices.
type MeanReversionAnalyzer interface {
	Analyze(ctx context.Context, series models.PriceSeries) (models.MeanReversionResult, error)
}

// RegimeClassifier labels the current market regime.
type RegimeClassifier interface {
	Classify(ctx context.Context, series models.PriceSeries) (models.RegimeResult, error)
}

// Forecaster produces a daily price forecast with 80%/95% intervals.
type Forecaster interface {
	Forecast(ctx context.Context, series models.PriceSeries, horizon int, method string) (models.ForecastResult, error)
}

// VolatilityForecaster forecasts conditional volatility and VaR.
type VolatilityForecaster interface {
	Forecast(ctx context.Context, series models.PriceSeries, horizon int) (models.VolatilityResult, error)
}

// Simulator generates Monte Carlo price paths.
type Simulator interface {
	Simulate(ctx context.Context, series models.PriceSeries, params models.SimulationParams) (models.SimulationResult, error)
}

// SignalBacktester measures forward returns after a named signal fires.
type SignalBacktester interface {
	Backtest(ctx context.Context, series models.PriceSeries, signal string, holdingPeriods []int) (models.BacktestResult, error)
}

// StrategySimulator runs entry/exit round trips with stops and targets.
type StrategySimulator interface {
	Simulate(ctx context.Context, series models.PriceSeries, params models.StrategyParams) (models.StrategyResult, error)
}

// RiskCalculator computes benchmark-relative risk ratios.
type RiskCalculator interface {
	Compute(ctx context.Context, series, benchmark models.PriceSeries, period string) (models.RiskResult, error)
}

// PredictionLedger persists forecasts and scores them once their target date passes.
type PredictionLedger interface {
	Log(ctx context.Context, rec models.PredictionRecord) (models.PredictionRecord, error)
	Score(ctx context.Context, ticker string, now time.Time) (models.ScoreSummary, error)
	Archive(ctx context.Context, now time.Time) (models.ArchiveResult, error)
}

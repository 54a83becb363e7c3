package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/repository"
	"github.com/arg-foo/zaza-sub000/internal/services/analytics"
	"github.com/arg-foo/zaza-sub000/internal/services/backtest"
	"github.com/arg-foo/zaza-sub000/internal/services/ledger"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

type stubProvider struct {
	mu     sync.Mutex
	closes []float64
	err    error
	calls  []string
}

func (p *stubProvider) Fetch(_ context.Context, ticker string, _, _ time.Time) (models.PriceSeries, error) {
	p.mu.Lock()
	p.calls = append(p.calls, ticker)
	p.mu.Unlock()
	if p.err != nil {
		return models.PriceSeries{}, p.err
	}
	return testutil.Series(ticker, p.closes), nil
}

func engines() Engines {
	return Engines{
		Distribution:  analytics.NewDistributionAnalyzer(),
		MeanReversion: analytics.NewMeanReversionAnalyzer(),
		Regime:        analytics.NewRegimeClassifier(),
		Forecast:      analytics.NewForecaster(),
		Volatility:    analytics.NewVolatilityForecaster(),
		Simulator:     analytics.NewMonteCarloSimulator(),
		Backtester:    backtest.NewBacktester(),
		Strategy:      backtest.NewStrategySimulator(),
		Risk:          analytics.NewRiskCalculator(0.02),
	}
}

var fixedNow = time.Date(2024, 6, 3, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T, p *stubProvider) *QuantService {
	t.Helper()
	store, err := repository.NewPredictionFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPredictionFileStore: %v", err)
	}
	clock := func() time.Time { return fixedNow }
	led := ledger.New(store, p, ledger.WithClock(clock))
	return NewQuantService(p, engines(), led, Settings{
		Simulations:    2000,
		HorizonDays:    20,
		HoldingPeriods: []int{5, 20},
		MaxConcurrency: 2,
	}, WithServiceClock(clock))
}

func TestProviderFailureBecomesInsufficientData(t *testing.T) {
	svc := newService(t, &stubProvider{err: errors.New("ticker not found")})
	_, err := svc.Regime(context.Background(), models.RegimeRequest{Ticker: "nope"})
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Ticker != "NOPE" || ide.Operation != "regime" {
		t.Fatalf("unexpected error context %+v", ide)
	}
	if Outcome(err) != "insufficient_data" {
		t.Fatalf("outcome = %s", Outcome(err))
	}
}

func TestEmptyHistoryBecomesInsufficientData(t *testing.T) {
	svc := newService(t, &stubProvider{})
	_, err := svc.Distribution(context.Background(), models.DistributionRequest{Ticker: "AAPL"})
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
}

func TestShortHistoryReportsRequiredObservations(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(1, 40, 100, 0, 0.01)})
	_, err := svc.Forecast(context.Background(), models.ForecastRequest{Ticker: "AAPL", Horizon: 10})
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Required != analytics.MinForecastObservations {
		t.Fatalf("required = %d, want %d", ide.Required, analytics.MinForecastObservations)
	}
}

func TestSnapshotCollectsComponentErrors(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(2, 45, 100, 0.0003, 0.012)})
	snap, err := svc.Snapshot(context.Background(), models.SnapshotRequest{Ticker: "msft"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Ticker != "MSFT" || snap.Observations != 45 {
		t.Fatalf("unexpected header %+v", snap)
	}
	if snap.Distribution == nil || snap.Simulation == nil {
		t.Fatalf("short-history components missing: %+v", snap.Errors)
	}
	for _, name := range []string{"mean_reversion", "regime", "forecast", "volatility"} {
		if _, ok := snap.Errors[name]; !ok {
			t.Errorf("expected an error for %s", name)
		}
	}
	if snap.Forecast != nil || snap.Volatility != nil {
		t.Fatalf("failed components must stay empty")
	}
}

func TestSnapshotFullHistory(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(3, 400, 100, 0.0003, 0.012)})
	snap, err := svc.Snapshot(context.Background(), models.SnapshotRequest{Ticker: "MSFT"})
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if snap.Distribution == nil || snap.MeanReversion == nil || snap.Regime == nil || snap.Simulation == nil {
		t.Fatalf("components missing, errors: %v", snap.Errors)
	}
	if snap.Forecast == nil && snap.Errors["forecast"] == "" {
		t.Fatalf("forecast neither produced nor reported")
	}
	if snap.Volatility == nil && snap.Errors["volatility"] == "" {
		t.Fatalf("volatility neither produced nor reported")
	}
	if snap.Simulation.HorizonDays != 20 || snap.Simulation.Simulations != 2000 {
		t.Fatalf("snapshot simulation ignored settings: %+v", snap.Simulation)
	}
}

func TestMonteCarloSeedAndOverrides(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(4, 260, 50, 0.0002, 0.01)})
	seed := uint64(42)
	drift := 0.1
	req := models.MonteCarloRequest{
		Ticker:      "AAPL",
		Horizon:     15,
		Simulations: 500,
		Seed:        &seed,
		Drift:       &drift,
		Source:      models.SourceHistorical,
		Thresholds:  "5,10",
	}
	a, err := svc.MonteCarlo(context.Background(), req)
	if err != nil {
		t.Fatalf("MonteCarlo: %v", err)
	}
	b, err := svc.MonteCarlo(context.Background(), req)
	if err != nil {
		t.Fatalf("MonteCarlo: %v", err)
	}
	for k := range a.Paths {
		for i := range a.Paths[k].Prices {
			if a.Paths[k].Prices[i] != b.Paths[k].Prices[i] {
				t.Fatalf("same seed produced different paths")
			}
		}
	}
	if a.Drift != 0.1 || a.DriftSource != models.SourceOverride || a.VolSource != models.SourceHistorical {
		t.Fatalf("unexpected sources drift=%v %s/%s", a.Drift, a.DriftSource, a.VolSource)
	}
	if len(a.Probabilities) != 2 || a.Probabilities[0].Threshold != 0.05 {
		t.Fatalf("thresholds not parsed: %+v", a.Probabilities)
	}
}

func TestMonteCarloForecastSource(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(5, 300, 80, 0.0004, 0.01)})
	seed := uint64(7)
	res, err := svc.MonteCarlo(context.Background(), models.MonteCarloRequest{
		Ticker:      "AAPL",
		Horizon:     10,
		Simulations: 200,
		Seed:        &seed,
		Source:      models.SourceForecast,
	})
	if err != nil {
		t.Fatalf("MonteCarlo: %v", err)
	}
	if res.DriftSource != models.SourceForecast {
		t.Fatalf("drift source = %s", res.DriftSource)
	}
	if math.IsNaN(res.Drift) || math.IsInf(res.Drift, 0) {
		t.Fatalf("model-implied drift is not finite")
	}
}

func TestMonteCarloRejectsBadThreshold(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(6, 100, 80, 0, 0.01)})
	_, err := svc.MonteCarlo(context.Background(), models.MonteCarloRequest{Ticker: "AAPL", Thresholds: "abc"})
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if Outcome(err) != "bad_request" {
		t.Fatalf("outcome = %s", Outcome(err))
	}
}

func TestMonteCarloRejectsOversizedRunBeforeFetch(t *testing.T) {
	p := &stubProvider{closes: testutil.GBM(6, 100, 80, 0, 0.01)}
	svc := newService(t, p)
	_, err := svc.MonteCarlo(context.Background(), models.MonteCarloRequest{Ticker: "AAPL", Horizon: 756, Simulations: 200000})
	if !errors.Is(err, models.ErrInvalidParameter) {
		t.Fatalf("expected ErrInvalidParameter, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Fatalf("history fetched for a rejected run: %v", p.calls)
	}
}

func TestRiskFetchesBenchmark(t *testing.T) {
	p := &stubProvider{closes: testutil.GBM(8, 300, 100, 0.0004, 0.015)}
	svc := newService(t, p)
	res, err := svc.Risk(context.Background(), models.RiskRequest{Ticker: "AAPL", Period: "1y"})
	if err != nil {
		t.Fatalf("Risk: %v", err)
	}
	if res.Benchmark != "SPY" {
		t.Fatalf("benchmark = %s, want the configured default", res.Benchmark)
	}
	if res.Beta == nil || math.Abs(*res.Beta-1) > 1e-9 {
		t.Fatalf("beta against an identical series = %v", res.Beta)
	}
	if len(p.calls) != 2 {
		t.Fatalf("expected two fetches, got %v", p.calls)
	}
}

func TestBacktestUnknownSignal(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(9, 300, 100, 0, 0.01)})
	_, err := svc.Backtest(context.Background(), models.BacktestRequest{Ticker: "AAPL", Signal: "moon_phase", LookbackYears: 1})
	var use *models.UnknownSignalError
	if !errors.As(err, &use) {
		t.Fatalf("expected UnknownSignalError, got %v", err)
	}
}

func TestBacktestDefaultHoldingPeriods(t *testing.T) {
	svc := newService(t, &stubProvider{closes: testutil.GBM(10, 300, 100, 0, 0.01)})
	res, err := svc.Backtest(context.Background(), models.BacktestRequest{Ticker: "AAPL", Signal: "rsi<101", LookbackYears: 1})
	if err != nil {
		t.Fatalf("Backtest: %v", err)
	}
	if res.Period(5) == nil || res.Period(20) == nil || res.Period(60) != nil {
		t.Fatalf("configured holding periods not used: %+v", res.HoldingPeriods)
	}
}

func TestLogPredictionFillsCurrentPrice(t *testing.T) {
	closes := testutil.Linear(80, 100, 0.5)
	svc := newService(t, &stubProvider{closes: closes})
	rec, err := svc.LogPrediction(context.Background(), models.LogPredictionRequest{
		Ticker:         "aapl",
		HorizonDays:    30,
		PredictedRange: models.PriceRange{Low: 130, Mid: 140, High: 150},
	})
	if err != nil {
		t.Fatalf("LogPrediction: %v", err)
	}
	if rec.CurrentPrice != closes[len(closes)-1] {
		t.Fatalf("current price = %v, want last close %v", rec.CurrentPrice, closes[len(closes)-1])
	}
	if rec.PredictionDate != "2024-06-03" || rec.TargetDate != "2024-07-03" {
		t.Fatalf("unexpected dates %s -> %s", rec.PredictionDate, rec.TargetDate)
	}
	_, err = svc.LogPrediction(context.Background(), models.LogPredictionRequest{Ticker: "AAPL", HorizonDays: 30, CurrentPrice: 100})
	if !errors.Is(err, models.ErrDuplicatePrediction) {
		t.Fatalf("expected duplicate, got %v", err)
	}
}

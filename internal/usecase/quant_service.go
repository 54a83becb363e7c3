package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/service/metrics"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// Engines groups the stateless quant components.
type Engines struct {
	Distribution  domsvc.DistributionAnalyzer
	MeanReversion domsvc.MeanReversionAnalyzer
	Regime        domsvc.RegimeClassifier
	Forecast      domsvc.Forecaster
	Volatility    domsvc.VolatilityForecaster
	Simulator     domsvc.Simulator
	Backtester    domsvc.SignalBacktester
	Strategy      domsvc.StrategySimulator
	Risk          domsvc.RiskCalculator
}

// Settings are the operation defaults taken from the quant config section.
type Settings struct {
	FitTimeout     time.Duration
	Confidence     float64
	Simulations    int
	HorizonDays    int
	HoldingPeriods []int
	Benchmark      string
	MaxConcurrency int
}

// QuantService fetches history for a ticker and runs one or more engines over it.
// Provider failures and empty histories surface as models.InsufficientDataError.
type QuantService struct {
	prices domrepo.PriceProvider
	quotes domrepo.QuoteProvider
	eng    Engines
	ledger domsvc.PredictionLedger
	cfg    Settings
	log    *logger.Logger
	clock  func() time.Time
}

type ServiceOption func(*QuantService)

func WithServiceLogger(l *logger.Logger) ServiceOption {
	return func(s *QuantService) { s.log = l }
}

// WithQuotes sets the live quote source used when a logged prediction carries no current price.
func WithQuotes(q domrepo.QuoteProvider) ServiceOption {
	return func(s *QuantService) { s.quotes = q }
}

func WithServiceClock(now func() time.Time) ServiceOption {
	return func(s *QuantService) { s.clock = now }
}

func NewQuantService(prices domrepo.PriceProvider, eng Engines, ledger domsvc.PredictionLedger, cfg Settings, opts ...ServiceOption) *QuantService {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = runtime.NumCPU()
	}
	if cfg.Benchmark == "" {
		cfg.Benchmark = "SPY"
	}
	if cfg.Confidence <= 0 || cfg.Confidence >= 1 {
		cfg.Confidence = 0.95
	}
	s := &QuantService{prices: prices, eng: eng, ledger: ledger, cfg: cfg, clock: time.Now}
	if q, ok := prices.(domrepo.QuoteProvider); ok {
		s.quotes = q
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *QuantService) Distribution(ctx context.Context, req models.DistributionRequest) (res models.DistributionResult, err error) {
	defer track("distribution", time.Now(), &err)
	period := domrepo.NormalizePeriod(req.Period, domrepo.P1Y)
	series, err := s.history(ctx, req.Ticker, period, "distribution")
	if err != nil {
		return res, err
	}
	rets, err := features.ToReturns(series, models.SimpleReturns)
	if err != nil {
		return res, err
	}
	conf := req.Confidence
	if conf <= 0 {
		conf = s.cfg.Confidence
	}
	return s.eng.Distribution.Analyze(ctx, rets, string(period), conf)
}

func (s *QuantService) MeanReversion(ctx context.Context, req models.MeanReversionRequest) (res models.MeanReversionResult, err error) {
	defer track("mean_reversion", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.NormalizePeriod(req.Period, domrepo.P1Y), "mean reversion")
	if err != nil {
		return res, err
	}
	return s.eng.MeanReversion.Analyze(ctx, series)
}

func (s *QuantService) Regime(ctx context.Context, req models.RegimeRequest) (res models.RegimeResult, err error) {
	defer track("regime", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.NormalizePeriod(req.Period, domrepo.P1Y), "regime")
	if err != nil {
		return res, err
	}
	return s.eng.Regime.Classify(ctx, series)
}

func (s *QuantService) Forecast(ctx context.Context, req models.ForecastRequest) (res models.ForecastResult, err error) {
	defer track("forecast", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.NormalizePeriod(req.Period, domrepo.P2Y), "forecast")
	if err != nil {
		return res, err
	}
	return s.forecast(ctx, series, s.horizon(req.Horizon), req.Method)
}

func (s *QuantService) Volatility(ctx context.Context, req models.VolatilityRequest) (res models.VolatilityResult, err error) {
	defer track("volatility", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.NormalizePeriod(req.Period, domrepo.P2Y), "volatility")
	if err != nil {
		return res, err
	}
	return s.volatility(ctx, series, s.horizon(req.Horizon))
}

// MonteCarlo simulates price paths. Explicit drift or volatility overrides win; otherwise
// source "forecast" takes the drift implied by the forecast end point and its residual
// volatility, and source "garch" takes the GARCH annualized volatility.
func (s *QuantService) MonteCarlo(ctx context.Context, req models.MonteCarloRequest) (res models.SimulationResult, err error) {
	defer track("monte_carlo", time.Now(), &err)
	params := models.SimulationParams{
		HorizonDays: s.horizon(req.Horizon),
		Simulations: req.Simulations,
		Seed:        req.Seed,
		Drift:       req.Drift,
		Volatility:  req.Volatility,
	}
	if params.Simulations <= 0 {
		params.Simulations = s.cfg.Simulations
	}
	if err := params.CheckSteps(); err != nil {
		return res, err
	}
	period := domrepo.NormalizePeriod(req.Period, domrepo.P1Y)
	if req.Source == models.SourceGARCH && period != domrepo.P5Y && period != domrepo.P10Y {
		period = domrepo.P2Y
	}
	series, err := s.history(ctx, req.Ticker, period, "monte carlo simulation")
	if err != nil {
		return res, err
	}
	if params.Thresholds, err = parseThresholds(req.Thresholds); err != nil {
		return res, err
	}

	switch req.Source {
	case models.SourceForecast:
		if params.Drift == nil || params.Volatility == nil {
			fc, err := s.forecast(ctx, series, params.HorizonDays, models.ForecastAuto)
			if err != nil {
				return res, fmt.Errorf("model-implied drift: %w", err)
			}
			drift, vol := impliedFromForecast(fc)
			if params.Drift == nil {
				params.Drift, params.DriftSource = &drift, models.SourceForecast
			}
			if params.Volatility == nil && vol > 0 {
				params.Volatility, params.VolSource = &vol, models.SourceForecast
			}
		}
	case models.SourceGARCH:
		if params.Volatility == nil {
			vr, err := s.volatility(ctx, series, min(params.HorizonDays, 252))
			if err != nil {
				return res, fmt.Errorf("model-implied volatility: %w", err)
			}
			vol := vr.AnnualizedVolatility
			params.Volatility, params.VolSource = &vol, models.SourceGARCH
		}
	}
	return s.eng.Simulator.Simulate(ctx, series, params)
}

func (s *QuantService) Backtest(ctx context.Context, req models.BacktestRequest) (res models.BacktestResult, err error) {
	defer track("backtest", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.PeriodFromYears(req.LookbackYears), "signal backtest")
	if err != nil {
		return res, err
	}
	periods := util.ParseIntList(req.HoldingPeriods)
	if len(periods) == 0 {
		periods = s.cfg.HoldingPeriods
	}
	return s.eng.Backtester.Backtest(ctx, series, req.Signal, periods)
}

func (s *QuantService) Strategy(ctx context.Context, req models.StrategyRequest) (res models.StrategyResult, err error) {
	defer track("strategy", time.Now(), &err)
	series, err := s.history(ctx, req.Ticker, domrepo.PeriodFromYears(req.LookbackYears), "strategy simulation")
	if err != nil {
		return res, err
	}
	return s.eng.Strategy.Simulate(ctx, series, models.StrategyParams{
		EntrySignal:   req.EntrySignal,
		ExitSignal:    req.ExitSignal,
		StopLossPct:   req.StopLossPct,
		TakeProfitPct: req.TakeProfitPct,
	})
}

// Risk fetches the ticker and its benchmark concurrently over the same window.
func (s *QuantService) Risk(ctx context.Context, req models.RiskRequest) (res models.RiskResult, err error) {
	defer track("risk", time.Now(), &err)
	period := domrepo.NormalizePeriod(req.Period, domrepo.P1Y)
	bench := req.Benchmark
	if bench == "" {
		bench = s.cfg.Benchmark
	}
	var series, benchmark models.PriceSeries
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		series, err = s.history(gctx, req.Ticker, period, "risk metrics")
		return err
	})
	g.Go(func() error {
		var err error
		benchmark, err = s.history(gctx, bench, period, "risk benchmark")
		return err
	})
	if err := g.Wait(); err != nil {
		return res, err
	}
	return s.eng.Risk.Compute(ctx, series, benchmark, string(period))
}

// Snapshot runs the independent components over one fetched history on a pool bounded by
// MaxConcurrency. A failing component is reported in Errors and does not fail the snapshot.
func (s *QuantService) Snapshot(ctx context.Context, req models.SnapshotRequest) (res *models.QuantSnapshot, err error) {
	defer track("snapshot", time.Now(), &err)
	period := domrepo.NormalizePeriod(req.Period, domrepo.P2Y)
	series, err := s.history(ctx, req.Ticker, period, "snapshot")
	if err != nil {
		return nil, err
	}
	res = &models.QuantSnapshot{
		Ticker:       series.Ticker,
		Timestamp:    s.clock().UTC(),
		Observations: series.Len(),
		Errors:       map[string]string{},
	}
	horizon := s.horizon(0)

	type item struct {
		name string
		val  any
		err  error
	}
	components := []struct {
		name string
		run  func(context.Context) (any, error)
	}{
		{"distribution", func(ctx context.Context) (any, error) {
			rets, err := features.ToReturns(series, models.SimpleReturns)
			if err != nil {
				return nil, err
			}
			return s.eng.Distribution.Analyze(ctx, rets, string(period), s.cfg.Confidence)
		}},
		{"mean_reversion", func(ctx context.Context) (any, error) { return s.eng.MeanReversion.Analyze(ctx, series) }},
		{"regime", func(ctx context.Context) (any, error) { return s.eng.Regime.Classify(ctx, series) }},
		{"forecast", func(ctx context.Context) (any, error) {
			return s.forecast(ctx, series, horizon, models.ForecastAuto)
		}},
		{"volatility", func(ctx context.Context) (any, error) { return s.volatility(ctx, series, horizon) }},
		{"simulation", func(ctx context.Context) (any, error) {
			return s.eng.Simulator.Simulate(ctx, series, models.SimulationParams{
				HorizonDays: horizon,
				Simulations: s.cfg.Simulations,
			})
		}},
	}

	ch := make(chan item, len(components))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrency)
	for _, c := range components {
		g.Go(func() error {
			v, err := c.run(gctx)
			ch <- item{c.name, v, err}
			return nil
		})
	}
	go func() { _ = g.Wait(); close(ch) }()

	for it := range ch {
		if it.err != nil {
			res.Errors[it.name] = it.err.Error()
			metrics.SnapshotComponentErrors.WithLabelValues(it.name).Inc()
			s.log.Warn("snapshot component failed",
				logger.String("ticker", series.Ticker),
				logger.String("component", it.name),
				logger.Error(it.err),
			)
			continue
		}
		switch v := it.val.(type) {
		case models.DistributionResult:
			res.Distribution = &v
		case models.MeanReversionResult:
			res.MeanReversion = &v
		case models.RegimeResult:
			res.Regime = &v
		case models.ForecastResult:
			res.Forecast = &v
		case models.VolatilityResult:
			res.Volatility = &v
		case models.SimulationResult:
			res.Simulation = &v
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res, nil
}

// LogPrediction persists a prediction. A missing current price is filled from the live
// quote, or from the last close when no quote source is available.
func (s *QuantService) LogPrediction(ctx context.Context, req models.LogPredictionRequest) (rec models.PredictionRecord, err error) {
	defer track("log_prediction", time.Now(), &err)
	rec = req.Record()
	rec.Ticker = util.NormalizeTicker(rec.Ticker)
	if rec.CurrentPrice <= 0 {
		price, err := s.currentPrice(ctx, rec.Ticker)
		if err != nil {
			return rec, err
		}
		rec.CurrentPrice = price
	}
	return s.ledger.Log(ctx, rec)
}

func (s *QuantService) ScorePredictions(ctx context.Context, req models.ScoreRequest) (sum models.ScoreSummary, err error) {
	defer track("score_predictions", time.Now(), &err)
	return s.ledger.Score(ctx, util.NormalizeTicker(req.Ticker), s.clock())
}

func (s *QuantService) ArchivePredictions(ctx context.Context) (res models.ArchiveResult, err error) {
	defer track("archive_predictions", time.Now(), &err)
	return s.ledger.Archive(ctx, s.clock())
}

// history fetches the period window ending now and maps provider failures to
// InsufficientDataError. Context errors pass through unchanged.
func (s *QuantService) history(ctx context.Context, ticker string, period domrepo.Period, op string) (models.PriceSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	if ticker == "" {
		return models.PriceSeries{}, &models.InsufficientDataError{Operation: op, Cause: errors.New("ticker is required")}
	}
	start, end := period.Range(s.clock().UTC())
	series, err := s.prices.Fetch(ctx, ticker, start, end)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return models.PriceSeries{}, ctxErr
		}
		if models.IsInsufficientData(err) {
			return models.PriceSeries{}, err
		}
		s.log.Warn("price history unavailable",
			logger.String("ticker", ticker),
			logger.String("period", string(period)),
			logger.Error(err),
		)
		return models.PriceSeries{}, &models.InsufficientDataError{Ticker: ticker, Operation: op, Cause: err}
	}
	if series.Ticker == "" {
		series.Ticker = ticker
	}
	if err := series.Validate(); err != nil {
		if models.IsInsufficientData(err) {
			return models.PriceSeries{}, &models.InsufficientDataError{Ticker: ticker, Operation: op, Required: 1, Got: 0, Cause: errors.New("no data")}
		}
		return models.PriceSeries{}, err
	}
	return series, nil
}

// forecast bounds the fit with FitTimeout; the engine falls back to decomposition when it expires.
func (s *QuantService) forecast(ctx context.Context, series models.PriceSeries, horizon int, method string) (models.ForecastResult, error) {
	fitCtx, cancel := s.fitContext(ctx)
	defer cancel()
	res, err := s.eng.Forecast.Forecast(fitCtx, series, horizon, method)
	if err != nil && ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, err
}

func (s *QuantService) volatility(ctx context.Context, series models.PriceSeries, horizon int) (models.VolatilityResult, error) {
	fitCtx, cancel := s.fitContext(ctx)
	defer cancel()
	res, err := s.eng.Volatility.Forecast(fitCtx, series, horizon)
	if err != nil && ctx.Err() != nil {
		return res, ctx.Err()
	}
	return res, err
}

func (s *QuantService) fitContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cfg.FitTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.cfg.FitTimeout)
}

func (s *QuantService) horizon(h int) int {
	if h > 0 {
		return h
	}
	if s.cfg.HorizonDays > 0 {
		return s.cfg.HorizonDays
	}
	return 30
}

func (s *QuantService) currentPrice(ctx context.Context, ticker string) (float64, error) {
	if s.quotes != nil {
		p, err := s.quotes.LastPrice(ctx, ticker)
		if err == nil && p > 0 {
			return p, nil
		}
		s.log.Debug("quote unavailable, using last close",
			logger.String("ticker", ticker),
			logger.Error(err),
		)
	}
	series, err := s.history(ctx, ticker, domrepo.P3M, "current price")
	if err != nil {
		return 0, err
	}
	return series.Last().Close, nil
}

// impliedFromForecast annualizes the log drift from the current price to the final point
// and the daily residual volatility of the fit.
func impliedFromForecast(fc models.ForecastResult) (drift, vol float64) {
	if len(fc.Points) == 0 || fc.CurrentPrice <= 0 || fc.HorizonDays <= 0 {
		return 0, 0
	}
	final := fc.Final().Point
	if final > 0 {
		drift = math.Log(final/fc.CurrentPrice) * features.TradingDaysPerYear / float64(fc.HorizonDays)
	}
	vol = fc.Fit.ResidualStd * math.Sqrt(features.TradingDaysPerYear)
	return drift, vol
}

// parseThresholds reads "0.05,0.1" or percentages such as "5,10".
func parseThresholds(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("threshold %q: %w", part, models.ErrInvalidParameter)
		}
		if v >= 1 {
			v /= 100
		}
		out = append(out, v)
	}
	return out, nil
}

func track(op string, start time.Time, errp *error) {
	metrics.Observe(op, Outcome(*errp), start)
}

// Outcome classifies an operation error for metrics and logs.
func Outcome(err error) string {
	var unknown *models.UnknownSignalError
	switch {
	case err == nil:
		return "ok"
	case models.IsInsufficientData(err):
		return "insufficient_data"
	case errors.As(err, &unknown), errors.Is(err, models.ErrInvalidParameter):
		return "bad_request"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

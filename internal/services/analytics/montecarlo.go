package analytics

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

const (
	MinSimulationObservations = 30
	DefaultSimulations        = 10000
	MaxSimulations            = 200000
	DefaultSimulationHorizon  = 30
	MaxSimulationHorizon      = 756
)

var (
	// SimulationPercentiles are the percentile paths reported at every step.
	SimulationPercentiles = []float64{5, 25, 50, 75, 95}
	// DefaultThresholds are the relative moves whose terminal probabilities are reported.
	DefaultThresholds = []float64{0.05, 0.10, 0.20}
)

type MonteCarloSimulator struct{ engineBase }

func NewMonteCarloSimulator(opts ...Option) *MonteCarloSimulator {
	return &MonteCarloSimulator{engineBase: newBase(opts)}
}

// Simulate draws GBM paths S[t] = S[t-1]·exp((μ − σ²/2)dt + σ√dt·Z) with dt = 1/252.
// μ and σ are annualized; they default to the historical log-return moments. The same seed
// always yields bit-identical output. Without a seed one is derived from the ticker and the
// last bar date, and reported.
func (s *MonteCarloSimulator) Simulate(ctx context.Context, series models.PriceSeries, params models.SimulationParams) (res models.SimulationResult, err error) {
	start := time.Now()
	defer func() { s.observe("monte_carlo", start, err) }()

	logRets := features.LogReturns(series.Closes())
	if len(logRets) < MinSimulationObservations {
		return res, insufficient(series.Ticker, "monte carlo simulation", MinSimulationObservations, len(logRets))
	}
	horizon := params.HorizonDays
	if horizon <= 0 {
		horizon = DefaultSimulationHorizon
	}
	horizon = min(horizon, MaxSimulationHorizon)
	sims := params.Simulations
	if sims <= 0 {
		sims = DefaultSimulations
	}
	sims = min(sims, MaxSimulations)
	if err := (models.SimulationParams{Simulations: sims, HorizonDays: horizon}).CheckSteps(); err != nil {
		return res, fmt.Errorf("monte carlo %s: %w", series.Ticker, err)
	}
	thresholds := params.Thresholds
	if len(thresholds) == 0 {
		thresholds = DefaultThresholds
	}

	mean, sd := stat.MeanStdDev(logRets, nil)
	mu := mean * features.TradingDaysPerYear
	sigma := sd * math.Sqrt(features.TradingDaysPerYear)
	driftSrc, volSrc := models.SourceHistorical, models.SourceHistorical
	if params.Drift != nil {
		mu = *params.Drift
		driftSrc = sourceOr(params.DriftSource, models.SourceOverride)
	}
	if params.Volatility != nil && *params.Volatility >= 0 {
		sigma = *params.Volatility
		volSrc = sourceOr(params.VolSource, models.SourceOverride)
	}
	var seed uint64
	if params.Seed != nil {
		seed = *params.Seed
	} else {
		seed = deriveSeed(series)
	}

	s0 := series.Last().Close
	grid, err := simulateGBM(ctx, s0, mu, sigma, horizon, sims, seed)
	if err != nil {
		return res, err
	}

	res = models.SimulationResult{
		Ticker:       series.Ticker,
		CurrentPrice: s0,
		HorizonDays:  horizon,
		Simulations:  sims,
		Seed:         seed,
		Drift:        mu,
		Volatility:   sigma,
		DriftSource:  driftSrc,
		VolSource:    volSrc,
	}
	res.Paths = make([]models.PercentilePath, len(SimulationPercentiles))
	for k, p := range SimulationPercentiles {
		res.Paths[k] = models.PercentilePath{Percentile: p, Prices: make([]float64, horizon+1)}
	}
	col := make([]float64, sims)
	for t := 0; t <= horizon; t++ {
		for i := 0; i < sims; i++ {
			col[i] = grid[i*(horizon+1)+t]
		}
		sort.Float64s(col)
		for k, p := range SimulationPercentiles {
			res.Paths[k].Prices[t] = stat.Quantile(p/100, stat.LinInterp, col, nil)
		}
	}
	// col now holds the sorted terminal prices.
	res.MeanTerminal = stat.Mean(col, nil)
	res.MedianTerminal = stat.Quantile(0.5, stat.LinInterp, col, nil)
	res.ExpectedReturn = res.MeanTerminal/s0 - 1
	for _, th := range thresholds {
		up, down := s0*(1+th), s0*(1-th)
		above := sims - sort.SearchFloat64s(col, math.Nextafter(up, math.Inf(1)))
		below := sort.SearchFloat64s(col, down)
		res.Probabilities = append(res.Probabilities, models.ThresholdProbability{
			Threshold: th,
			ProbAbove: float64(above) / float64(sims),
			ProbBelow: float64(below) / float64(sims),
		})
	}

	s.log.Debug("monte carlo complete",
		logger.String("ticker", series.Ticker),
		logger.Int("simulations", sims),
		logger.Uint64("seed", seed),
	)
	return res, nil
}

// simulateGBM returns a row-major sims x (horizon+1) grid of prices. Draws are consumed
// sequentially from one PCG stream, path by path.
func simulateGBM(ctx context.Context, s0, mu, sigma float64, horizon, sims int, seed uint64) ([]float64, error) {
	const dt = 1.0 / features.TradingDaysPerYear
	rng := rand.New(rand.NewPCG(seed, seed))
	drift := (mu - sigma*sigma/2) * dt
	shock := sigma * math.Sqrt(dt)
	width := horizon + 1
	grid := make([]float64, sims*width)
	for i := 0; i < sims; i++ {
		if i%1024 == 0 && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		row := grid[i*width : (i+1)*width]
		row[0] = s0
		for t := 1; t < width; t++ {
			row[t] = row[t-1] * math.Exp(drift+shock*rng.NormFloat64())
		}
	}
	return grid, nil
}

func deriveSeed(series models.PriceSeries) uint64 {
	h := fnv.New64a()
	h.Write([]byte(series.Ticker))
	h.Write([]byte(series.Last().Date.Format(time.DateOnly)))
	return h.Sum64()
}

func sourceOr(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var _ domsvc.Simulator = (*MonteCarloSimulator)(nil)

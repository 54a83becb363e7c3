package analytics

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

const (
	MinVolatilityObservations = 252
	DefaultVolatilityHorizon  = 30
	MaxVolatilityHorizon      = 252
)

// VaRConfidences are the VaR levels reported by the volatility engine.
var VaRConfidences = []float64{0.95, 0.99}

type VolatilityForecaster struct{ engineBase }

func NewVolatilityForecaster(opts ...Option) *VolatilityForecaster {
	return &VolatilityForecaster{engineBase: newBase(opts)}
}

// Forecast fits GARCH(1,1) to percent log returns and projects daily volatility.
// When GARCH does not converge, or ctx ends the fit early, the EWMA model is used and
// the fit is flagged.
func (v *VolatilityForecaster) Forecast(ctx context.Context, series models.PriceSeries, horizon int) (res models.VolatilityResult, err error) {
	start := time.Now()
	defer func() { v.observe("volatility", start, err) }()

	logRets := features.LogReturns(series.Closes())
	if len(logRets) < MinVolatilityObservations {
		return res, insufficient(series.Ticker, "volatility forecast", MinVolatilityObservations, len(logRets))
	}
	if horizon <= 0 {
		horizon = DefaultVolatilityHorizon
	}
	horizon = min(horizon, MaxVolatilityHorizon)

	scaled := make([]float64, len(logRets))
	for i, r := range logRets {
		scaled[i] = r * returnScale
	}
	fit := models.ModelFit{Model: "garch", Order: []int{1, 1}}
	m, ferr := fitGARCH(ctx, scaled)
	if ferr != nil {
		v.fellBack("garch", series.Ticker, ferr)
		m = fitEWMA(scaled)
		fit.Model = "ewma"
		fit.Order = nil
		fit.UsedFallback = true
		fit.FallbackNote = "garch did not converge, used EWMA(0.94): " + ferr.Error()
		if ctx.Err() != nil {
			fit.FallbackNote = "garch fit interrupted, used EWMA(0.94): " + ferr.Error()
		}
	}
	fit.Params = m.params
	fit.AIC = m.aic
	fit.ResidualStd = math.Sqrt(stat.Mean(m.sigma2, nil)) / returnScale

	varPath := m.path(horizon)
	res = models.VolatilityResult{
		Ticker:       series.Ticker,
		HorizonDays:  horizon,
		DailyVolPath: make([]float64, horizon),
		Fit:          fit,
	}
	for i, s2 := range varPath {
		res.DailyVolPath[i] = math.Sqrt(s2) / returnScale
	}
	res.AnnualizedVolatility = stat.Mean(res.DailyVolPath, nil) * math.Sqrt(features.TradingDaysPerYear)

	condVol := make([]float64, len(m.sigma2))
	for i, s2 := range m.sigma2 {
		condVol[i] = math.Sqrt(s2)
	}
	cur := condVol[len(condVol)-1]
	res.CurrentConditionalVol = cur / returnScale
	if res.CurrentConditionalVol > 1e-6 {
		res.RegimePercentile = features.PercentileRank(condVol[max(0, len(condVol)-regimeLookback):], cur)
	}
	res.Regime = features.VolBucket(res.RegimePercentile)

	if len(logRets) >= 30 {
		res.RealizedVol30 = ptr(features.RealizedVolatility(logRets, 30, features.TradingDaysPerYear))
	}
	if len(logRets) >= 60 {
		res.RealizedVol60 = ptr(features.RealizedVolatility(logRets, 60, features.TradingDaysPerYear))
	}

	mu := m.mu / returnScale
	for _, c := range VaRConfidences {
		z := distuv.UnitNormal.Quantile(c)
		res.VaR = append(res.VaR, models.VaREstimate{
			Confidence: c,
			OneDay:     horizonVaR(mu, varPath, 1, z),
			FiveDay:    horizonVaR(mu, varPath, 5, z),
		})
	}

	v.log.Debug("volatility forecast complete",
		logger.String("ticker", series.Ticker),
		logger.String("model", fit.Model),
		logger.Float("annualized", res.AnnualizedVolatility),
		logger.String("regime", res.Regime),
	)
	return res, nil
}

// horizonVaR is the Gaussian h-day VaR as a return; the forecast path is extended flat
// when shorter than h.
func horizonVaR(mu float64, varPath []float64, h int, z float64) float64 {
	total := 0.0
	for i := 0; i < h; i++ {
		s2 := varPath[len(varPath)-1]
		if i < len(varPath) {
			s2 = varPath[i]
		}
		total += s2
	}
	return mu*float64(h) - z*math.Sqrt(total)/returnScale
}

var _ domsvc.VolatilityForecaster = (*VolatilityForecaster)(nil)

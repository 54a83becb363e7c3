package analytics

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/internal/services/indicators"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

const (
	MinRegimeObservations = 61

	regimeVolWindow      = 20
	regimeTrendWindow    = 50
	regimeSlopeLag       = 10
	regimeLookback       = 252
	regimeNegligibleVol  = 0.05
	regimeStrengthCutoff = 0.6
)

type RegimeClassifier struct{ engineBase }

func NewRegimeClassifier(opts ...Option) *RegimeClassifier {
	return &RegimeClassifier{engineBase: newBase(opts)}
}

type regimeInputs struct {
	closes []float64
	vols   []float64 // vols[k] covers log returns k..k+19, i.e. closes up to k+20
	sma    []float64
}

type regimeState struct {
	label      string
	bucket     string
	percentile float64
	vol        float64
	slope      float64
	strength   float64
	sma        float64
	confidence float64
}

// Classify labels the regime at the last bar and counts how many consecutive bars
// carried the same label. A high or extreme volatility bucket overrides any directional
// trend unless annualized volatility is negligible (under 5%), as on a near-deterministic series.
func (c *RegimeClassifier) Classify(ctx context.Context, series models.PriceSeries) (res models.RegimeResult, err error) {
	start := time.Now()
	defer func() { c.observe("regime", start, err) }()

	n := series.Len()
	if n < MinRegimeObservations {
		return res, insufficient(series.Ticker, "regime classification", MinRegimeObservations, n)
	}
	closes := series.Closes()
	in := regimeInputs{
		closes: closes,
		vols:   features.RollingVolatility(features.LogReturns(closes), regimeVolWindow),
		sma:    indicators.SMA(closes, regimeTrendWindow),
	}
	cur := in.at(n - 1)
	days := 1
	for t := n - 2; t >= MinRegimeObservations-1; t-- {
		if t%256 == 0 && ctx.Err() != nil {
			return res, ctx.Err()
		}
		if in.at(t).label != cur.label {
			break
		}
		days++
	}

	res = models.RegimeResult{
		Ticker:               series.Ticker,
		AsOf:                 series.Last().Date,
		Regime:               cur.label,
		Confidence:           cur.confidence,
		DaysInRegime:         days,
		VolatilityBucket:     cur.bucket,
		VolatilityPercentile: cur.percentile,
		RealizedVolatility:   cur.vol,
		TrendSlope:           cur.slope,
		TrendStrength:        cur.strength,
		SMA50:                cur.sma,
	}
	c.log.Debug("regime classified",
		logger.String("ticker", series.Ticker),
		logger.String("regime", cur.label),
		logger.Int("days", days),
	)
	return res, nil
}

// at classifies bar t using bars 0..t only.
func (in regimeInputs) at(t int) regimeState {
	var s regimeState
	k := t - regimeVolWindow
	s.vol = in.vols[k]
	hist := in.vols[max(0, k-regimeLookback+1) : k+1]
	if s.vol < 1e-12 {
		s.percentile = 0
	} else {
		s.percentile = features.PercentileRank(hist, s.vol)
	}
	s.bucket = features.VolBucket(s.percentile)

	s.sma = in.sma[t]
	if prev := in.sma[t-regimeSlopeLag]; prev > 0 {
		s.slope = s.sma/prev - 1
	}
	s.strength = trendStrength(in.closes[t-regimeTrendWindow+1 : t+1])
	price := in.closes[t]

	switch {
	case (s.bucket == models.VolBucketHigh || s.bucket == models.VolBucketExtreme) && s.vol >= regimeNegligibleVol:
		s.label = models.RegimeHighVolatility
		s.confidence = s.percentile / 100
	case s.slope > 0 && s.strength >= regimeStrengthCutoff && price > s.sma:
		s.label = models.RegimeTrendingUp
		s.confidence = s.strength
	case s.slope < 0 && s.strength >= regimeStrengthCutoff && price < s.sma:
		s.label = models.RegimeTrendingDown
		s.confidence = s.strength
	default:
		s.label = models.RegimeRangeBound
		s.confidence = math.Max(0.3, 1-s.strength)
	}
	return s
}

// trendStrength is the R² of a linear fit of log price on time; 0 for a flat window.
func trendStrength(prices []float64) float64 {
	x := make([]float64, len(prices))
	y := make([]float64, len(prices))
	for i, p := range prices {
		x[i] = float64(i)
		if p > 0 {
			y[i] = math.Log(p)
		}
	}
	alpha, beta := stat.LinearRegression(x, y, nil, false)
	r2 := stat.RSquared(x, y, nil, alpha, beta)
	if !finite(r2) {
		return 0
	}
	return math.Max(0, math.Min(1, r2))
}

var _ domsvc.RegimeClassifier = (*RegimeClassifier)(nil)

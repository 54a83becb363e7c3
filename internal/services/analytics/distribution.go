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
	MinDistributionObservations = 30
	DefaultConfidence           = 0.95
	normalityAlpha              = 0.05
)

type DistributionAnalyzer struct{ engineBase }

func NewDistributionAnalyzer(opts ...Option) *DistributionAnalyzer {
	return &DistributionAnalyzer{engineBase: newBase(opts)}
}

// Analyze computes moments, a Jarque-Bera normality test, tail risk and the maximum drawdown.
// Higher moments are nil for a series with zero variance.
func (a *DistributionAnalyzer) Analyze(ctx context.Context, returns models.ReturnSeries, period string, confidence float64) (res models.DistributionResult, err error) {
	start := time.Now()
	defer func() { a.observe("distribution", start, err) }()

	n := returns.Len()
	if n < MinDistributionObservations {
		return res, insufficient(returns.Ticker, "return distribution", MinDistributionObservations, n)
	}
	if confidence <= 0 || confidence >= 1 {
		confidence = DefaultConfidence
	}
	x := returns.Values
	mean, sd := stat.MeanStdDev(x, nil)
	res = models.DistributionResult{
		Ticker:               returns.Ticker,
		Period:               period,
		Observations:         n,
		Mean:                 mean,
		StdDev:               sd,
		AnnualizedReturn:     mean * features.TradingDaysPerYear,
		AnnualizedVolatility: sd * math.Sqrt(features.TradingDaysPerYear),
	}

	if skew, kurt := higherMoments(x); skew != nil {
		jb := float64(n) / 6 * (*skew**skew + *kurt**kurt/4)
		p := distuv.ChiSquared{K: 2}.Survival(jb)
		res.Skewness, res.ExcessKurtosis = skew, kurt
		res.JarqueBera, res.JarqueBeraPValue = &jb, &p
		res.IsNormal = ptr(p >= normalityAlpha)
	}

	sorted := features.SortedCopy(x)
	res.Tail = tailRisk(sorted, mean, sd, confidence)
	res.Tail95 = tailRisk(sorted, mean, sd, 0.95)
	res.Tail99 = tailRisk(sorted, mean, sd, 0.99)

	dates := returns.Dates
	if len(dates) != n {
		dates = make([]time.Time, n)
	}
	res.MaxDrawdown = features.MaxDrawdown(features.EquityCurve(x), dates)

	a.log.Debug("distribution analyzed",
		logger.String("ticker", returns.Ticker),
		logger.Int("observations", n),
		logger.Float("std", sd),
	)
	return res, nil
}

// higherMoments returns the biased sample skewness and excess kurtosis, or nils when
// the series has no variance.
func higherMoments(x []float64) (skew, kurt *float64) {
	m2 := stat.Moment(2, x, nil)
	if m2 <= 1e-20 {
		return nil, nil
	}
	s := stat.Moment(3, x, nil) / math.Pow(m2, 1.5)
	k := stat.Moment(4, x, nil)/(m2*m2) - 3
	return &s, &k
}

// tailRisk computes historical and parametric VaR and the CVaR of the tail at or beyond
// the historical VaR. sorted must be ascending.
func tailRisk(sorted []float64, mean, sd, confidence float64) models.TailRisk {
	t := models.TailRisk{Confidence: confidence}
	n := len(sorted)
	if n == 0 {
		return t
	}
	idx := int(float64(n) * (1 - confidence))
	if idx >= n {
		idx = n - 1
	}
	t.HistoricalVaR = sorted[idx]
	t.ParametricVaR = mean + distuv.UnitNormal.Quantile(1-confidence)*sd
	t.CVaR = stat.Mean(sorted[:idx+1], nil)
	return t
}

var _ domsvc.DistributionAnalyzer = (*DistributionAnalyzer)(nil)

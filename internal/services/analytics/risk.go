package analytics

import (
	"context"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domsvc "github.com/arg-foo/zaza-sub000/internal/domain/service"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/pkg/logger"
)

const MinRiskObservations = 20

type RiskCalculator struct {
	engineBase
	riskFree float64
}

// NewRiskCalculator builds a calculator using riskFree as the annual risk-free rate.
func NewRiskCalculator(riskFree float64, opts ...Option) *RiskCalculator {
	return &RiskCalculator{engineBase: newBase(opts), riskFree: riskFree}
}

// Compute aligns the series with the benchmark by date and derives risk-adjusted ratios
// from daily simple returns.
func (c *RiskCalculator) Compute(ctx context.Context, series, benchmark models.PriceSeries, period string) (res models.RiskResult, err error) {
	start := time.Now()
	defer func() { c.observe("risk", start, err) }()

	rs, err := features.ToReturns(series, models.SimpleReturns)
	if err != nil {
		return res, err
	}
	bs, err := features.ToReturns(benchmark, models.SimpleReturns)
	if err != nil {
		return res, err
	}
	r, b, dates := features.AlignByDate(rs, bs)
	n := len(r)
	if n < MinRiskObservations {
		return res, insufficient(series.Ticker, "risk metrics vs "+benchmark.Ticker, MinRiskObservations, n)
	}

	ann := math.Sqrt(features.TradingDaysPerYear)
	rfDaily := c.riskFree / features.TradingDaysPerYear
	mean, sd := stat.MeanStdDev(r, nil)
	benchMean := stat.Mean(b, nil)

	res = models.RiskResult{
		Ticker:               series.Ticker,
		Benchmark:            benchmark.Ticker,
		Period:               period,
		Observations:         n,
		RiskFreeRate:         c.riskFree,
		AnnualizedReturn:     mean * features.TradingDaysPerYear,
		AnnualizedVolatility: sd * ann,
	}
	if sd > 0 {
		res.Sharpe = ptr((mean - rfDaily) / sd * ann)
	}
	down := 0.0
	for _, x := range r {
		if x < 0 {
			down += x * x
		}
	}
	if down = math.Sqrt(down / float64(n)); down > 0 {
		res.Sortino = ptr((mean - rfDaily) / down * ann)
	}

	if bv := stat.Variance(b, nil); bv > 0 {
		beta := stat.Covariance(r, b, nil) / bv
		res.Beta = &beta
		res.Alpha = ptr(((mean - rfDaily) - beta*(benchMean-rfDaily)) * features.TradingDaysPerYear)
		if math.Abs(beta) > 1e-12 {
			res.Treynor = ptr((res.AnnualizedReturn - c.riskFree) / beta)
		}
	}
	active := make([]float64, n)
	for i := range r {
		active[i] = r[i] - b[i]
	}
	if am, asd := stat.MeanStdDev(active, nil); asd > 1e-15 {
		res.InformationRatio = ptr(am / asd * ann)
	}

	equity := features.EquityCurve(r)
	res.MaxDrawdown = features.MaxDrawdown(equity, dates)
	if final := equity[n-1]; final > 0 {
		res.CAGR = math.Pow(final, features.TradingDaysPerYear/float64(n)) - 1
	} else {
		res.CAGR = -1
	}
	if res.MaxDrawdown.Depth < 0 {
		res.Calmar = ptr(res.CAGR / math.Abs(res.MaxDrawdown.Depth))
	}

	sorted := features.SortedCopy(r)
	res.Tail95 = tailRisk(sorted, mean, sd, 0.95)
	res.Tail99 = tailRisk(sorted, mean, sd, 0.99)
	res.Skewness, res.ExcessKurtosis = higherMoments(r)
	res.UpCapture, res.DownCapture = captureRatios(r, b, dates)

	c.log.Debug("risk metrics computed",
		logger.String("ticker", series.Ticker),
		logger.String("benchmark", benchmark.Ticker),
		logger.Int("observations", n),
	)
	return res, nil
}

// captureRatios compares average monthly compounded returns of the series with the
// benchmark's, separately over benchmark-up and benchmark-down months.
func captureRatios(r, b []float64, dates []time.Time) (up, down *float64) {
	type month struct{ r, b float64 }
	var months []month
	key := ""
	for i, d := range dates {
		k := d.Format("2006-01")
		if k != key {
			months = append(months, month{1, 1})
			key = k
		}
		m := &months[len(months)-1]
		m.r *= 1 + r[i]
		m.b *= 1 + b[i]
	}
	var upR, upB, downR, downB []float64
	for _, m := range months {
		mr, mb := m.r-1, m.b-1
		switch {
		case mb > 0:
			upR, upB = append(upR, mr), append(upB, mb)
		case mb < 0:
			downR, downB = append(downR, mr), append(downB, mb)
		}
	}
	if len(upB) > 0 {
		if avg := stat.Mean(upB, nil); avg != 0 {
			up = ptr(stat.Mean(upR, nil) / avg)
		}
	}
	if len(downB) > 0 {
		if avg := stat.Mean(downB, nil); avg != 0 {
			down = ptr(stat.Mean(downR, nil) / avg)
		}
	}
	return up, down
}

var _ domsvc.RiskCalculator = (*RiskCalculator)(nil)

package features

import (
	"math"
	"sort"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// TradingDaysPerYear is the annualization factor for daily bars.
const TradingDaysPerYear = 252

// ToReturns converts a price series into simple or log returns dated by the later bar.
// Pairs with a non-positive price yield a zero return.
func ToReturns(series models.PriceSeries, kind models.ReturnKind) (models.ReturnSeries, error) {
	n := series.Len()
	if n < 2 {
		return models.ReturnSeries{}, &models.InsufficientDataError{Ticker: series.Ticker, Operation: "returns", Required: 2, Got: n}
	}
	out := models.ReturnSeries{
		Ticker: series.Ticker,
		Kind:   kind,
		Dates:  make([]time.Time, 0, n-1),
		Values: make([]float64, 0, n-1),
	}
	for i := 1; i < n; i++ {
		prev := series.Bars[i-1].Close
		cur := series.Bars[i].Close
		out.Dates = append(out.Dates, series.Bars[i].Date)
		if prev <= 0 || cur <= 0 {
			out.Values = append(out.Values, 0)
			continue
		}
		if kind == models.LogReturns {
			out.Values = append(out.Values, math.Log(cur/prev))
		} else {
			out.Values = append(out.Values, cur/prev-1)
		}
	}
	return out, nil
}

// LogReturns computes r_t = ln(p_t / p_{t-1}) over a plain price slice.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 || prices[i] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(prices[i]/prices[i-1]))
	}
	return out
}

// Align trims series to its most recent window bars (window <= 0 keeps everything)
// and fails if fewer than minimum bars remain.
func Align(series models.PriceSeries, window, minimum int, operation string) (models.PriceSeries, error) {
	if window > 0 {
		series = series.Tail(window)
	}
	if series.Len() < minimum {
		return models.PriceSeries{}, &models.InsufficientDataError{
			Ticker:    series.Ticker,
			Operation: operation,
			Required:  minimum,
			Got:       series.Len(),
		}
	}
	return series, nil
}

// AlignByDate intersects two return series on their dates, preserving order.
func AlignByDate(a, b models.ReturnSeries) (x, y []float64, dates []time.Time) {
	idx := make(map[string]int, b.Len())
	for i, d := range b.Dates {
		idx[d.Format(time.DateOnly)] = i
	}
	for i, d := range a.Dates {
		j, ok := idx[d.Format(time.DateOnly)]
		if !ok {
			continue
		}
		x = append(x, a.Values[i])
		y = append(y, b.Values[j])
		dates = append(dates, d)
	}
	return x, y, dates
}

// RealizedVolatility computes annualized realized volatility over the latest window
// using the provided number of bars per year.
func RealizedVolatility(logReturns []float64, window int, barsPerYear float64) float64 {
	if window <= 1 || len(logReturns) < window {
		return 0
	}
	sum := 0.0
	sum2 := 0.0
	for i := len(logReturns) - window; i < len(logReturns); i++ {
		r := logReturns[i]
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance * barsPerYear)
}

// RollingVolatility returns annualized realized volatility for every full window.
// Element i covers logReturns[i : i+window].
func RollingVolatility(logReturns []float64, window int) []float64 {
	if window <= 1 || len(logReturns) < window {
		return nil
	}
	out := make([]float64, 0, len(logReturns)-window+1)
	for end := window; end <= len(logReturns); end++ {
		out = append(out, RealizedVolatility(logReturns[:end], window, TradingDaysPerYear))
	}
	return out
}

// PercentileRank returns the share of values less than or equal to x, in [0, 100].
func PercentileRank(values []float64, x float64) float64 {
	if len(values) == 0 {
		return 50
	}
	n := 0
	for _, v := range values {
		if v <= x {
			n++
		}
	}
	return 100 * float64(n) / float64(len(values))
}

// VolBucket maps a percentile rank onto the four volatility buckets.
func VolBucket(percentile float64) string {
	switch {
	case percentile < 25:
		return models.VolBucketLow
	case percentile <= 75:
		return models.VolBucketNormal
	case percentile <= 95:
		return models.VolBucketHigh
	default:
		return models.VolBucketExtreme
	}
}

// EquityCurve compounds returns into cumulative wealth, one point per return.
func EquityCurve(returns []float64) []float64 {
	out := make([]float64, len(returns))
	w := 1.0
	for i, r := range returns {
		w *= 1 + r
		out[i] = w
	}
	return out
}

// MaxDrawdown finds the deepest decline of an equity curve. RecoveryDate stays nil
// when the curve never regains the prior peak inside the sample.
func MaxDrawdown(equity []float64, dates []time.Time) models.Drawdown {
	var dd models.Drawdown
	if len(equity) == 0 || len(equity) != len(dates) {
		return dd
	}
	peakIdx, trough, peakAtTrough := 0, 0, 0
	worst := 0.0
	for i, v := range equity {
		if v > equity[peakIdx] {
			peakIdx = i
		}
		if equity[peakIdx] <= 0 {
			continue
		}
		if d := v/equity[peakIdx] - 1; d < worst {
			worst = d
			trough = i
			peakAtTrough = peakIdx
		}
	}
	dd.Depth = worst
	dd.PeakDate = dates[peakAtTrough]
	dd.TroughDate = dates[trough]
	if worst == 0 {
		rec := dd.PeakDate
		dd.RecoveryDate = &rec
		return dd
	}
	end := dates[len(dates)-1]
	for i := trough + 1; i < len(equity); i++ {
		if equity[i] >= equity[peakAtTrough] {
			rec := dates[i]
			dd.RecoveryDate = &rec
			end = rec
			break
		}
	}
	dd.DurationDays = int(end.Sub(dd.PeakDate).Hours() / 24)
	return dd
}

// SortedCopy returns an ascending copy of values.
func SortedCopy(values []float64) []float64 {
	out := make([]float64, len(values))
	copy(out, values)
	sort.Float64s(out)
	return out
}

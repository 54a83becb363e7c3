package analytics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const seasonPeriod = 5

// decompositionModel is an additive linear trend plus weekly seasonality on log price.
type decompositionModel struct {
	intercept float64
	slope     float64
	season    [seasonPeriod]float64
	sigma     float64
	n         int
	aic       float64
}

func fitDecomposition(logPrice []float64) decompositionModel {
	n := len(logPrice)
	x := make([]float64, n)
	for i := range x {
		x[i] = float64(i)
	}
	alpha, beta := stat.LinearRegression(x, logPrice, nil, false)
	m := decompositionModel{intercept: alpha, slope: beta, n: n}
	if !finite(alpha, beta) {
		m.intercept, m.slope = logPrice[n-1], 0
	}

	var sums [seasonPeriod]float64
	var counts [seasonPeriod]int
	resid := make([]float64, n)
	for i, v := range logPrice {
		resid[i] = v - (m.intercept + m.slope*float64(i))
		sums[i%seasonPeriod] += resid[i]
		counts[i%seasonPeriod]++
	}
	mean := 0.0
	for k := range m.season {
		if counts[k] > 0 {
			m.season[k] = sums[k] / float64(counts[k])
		}
		mean += m.season[k]
	}
	mean /= seasonPeriod
	for k := range m.season {
		m.season[k] -= mean
	}

	// Innovation scale from day-over-day changes of the deseasonalized residual.
	diffs := make([]float64, 0, n-1)
	ss := 0.0
	for i := 1; i < n; i++ {
		a := resid[i] - m.season[i%seasonPeriod]
		b := resid[i-1] - m.season[(i-1)%seasonPeriod]
		diffs = append(diffs, a-b)
	}
	if len(diffs) > 1 {
		m.sigma = stat.StdDev(diffs, nil)
	}
	for _, d := range diffs {
		ss += d * d
	}
	sigma2 := math.Max(ss/math.Max(1, float64(len(diffs))), minSigma2)
	ll := -float64(len(diffs)) / 2 * (math.Log(2*math.Pi*sigma2) + 1)
	m.aic = 2*float64(2+seasonPeriod) - 2*ll
	return m
}

// logPath returns forecast log prices for horizons 1..h anchored at the last observation.
func (m decompositionModel) logPath(last float64, h int) []float64 {
	out := make([]float64, h)
	t := m.n - 1
	for i := 1; i <= h; i++ {
		out[i-1] = last + m.slope*float64(i) + m.season[(t+i)%seasonPeriod] - m.season[t%seasonPeriod]
	}
	return out
}

func (m decompositionModel) variance(h int) []float64 {
	out := make([]float64, h)
	for i := range out {
		out[i] = m.sigma * m.sigma * float64(i+1)
	}
	return out
}

func (m decompositionModel) params() map[string]float64 {
	p := map[string]float64{"trend_intercept": m.intercept, "trend_slope": m.slope, "sigma": m.sigma}
	for k, v := range m.season {
		p["season_"+string(rune('0'+k))] = v
	}
	return p
}

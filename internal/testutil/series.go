// Package testutil builds synthetic price series for tests.
package testutil

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// Start is the first bar date of every synthetic series.
var Start = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// BusinessDays returns n consecutive weekdays starting at from.
func BusinessDays(from time.Time, n int) []time.Time {
	out := make([]time.Time, 0, n)
	d := from
	for len(out) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			out = append(out, d)
		}
		d = d.AddDate(0, 0, 1)
	}
	return out
}

// Series wraps closing prices into bars with open = high = low = close.
func Series(ticker string, closes []float64) models.PriceSeries {
	dates := BusinessDays(Start, len(closes))
	bars := make([]models.Bar, len(closes))
	for i, c := range closes {
		bars[i] = models.Bar{Date: dates[i], Open: c, High: c, Low: c, Close: c, Volume: 1_000_000}
	}
	return models.PriceSeries{Ticker: ticker, Bars: bars}
}

// Constant returns n identical prices.
func Constant(n int, price float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = price
	}
	return out
}

// Linear returns start, start+step, ...
func Linear(n int, start, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = start + step*float64(i)
	}
	return out
}

// GBM returns a geometric random walk with daily log-return drift mu and volatility sigma.
func GBM(seed uint64, n int, start, mu, sigma float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]float64, n)
	p := start
	for i := range out {
		if i > 0 {
			p *= math.Exp(mu + sigma*rng.NormFloat64())
		}
		out[i] = p
	}
	return out
}

// OU returns level + x where x follows x[t] = (1-theta) x[t-1] + sigma Z.
func OU(seed uint64, n int, level, theta, sigma float64) []float64 {
	rng := rand.New(rand.NewPCG(seed, seed))
	out := make([]float64, n)
	x := 0.0
	for i := range out {
		if i > 0 {
			x = (1-theta)*x + sigma*rng.NormFloat64()
		}
		out[i] = level + x
	}
	return out
}

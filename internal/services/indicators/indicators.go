// Package indicators computes causal technical indicators over daily bars.
// Element i of every output depends only on inputs 0..i; undefined warm-up
// values are NaN.
package indicators

import (
	"math"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// Indicator names understood by Set.Get.
const (
	Open       = "open"
	High       = "high"
	Low        = "low"
	Close      = "close"
	Volume     = "volume"
	SMA20      = "sma20"
	SMA50      = "sma50"
	SMA200     = "sma200"
	EMA12      = "ema12"
	EMA26      = "ema26"
	RSI14      = "rsi"
	MACDLine   = "macd"
	MACDSignal = "macd_signal"
	MACDHist   = "macd_hist"
	BBUpper    = "bb_upper"
	BBMiddle   = "bb_middle"
	BBLower    = "bb_lower"
	VolRatio   = "volume_ratio"
)

// Names lists every indicator of a Set in a stable order.
var Names = []string{
	Open, High, Low, Close, Volume, SMA20, SMA50, SMA200, EMA12, EMA26,
	RSI14, MACDLine, MACDSignal, MACDHist, BBUpper, BBMiddle, BBLower, VolRatio,
}

// Set holds precomputed indicator columns aligned with the source bars.
type Set struct {
	n    int
	cols map[string][]float64
}

// Compute derives all indicators for series.
func Compute(series models.PriceSeries) *Set {
	n := series.Len()
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	vol := make([]float64, n)
	for i, b := range series.Bars {
		open[i], high[i], low[i], closes[i], vol[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	macd, signal, hist := MACD(closes, 12, 26, 9)
	upper, middle, lower := Bollinger(closes, 20, 2)
	return &Set{n: n, cols: map[string][]float64{
		Open:       open,
		High:       high,
		Low:        low,
		Close:      closes,
		Volume:     vol,
		SMA20:      middle,
		SMA50:      SMA(closes, 50),
		SMA200:     SMA(closes, 200),
		EMA12:      EMA(closes, 12),
		EMA26:      EMA(closes, 26),
		RSI14:      RSI(closes, 14),
		MACDLine:   macd,
		MACDSignal: signal,
		MACDHist:   hist,
		BBUpper:    upper,
		BBMiddle:   middle,
		BBLower:    lower,
		VolRatio:   VolumeRatio(vol, 20),
	}}
}

// Len returns the number of bars.
func (s *Set) Len() int { return s.n }

// Get returns the column for name.
func (s *Set) Get(name string) ([]float64, bool) {
	c, ok := s.cols[name]
	return c, ok
}

// SMA is the simple moving average over window.
func SMA(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i, v := range x {
		sum += v
		if i >= window {
			sum -= x[i-window]
		}
		if i >= window-1 {
			out[i] = sum / float64(window)
		}
	}
	return out
}

// EMA is the exponential moving average with alpha = 2/(span+1), seeded with the
// first value and reported from index span-1 on.
func EMA(x []float64, span int) []float64 {
	return ewm(x, 2/float64(span+1), span)
}

// RSI is Wilder's relative strength index.
func RSI(x []float64, window int) []float64 {
	out := nanSlice(len(x))
	if len(x) < 2 || window <= 0 {
		return out
	}
	up := make([]float64, len(x)-1)
	down := make([]float64, len(x)-1)
	for i := 1; i < len(x); i++ {
		d := x[i] - x[i-1]
		if d > 0 {
			up[i-1] = d
		} else {
			down[i-1] = -d
		}
	}
	alpha := 1 / float64(window)
	au := ewm(up, alpha, window)
	ad := ewm(down, alpha, window)
	for i := range au {
		if math.IsNaN(au[i]) || math.IsNaN(ad[i]) {
			continue
		}
		switch {
		case ad[i] == 0 && au[i] == 0:
			out[i+1] = 50
		case ad[i] == 0:
			out[i+1] = 100
		default:
			out[i+1] = 100 - 100/(1+au[i]/ad[i])
		}
	}
	return out
}

// MACD returns the MACD line, its signal line and the histogram.
func MACD(x []float64, fast, slow, sig int) (line, signal, hist []float64) {
	ef := EMA(x, fast)
	es := EMA(x, slow)
	line = nanSlice(len(x))
	for i := range x {
		if !math.IsNaN(ef[i]) && !math.IsNaN(es[i]) {
			line[i] = ef[i] - es[i]
		}
	}
	signal = nanSlice(len(x))
	start := slow - 1
	if start < len(x) {
		s := EMA(line[start:], sig)
		copy(signal[start:], s)
	}
	hist = nanSlice(len(x))
	for i := range x {
		if !math.IsNaN(line[i]) && !math.IsNaN(signal[i]) {
			hist[i] = line[i] - signal[i]
		}
	}
	return line, signal, hist
}

// Bollinger returns bands k population standard deviations around the window SMA.
func Bollinger(x []float64, window int, k float64) (upper, middle, lower []float64) {
	middle = SMA(x, window)
	upper = nanSlice(len(x))
	lower = nanSlice(len(x))
	for i := window - 1; i < len(x); i++ {
		if i < 0 {
			continue
		}
		m := middle[i]
		ss := 0.0
		for j := i - window + 1; j <= i; j++ {
			d := x[j] - m
			ss += d * d
		}
		sd := math.Sqrt(ss / float64(window))
		upper[i] = m + k*sd
		lower[i] = m - k*sd
	}
	return upper, middle, lower
}

// VolumeRatio divides each volume by the mean of the preceding window volumes.
func VolumeRatio(vol []float64, window int) []float64 {
	out := nanSlice(len(vol))
	if window <= 0 {
		return out
	}
	sum := 0.0
	for i := range vol {
		if i >= window {
			if avg := sum / float64(window); avg > 0 {
				out[i] = vol[i] / avg
			}
			sum -= vol[i-window]
		}
		sum += vol[i]
	}
	return out
}

func ewm(x []float64, alpha float64, minPeriods int) []float64 {
	out := nanSlice(len(x))
	if len(x) == 0 {
		return out
	}
	v := x[0]
	for i, xi := range x {
		if i > 0 {
			v = alpha*xi + (1-alpha)*v
		}
		if i >= minPeriods-1 {
			out[i] = v
		}
	}
	return out
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

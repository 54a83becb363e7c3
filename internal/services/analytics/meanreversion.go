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

const (
	MinMeanReversionObservations = 60

	hurstMinWindow = 10
	hurstMaxWindow = 100
	hurstStep      = 5
	randomWalkBand = 0.05
)

// ZScoreWindows are the moving-average windows of the reported z-scores.
var ZScoreWindows = []int{20, 50, 100, 200}

type MeanReversionAnalyzer struct{ engineBase }

func NewMeanReversionAnalyzer(opts ...Option) *MeanReversionAnalyzer {
	return &MeanReversionAnalyzer{engineBase: newBase(opts)}
}

// Analyze estimates the Hurst exponent of log returns and the OU half-life of prices.
func (a *MeanReversionAnalyzer) Analyze(ctx context.Context, series models.PriceSeries) (res models.MeanReversionResult, err error) {
	start := time.Now()
	defer func() { a.observe("mean_reversion", start, err) }()

	n := series.Len()
	if n < MinMeanReversionObservations {
		return res, insufficient(series.Ticker, "mean reversion", MinMeanReversionObservations, n)
	}
	closes := series.Closes()
	h := Hurst(features.LogReturns(closes))
	slope, intercept := arSlope(closes)
	res = models.MeanReversionResult{
		Ticker:       series.Ticker,
		Observations: n,
		CurrentPrice: closes[n-1],
		Hurst:        h,
		Tendency:     Tendency(h),
		ARSlope:      slope,
		HalfLife:     HalfLife(slope),
	}
	if res.HalfLife != nil {
		res.MeanLevel = ptr(intercept / (1 - slope))
	}
	for _, w := range ZScoreWindows {
		if n < w {
			continue
		}
		window := closes[n-w:]
		mean, sd := stat.MeanStdDev(window, nil)
		z := models.ZScore{Window: w, Mean: mean}
		if sd > 0 {
			z.Value = ptr((closes[n-1] - mean) / sd)
		}
		res.ZScores = append(res.ZScores, z)
	}

	a.log.Debug("mean reversion analyzed",
		logger.String("ticker", series.Ticker),
		logger.Float("hurst", h),
		logger.Float("ar_slope", slope),
	)
	return res, nil
}

// Tendency maps a Hurst exponent onto its interpretation: below 0.5 mean-reverting,
// above 0.5 trending, inside a narrow band around 0.5 a random walk.
func Tendency(h float64) string {
	switch {
	case h < 0.5-randomWalkBand:
		return models.TendencyMeanReverting
	case h > 0.5+randomWalkBand:
		return models.TendencyTrending
	default:
		return models.TendencyRandomWalk
	}
}

// Hurst estimates the Hurst exponent by rescaled-range analysis over non-overlapping
// windows of 10, 15, ... up to min(n/2, 100) observations. The small-sample bias of R/S
// is removed with the Anis-Lloyd-Peters expectation, so white noise maps to 0.5.
// The result is clipped to [0, 1]; fewer than 20 observations give 0.5.
func Hurst(x []float64) float64 {
	n := len(x)
	if n < 20 {
		return 0.5
	}
	maxK := min(n/2, hurstMaxWindow)
	var logN, logExcess []float64
	for size := hurstMinWindow; size <= maxK; size += hurstStep {
		var sum float64
		var cnt int
		for s := 0; s+size <= n; s += size {
			if rs, ok := rescaledRange(x[s : s+size]); ok {
				sum += rs
				cnt++
			}
		}
		if cnt == 0 {
			continue
		}
		logN = append(logN, math.Log(float64(size)))
		logExcess = append(logExcess, math.Log(sum/float64(cnt))-math.Log(expectedRS(size)))
	}
	if len(logN) < 2 {
		return 0.5
	}
	_, slope := stat.LinearRegression(logN, logExcess, nil, false)
	return math.Max(0, math.Min(1, 0.5+slope))
}

func rescaledRange(chunk []float64) (float64, bool) {
	mean := stat.Mean(chunk, nil)
	cum, hi, lo, ss := 0.0, 0.0, 0.0, 0.0
	for _, v := range chunk {
		d := v - mean
		cum += d
		hi = math.Max(hi, cum)
		lo = math.Min(lo, cum)
		ss += d * d
	}
	sd := math.Sqrt(ss / float64(len(chunk)))
	if sd == 0 {
		return 0, false
	}
	return (hi - lo) / sd, true
}

// expectedRS is the Anis-Lloyd-Peters expected R/S of n i.i.d. Gaussian observations.
func expectedRS(n int) float64 {
	fn := float64(n)
	var ratio float64
	if n <= 340 {
		lg1, _ := math.Lgamma((fn - 1) / 2)
		lg2, _ := math.Lgamma(fn / 2)
		ratio = math.Exp(lg1-lg2) / math.Sqrt(math.Pi)
	} else {
		ratio = 1 / math.Sqrt(fn*math.Pi/2)
	}
	sum := 0.0
	for i := 1; i < n; i++ {
		sum += math.Sqrt((fn - float64(i)) / float64(i))
	}
	return (fn - 0.5) / fn * ratio * sum
}

// arSlope regresses p[t] on p[t-1] with an intercept.
func arSlope(p []float64) (slope, intercept float64) {
	if len(p) < 3 {
		return 1, 0
	}
	intercept, slope = stat.LinearRegression(p[:len(p)-1], p[1:], nil, false)
	if !finite(slope, intercept) {
		return 1, 0
	}
	return slope, intercept
}

// HalfLife converts an AR(1) slope into the OU half-life in bars. It is nil when the
// slope shows no mean reversion (slope >= 1) or is not a valid decay factor.
func HalfLife(slope float64) *float64 {
	if slope >= 1 || slope <= 0 {
		return nil
	}
	return ptr(-math.Ln2 / math.Log(slope))
}

var _ domsvc.MeanReversionAnalyzer = (*MeanReversionAnalyzer)(nil)

package analytics

import (
	"context"
	"math"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/services/features"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestHurstGaussianRandomWalk(t *testing.T) {
	const seeds = 8
	sum := 0.0
	for s := uint64(1); s <= seeds; s++ {
		steps := features.LogReturns(testutil.GBM(s, 2049, 100, 0, 0.01))
		sum += Hurst(steps)
	}
	avg := sum / seeds
	if avg < 0.45 || avg > 0.55 {
		t.Fatalf("expected Hurst near 0.5 for Gaussian steps, got %.3f", avg)
	}
	if Tendency(avg) != models.TendencyRandomWalk {
		t.Fatalf("expected random walk tendency, got %s", Tendency(avg))
	}
}

func TestMeanReversionOrnsteinUhlenbeck(t *testing.T) {
	const theta = 0.1
	series := testutil.Series("OU", testutil.OU(3, 5000, 100, theta, 1))
	res, err := NewMeanReversionAnalyzer().Analyze(context.Background(), series)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Hurst >= 0.5 {
		t.Errorf("expected Hurst < 0.5, got %.3f", res.Hurst)
	}
	if res.Tendency != models.TendencyMeanReverting {
		t.Errorf("expected mean reverting, got %s", res.Tendency)
	}
	want := -math.Ln2 / math.Log(1-theta)
	if res.HalfLife == nil || math.Abs(*res.HalfLife-want) > 1.5 {
		t.Fatalf("half-life = %v, want %.2f ± 1.5", res.HalfLife, want)
	}
	if res.MeanLevel == nil || math.Abs(*res.MeanLevel-100) > 1 {
		t.Errorf("mean level = %v, want ~100", res.MeanLevel)
	}
	if len(res.ZScores) != len(ZScoreWindows) {
		t.Errorf("expected %d z-scores, got %d", len(ZScoreWindows), len(res.ZScores))
	}
}

func TestMeanReversionRandomWalkHalfLife(t *testing.T) {
	series := testutil.Series("RW", testutil.GBM(5, 4000, 100, 0, 0.01))
	res, err := NewMeanReversionAnalyzer().Analyze(context.Background(), series)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.HalfLife != nil && *res.HalfLife < 50 {
		t.Fatalf("random walk half-life should be undefined or very large, got %.1f", *res.HalfLife)
	}
}

func TestMeanReversionMonotoneSeries(t *testing.T) {
	series := testutil.Series("UP", testutil.Linear(300, 100, 1))
	res, err := NewMeanReversionAnalyzer().Analyze(context.Background(), series)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if res.Hurst <= 0.5 {
		t.Fatalf("expected Hurst > 0.5 for a monotone series, got %.3f", res.Hurst)
	}
}

func TestMeanReversionInsufficientData(t *testing.T) {
	_, err := NewMeanReversionAnalyzer().Analyze(context.Background(), testutil.Series("X", testutil.Linear(59, 100, 1)))
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestHalfLifeUndefined(t *testing.T) {
	for _, slope := range []float64{1, 1.01, 0, -0.5} {
		if hl := HalfLife(slope); hl != nil {
			t.Errorf("HalfLife(%v) = %v, want nil", slope, *hl)
		}
	}
}

package analytics

import (
	"context"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/services/indicators"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestRegimeFlatSeries(t *testing.T) {
	res, err := NewRegimeClassifier().Classify(context.Background(), testutil.Series("FLAT", testutil.Constant(300, 100)))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Regime != models.RegimeRangeBound {
		t.Errorf("expected range-bound, got %s", res.Regime)
	}
	if res.VolatilityBucket != models.VolBucketLow || res.RealizedVolatility != 0 {
		t.Errorf("expected zero volatility in the low bucket, got %s %v", res.VolatilityBucket, res.RealizedVolatility)
	}
	if res.DaysInRegime != 300-MinRegimeObservations+1 {
		t.Errorf("expected every classifiable bar in the same regime, got %d days", res.DaysInRegime)
	}
}

func TestRegimeTrendingUp(t *testing.T) {
	res, err := NewRegimeClassifier().Classify(context.Background(), testutil.Series("UP", testutil.Linear(300, 100, 1)))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Regime != models.RegimeTrendingUp {
		t.Fatalf("expected trending-up, got %s (slope=%v strength=%v bucket=%s)", res.Regime, res.TrendSlope, res.TrendStrength, res.VolatilityBucket)
	}
	if res.Confidence < 0.6 || res.Confidence > 1 {
		t.Errorf("confidence out of range: %v", res.Confidence)
	}
}

func TestRegimeTrendingDown(t *testing.T) {
	res, err := NewRegimeClassifier().Classify(context.Background(), testutil.Series("DOWN", testutil.Linear(300, 400, -1)))
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if res.Regime != models.RegimeTrendingDown {
		t.Fatalf("expected trending-down, got %s (bucket=%s vol=%v)", res.Regime, res.VolatilityBucket, res.RealizedVolatility)
	}
}

func TestRegimeInsufficientData(t *testing.T) {
	_, err := NewRegimeClassifier().Classify(context.Background(), testutil.Series("X", testutil.Linear(60, 100, 1)))
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

// trendWithVol is a clean uptrend whose rolling volatility is supplied directly: a calm
// baseline of 10%, one burst of 40% early in the trailing year and last at the final bar.
func trendWithVol(last float64) regimeInputs {
	closes := testutil.Linear(300, 100, 1)
	vols := make([]float64, len(closes)-regimeVolWindow)
	for k := range vols {
		vols[k] = 0.10
	}
	for k := 30; k < 45; k++ {
		vols[k] = 0.40
	}
	vols[len(vols)-1] = last
	return regimeInputs{closes: closes, vols: vols, sma: indicators.SMA(closes, regimeTrendWindow)}
}

func TestRegimeHighVolatilityOverridesTrend(t *testing.T) {
	for _, tc := range []struct {
		name   string
		last   float64
		bucket string
		want   string
	}{
		{"high bucket", 0.20, models.VolBucketHigh, models.RegimeHighVolatility},
		{"extreme bucket", 0.50, models.VolBucketExtreme, models.RegimeHighVolatility},
		{"low bucket", 0.05, models.VolBucketLow, models.RegimeTrendingUp},
	} {
		t.Run(tc.name, func(t *testing.T) {
			in := trendWithVol(tc.last)
			s := in.at(len(in.closes) - 1)
			if s.bucket != tc.bucket {
				t.Fatalf("bucket %s (pct=%.1f), want %s", s.bucket, s.percentile, tc.bucket)
			}
			if s.strength < regimeStrengthCutoff || s.slope <= 0 {
				t.Fatalf("fixture is not a strong uptrend: slope=%v strength=%v", s.slope, s.strength)
			}
			if s.label != tc.want {
				t.Fatalf("regime %s, want %s (pct=%.1f vol=%.3f)", s.label, tc.want, s.percentile, s.vol)
			}
		})
	}
}

func TestRegimeNegligibleVolatilityKeepsTrend(t *testing.T) {
	in := trendWithVol(0.5)
	for k := range in.vols {
		in.vols[k] /= 100
	}
	s := in.at(len(in.closes) - 1)
	if s.bucket != models.VolBucketExtreme || s.label != models.RegimeTrendingUp {
		t.Fatalf("got %s in %s bucket at vol %.4f, want trending-up", s.label, s.bucket, s.vol)
	}
}

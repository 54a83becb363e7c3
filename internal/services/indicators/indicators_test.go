package indicators

import (
	"math"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestSMA(t *testing.T) {
	got := SMA([]float64{1, 2, 3, 4, 5}, 3)
	if !math.IsNaN(got[0]) || !math.IsNaN(got[1]) {
		t.Fatalf("warm-up values must be NaN, got %v", got[:2])
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		if math.Abs(got[i+2]-w) > 1e-12 {
			t.Fatalf("SMA[%d] = %v, want %v", i+2, got[i+2], w)
		}
	}
}

func TestRSIRisingSeries(t *testing.T) {
	rsi := RSI(testutil.Linear(40, 100, 1), 14)
	for i := 14; i < 40; i++ {
		if rsi[i] != 100 {
			t.Fatalf("RSI[%d] = %v, want 100 on a strictly rising series", i, rsi[i])
		}
	}
	if !math.IsNaN(rsi[13]) {
		t.Fatalf("RSI must be undefined before the window fills")
	}
}

func TestRSIBounded(t *testing.T) {
	rsi := RSI(testutil.GBM(7, 300, 100, 0, 0.02), 14)
	for i, v := range rsi {
		if math.IsNaN(v) {
			continue
		}
		if v < 0 || v > 100 {
			t.Fatalf("RSI[%d] = %v out of range", i, v)
		}
	}
}

func TestVolumeRatioExcludesCurrentBar(t *testing.T) {
	vol := []float64{10, 10, 10, 40}
	got := VolumeRatio(vol, 3)
	if math.Abs(got[3]-4) > 1e-12 {
		t.Fatalf("ratio = %v, want 4", got[3])
	}
	if !math.IsNaN(got[2]) {
		t.Fatalf("ratio before a full trailing window must be NaN")
	}
}

// Indicators computed on a prefix must equal the same prefix of the full computation.
func TestIndicatorsAreCausal(t *testing.T) {
	closes := testutil.GBM(11, 400, 50, 0.0005, 0.015)
	full := Compute(testutil.Series("X", closes))
	for _, cut := range []int{30, 120, 250} {
		prefix := Compute(testutil.Series("X", closes[:cut]))
		for _, name := range Names {
			a, _ := full.Get(name)
			b, _ := prefix.Get(name)
			for i := 0; i < cut; i++ {
				if math.IsNaN(a[i]) && math.IsNaN(b[i]) {
					continue
				}
				if math.Abs(a[i]-b[i]) > 1e-9 {
					t.Fatalf("%s[%d] differs between prefix %d and full series: %v vs %v", name, i, cut, b[i], a[i])
				}
			}
		}
	}
}

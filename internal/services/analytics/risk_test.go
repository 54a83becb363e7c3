package analytics

import (
	"context"
	"math"
	"testing"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestRiskAgainstItself(t *testing.T) {
	closes := testutil.GBM(31, 300, 100, 0.0004, 0.015)
	res, err := NewRiskCalculator(0.02).Compute(context.Background(), testutil.Series("AAA", closes), testutil.Series("SPY", closes), "1y")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Beta == nil || math.Abs(*res.Beta-1) > 1e-9 {
		t.Fatalf("beta = %v, want 1", res.Beta)
	}
	if res.Alpha == nil || math.Abs(*res.Alpha) > 1e-9 {
		t.Fatalf("alpha = %v, want 0", res.Alpha)
	}
	if res.InformationRatio != nil {
		t.Errorf("information ratio must be undefined without tracking error")
	}
	if res.UpCapture != nil && math.Abs(*res.UpCapture-1) > 1e-9 {
		t.Errorf("up capture = %v, want 1", *res.UpCapture)
	}
	if res.Observations != 299 || res.RiskFreeRate != 0.02 {
		t.Errorf("unexpected header %+v", res)
	}
	if res.MaxDrawdown.Depth > 0 || res.Tail99.HistoricalVaR > res.Tail95.HistoricalVaR {
		t.Errorf("inconsistent tail metrics")
	}
}

func TestRiskFlatBenchmark(t *testing.T) {
	res, err := NewRiskCalculator(0).Compute(context.Background(),
		testutil.Series("AAA", testutil.GBM(32, 100, 100, 0, 0.01)),
		testutil.Series("CASH", testutil.Constant(100, 1)), "6mo")
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if res.Beta != nil || res.Alpha != nil || res.Treynor != nil {
		t.Fatalf("beta-dependent ratios must be undefined against a flat benchmark")
	}
	if res.Sharpe == nil || res.InformationRatio == nil {
		t.Fatalf("expected Sharpe and information ratio")
	}
}

func TestRiskInsufficientData(t *testing.T) {
	s := testutil.Series("AAA", testutil.Linear(15, 100, 1))
	_, err := NewRiskCalculator(0).Compute(context.Background(), s, s, "1y")
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

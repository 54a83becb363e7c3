package features

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestToReturnsInsufficient(t *testing.T) {
	_, err := ToReturns(testutil.Series("X", []float64{100}), models.LogReturns)
	var ide *models.InsufficientDataError
	if !errors.As(err, &ide) {
		t.Fatalf("expected InsufficientDataError, got %v", err)
	}
	if ide.Required != 2 || ide.Got != 1 {
		t.Fatalf("unexpected error context: %+v", ide)
	}
}

func TestToReturns(t *testing.T) {
	s := testutil.Series("X", []float64{100, 110, 99})
	simple, err := ToReturns(s, models.SimpleReturns)
	if err != nil {
		t.Fatalf("ToReturns: %v", err)
	}
	if simple.Len() != 2 {
		t.Fatalf("expected 2 returns, got %d", simple.Len())
	}
	if math.Abs(simple.Values[0]-0.1) > 1e-12 || math.Abs(simple.Values[1]-(-0.1)) > 1e-12 {
		t.Fatalf("unexpected simple returns %v", simple.Values)
	}
	if !simple.Dates[0].Equal(s.Bars[1].Date) {
		t.Fatalf("return must be dated by the later bar")
	}
	logr, _ := ToReturns(s, models.LogReturns)
	if math.Abs(logr.Values[0]-math.Log(1.1)) > 1e-12 {
		t.Fatalf("unexpected log return %v", logr.Values[0])
	}
}

func TestAlign(t *testing.T) {
	s := testutil.Series("X", testutil.Linear(100, 1, 1))
	got, err := Align(s, 30, 20, "test")
	if err != nil {
		t.Fatalf("Align: %v", err)
	}
	if got.Len() != 30 || got.Bars[0].Close != 71 {
		t.Fatalf("expected the most recent 30 bars, got len=%d first=%v", got.Len(), got.Bars[0].Close)
	}
	if s.Len() != 100 {
		t.Fatalf("input mutated")
	}
	if _, err := Align(s, 0, 252, "volatility"); !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

func TestAlignByDate(t *testing.T) {
	d := testutil.BusinessDays(testutil.Start, 4)
	a := models.ReturnSeries{Dates: d, Values: []float64{1, 2, 3, 4}}
	b := models.ReturnSeries{Dates: []time.Time{d[1], d[3]}, Values: []float64{20, 40}}
	x, y, dates := AlignByDate(a, b)
	if len(x) != 2 || x[0] != 2 || x[1] != 4 || y[0] != 20 || y[1] != 40 || !dates[1].Equal(d[3]) {
		t.Fatalf("unexpected alignment x=%v y=%v", x, y)
	}
}

func TestMaxDrawdown(t *testing.T) {
	dates := testutil.BusinessDays(testutil.Start, 6)
	equity := []float64{1, 1.2, 0.9, 1.0, 1.25, 1.1}
	dd := MaxDrawdown(equity, dates)
	if math.Abs(dd.Depth-(-0.25)) > 1e-12 {
		t.Fatalf("depth = %v, want -0.25", dd.Depth)
	}
	if !dd.PeakDate.Equal(dates[1]) || !dd.TroughDate.Equal(dates[2]) {
		t.Fatalf("unexpected peak/trough %v %v", dd.PeakDate, dd.TroughDate)
	}
	if dd.RecoveryDate == nil || !dd.RecoveryDate.Equal(dates[4]) {
		t.Fatalf("expected recovery at %v, got %v", dates[4], dd.RecoveryDate)
	}
	want := int(dates[4].Sub(dates[1]).Hours() / 24)
	if dd.DurationDays != want {
		t.Fatalf("duration = %d, want %d", dd.DurationDays, want)
	}
}

func TestMaxDrawdownNoRecovery(t *testing.T) {
	dates := testutil.BusinessDays(testutil.Start, 4)
	dd := MaxDrawdown([]float64{1, 0.8, 0.7, 0.75}, dates)
	if dd.RecoveryDate != nil {
		t.Fatalf("expected nil recovery, got %v", dd.RecoveryDate)
	}
	if math.Abs(dd.Depth-(-0.3)) > 1e-12 {
		t.Fatalf("depth = %v", dd.Depth)
	}
	if dd.DurationDays != int(dates[3].Sub(dates[0]).Hours()/24) {
		t.Fatalf("duration should run to the last date, got %d", dd.DurationDays)
	}
}

func TestVolBucket(t *testing.T) {
	cases := []struct {
		pct  float64
		want string
	}{
		{10, models.VolBucketLow},
		{50, models.VolBucketNormal},
		{80, models.VolBucketHigh},
		{99, models.VolBucketExtreme},
	}
	for _, c := range cases {
		if got := VolBucket(c.pct); got != c.want {
			t.Errorf("VolBucket(%v) = %s, want %s", c.pct, got, c.want)
		}
	}
}

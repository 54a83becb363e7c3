package analytics

import (
	"context"
	"testing"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func checkBands(t *testing.T, points []models.ForecastPoint) {
	t.Helper()
	for i, p := range points {
		if !(p.Lower95 > 0 && p.Lower95 <= p.Point && p.Point <= p.Upper95) {
			t.Fatalf("day %d: point outside its 95%% band: %+v", p.Day, p)
		}
		if i == 0 {
			continue
		}
		prev := points[i-1]
		if w, pw := p.Upper95-p.Lower95, prev.Upper95-prev.Lower95; w < pw-1e-9 {
			t.Fatalf("day %d: 95%% band narrowed from %v to %v", p.Day, pw, w)
		}
		if w, pw := p.Upper80-p.Lower80, prev.Upper80-prev.Lower80; w < pw-1e-9 {
			t.Fatalf("day %d: 80%% band narrowed from %v to %v", p.Day, pw, w)
		}
	}
}

func TestForecastAuto(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(7, 300, 100, 0.0005, 0.01))
	res, err := NewForecaster().Forecast(context.Background(), series, 30, models.ForecastAuto)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(res.Points) != 30 || res.HorizonDays != 30 {
		t.Fatalf("expected 30 points, got %d", len(res.Points))
	}
	checkBands(t, res.Points)
	if res.Fit.Model == "arima" && len(res.Fit.Candidates) == 0 {
		t.Errorf("arima fit should report its grid candidates")
	}
	if res.Fit.Model != "arima" && !res.Fit.UsedFallback {
		t.Errorf("a non-arima model in auto mode must be flagged as a fallback")
	}
	last := series.Last().Date
	for _, p := range res.Points {
		if !p.Date.After(last) || p.Date.Weekday() == time.Saturday || p.Date.Weekday() == time.Sunday {
			t.Fatalf("forecast date %s must be a business day after %s", p.Date, last)
		}
		last = p.Date
	}
}

func TestForecastDecomposition(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(8, 200, 50, 0, 0.02))
	res, err := NewForecaster().Forecast(context.Background(), series, 10, models.ForecastDecomposition)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if res.Fit.Model != models.ForecastDecomposition || res.Fit.UsedFallback {
		t.Fatalf("expected an explicit decomposition fit, got %+v", res.Fit)
	}
	checkBands(t, res.Points)
}

func TestForecastCancelledContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	series := testutil.Series("GBM", testutil.GBM(9, 120, 100, 0, 0.01))
	res, err := NewForecaster().Forecast(ctx, series, 5, models.ForecastAuto)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if !res.Fit.UsedFallback || res.Fit.Model != models.ForecastDecomposition || res.Fit.FallbackNote == "" {
		t.Fatalf("expected a flagged decomposition fallback, got %+v", res.Fit)
	}
}

func TestForecastHorizonDefaultAndCap(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(10, 100, 100, 0, 0.01))
	f := NewForecaster()
	res, err := f.Forecast(context.Background(), series, 0, models.ForecastDecomposition)
	if err != nil || res.HorizonDays != DefaultForecastHorizon {
		t.Fatalf("expected default horizon, got %d (%v)", res.HorizonDays, err)
	}
	res, err = f.Forecast(context.Background(), series, 10_000, models.ForecastDecomposition)
	if err != nil || res.HorizonDays != MaxForecastHorizon {
		t.Fatalf("expected capped horizon, got %d (%v)", res.HorizonDays, err)
	}
}

func TestForecastInsufficientData(t *testing.T) {
	_, err := NewForecaster().Forecast(context.Background(), testutil.Series("X", testutil.Linear(59, 100, 1)), 30, models.ForecastAuto)
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data, got %v", err)
	}
}

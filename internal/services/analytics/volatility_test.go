package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
)

func TestVolatilityForecast(t *testing.T) {
	series := testutil.Series("GBM", testutil.GBM(11, 600, 100, 0, 0.01))
	res, err := NewVolatilityForecaster().Forecast(context.Background(), series, 30)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if len(res.DailyVolPath) != 30 {
		t.Fatalf("expected 30 forecast days, got %d", len(res.DailyVolPath))
	}
	if res.AnnualizedVolatility < 0.05 || res.AnnualizedVolatility > 0.5 {
		t.Errorf("annualized volatility %v far from the generating 0.16", res.AnnualizedVolatility)
	}
	if len(res.VaR) != 2 {
		t.Fatalf("expected VaR at two confidence levels, got %d", len(res.VaR))
	}
	v95, v99 := res.VaR[0], res.VaR[1]
	if !(v99.OneDay < v95.OneDay && v95.OneDay < 0) {
		t.Errorf("expected VaR99 < VaR95 < 0, got %v %v", v99.OneDay, v95.OneDay)
	}
	if v95.FiveDay >= v95.OneDay {
		t.Errorf("five-day VaR %v should exceed one-day VaR %v in magnitude", v95.FiveDay, v95.OneDay)
	}
	if res.RealizedVol30 == nil || res.RealizedVol60 == nil {
		t.Errorf("expected realized volatility windows")
	}
	if res.Fit.Params == nil {
		t.Errorf("expected fitted parameters")
	}
}

func TestVolatilityFlatSeriesFallsBack(t *testing.T) {
	res, err := NewVolatilityForecaster().Forecast(context.Background(), testutil.Series("FLAT", testutil.Constant(300, 100)), 5)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if !res.Fit.UsedFallback || res.Fit.Model != "ewma" {
		t.Fatalf("expected a flagged EWMA fallback, got %+v", res.Fit)
	}
	if res.Regime != models.VolBucketLow {
		t.Errorf("expected low volatility regime, got %s", res.Regime)
	}
}

func TestVolatilityExpiredContextFallsBack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()
	series := testutil.Series("GBM", testutil.GBM(12, 600, 100, 0, 0.01))
	res, err := NewVolatilityForecaster().Forecast(ctx, series, 10)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if !res.Fit.UsedFallback || res.Fit.Model != "ewma" || !strings.Contains(res.Fit.FallbackNote, "interrupted") {
		t.Fatalf("expected a flagged EWMA fallback, got %+v", res.Fit)
	}
	if len(res.DailyVolPath) != 10 || res.AnnualizedVolatility <= 0 {
		t.Fatalf("fallback forecast incomplete: %+v", res)
	}
}

func TestFitGARCHStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := testutil.GBM(13, 400, 100, 0, 0.01)
	_, err := fitGARCH(ctx, r)
	var cf *models.ConvergenceFailure
	if !errors.As(err, &cf) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected a cancelled ConvergenceFailure, got %v", err)
	}
}

func TestVolatilityInsufficientData(t *testing.T) {
	_, err := NewVolatilityForecaster().Forecast(context.Background(), testutil.Series("X", testutil.GBM(1, 252, 100, 0, 0.01)), 30)
	if !models.IsInsufficientData(err) {
		t.Fatalf("expected insufficient data for 251 returns, got %v", err)
	}
}

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/repository"
	"github.com/arg-foo/zaza-sub000/internal/service/ratelimit"
	"github.com/arg-foo/zaza-sub000/internal/services/analytics"
	"github.com/arg-foo/zaza-sub000/internal/services/backtest"
	"github.com/arg-foo/zaza-sub000/internal/services/ledger"
	"github.com/arg-foo/zaza-sub000/internal/testutil"
	"github.com/arg-foo/zaza-sub000/internal/usecase"
)

type seriesProvider struct{ closes []float64 }

func (p seriesProvider) Fetch(_ context.Context, ticker string, _, _ time.Time) (models.PriceSeries, error) {
	return testutil.Series(ticker, p.closes), nil
}

type envelope struct {
	Status int             `json:"status"`
	Data   json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, closes []float64, limiter *ratelimit.Limiter) *echo.Echo {
	t.Helper()
	store, err := repository.NewPredictionFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewPredictionFileStore: %v", err)
	}
	p := seriesProvider{closes: closes}
	clock := func() time.Time { return time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC) }
	svc := usecase.NewQuantService(p, usecase.Engines{
		Distribution:  analytics.NewDistributionAnalyzer(),
		MeanReversion: analytics.NewMeanReversionAnalyzer(),
		Regime:        analytics.NewRegimeClassifier(),
		Forecast:      analytics.NewForecaster(),
		Volatility:    analytics.NewVolatilityForecaster(),
		Simulator:     analytics.NewMonteCarloSimulator(),
		Backtester:    backtest.NewBacktester(),
		Strategy:      backtest.NewStrategySimulator(),
		Risk:          analytics.NewRiskCalculator(0),
	}, ledger.New(store, p, ledger.WithClock(clock)), usecase.Settings{Simulations: 500}, usecase.WithServiceClock(clock))
	e := echo.New()
	NewQuantHandler(nil, svc, limiter).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestDistributionRoute(t *testing.T) {
	e := newTestServer(t, testutil.GBM(11, 300, 100, 0.0003, 0.01), nil)
	rec, env := do(e, http.MethodGet, "/api/quant/distribution?ticker=aapl&period=1y", "")
	if rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var res models.DistributionResult
	if err := json.Unmarshal(env.Data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Ticker != "AAPL" || res.Period != "1y" || res.Observations == 0 {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestValidationErrors(t *testing.T) {
	e := newTestServer(t, testutil.GBM(12, 300, 100, 0, 0.01), nil)
	rec, _ := do(e, http.MethodGet, "/api/quant/regime", "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "ERR_REQUIRED") {
		t.Fatalf("missing ticker: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(e, http.MethodGet, "/api/quant/forecast?ticker=AAPL&method=magic", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad method accepted: %d", rec.Code)
	}
	rec, _ = do(e, http.MethodGet, "/api/quant/monte-carlo?ticker=AAPL&seed=-1", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad seed accepted: %d", rec.Code)
	}
	rec, _ = do(e, http.MethodPost, "/api/quant/predictions", `{"ticker":"../escape","horizon_days":10,"current_price":100}`)
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "ERR_TICKER") {
		t.Fatalf("path-like ticker: %d %s", rec.Code, rec.Body.String())
	}
	rec, _ = do(e, http.MethodGet, "/api/quant/monte-carlo?ticker=AAPL&horizon_days=756&simulations=200000", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("oversized simulation accepted: %d %s", rec.Code, rec.Body.String())
	}
}

func TestInsufficientDataIs422(t *testing.T) {
	e := newTestServer(t, testutil.GBM(13, 40, 100, 0, 0.01), nil)
	rec, _ := do(e, http.MethodGet, "/api/quant/regime?ticker=AAPL", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	body := rec.Body.String()
	if !strings.Contains(body, "ERR_INSUFFICIENT_DATA") || !strings.Contains(body, `"required":61`) || !strings.Contains(body, `"got":40`) {
		t.Fatalf("error context missing: %s", body)
	}
}

func TestUnknownSignalIs400(t *testing.T) {
	e := newTestServer(t, testutil.GBM(14, 300, 100, 0, 0.01), nil)
	rec, _ := do(e, http.MethodGet, "/api/quant/backtest?ticker=AAPL&signal=moon_phase&lookback_years=1", "")
	if rec.Code != http.StatusBadRequest || !strings.Contains(rec.Body.String(), "ERR_UNKNOWN_SIGNAL") {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestPredictionLifecycleRoutes(t *testing.T) {
	e := newTestServer(t, testutil.Linear(100, 100, 0.1), nil)
	body := `{"ticker":"msft","horizon_days":10,"current_price":100,"predicted_range":{"low":95,"mid":103,"high":108},"confidence_interval":{"ci_5":92,"ci_25":99,"ci_75":105,"ci_95":110}}`
	rec, env := do(e, http.MethodPost, "/api/quant/predictions", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var stored models.PredictionRecord
	if err := json.Unmarshal(env.Data, &stored); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stored.Ticker != "MSFT" || stored.TargetDate != "2024-06-13" || stored.Version != 1 {
		t.Fatalf("unexpected record %+v", stored)
	}
	if rec, _ := do(e, http.MethodPost, "/api/quant/predictions", body); rec.Code != http.StatusConflict {
		t.Fatalf("duplicate status %d", rec.Code)
	}

	rec, env = do(e, http.MethodPost, "/api/quant/predictions/score", `{"ticker":"MSFT"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("score status %d: %s", rec.Code, rec.Body.String())
	}
	var sum models.ScoreSummary
	if err := json.Unmarshal(env.Data, &sum); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if sum.TotalPredictions != 1 || sum.Pending != 1 || sum.NewlyScored != 0 {
		t.Fatalf("record before target date must stay pending: %+v", sum)
	}

	if rec, _ := do(e, http.MethodPost, "/api/quant/predictions/archive", ""); rec.Code != http.StatusOK {
		t.Fatalf("archive status %d", rec.Code)
	}
}

func TestHeavyRoutesAreRateLimited(t *testing.T) {
	e := newTestServer(t, testutil.GBM(15, 40, 100, 0, 0.01), ratelimit.New(0.001, 1))
	first, _ := do(e, http.MethodGet, "/api/quant/forecast?ticker=AAPL", "")
	if first.Code == http.StatusTooManyRequests {
		t.Fatalf("first request limited")
	}
	second, _ := do(e, http.MethodGet, "/api/quant/forecast?ticker=AAPL", "")
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request status %d, want 429", second.Code)
	}
	light, _ := do(e, http.MethodGet, "/api/quant/regime?ticker=AAPL", "")
	if light.Code == http.StatusTooManyRequests {
		t.Fatalf("light route must not be limited")
	}
}

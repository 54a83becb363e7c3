package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/internal/service/ratelimit"
	"github.com/arg-foo/zaza-sub000/internal/usecase"
	xhttp "github.com/arg-foo/zaza-sub000/pkg/http"
	xlogger "github.com/arg-foo/zaza-sub000/pkg/logger"
)

// QuantHandler exposes one route per quant operation under /api/quant.
type QuantHandler struct {
	logger  *xlogger.Logger
	svc     *usecase.QuantService
	limiter *ratelimit.Limiter
}

// NewQuantHandler builds the handler. A nil limiter disables rate limiting.
func NewQuantHandler(logger *xlogger.Logger, svc *usecase.QuantService, limiter *ratelimit.Limiter) *QuantHandler {
	return &QuantHandler{logger: logger, svc: svc, limiter: limiter}
}

func (h *QuantHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api/quant")
	var heavy []echo.MiddlewareFunc
	if h.limiter != nil {
		heavy = append(heavy, ratelimit.Middleware(h.limiter))
	}

	g.GET("/distribution", handle(h, h.svc.Distribution))
	g.GET("/mean-reversion", handle(h, h.svc.MeanReversion))
	g.GET("/regime", handle(h, h.svc.Regime))
	g.GET("/risk", handle(h, h.svc.Risk))
	g.GET("/backtest", handle(h, h.svc.Backtest))
	g.GET("/strategy", h.Strategy)

	g.GET("/forecast", handle(h, h.svc.Forecast), heavy...)
	g.GET("/volatility", handle(h, h.svc.Volatility), heavy...)
	g.GET("/monte-carlo", h.MonteCarlo, heavy...)
	g.GET("/snapshot", handle(h, h.svc.Snapshot), heavy...)

	g.POST("/predictions", h.LogPrediction)
	g.POST("/predictions/score", handle(h, h.svc.ScorePredictions))
	g.POST("/predictions/archive", h.Archive)
}

// handle binds and validates Req, calls fn and writes the envelope.
func handle[Req any, Res any](h *QuantHandler, fn func(context.Context, Req) (Res, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := new(Req)
		if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
			return xhttp.BadRequestResponse(c, verr)
		}
		res, err := fn(c.Request().Context(), *req)
		if err != nil {
			return h.fail(c, err)
		}
		return xhttp.SuccessResponse(c, res)
	}
}

func (h *QuantHandler) MonteCarlo(c echo.Context) error {
	req := &models.MonteCarloRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var err error
	if req.Seed, err = optUint(c, "seed"); err != nil {
		return h.fail(c, err)
	}
	if req.Drift, err = optFloat(c, "drift"); err != nil {
		return h.fail(c, err)
	}
	if req.Volatility, err = optFloat(c, "volatility"); err != nil {
		return h.fail(c, err)
	}
	if req.Volatility != nil && *req.Volatility < 0 {
		return h.fail(c, xhttp.BadRequestError("volatility must be non-negative"))
	}
	res, err := h.svc.MonteCarlo(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QuantHandler) Strategy(c echo.Context) error {
	req := &models.StrategyRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	var err error
	if req.TakeProfitPct, err = optFloat(c, "take_profit_pct"); err != nil {
		return h.fail(c, err)
	}
	if req.TakeProfitPct != nil && *req.TakeProfitPct <= 0 {
		return h.fail(c, xhttp.BadRequestError("take_profit_pct must be positive"))
	}
	res, err := h.svc.Strategy(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *QuantHandler) LogPrediction(c echo.Context) error {
	req := &models.LogPredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rec, err := h.svc.LogPrediction(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.CreatedResponse(c, rec)
}

func (h *QuantHandler) Archive(c echo.Context) error {
	res, err := h.svc.ArchivePredictions(c.Request().Context())
	if err != nil {
		return h.fail(c, err)
	}
	return xhttp.SuccessResponse(c, res)
}

// fail maps domain errors onto the envelope: insufficient data is 422, unknown signals and
// invalid parameters 400, duplicates 409; anything else is logged and returned as 500.
func (h *QuantHandler) fail(c echo.Context, err error) error {
	var (
		appErr  *xhttp.AppError
		ide     *models.InsufficientDataError
		unknown *models.UnknownSignalError
	)
	switch {
	case errors.As(err, &appErr):
	case errors.As(err, &ide):
		appErr = xhttp.UnprocessableError("ERR_INSUFFICIENT_DATA", ide.Error())
		if ide.Required > 0 {
			appErr.WithParam("required", ide.Required).WithParam("got", ide.Got)
		}
		if ide.Ticker != "" {
			appErr.WithParam("ticker", ide.Ticker)
		}
	case errors.As(err, &unknown):
		appErr = xhttp.NewAppError("ERR_UNKNOWN_SIGNAL", "signal", unknown.Error(), http.StatusBadRequest).
			WithParam("supported", unknown.Known)
	case errors.Is(err, models.ErrInvalidParameter):
		appErr = xhttp.BadRequestError(err.Error())
	case errors.Is(err, models.ErrDuplicatePrediction):
		appErr = xhttp.ConflictError(err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		appErr = xhttp.NewAppError("ERR_TIMEOUT", "", "request cancelled or timed out", http.StatusServiceUnavailable)
	default:
		h.logger.Error("quant request failed",
			xlogger.String("path", c.Path()),
			xlogger.Error(err),
		)
		return xhttp.AppErrorResponse(c, xhttp.InternalError("internal error").WithError(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

func optFloat(c echo.Context, name string) (*float64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, xhttp.BadRequestErrorf("%s must be a number", name)
	}
	return &v, nil
}

func optUint(c echo.Context, name string) (*uint64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, xhttp.BadRequestErrorf("%s must be a non-negative integer", name)
	}
	return &v, nil
}

var _ xhttp.Handler = (*QuantHandler)(nil)

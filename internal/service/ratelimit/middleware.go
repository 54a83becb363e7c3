package ratelimit

import (
	"github.com/labstack/echo/v4"

	pkghttp "github.com/arg-foo/zaza-sub000/pkg/http"
)

// Middleware rejects requests over the per-client-IP budget with 429.
func Middleware(l *Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				return pkghttp.AppErrorResponse(c, pkghttp.TooManyRequestsError("rate limit exceeded, retry later"))
			}
			return next(c)
		}
	}
}

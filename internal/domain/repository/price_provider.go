package repository

import (
	"context"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
)

// PriceProvider provides daily OHLCV history for one instrument.
// Implementations may return provider-specific errors; callers translate them
// into models.InsufficientDataError.
type PriceProvider interface {
	Fetch(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error)
}

// QuoteProvider is implemented by providers that can return a live last price.
type QuoteProvider interface {
	LastPrice(ctx context.Context, ticker string) (float64, error)
}

package repository

import (
	"context"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	"github.com/arg-foo/zaza-sub000/pkg/cache"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// CachedProvider memoizes Fetch results of another provider by ticker and day window.
// Empty series are not cached.
type CachedProvider struct {
	next  domrepo.PriceProvider
	cache cache.Service
	ttl   time.Duration
	l     *applogger.Logger
}

func NewCachedProvider(next domrepo.PriceProvider, c cache.Service, ttl time.Duration) *CachedProvider {
	return &CachedProvider{next: next, cache: c, ttl: ttl}
}

// SetLogger injects a structured logger.
func (p *CachedProvider) SetLogger(l *applogger.Logger) { p.l = l }

// BarsKey is the cache key of a daily window.
func BarsKey(ticker string, start, end time.Time) string {
	from, to := util.AlignDays(start, end)
	return cache.GenerateKeyWithParams("bars", util.NormalizeTicker(ticker), from.Format(time.DateOnly), to.Format(time.DateOnly))
}

func (p *CachedProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	key := BarsKey(ticker, start, end)
	var series models.PriceSeries
	if err := p.cache.Get(ctx, key, &series); err == nil && len(series.Bars) > 0 {
		p.l.Debug("bars cache hit", applogger.String("key", key))
		return series, nil
	}
	series, err := p.next.Fetch(ctx, ticker, start, end)
	if err != nil {
		return series, err
	}
	if len(series.Bars) > 0 && p.ttl > 0 {
		if err := p.cache.Set(ctx, key, series, p.ttl); err != nil {
			p.l.Warn("bars cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	return series, nil
}

// LastPrice delegates to the wrapped provider when it can quote; quotes are never cached.
func (p *CachedProvider) LastPrice(ctx context.Context, ticker string) (float64, error) {
	if q, ok := p.next.(domrepo.QuoteProvider); ok {
		return q.LastPrice(ctx, ticker)
	}
	return 0, ErrNoQuotes
}

var (
	_ domrepo.PriceProvider = (*CachedProvider)(nil)
	_ domrepo.QuoteProvider = (*CachedProvider)(nil)
)

package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/piquette/finance-go/chart"
	"github.com/piquette/finance-go/datetime"
	"github.com/piquette/finance-go/quote"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// YahooProvider fetches daily bars and quotes from Yahoo Finance.
type YahooProvider struct {
	retry util.RetryConfig
	l     *applogger.Logger
}

func NewYahooProvider(retry util.RetryConfig) *YahooProvider {
	return &YahooProvider{retry: retry}
}

// SetLogger injects a structured logger.
func (p *YahooProvider) SetLogger(l *applogger.Logger) { p.l = l }

func (p *YahooProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	from, to := util.AlignDays(start, end)
	begin := time.Now()

	var bars []models.Bar
	err := util.Retry(ctx, p.retry, func() error {
		iter := chart.Get(&chart.Params{
			Symbol:   ticker,
			Start:    datetime.New(&from),
			End:      datetime.New(&to),
			Interval: datetime.OneDay,
		})
		bars = bars[:0]
		for iter.Next() {
			b := iter.Bar()
			bar := models.Bar{
				Date:   util.StartOfDay(time.Unix(int64(b.Timestamp), 0)),
				Open:   b.Open.InexactFloat64(),
				High:   b.High.InexactFloat64(),
				Low:    b.Low.InexactFloat64(),
				Close:  b.Close.InexactFloat64(),
				Volume: float64(b.Volume),
			}
			if bar.Close <= 0 || bar.Date.Before(from) || bar.Date.After(to) {
				continue
			}
			if n := len(bars); n > 0 && !bar.Date.After(bars[n-1].Date) {
				bars[n-1] = bar
				continue
			}
			bars = append(bars, bar)
		}
		if err := iter.Err(); err != nil {
			if strings.Contains(strings.ToLower(err.Error()), "not found") {
				return &util.Permanent{Err: err}
			}
			return err
		}
		return nil
	})
	if err != nil {
		p.l.Error("yahoo chart error",
			applogger.String("ticker", ticker),
			applogger.Error(err),
		)
		return models.PriceSeries{}, fmt.Errorf("yahoo chart %s: %w", ticker, err)
	}
	p.l.Debug("yahoo chart ok",
		applogger.String("ticker", ticker),
		applogger.Int("rows", len(bars)),
		applogger.Duration("duration_ms", time.Since(begin)),
	)
	return models.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

func (p *YahooProvider) LastPrice(ctx context.Context, ticker string) (float64, error) {
	ticker = util.NormalizeTicker(ticker)
	var price float64
	err := util.Retry(ctx, p.retry, func() error {
		q, err := quote.Get(ticker)
		if err != nil {
			return err
		}
		if q == nil || q.RegularMarketPrice <= 0 {
			return &util.Permanent{Err: fmt.Errorf("no quote for %s", ticker)}
		}
		price = q.RegularMarketPrice
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("yahoo quote %s: %w", ticker, err)
	}
	return price, nil
}

var (
	_ domrepo.PriceProvider = (*YahooProvider)(nil)
	_ domrepo.QuoteProvider = (*YahooProvider)(nil)
)

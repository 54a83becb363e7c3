package repository

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	domrepo "github.com/arg-foo/zaza-sub000/internal/domain/repository"
	pkghttp "github.com/arg-foo/zaza-sub000/pkg/http"
	applogger "github.com/arg-foo/zaza-sub000/pkg/logger"
	"github.com/arg-foo/zaza-sub000/pkg/util"
)

// HTTPProvider reads daily bars from a JSON time-series service:
//
//	GET {base}/bars?ticker=AAPL&start=2024-01-02&end=2024-12-31
//	{"ticker":"AAPL","bars":[{"date":"2024-01-02","open":..,"high":..,"low":..,"close":..,"volume":..}]}
type HTTPProvider struct {
	client *pkghttp.Client
	retry  util.RetryConfig
	l      *applogger.Logger
}

type httpBar struct {
	Date   string  `json:"date"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"volume"`
}

type httpBarsResponse struct {
	Ticker string    `json:"ticker"`
	Bars   []httpBar `json:"bars"`
}

func NewHTTPProvider(client *pkghttp.Client, retry util.RetryConfig) *HTTPProvider {
	return &HTTPProvider{client: client, retry: retry}
}

// SetLogger injects a structured logger.
func (p *HTTPProvider) SetLogger(l *applogger.Logger) { p.l = l }

func (p *HTTPProvider) Fetch(ctx context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	ticker = util.NormalizeTicker(ticker)
	from, to := util.AlignDays(start, end)
	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("start", from.Format(time.DateOnly))
	q.Set("end", to.Format(time.DateOnly))

	var resp httpBarsResponse
	err := util.Retry(ctx, p.retry, func() error {
		resp = httpBarsResponse{}
		err := p.client.GetJSON(ctx, "bars", q, &resp)
		var se *pkghttp.StatusError
		if errors.As(err, &se) && !se.Temporary() {
			return &util.Permanent{Err: err}
		}
		return err
	})
	if err != nil {
		p.l.Warn("bars service error", applogger.String("ticker", ticker), applogger.Error(err))
		return models.PriceSeries{}, fmt.Errorf("bars service %s: %w", ticker, err)
	}

	byDay := make(map[time.Time]models.Bar, len(resp.Bars))
	for _, b := range resp.Bars {
		day, ok := util.ParseTime(b.Date)
		if !ok || b.Close <= 0 {
			continue
		}
		day = util.StartOfDay(day)
		if day.Before(from) || day.After(to) {
			continue
		}
		byDay[day] = models.Bar{Date: day, Open: b.Open, High: b.High, Low: b.Low, Close: b.Close, Volume: b.Volume}
	}
	bars := make([]models.Bar, 0, len(byDay))
	for _, b := range byDay {
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	return models.PriceSeries{Ticker: ticker, Bars: bars}, nil
}

var _ domrepo.PriceProvider = (*HTTPProvider)(nil)

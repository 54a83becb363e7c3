package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/arg-foo/zaza-sub000/internal/domain/models"
	"github.com/arg-foo/zaza-sub000/pkg/cache"
)

type countingProvider struct {
	calls int
	empty bool
	err   error
}

func (c *countingProvider) Fetch(_ context.Context, ticker string, start, end time.Time) (models.PriceSeries, error) {
	c.calls++
	if c.err != nil {
		return models.PriceSeries{}, c.err
	}
	if c.empty {
		return models.PriceSeries{Ticker: ticker}, nil
	}
	return models.PriceSeries{Ticker: ticker, Bars: []models.Bar{
		{Date: start, Close: 10},
		{Date: start.AddDate(0, 0, 1), Close: 11},
	}}, nil
}

func TestCachedProviderMemoizesWindow(t *testing.T) {
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mem.Close()
	next := &countingProvider{}
	p := NewCachedProvider(next, mem, time.Hour)
	ctx := context.Background()
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 28, 15, 30, 0, 0, time.UTC)

	first, err := p.Fetch(ctx, "aapl", start, end)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	second, err := p.Fetch(ctx, "AAPL", start.Add(3*time.Hour), end)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if next.calls != 1 {
		t.Fatalf("expected one upstream call, got %d", next.calls)
	}
	if len(second.Bars) != 2 || !second.Bars[0].Date.Equal(first.Bars[0].Date) || second.Bars[1].Close != 11 {
		t.Fatalf("cached series differs: %+v", second)
	}
	if _, err := p.Fetch(ctx, "AAPL", start, end.AddDate(0, 0, 1)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if next.calls != 2 {
		t.Fatalf("a different window must miss the cache")
	}
}

func TestCachedProviderSkipsEmptyAndErrors(t *testing.T) {
	mem := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer mem.Close()
	next := &countingProvider{empty: true}
	p := NewCachedProvider(next, mem, time.Hour)
	ctx := context.Background()
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, _ = p.Fetch(ctx, "X", day, day)
	_, _ = p.Fetch(ctx, "X", day, day)
	if next.calls != 2 {
		t.Fatalf("empty series must not be cached")
	}

	next.err = errors.New("down")
	if _, err := p.Fetch(ctx, "Y", day, day); err == nil {
		t.Fatalf("expected upstream error")
	}
	if _, err := p.LastPrice(ctx, "Y"); !errors.Is(err, ErrNoQuotes) {
		t.Fatalf("expected ErrNoQuotes, got %v", err)
	}
}

func TestBarsKey(t *testing.T) {
	a := BarsKey(" msft", time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), time.Date(2024, 2, 1, 23, 0, 0, 0, time.UTC))
	if a != "bars:MSFT:2024-01-02:2024-02-01" {
		t.Fatalf("unexpected key %s", a)
	}
}

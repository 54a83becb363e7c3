package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type point struct {
	Day   string  `json:"day"`
	Close float64 `json:"close"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()
	ctx := context.Background()
	in := []point{{"2024-01-02", 101.5}, {"2024-01-03", 99}}
	if err := c.Set(ctx, "bars", in, time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var out []point
	if err := c.Get(ctx, "bars", &out); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(out) != 2 || out[0] != in[0] {
		t.Fatalf("unexpected value %+v", out)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()
	_ = c.Set(ctx, "k", "v", time.Second)
	now = now.Add(2 * time.Second)
	var s string
	if err := c.Get(ctx, "k", &s); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected miss after expiry, got %v", err)
	}
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewMemoryCache(WithMemoryMaxSize(2), WithMemoryCleanup(0))
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { now = now.Add(time.Second); return now }
	ctx := context.Background()
	_ = c.Set(ctx, "a", 1, time.Hour)
	_ = c.Set(ctx, "b", 2, time.Hour)
	var v int
	_ = c.Get(ctx, "a", &v)
	_ = c.Set(ctx, "c", 3, time.Hour)
	if err := c.Get(ctx, "b", &v); !errors.Is(err, ErrCacheMiss) {
		t.Fatalf("expected b to be evicted")
	}
	if err := c.Get(ctx, "a", &v); err != nil || v != 1 {
		t.Fatalf("expected a to survive, got %v %v", v, err)
	}
}

func TestMemoryCacheLock(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()
	ctx := context.Background()
	ok, _ := c.TryLock(ctx, "job", time.Minute)
	if !ok {
		t.Fatalf("first lock should succeed")
	}
	if ok, _ := c.TryLock(ctx, "job", time.Minute); ok {
		t.Fatalf("second lock should fail")
	}
	_ = c.Unlock(ctx, "job")
	if ok, _ := c.TryLock(ctx, "job", time.Minute); !ok {
		t.Fatalf("lock should be free after unlock")
	}
}

func TestGetOrLoad(t *testing.T) {
	c := NewMemoryCache(WithMemoryCleanup(0))
	defer c.Close()
	calls := 0
	load := func(context.Context) (point, error) {
		calls++
		return point{"2024-01-02", 10}, nil
	}
	for i := 0; i < 3; i++ {
		p, err := GetOrLoad(context.Background(), c, "p", time.Minute, load)
		if err != nil || p.Close != 10 {
			t.Fatalf("unexpected %+v %v", p, err)
		}
	}
	if calls != 1 {
		t.Fatalf("loader called %d times, want 1", calls)
	}
}

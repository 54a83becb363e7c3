package logger

import (
	"context"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestCollectorAggregatesAndFlushesOnClose(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{Service: "quant", TimeInterval: time.Hour, Topic: "quant.logs", Publisher: pub})
	fields := map[string]interface{}{"ticker": "AAPL"}
	c.AddLog("error", "fetch failed", fields, "internal/x.go:1")
	c.AddLog("error", "fetch failed", fields, "internal/x.go:1")
	c.AddLog("error", "other", nil, "internal/y.go:2")
	c.AddLog("warn", "ignored", nil, "internal/z.go:3")
	c.AddLog("info", "ignored", nil, "internal/z.go:4")
	if c.Pending() != 2 {
		t.Fatalf("pending = %d, want 2", c.Pending())
	}
	c.Close()
	c.Close()

	if len(pub.batches) != 1 || pub.topic != "quant.logs" {
		t.Fatalf("expected one batch on quant.logs, got %d on %q", len(pub.batches), pub.topic)
	}
	batch := pub.batches[0]
	if len(batch) != 2 || batch[0].Count != 2 || batch[0].Message != "fetch failed" || batch[0].Service != "quant" {
		t.Fatalf("unexpected batch %+v", batch)
	}
}

func TestCollectorWarningsOptIn(t *testing.T) {
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, IncludeWarnings: true})
	defer c.Close()
	c.AddLog("warn", "slow", nil, "a")
	if c.Pending() != 1 {
		t.Fatalf("warning not collected")
	}
}

func TestLoggerFeedsCollector(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "t", Publisher: pub})
	l.Error("boom", String("k", "v"))
	l.Info("not collected")
	l.RemoveCollector()
	if len(pub.batches) != 1 || pub.batches[0][0].Fields["k"] != "v" {
		t.Fatalf("error log not shipped: %+v", pub.batches)
	}
}

func TestChildLoggerSeesLaterCollector(t *testing.T) {
	pub := &capturePublisher{}
	root := Nop()
	child := root.With(String("component", "ledger"))
	root.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "t", Publisher: pub})
	child.Error("score failed")
	root.RemoveCollector()
	child.Error("after removal")
	if len(pub.batches) != 1 || len(pub.batches[0]) != 1 || pub.batches[0][0].Message != "score failed" {
		t.Fatalf("child error not shipped: %+v", pub.batches)
	}
}

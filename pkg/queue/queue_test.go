package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"
)

type scorePayload struct {
	Ticker string `json:"ticker"`
}

func TestInlineQueueDispatches(t *testing.T) {
	q := NewInlineQueue()
	var got scorePayload
	q.RegisterJob(JobFunc{Name: "ledger.score", Fn: func(_ context.Context, p json.RawMessage) error {
		v, err := Decode[scorePayload](p)
		got = v
		return err
	}})
	if err := q.Enqueue(context.Background(), "ledger.score", scorePayload{Ticker: "AAPL"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if got.Ticker != "AAPL" {
		t.Fatalf("payload not delivered: %+v", got)
	}
	if err := q.Enqueue(context.Background(), "unknown", nil); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
}

func TestInlineQueuePropagatesJobError(t *testing.T) {
	q := NewInlineQueue()
	boom := errors.New("boom")
	q.RegisterJob(JobFunc{Name: "x", Fn: func(context.Context, json.RawMessage) error { return boom }})
	if err := q.Enqueue(context.Background(), "x", nil); !errors.Is(err, boom) {
		t.Fatalf("expected job error, got %v", err)
	}
}

func TestDecodeEmptyPayload(t *testing.T) {
	v, err := Decode[scorePayload](nil)
	if err != nil || v.Ticker != "" {
		t.Fatalf("unexpected %+v %v", v, err)
	}
	if _, err := Decode[scorePayload](json.RawMessage(`{bad`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRedisQueueRetryDelayDoubles(t *testing.T) {
	q := NewRedisQueue(nil, &QueueConfig{RetryDelay: time.Second}, nil, WithKeyPrefix("test"))
	want := map[int]time.Duration{
		0:  time.Second,
		1:  time.Second,
		2:  2 * time.Second,
		4:  8 * time.Second,
		6:  32 * time.Second,
		20: 32 * time.Second,
	}
	for attempts, d := range want {
		if got := q.retryDelay(attempts); got != d {
			t.Errorf("retryDelay(%d) = %v, want %v", attempts, got, d)
		}
	}
	if q.key("pending") != "test:pending" {
		t.Errorf("unexpected key %s", q.key("pending"))
	}
	if q.cfg.Workers != 1 {
		t.Errorf("workers should default to 1, got %d", q.cfg.Workers)
	}
}

func TestRedisQueueRejectsUnknownType(t *testing.T) {
	q := NewRedisQueue(nil, nil, nil)
	if err := q.Enqueue(context.Background(), "ledger.score", nil); err == nil {
		t.Fatal("expected error for unregistered type")
	}
}

package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryEventuallySucceeds(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, Multiplier: 2}, func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Fatalf("expected success on third call, got calls=%d err=%v", calls, err)
	}
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	sentinel := errors.New("not found")
	err := Retry(context.Background(), RetryConfig{MaxRetries: 5, BaseDelay: time.Millisecond}, func() error {
		calls++
		return &Permanent{Err: sentinel}
	})
	if !errors.Is(err, sentinel) || calls != 1 {
		t.Fatalf("expected one call and the permanent error, got calls=%d err=%v", calls, err)
	}
}

func TestRetryExhausted(t *testing.T) {
	err := Retry(context.Background(), RetryConfig{MaxRetries: 1, BaseDelay: time.Millisecond}, func() error {
		return errors.New("boom")
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

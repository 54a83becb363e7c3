package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestClientGetJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-API-Key") != "k" || r.Header.Get("Accept") != "application/json" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.URL.Path != "/v1/bars" || r.URL.Query().Get("ticker") != "AAPL" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"ticker":"AAPL"}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL+"/v1/"), WithHeader("X-API-Key", "k"), WithHeader("X-Empty", ""))
	var out struct{ Ticker string }
	if err := c.GetJSON(context.Background(), "/bars", url.Values{"ticker": {"AAPL"}}, &out); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if out.Ticker != "AAPL" {
		t.Fatalf("unexpected body %+v", out)
	}
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := NewClient(WithBaseURL(srv.URL)).GetJSON(context.Background(), "bars", nil, nil)
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusTooManyRequests || se.Body != "slow down" {
		t.Fatalf("unexpected error %v", err)
	}
	if !se.Temporary() {
		t.Fatal("429 should be temporary")
	}
	if (&StatusError{Code: http.StatusNotFound}).Temporary() {
		t.Fatal("404 should not be temporary")
	}
}

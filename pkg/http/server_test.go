package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

type panicHandler struct{}

func (panicHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/boom", func(echo.Context) error { panic("boom") })
	e.GET("/conflict", func(c echo.Context) error {
		return AppErrorResponse(c, ConflictError("already logged"))
	})
}

func serve(s *Server, method, target string, header http.Header) (*httptest.ResponseRecorder, APIResponse) {
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Echo().ServeHTTP(rec, req)
	var env APIResponse
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestServerEnvelopes(t *testing.T) {
	s := NewServer(panicHandler{}, WithMetrics(false))

	if rec, env := serve(s, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK || env.Status != http.StatusOK {
		t.Fatalf("healthz: %d %+v", rec.Code, env)
	}
	if rec, env := serve(s, http.MethodGet, "/nope", nil); rec.Code != http.StatusNotFound || env.Status != http.StatusNotFound {
		t.Fatalf("unknown route: %d %+v", rec.Code, env)
	}
	if rec, env := serve(s, http.MethodGet, "/conflict", nil); rec.Code != http.StatusConflict || env.Message != "Conflict" {
		t.Fatalf("conflict: %d %+v", rec.Code, env)
	}
	if rec, _ := serve(s, http.MethodGet, "/boom", nil); rec.Code != http.StatusInternalServerError {
		t.Fatalf("panic: %d", rec.Code)
	}
}

func TestServerCORSPreflight(t *testing.T) {
	s := NewServer(nil, WithMetrics(false))
	rec, _ := serve(s, http.MethodOptions, "/healthz", http.Header{"Origin": {"http://localhost:3000"}})
	if rec.Code != http.StatusNoContent || rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "http://localhost:3000" {
		t.Fatalf("preflight: %d %v", rec.Code, rec.Header())
	}

	off := NewServer(nil, WithMetrics(false), WithCORS(false))
	rec, _ = serve(off, http.MethodGet, "/healthz", http.Header{"Origin": {"http://localhost:3000"}})
	if rec.Header().Get(echo.HeaderAccessControlAllowOrigin) != "" {
		t.Fatal("CORS headers set while disabled")
	}
}

func TestServerStartStop(t *testing.T) {
	s := NewServer(nil, WithHost("127.0.0.1"), WithPort(0), WithMetrics(false))
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status %d", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}

package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-push-dispatch/internal/application/dispatch"
	"github.com/go-push-dispatch/internal/config"
	"github.com/stretchr/testify/assert"
)

type stubService struct{ batches int }

func (s *stubService) Broadcast(context.Context, string, dispatch.BroadcastRequest) (*dispatch.BroadcastResult, error) {
	return &dispatch.BroadcastResult{Success: true, Errors: []string{}}, nil
}

func (s *stubService) RunBatch(context.Context) (*dispatch.BatchResult, error) {
	s.batches++
	return &dispatch.BatchResult{Success: true}, nil
}

type openGuard struct{}

func (openGuard) Authorize(context.Context, string) (string, error) { return "", nil }

func testRouter(svc *stubService) http.Handler {
	cfg := &config.Config{AllowedOrigins: []string{"*"}}
	cfg.Dispatch.RateLimitPerSec = 100
	cfg.Dispatch.InvocationTimeout = time.Minute
	return NewRouter(cfg, &Deps{Dispatch: svc, Guard: openGuard{}, Logger: slog.New(slog.DiscardHandler)})
}

func TestRouter_HealthCheck(t *testing.T) {
	h := testRouter(&stubService{})

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pong")

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/other", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRouter_DispatchRoute(t *testing.T) {
	svc := &stubService{}
	h := testRouter(svc)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/v1/notifications/dispatch", bytes.NewBufferString(`{"mode":"batch"}`)))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, svc.batches)

	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/notifications/dispatch", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-push-dispatch/internal/application/dispatch"
	"github.com/go-push-dispatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockDispatchSvc struct{ mock.Mock }

func (m *mockDispatchSvc) Broadcast(ctx context.Context, callerID string, req dispatch.BroadcastRequest) (*dispatch.BroadcastResult, error) {
	args := m.Called(ctx, callerID, req)
	if res, _ := args.Get(0).(*dispatch.BroadcastResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDispatchSvc) RunBatch(ctx context.Context) (*dispatch.BatchResult, error) {
	args := m.Called(ctx)
	if res, _ := args.Get(0).(*dispatch.BatchResult); res != nil {
		return res, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockGuard struct{ mock.Mock }

func (m *mockGuard) Authorize(ctx context.Context, authHeader string) (string, error) {
	args := m.Called(ctx, authHeader)
	return args.String(0), args.Error(1)
}

// --- helpers ---

func serve(t *testing.T, svc *mockDispatchSvc, guard *mockGuard, body string, header string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewDispatchHandler(svc, guard, time.Minute, slog.New(slog.DiscardHandler))
	req := httptest.NewRequest(http.MethodPost, "/v1/notifications/dispatch", bytes.NewBufferString(body))
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	h.Dispatch(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	return env.Error
}

const broadcastBody = `{"mode":"admin_broadcast","recipients":["u1","u2"],"title":"Hi","message":"There","screen":"inbox"}`

// --- tests ---

func TestDispatch_MalformedBody(t *testing.T) {
	rr := serve(t, &mockDispatchSvc{}, &mockGuard{}, `{"mode":`, "")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid request body", decodeError(t, rr))
}

func TestDispatch_UnknownMode(t *testing.T) {
	for _, body := range []string{`{"mode":"purge"}`, `{}`} {
		rr := serve(t, &mockDispatchSvc{}, &mockGuard{}, body, "")
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)
	}
}

func TestDispatch_Batch(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("RunBatch", mock.Anything).Return(&dispatch.BatchResult{Success: true, Message: "No pending notifications", RunID: "r1"}, nil)
	guard := &mockGuard{}

	rr := serve(t, svc, guard, `{"mode":"batch"}`, "")
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, true, got["success"])
	assert.Equal(t, "No pending notifications", got["message"])
	assert.Equal(t, float64(0), got["total"])
	assert.Equal(t, float64(0), got["errors"])
	guard.AssertNotCalled(t, "Authorize", mock.Anything, mock.Anything)
}

func TestDispatch_BatchConflict(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("RunBatch", mock.Anything).Return(nil, fmt.Errorf("batch run already in progress: %w", domain.ErrConflict))

	rr := serve(t, svc, &mockGuard{}, `{"mode":"batch"}`, "")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestDispatch_BatchFatal(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("RunBatch", mock.Anything).Return(nil, errors.New("fetch pending notifications: throttled"))

	var logs bytes.Buffer
	h := NewDispatchHandler(svc, &mockGuard{}, time.Minute, slog.New(slog.NewJSONHandler(&logs, nil)))
	rr := httptest.NewRecorder()
	h.Dispatch(rr, httptest.NewRequest(http.MethodPost, "/v1/notifications/dispatch", bytes.NewBufferString(`{"mode":"batch"}`)))

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	msg := decodeError(t, rr)
	assert.Equal(t, "internal server error", msg)
	assert.NotContains(t, msg, "throttled")
	assert.Contains(t, logs.String(), `"level":"ERROR"`)
	assert.Contains(t, logs.String(), "fetch pending notifications: throttled")
}

func TestDispatch_Broadcast(t *testing.T) {
	svc := &mockDispatchSvc{}
	guard := &mockGuard{}
	guard.On("Authorize", mock.Anything, "Bearer tok").Return("admin-1", nil)
	svc.On("Broadcast", mock.Anything, "admin-1", mock.MatchedBy(func(req dispatch.BroadcastRequest) bool {
		return len(req.Recipients) == 2 && req.Title == "Hi" && req.Screen == "inbox"
	})).Return(&dispatch.BroadcastResult{Success: true, TotalRecipients: 2, Errors: []string{}}, nil)

	rr := serve(t, svc, guard, broadcastBody, "Bearer tok")
	require.Equal(t, http.StatusOK, rr.Code)

	var got map[string]any
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&got))
	assert.Equal(t, float64(2), got["totalRecipients"])
	assert.Equal(t, []any{}, got["errors"])
	svc.AssertExpectations(t)
}

func TestDispatch_BroadcastAuthFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"unauthorized", fmt.Errorf("bad token: %w", domain.ErrUnauthorized), http.StatusUnauthorized},
		{"forbidden", fmt.Errorf("admin role required: %w", domain.ErrForbidden), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockDispatchSvc{}
			guard := &mockGuard{}
			guard.On("Authorize", mock.Anything, "").Return("", tc.err)

			rr := serve(t, svc, guard, broadcastBody, "")
			assert.Equal(t, tc.want, rr.Code)
			svc.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestDispatch_BroadcastValidation(t *testing.T) {
	bodies := []string{
		`{"mode":"admin_broadcast","title":"Hi","message":"There"}`,
		`{"mode":"admin_broadcast","recipients":[],"title":"Hi","message":"There"}`,
		`{"mode":"admin_broadcast","recipients":[""],"title":"Hi","message":"There"}`,
		`{"mode":"admin_broadcast","recipients":["u1"],"message":"There"}`,
		`{"mode":"admin_broadcast","recipients":["u1"],"title":"Hi"}`,
	}
	for _, body := range bodies {
		svc := &mockDispatchSvc{}
		guard := &mockGuard{}
		guard.On("Authorize", mock.Anything, "Bearer tok").Return("admin-1", nil)

		rr := serve(t, svc, guard, body, "Bearer tok")
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code, body)
		svc.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
	}
}

func TestDispatch_RunSurvivesClientCancel(t *testing.T) {
	svc := &mockDispatchSvc{}
	svc.On("RunBatch", mock.MatchedBy(func(ctx context.Context) bool {
		_, hasDeadline := ctx.Deadline()
		return ctx.Err() == nil && hasDeadline
	})).Return(&dispatch.BatchResult{Success: true}, nil)

	h := NewDispatchHandler(svc, &mockGuard{}, time.Minute, slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(`{"mode":"batch"}`)).WithContext(ctx)
	rr := httptest.NewRecorder()
	h.Dispatch(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

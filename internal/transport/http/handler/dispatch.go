package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-push-dispatch/internal/application/access"
	"github.com/go-push-dispatch/internal/application/dispatch"
	"github.com/go-push-dispatch/internal/domain"
	"github.com/go-push-dispatch/internal/pkg/validate"
)

// maxBodyBytes bounds the request body. A broadcast body is mostly the
// recipient list.
const maxBodyBytes = 4 << 20

type dispatchRequest struct {
	Mode string `json:"mode"`
	dispatch.BroadcastRequest
}

// DispatchHandler routes an invocation to broadcast or batch mode.
type DispatchHandler struct {
	svc     dispatch.Service
	guard   access.Guard
	timeout time.Duration
	logger  *slog.Logger
}

// NewDispatchHandler builds the handler. Each run gets its own deadline of
// timeout and survives a client disconnect.
func NewDispatchHandler(svc dispatch.Service, guard access.Guard, timeout time.Duration, logger *slog.Logger) *DispatchHandler {
	return &DispatchHandler{svc: svc, guard: guard, timeout: timeout, logger: logger.With("component", "dispatch_handler")}
}

func (h *DispatchHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	var req dispatchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	switch req.Mode {
	case domain.ModeAdminBroadcast:
		h.broadcast(w, r, req.BroadcastRequest)
	case domain.ModeBatch:
		h.batch(w, r)
	default:
		writeError(w, http.StatusBadRequest, `mode must be "admin_broadcast" or "batch"`)
	}
}

func (h *DispatchHandler) broadcast(w http.ResponseWriter, r *http.Request, req dispatch.BroadcastRequest) {
	callerID, err := h.guard.Authorize(r.Context(), r.Header.Get("Authorization"))
	if err != nil {
		h.logger.Info("broadcast rejected", "request_id", chimiddleware.GetReqID(r.Context()), "err", err)
		httpError(w, h.logger, err)
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	ctx, cancel := h.runContext(r)
	defer cancel()
	res, err := h.svc.Broadcast(ctx, callerID, req)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *DispatchHandler) batch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.runContext(r)
	defer cancel()
	res, err := h.svc.RunBatch(ctx)
	if err != nil {
		httpError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// runContext detaches the run from the request so claimed rows are always
// delivered and recorded.
func (h *DispatchHandler) runContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(r.Context()), h.timeout)
}

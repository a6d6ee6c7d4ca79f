package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-push-dispatch/internal/domain"
)

// httpError maps a service error to a status code and writes it. Unmapped
// errors are logged and answered with a generic message.
func httpError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	default:
		logger.Error("dispatch failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

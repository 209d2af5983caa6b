package api

import (
	"errors"
	"net/http"

	"github.com/sketchduel/backend/internal/classifier"
	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

// statusFor maps a domain error to an HTTP status code
func statusFor(err error) int {
	var rejected *classifier.RejectedError
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrInvalidState), errors.Is(err, game.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrUnavailable), errors.Is(err, storage.ErrUnavailable):
		return http.StatusServiceUnavailable
	case errors.As(err, &rejected):
		return http.StatusBadRequest
	case errors.Is(err, classifier.ErrNotConfigured), errors.Is(err, classifier.ErrUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// fail logs err and writes the mapped error response
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, action string, err error) {
	status := statusFor(err)
	fields := []logger.Field{
		logger.F("action", action),
		logger.Err(err),
		logger.F("request_id", GetRequestID(r.Context())),
	}
	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed", fields...)
	} else {
		h.logger.Debug("Request rejected", fields...)
	}

	message := err.Error()
	var gerr *game.Error
	if errors.As(err, &gerr) {
		message = gerr.Message
	}
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	h.respondError(w, status, "failed to "+action, message)
}

// badRequest answers a body that failed decoding or validation
func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	h.respondError(w, http.StatusBadRequest, "invalid request body", err.Error())
}

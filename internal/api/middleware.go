package api

import (
	"context"
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/pkg/logger"
)

// RequestIDKey is the context key for request ID
type RequestIDKey struct{}

type modeKey struct{}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		w.Header().Set("X-Request-ID", requestID)

		ctx := context.WithValue(r.Context(), RequestIDKey{}, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// LoggingMiddleware logs HTTP requests and records request metrics by route pattern
func LoggingMiddleware(log *logger.Logger, m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Wrap response writer to capture status code
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			duration := time.Since(start)
			requestID := GetRequestID(r.Context())

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			m.HTTPRequest(r.Method, route, strconv.Itoa(ww.Status()), duration)

			log.Info("HTTP request",
				logger.F("method", r.Method),
				logger.F("path", r.URL.Path),
				logger.F("status", fmt.Sprintf("%d", ww.Status())),
				logger.F("duration_ms", fmt.Sprintf("%d", duration.Milliseconds())),
				logger.F("request_id", requestID),
			)
		})
	}
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey{}).(string); ok {
		return id
	}
	return ""
}

// modeContext validates the {mode} URL segment and stores it in the context
func modeContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mode := models.Mode(chi.URLParam(r, "mode"))
		if !mode.Valid() {
			writeError(w, http.StatusNotFound, "unknown game mode", string(mode))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), modeKey{}, mode)))
	})
}

func modeFrom(ctx context.Context) models.Mode {
	mode, _ := ctx.Value(modeKey{}).(models.Mode)
	return mode
}

// AdminAuth requires "Authorization: Bearer <key>". With no key configured
// every admin request is refused with 503.
func AdminAuth(key string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusServiceUnavailable, "admin API not configured", "")
				return
			}

			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, http.StatusUnauthorized, "missing bearer token", "")
				return
			}
			if subtle.ConstantTimeCompare([]byte(token), []byte(key)) != 1 {
				log.Warn("Rejected admin request",
					logger.F("path", r.URL.Path),
					logger.F("request_id", GetRequestID(r.Context())),
				)
				writeError(w, http.StatusForbidden, "invalid admin token", "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, errorMsg, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(models.ErrorResponse{Error: errorMsg, Message: message})
}

package ratelimit

import (
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"

	"github.com/sketchduel/backend/pkg/logger"
)

// rejection is the 429 body
type rejection struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

// Middleware applies the limiter per client address. Mount it after
// chi's RealIP so proxied requests are keyed by the forwarded address.
func (l *Limiter) Middleware(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if l.Exempt(path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ClientIP(r)
			d := l.Allow(ip, path)
			retry := d.RetryAfterSeconds()

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.Itoa(retry))

			if !d.Allowed {
				log.Warn("Rate limit exceeded",
					logger.F("ip", ip),
					logger.F("path", path),
					logger.F("rule", d.Rule),
				)
				w.Header().Set("Retry-After", strconv.Itoa(retry))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(rejection{
					Error:      "Rate limit exceeded",
					Message:    fmt.Sprintf("Maximum %d requests per %d seconds", d.Limit, int(d.Window.Seconds())),
					RetryAfter: retry,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the request's client address without the port.
// X-Forwarded-For is honoured when RealIP has not already applied it.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

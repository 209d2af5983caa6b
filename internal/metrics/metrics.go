// Package metrics holds the service's Prometheus collectors.
//
// Collectors are registered on an injected registry instead of the global one so
// tests and multiple engines in one process never share counters. A nil *Metrics
// is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "sketchduel"

// Metrics is the set of collectors used across the service
type Metrics struct {
	registry *prometheus.Registry

	GamesCreated      *prometheus.CounterVec
	GamesFinished     *prometheus.CounterVec
	RoundsCompleted   *prometheus.CounterVec
	PredictionsTotal  *prometheus.CounterVec
	ConflictRetries   prometheus.Counter
	RateLimited       *prometheus.CounterVec
	RateLimitTracked  prometheus.Gauge
	PresencePurged    prometheus.Counter
	CleanupDeleted    *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec
	ClassifierLatency prometheus.Histogram
}

// New registers every collector on reg. A nil reg creates a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		GamesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_created_total",
			Help:      "Game sessions created, by mode",
		}, []string{"mode"}),

		GamesFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Game sessions finished, by mode and outcome",
		}, []string{"mode", "outcome"}),

		RoundsCompleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_completed_total",
			Help:      "Rounds completed, by mode and reason",
		}, []string{"mode", "reason"}),

		PredictionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ai_predictions_total",
			Help:      "AI predictions received, by whether they were accepted",
		}, []string{"result"}),

		ConflictRetries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_conflict_retries_total",
			Help:      "Optimistic-lock retries on session updates",
		}),

		RateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the rate limiter, by rule",
		}, []string{"rule"}),

		RateLimitTracked: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_tracked_clients",
			Help:      "Client addresses currently tracked by the rate limiter",
		}),

		PresencePurged: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "presence_stale_purged_total",
			Help:      "Presence records purged as stale",
		}),

		CleanupDeleted: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanup_sessions_deleted_total",
			Help:      "Sessions deleted by cleanup, by trigger",
		}, []string{"trigger"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status",
		}, []string{"method", "route", "status"}),

		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method", "route"}),

		ClassifierLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "classifier_request_duration_seconds",
			Help:      "Latency of calls to the drawing classifier",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GameCreated records a new session
func (m *Metrics) GameCreated(mode string) {
	if m == nil {
		return
	}
	m.GamesCreated.WithLabelValues(mode).Inc()
}

// GameFinished records a terminal transition
func (m *Metrics) GameFinished(mode, outcome string) {
	if m == nil {
		return
	}
	m.GamesFinished.WithLabelValues(mode, outcome).Inc()
}

// RoundCompleted records a finished round
func (m *Metrics) RoundCompleted(mode, reason string) {
	if m == nil {
		return
	}
	m.RoundsCompleted.WithLabelValues(mode, reason).Inc()
}

// Prediction records an AI prediction; result is accepted or stale
func (m *Metrics) Prediction(result string) {
	if m == nil {
		return
	}
	m.PredictionsTotal.WithLabelValues(result).Inc()
}

// ConflictRetry records a version-conflict retry
func (m *Metrics) ConflictRetry() {
	if m == nil {
		return
	}
	m.ConflictRetries.Inc()
}

// RateLimitRejected records a 429
func (m *Metrics) RateLimitRejected(rule string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(rule).Inc()
}

// RateLimitClients sets the number of tracked client addresses
func (m *Metrics) RateLimitClients(n int) {
	if m == nil {
		return
	}
	m.RateLimitTracked.Set(float64(n))
}

// PresenceStalePurged records purged presence records
func (m *Metrics) PresenceStalePurged(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PresencePurged.Add(float64(n))
}

// SessionsDeleted records sessions removed by cleanup
func (m *Metrics) SessionsDeleted(trigger string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CleanupDeleted.WithLabelValues(trigger).Add(float64(n))
}

// HTTPRequest records one served request
func (m *Metrics) HTTPRequest(method, route, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, status).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// ClassifierCall records classifier latency
func (m *Metrics) ClassifierCall(d time.Duration) {
	if m == nil {
		return
	}
	m.ClassifierLatency.Observe(d.Seconds())
}

package ratelimit

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/pkg/logger"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newLimiter(cfg Config) (*Limiter, *clock, *metrics.Metrics) {
	c := &clock{t: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)}
	m := metrics.New(nil)
	return New(cfg, WithClock(c.Now), WithMetrics(m)), c, m
}

func TestLimiter_WindowAndRecovery(t *testing.T) {
	l, c, m := newLimiter(DefaultConfig())

	for i := 0; i < 10; i++ {
		d := l.Allow("1.1.1.1", "/predict")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 9-i, d.Remaining)
		c.Advance(time.Second)
	}

	d := l.Allow("1.1.1.1", "/predict")
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.Equal(t, 50*time.Second, d.Reset)
	assert.Equal(t, 50, d.RetryAfterSeconds())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimited.WithLabelValues("/predict")))

	// another client is unaffected
	assert.True(t, l.Allow("2.2.2.2", "/predict").Allowed)

	// first request leaves the window after 60s
	c.Advance(50 * time.Second)
	assert.True(t, l.Allow("1.1.1.1", "/predict").Allowed)
	assert.False(t, l.Allow("1.1.1.1", "/predict").Allowed)
}

func TestLimiter_RuleMatching(t *testing.T) {
	l, _, _ := newLimiter(DefaultConfig())

	tests := []struct {
		path   string
		rule   string
		bucket string
		limit  int
	}{
		{"/predict", "/predict", "/predict", 10},
		{"/admin/cleanup/abandoned-games", "/admin*", "/admin*", 5},
		{"/admin", "/admin*", "/admin*", 5},
		{"/games/race/create", "default", "/games/race/create", 30},
		{"/predictions", "default", "/predictions", 30},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			r, bucket := l.rule(tt.path)
			assert.Equal(t, tt.rule, r.Pattern)
			assert.Equal(t, tt.bucket, bucket)
			assert.Equal(t, tt.limit, r.Limit)
		})
	}
}

func TestLimiter_LongestPrefixWins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = append(cfg.Rules, Rule{Pattern: "/admin/cleanup*", Limit: 2, Window: time.Minute})
	l, _, _ := newLimiter(cfg)

	r, _ := l.rule("/admin/cleanup/sync-presence/g1")
	assert.Equal(t, "/admin/cleanup*", r.Pattern)
	r, _ = l.rule("/admin/games/g1")
	assert.Equal(t, "/admin*", r.Pattern)
}

func TestLimiter_AdminRoutesShareBucket(t *testing.T) {
	l, _, _ := newLimiter(DefaultConfig())

	for i := 0; i < 5; i++ {
		require.True(t, l.Allow("ip", fmt.Sprintf("/admin/games/g%d", i)).Allowed)
	}
	assert.False(t, l.Allow("ip", "/admin/cleanup/abandoned-games").Allowed)

	// default routes count per path
	for i := 0; i < 30; i++ {
		require.True(t, l.Allow("ip", "/games/race/lobby/list").Allowed)
	}
	assert.False(t, l.Allow("ip", "/games/race/lobby/list").Allowed)
	assert.True(t, l.Allow("ip", "/games/guessing/lobby/list").Allowed)
}

func TestLimiter_Eviction(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTracked = 3
	l, c, m := newLimiter(cfg)

	l.Allow("a", "/x")
	l.Allow("b", "/x")
	c.Advance(6 * time.Minute)
	l.Allow("c", "/x")
	assert.Equal(t, 3, l.Tracked())
	assert.Zero(t, l.Evict(), "nothing is evicted at or below the cap")

	// the fourth client pushes past the cap and idle ones go
	l.Allow("d", "/x")
	assert.Equal(t, 2, l.Tracked())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.RateLimitTracked))
}

func TestLimiter_ServeStopsOnCancel(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SweepInterval = time.Millisecond
	l, _, _ := newLimiter(cfg)
	assert.Equal(t, "rate-limit-evictor", l.String())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()
	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("evictor did not stop")
	}
}

func TestMiddleware(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Rules = []Rule{{Pattern: "/predict", Limit: 2, Window: time.Minute}}
	l, _, _ := newLimiter(cfg)

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(l.Middleware(logger.Nop()))
	ok := func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }
	r.Post("/predict", ok)
	r.Get("/health", ok)

	send := func(method, path, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, nil)
		req.Header.Set("X-Forwarded-For", ip+", 10.0.0.1")
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := send("POST", "/predict", "203.0.113.9")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "60", rec.Header().Get("X-RateLimit-Reset"))

	send("POST", "/predict", "203.0.113.9")
	rec = send("POST", "/predict", "203.0.113.9")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	var body rejection
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Rate limit exceeded", body.Error)
	assert.Equal(t, 60, body.RetryAfter)
	assert.Equal(t, "Maximum 2 requests per 60 seconds", body.Message)

	// a different forwarded client has its own window
	assert.Equal(t, http.StatusOK, send("POST", "/predict", "198.51.100.4").Code)

	for i := 0; i < 50; i++ {
		rec := send("GET", "/health", "203.0.113.9")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", ClientIP(req))

	req.Header.Set("X-Forwarded-For", " 203.0.113.5 , 10.0.0.1")
	assert.Equal(t, "203.0.113.5", ClientIP(req))

	req = httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.0.2.7"
	assert.Equal(t, "192.0.2.7", ClientIP(req))
}

// Package ratelimit is a per-client sliding-window request limiter.
package ratelimit

import (
	"context"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sketchduel/backend/internal/metrics"
)

// Rule limits requests whose path matches Pattern. A trailing "*" makes the
// pattern a prefix; otherwise the path must match exactly.
type Rule struct {
	Pattern string
	Limit   int
	Window  time.Duration
}

func (r Rule) matches(path string) bool {
	if prefix, ok := strings.CutSuffix(r.Pattern, "*"); ok {
		return strings.HasPrefix(path, prefix)
	}
	return path == r.Pattern
}

// Config describes the limiter
type Config struct {
	Rules   []Rule
	Default Rule
	// Exempt paths are never limited
	Exempt []string
	// Clients idle longer than IdleTTL are evicted once more than MaxTracked are tracked
	IdleTTL    time.Duration
	MaxTracked int
	// SweepInterval drives the background eviction in Serve
	SweepInterval time.Duration
}

// DefaultConfig protects the prediction proxy and admin routes more tightly
// than the rest of the API
func DefaultConfig() Config {
	return Config{
		Rules: []Rule{
			{Pattern: "/predict", Limit: 10, Window: time.Minute},
			{Pattern: "/admin*", Limit: 5, Window: time.Minute},
		},
		Default:       Rule{Pattern: "default", Limit: 30, Window: time.Minute},
		Exempt:        []string{"/health", "/admin/health", "/metrics"},
		IdleTTL:       5 * time.Minute,
		MaxTracked:    1000,
		SweepInterval: time.Minute,
	}
}

// Decision is the verdict for one request
type Decision struct {
	Allowed   bool
	Rule      string
	Limit     int
	Window    time.Duration
	Remaining int
	// Reset is the time until the oldest counted request leaves the window
	Reset time.Duration
}

// RetryAfterSeconds rounds Reset up to whole seconds, at least one
func (d Decision) RetryAfterSeconds() int {
	s := int(math.Ceil(d.Reset.Seconds()))
	if s < 1 {
		return 1
	}
	return s
}

type entry struct {
	at     time.Time
	bucket string
	window time.Duration
}

type client struct {
	entries  []entry
	lastSeen time.Time
}

// Limiter tracks request timestamps per client address
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	rules   []Rule
	clients map[string]*client
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a Limiter
type Option func(*Limiter)

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithMetrics records rejections and the tracked-client count
func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) { l.metrics = m }
}

// New creates a limiter
func New(cfg Config, opts ...Option) *Limiter {
	rules := append([]Rule(nil), cfg.Rules...)
	// longest pattern first so the most specific rule wins
	sort.SliceStable(rules, func(i, j int) bool {
		return len(strings.TrimSuffix(rules[i].Pattern, "*")) > len(strings.TrimSuffix(rules[j].Pattern, "*"))
	})

	l := &Limiter{
		cfg:     cfg,
		rules:   rules,
		clients: make(map[string]*client),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Exempt reports whether path bypasses limiting
func (l *Limiter) Exempt(path string) bool {
	for _, p := range l.cfg.Exempt {
		if p == path {
			return true
		}
	}
	return false
}

// rule returns the matching rule and the bucket requests are counted in.
// Matched rules share one bucket per pattern; the default counts per path.
func (l *Limiter) rule(path string) (Rule, string) {
	for _, r := range l.rules {
		if r.matches(path) {
			return r, r.Pattern
		}
	}
	return l.cfg.Default, path
}

// Allow decides and, when allowed, records the request
func (l *Limiter) Allow(ip, path string) Decision {
	r, bucket := l.rule(path)
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[ip]
	if !ok {
		c = &client{}
		l.clients[ip] = c
	}
	c.prune(now)

	count := 0
	var oldest time.Time
	for _, e := range c.entries {
		if e.bucket != bucket {
			continue
		}
		if count == 0 {
			oldest = e.at
		}
		count++
	}

	d := Decision{Rule: r.Pattern, Limit: r.Limit, Window: r.Window}
	if count >= r.Limit {
		d.Reset = oldest.Add(r.Window).Sub(now)
		l.metrics.RateLimitRejected(r.Pattern)
		return d
	}

	c.entries = append(c.entries, entry{at: now, bucket: bucket, window: r.Window})
	c.lastSeen = now
	if count == 0 {
		oldest = now
	}

	d.Allowed = true
	d.Remaining = r.Limit - count - 1
	d.Reset = oldest.Add(r.Window).Sub(now)

	if len(l.clients) > l.cfg.MaxTracked {
		l.evictIdleLocked(now)
	}
	return d
}

// Evict drops clients idle longer than IdleTTL when more than MaxTracked are
// tracked and returns how many were dropped
func (l *Limiter) Evict() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.clients) <= l.cfg.MaxTracked {
		l.metrics.RateLimitClients(len(l.clients))
		return 0
	}
	return l.evictIdleLocked(l.now())
}

func (l *Limiter) evictIdleLocked(now time.Time) int {
	cutoff := now.Add(-l.cfg.IdleTTL)
	evicted := 0
	for ip, c := range l.clients {
		if c.lastSeen.Before(cutoff) {
			delete(l.clients, ip)
			evicted++
		}
	}
	l.metrics.RateLimitClients(len(l.clients))
	return evicted
}

// Tracked returns the number of client addresses held in memory
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}

// Serve runs periodic eviction until ctx is cancelled. It implements suture.Service.
func (l *Limiter) Serve(ctx context.Context) error {
	interval := l.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			l.Evict()
		}
	}
}

func (l *Limiter) String() string {
	return "rate-limit-evictor"
}

// prune drops entries that left their window
func (c *client) prune(now time.Time) {
	kept := c.entries[:0]
	for _, e := range c.entries {
		if now.Sub(e.at) < e.window {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

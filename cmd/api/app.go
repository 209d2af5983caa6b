package main

import (
	"fmt"
	"time"

	"github.com/sketchduel/backend/internal/api"
	"github.com/sketchduel/backend/internal/classifier"
	"github.com/sketchduel/backend/internal/cleanup"
	"github.com/sketchduel/backend/internal/config"
	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/ratelimit"
	"github.com/sketchduel/backend/internal/realtime"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/internal/storage/cassandra"
	redisstore "github.com/sketchduel/backend/internal/storage/redis"
	"github.com/sketchduel/backend/pkg/logger"
)

// presenceTTL bounds how long an untouched presence record survives in Redis
const presenceTTL = time.Hour

// app is the wired object graph shared by every subcommand
type app struct {
	cfg        *config.Config
	logger     *logger.Logger
	metrics    *metrics.Metrics
	sessions   storage.SessionRepository
	tracker    *presence.Tracker
	hub        *realtime.Hub
	engine     *game.Engine
	cleanup    *cleanup.Service
	classifier *classifier.Client
	limiter    *ratelimit.Limiter
	closers    []func()
}

func newApp(cfg *config.Config, log *logger.Logger) (*app, error) {
	a := &app{
		cfg:     cfg,
		logger:  log,
		metrics: metrics.New(nil),
	}

	sessions, err := a.openSessions()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.sessions = sessions

	presenceStore, err := a.openPresence()
	if err != nil {
		a.Close()
		return nil, err
	}
	a.tracker = presence.NewTracker(presenceStore, log, presence.WithMetrics(a.metrics))

	a.hub = realtime.NewHub(log)
	opts := []game.Option{
		game.WithMetrics(a.metrics),
		game.WithNotifier(a.hub),
	}
	if len(cfg.Categories) > 0 {
		opts = append(opts, game.WithCategories(cfg.Categories))
	}
	a.engine = game.NewEngine(a.sessions, a.tracker, log, opts...)
	a.cleanup = cleanup.NewService(a.sessions, a.engine, a.tracker, a.metrics, log)
	a.classifier = classifier.NewClient(cfg.Classifier, a.metrics, log)
	a.limiter = ratelimit.New(ratelimit.DefaultConfig(), ratelimit.WithMetrics(a.metrics))
	return a, nil
}

func (a *app) openSessions() (storage.SessionRepository, error) {
	switch a.cfg.Storage.SessionDriver {
	case "cassandra":
		client, err := cassandra.NewClient(a.cfg.Cassandra, a.logger)
		if err != nil {
			return nil, fmt.Errorf("session store: %w", err)
		}
		a.closers = append(a.closers, client.Close)

		repo := cassandra.NewRepository(client, a.logger, a.cfg.Cassandra.Timeout)
		return storage.NewBreakerRepository(repo, storage.DefaultBreakerConfig(), a.logger), nil
	default:
		a.logger.Warn("Using in-memory session storage; sessions are lost on restart")
		return storage.NewMemoryStorage(), nil
	}
}

func (a *app) openPresence() (storage.PresenceStore, error) {
	switch a.cfg.Storage.PresenceDriver {
	case "redis":
		store, err := redisstore.NewPresenceStore(a.cfg.Redis, presenceTTL)
		if err != nil {
			return nil, fmt.Errorf("presence store: %w", err)
		}
		a.closers = append(a.closers, func() { _ = store.Close() })
		a.logger.Info("Connected to Redis", logger.F("addr", a.cfg.Redis.Addr))
		return store, nil
	default:
		return storage.NewMemoryPresence(time.Now), nil
	}
}

func (a *app) handler() *api.Handler {
	return api.NewHandler(api.Deps{
		Engine:         a.engine,
		Presence:       a.tracker,
		Cleanup:        a.cleanup,
		Classifier:     a.classifier,
		Limiter:        a.limiter,
		Hub:            a.hub,
		Metrics:        a.metrics,
		AdminAPIKey:    a.cfg.AdminAPIKey,
		RequestTimeout: a.cfg.RequestTimeout,
	}, a.logger)
}

// Close releases store connections in reverse order
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

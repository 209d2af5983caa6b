package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/sketchduel/backend/internal/classifier"
	"github.com/sketchduel/backend/internal/cleanup"
	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/metrics"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/ratelimit"
	"github.com/sketchduel/backend/internal/realtime"
	"github.com/sketchduel/backend/pkg/logger"
)

// Deps are the collaborators the HTTP layer dispatches to
type Deps struct {
	Engine         *game.Engine
	Presence       *presence.Tracker
	Cleanup        *cleanup.Service
	Classifier     *classifier.Client
	Limiter        *ratelimit.Limiter
	Hub            *realtime.Hub
	Metrics        *metrics.Metrics
	AdminAPIKey    string
	RequestTimeout time.Duration
}

// Handler holds all HTTP handlers
type Handler struct {
	engine         *game.Engine
	presence       *presence.Tracker
	cleanup        *cleanup.Service
	classifier     *classifier.Client
	limiter        *ratelimit.Limiter
	hub            *realtime.Hub
	metrics        *metrics.Metrics
	adminKey       string
	requestTimeout time.Duration
	upgrader       websocket.Upgrader
	logger         *logger.Logger
}

// NewHandler creates a new handler
func NewHandler(deps Deps, log *logger.Logger) *Handler {
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Handler{
		engine:         deps.Engine,
		presence:       deps.Presence,
		cleanup:        deps.Cleanup,
		classifier:     deps.Classifier,
		limiter:        deps.Limiter,
		hub:            deps.Hub,
		metrics:        deps.Metrics,
		adminKey:       deps.AdminAPIKey,
		requestTimeout: timeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: 10 * time.Second,
			CheckOrigin:      func(*http.Request) bool { return true },
		},
		logger: log,
	}
}

// Routes sets up all routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(h.logger, h.metrics))
	r.Use(middleware.Recoverer)
	if h.limiter != nil {
		r.Use(h.limiter.Middleware(h.logger))
	}

	// Health check
	r.Get("/health", h.Health)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(h.requestTimeout))

		r.Post("/predict", h.Predict)

		r.Route("/games", func(r chi.Router) {
			r.Post("/race/submit-drawing", h.SubmitDrawing)

			r.Post("/guessing/submit-guess", h.SubmitGuess)
			r.Post("/guessing/ai-prediction", h.SubmitAIPrediction)
			r.Post("/guessing/chat", h.SendChat)
			r.Post("/guessing/update-canvas", h.UpdateCanvas)

			r.Route("/{mode}", func(r chi.Router) {
				r.Use(modeContext)
				r.Post("/create", h.CreateGame)
				r.Post("/join", h.JoinGame)
				r.Post("/start", h.StartGame)
				r.Post("/timeout", h.Timeout)
				r.Post("/leave", h.LeaveGame)
				r.Get("/lobby/list", h.ListLobbies)
				r.Get("/code/{code}", h.GetByCode)
				r.Get("/{gameID}", h.GetGame)
				r.Get("/{gameID}/ws", h.StreamGame)
			})
		})

		r.Route("/presence", func(r chi.Router) {
			r.Post("/online", h.SetOnline)
			r.Post("/offline", h.SetOffline)
			r.Post("/heartbeat", h.Heartbeat)
			r.Get("/{sessionID}", h.GetPresence)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/health", h.AdminHealth)
			r.Group(func(r chi.Router) {
				r.Use(AdminAuth(h.adminKey, h.logger))
				r.Post("/cleanup/abandoned-games", h.CleanupAbandoned)
				r.Post("/cleanup/sync-presence/{gameID}", h.SyncPresence)
				r.Post("/cleanup/stale-players/{gameID}", h.RemoveStalePlayers)
				r.Delete("/games/{gameID}", h.ForceDelete)
			})
		})
	})

	return r
}

// Health handles health check requests
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":                "ok",
		"classifier_configured": h.classifier != nil && h.classifier.Enabled(),
	})
}

// respondJSON sends a JSON response
func (h *Handler) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func (h *Handler) respondError(w http.ResponseWriter, status int, errorMsg, message string) {
	writeError(w, status, errorMsg, message)
}

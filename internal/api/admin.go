package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sketchduel/backend/internal/cleanup"
	"github.com/sketchduel/backend/pkg/logger"
)

// AdminHealth handles GET /admin/health. No auth.
func (h *Handler) AdminHealth(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":           "healthy",
		"admin_configured": h.adminKey != "",
		"timestamp":        time.Now().UTC().Format(time.RFC3339),
	})
}

// CleanupAbandoned handles POST /admin/cleanup/abandoned-games?max_age_minutes=N
func (h *Handler) CleanupAbandoned(w http.ResponseWriter, r *http.Request) {
	maxAge := cleanup.DefaultMaxAge
	if raw := r.URL.Query().Get("max_age_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			h.respondError(w, http.StatusBadRequest, "invalid max_age_minutes", "must be a positive integer")
			return
		}
		maxAge = time.Duration(minutes) * time.Minute
	}

	res, err := h.cleanup.CleanupAbandonedGames(r.Context(), maxAge)
	if err != nil {
		h.fail(w, r, "clean up abandoned games", err)
		return
	}

	h.logger.Info("Abandoned game cleanup",
		logger.F("deleted", strconv.Itoa(res.DeletedGames)),
		logger.F("request_id", GetRequestID(r.Context())),
	)
	h.respondJSON(w, http.StatusOK, res)
}

// SyncPresence handles POST /admin/cleanup/sync-presence/{gameID}
func (h *Handler) SyncPresence(w http.ResponseWriter, r *http.Request) {
	res, err := h.cleanup.SyncPresence(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.fail(w, r, "sync presence", err)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// RemoveStalePlayers handles POST /admin/cleanup/stale-players/{gameID}
func (h *Handler) RemoveStalePlayers(w http.ResponseWriter, r *http.Request) {
	res, err := h.cleanup.RemoveStalePlayers(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.fail(w, r, "remove stale players", err)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// ForceDelete handles DELETE /admin/games/{gameID}
func (h *Handler) ForceDelete(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	if err := h.cleanup.ForceDelete(r.Context(), gameID); err != nil {
		h.fail(w, r, "delete game", err)
		return
	}

	h.logger.Info("Game force-deleted",
		logger.F("game_id", gameID),
		logger.F("request_id", GetRequestID(r.Context())),
	)
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "game_id": gameID})
}

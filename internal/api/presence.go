package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/pkg/logger"
)

// PresenceResponse lists a session's liveness records
type PresenceResponse struct {
	SessionID     string                  `json:"session_id"`
	Players       []models.PresenceRecord `json:"players"`
	OnlinePlayers []string                `json:"online_players"`
}

// SetOnline handles POST /presence/online
func (h *Handler) SetOnline(w http.ResponseWriter, r *http.Request) {
	h.updatePresence(w, r, "online", func(req PresenceRequest) error {
		return h.presence.SetOnline(r.Context(), req.SessionID, req.PlayerID, req.PlayerName)
	})
}

// SetOffline handles POST /presence/offline
func (h *Handler) SetOffline(w http.ResponseWriter, r *http.Request) {
	h.updatePresence(w, r, "offline", func(req PresenceRequest) error {
		return h.presence.SetOffline(r.Context(), req.SessionID, req.PlayerID)
	})
}

// Heartbeat handles POST /presence/heartbeat
func (h *Handler) Heartbeat(w http.ResponseWriter, r *http.Request) {
	h.updatePresence(w, r, "alive", func(req PresenceRequest) error {
		return h.presence.Heartbeat(r.Context(), req.SessionID, req.PlayerID)
	})
}

func (h *Handler) updatePresence(w http.ResponseWriter, r *http.Request, status string, apply func(PresenceRequest) error) {
	var req PresenceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	if err := apply(req); err != nil {
		h.logger.Error("Presence update failed",
			logger.F("session_id", req.SessionID),
			logger.F("player_id", req.PlayerID),
			logger.Err(err),
			logger.F("request_id", GetRequestID(r.Context())),
		)
		h.respondError(w, http.StatusServiceUnavailable, "failed to update presence", "presence store unavailable")
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{
		"status":     status,
		"session_id": req.SessionID,
		"player_id":  req.PlayerID,
	})
}

// GetPresence handles GET /presence/{sessionID}
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")

	records, err := h.presence.Records(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Presence lookup failed", logger.F("session_id", sessionID), logger.Err(err))
		h.respondError(w, http.StatusServiceUnavailable, "failed to read presence", "presence store unavailable")
		return
	}
	online, err := h.presence.OnlinePlayers(r.Context(), sessionID)
	if err != nil {
		h.logger.Error("Presence lookup failed", logger.F("session_id", sessionID), logger.Err(err))
		h.respondError(w, http.StatusServiceUnavailable, "failed to read presence", "presence store unavailable")
		return
	}
	if records == nil {
		records = []models.PresenceRecord{}
	}

	h.respondJSON(w, http.StatusOK, PresenceResponse{
		SessionID:     sessionID,
		Players:       records,
		OnlinePlayers: online,
	})
}

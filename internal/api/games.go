package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/realtime"
	"github.com/sketchduel/backend/pkg/logger"
)

// CreateGameResponse is returned when a lobby is opened
type CreateGameResponse struct {
	Status   string              `json:"status"`
	GameID   string              `json:"game_id"`
	RoomCode string              `json:"room_code"`
	Game     *models.GameSession `json:"game"`
}

// JoinGameResponse is returned when a player joins
type JoinGameResponse struct {
	Status string              `json:"status"`
	GameID string              `json:"game_id"`
	Game   *models.GameSession `json:"game"`
}

// LobbyListResponse lists joinable lobbies
type LobbyListResponse struct {
	Games []*models.GameSession `json:"games"`
	Count int                   `json:"count"`
}

// CreateGame handles POST /games/{mode}/create
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req CreateGameRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	mode := modeFrom(r.Context())
	session, err := h.engine.Create(r.Context(), game.CreateParams{
		Mode:        mode,
		CreatorID:   req.CreatorID,
		CreatorName: req.CreatorName,
		MaxPlayers:  req.MaxPlayers,
		Settings:    req.Settings,
	})
	if err != nil {
		h.fail(w, r, "create game", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, CreateGameResponse{
		Status:   "created",
		GameID:   session.ID,
		RoomCode: session.RoomCode,
		Game:     session,
	})
}

// JoinGame handles POST /games/{mode}/join
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req JoinGameRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	session, err := h.engine.Join(r.Context(), modeFrom(r.Context()), req.GameID, req.PlayerID, req.PlayerName)
	if err != nil {
		h.fail(w, r, "join game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, JoinGameResponse{Status: "joined", GameID: session.ID, Game: session})
}

// StartGame handles POST /games/{mode}/start
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req GameRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	info, err := h.engine.Start(r.Context(), modeFrom(r.Context()), req.GameID)
	if err != nil {
		h.fail(w, r, "start game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, info)
}

// Timeout handles POST /games/{mode}/timeout
func (h *Handler) Timeout(w http.ResponseWriter, r *http.Request) {
	var req TimeoutRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	out, err := h.engine.HandleTimeout(r.Context(), modeFrom(r.Context()), req.GameID, req.RoundNumber)
	if err != nil {
		h.fail(w, r, "handle timeout", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// LeaveGame handles POST /games/{mode}/leave
func (h *Handler) LeaveGame(w http.ResponseWriter, r *http.Request) {
	var req LeaveRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	res, err := h.engine.Leave(r.Context(), modeFrom(r.Context()), req.GameID, req.PlayerID)
	if err != nil {
		h.fail(w, r, "leave game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, res)
}

// ListLobbies handles GET /games/{mode}/lobby/list
func (h *Handler) ListLobbies(w http.ResponseWriter, r *http.Request) {
	games, err := h.engine.ListLobbies(r.Context(), modeFrom(r.Context()))
	if err != nil {
		h.fail(w, r, "list lobbies", err)
		return
	}
	if games == nil {
		games = []*models.GameSession{}
	}

	h.respondJSON(w, http.StatusOK, LobbyListResponse{Games: games, Count: len(games)})
}

// GetByCode handles GET /games/{mode}/code/{code}
func (h *Handler) GetByCode(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.GetByCode(r.Context(), modeFrom(r.Context()), chi.URLParam(r, "code"))
	if err != nil {
		h.fail(w, r, "find game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, session)
}

// GetGame handles GET /games/{mode}/{gameID}
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	session, err := h.engine.Get(r.Context(), modeFrom(r.Context()), chi.URLParam(r, "gameID"))
	if err != nil {
		h.fail(w, r, "get game", err)
		return
	}

	h.respondJSON(w, http.StatusOK, session)
}

// SubmitDrawing handles POST /games/race/submit-drawing
func (h *Handler) SubmitDrawing(w http.ResponseWriter, r *http.Request) {
	var req SubmitDrawingRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	out, err := h.engine.SubmitDrawing(r.Context(), game.DrawingSubmission{
		GameID:     req.GameID,
		PlayerID:   req.PlayerID,
		Round:      req.RoundNumber,
		Prediction: req.Prediction,
		Confidence: req.Confidence,
	})
	if err != nil {
		h.fail(w, r, "submit drawing", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// SubmitGuess handles POST /games/guessing/submit-guess
func (h *Handler) SubmitGuess(w http.ResponseWriter, r *http.Request) {
	var req SubmitGuessRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	out, err := h.engine.SubmitGuess(r.Context(), game.GuessSubmission{
		GameID:   req.GameID,
		PlayerID: req.PlayerID,
		Guess:    req.Guess,
		Round:    req.RoundNumber,
	})
	if err != nil {
		h.fail(w, r, "submit guess", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// SubmitAIPrediction handles POST /games/guessing/ai-prediction
func (h *Handler) SubmitAIPrediction(w http.ResponseWriter, r *http.Request) {
	var req AIPredictionRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	out, err := h.engine.SubmitAIPrediction(r.Context(), game.AIPrediction{
		GameID:     req.GameID,
		Round:      req.RoundNumber,
		Prediction: req.Prediction,
		Confidence: req.Confidence,
	})
	if err != nil {
		h.fail(w, r, "record prediction", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// SendChat handles POST /games/guessing/chat
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		h.respondError(w, http.StatusBadRequest, "invalid request body", "message is empty")
		return
	}

	msg, err := h.engine.SendChat(r.Context(), req.GameID, req.PlayerID, message)
	if err != nil {
		h.fail(w, r, "send chat", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "sent",
		"message": msg,
	})
}

// UpdateCanvas handles POST /games/guessing/update-canvas
func (h *Handler) UpdateCanvas(w http.ResponseWriter, r *http.Request) {
	var req UpdateCanvasRequest
	if err := decodeAndValidate(r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	if err := h.engine.UpdateCanvas(r.Context(), req.GameID, req.PlayerID, req.CanvasState); err != nil {
		h.fail(w, r, "update canvas", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// StreamGame handles GET /games/{mode}/{gameID}/ws. The first frame is the
// current snapshot; later frames follow every change.
func (h *Handler) StreamGame(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.respondError(w, http.StatusServiceUnavailable, "live updates disabled", "")
		return
	}

	session, err := h.engine.Get(r.Context(), modeFrom(r.Context()), chi.URLParam(r, "gameID"))
	if err != nil {
		h.fail(w, r, "subscribe", err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the client
		h.logger.Warn("Websocket upgrade failed", logger.F("game_id", session.ID), logger.Err(err))
		return
	}

	realtime.NewClient(h.hub, conn, session.ID).Start(&realtime.Message{
		Type:   realtime.MessageTypeSession,
		GameID: session.ID,
		Data:   session,
	})
}

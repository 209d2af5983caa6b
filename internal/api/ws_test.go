package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sketchduel/backend/internal/game"
	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/internal/presence"
	"github.com/sketchduel/backend/internal/realtime"
	"github.com/sketchduel/backend/internal/storage"
	"github.com/sketchduel/backend/pkg/logger"
)

func TestStreamGamePushesUpdates(t *testing.T) {
	hub := realtime.NewHub(logger.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = hub.Serve(ctx) }()

	tracker := presence.NewTracker(storage.NewMemoryPresence(time.Now), logger.Nop())
	engine := game.NewEngine(storage.NewMemoryStorage(), tracker, logger.Nop(), game.WithNotifier(hub))
	h := NewHandler(Deps{Engine: engine, Presence: tracker, Hub: hub}, logger.Nop())
	srv := httptest.NewServer(h.Routes())
	defer srv.Close()

	lobby, err := engine.Create(ctx, game.CreateParams{Mode: models.ModeRace, CreatorID: "p1", CreatorName: "Ada"})
	require.NoError(t, err)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/games/race/" + lobby.ID + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var initial realtime.Message
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, realtime.MessageTypeSession, initial.Type)
	assert.Equal(t, lobby.ID, initial.GameID)

	require.Eventually(t, func() bool { return hub.Subscribers(lobby.ID) == 1 }, time.Second, 10*time.Millisecond)

	_, err = engine.Join(ctx, models.ModeRace, lobby.ID, "p2", "Bob")
	require.NoError(t, err)

	var update realtime.Message
	require.NoError(t, conn.ReadJSON(&update))
	assert.Equal(t, realtime.MessageTypeSession, update.Type)
	data, ok := update.Data.(map[string]interface{})
	require.True(t, ok)
	players, ok := data["players"].([]interface{})
	require.True(t, ok)
	assert.Len(t, players, 2)
}

func TestStreamGameUnknownSession(t *testing.T) {
	hub := realtime.NewHub(logger.Nop())
	tracker := presence.NewTracker(storage.NewMemoryPresence(time.Now), logger.Nop())
	engine := game.NewEngine(storage.NewMemoryStorage(), tracker, logger.Nop(), game.WithNotifier(hub))
	h := NewHandler(Deps{Engine: engine, Presence: tracker, Hub: hub}, logger.Nop())

	req := httptest.NewRequest(http.MethodGet, "/games/race/missing/ws", nil)
	w := httptest.NewRecorder()
	h.Routes().ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

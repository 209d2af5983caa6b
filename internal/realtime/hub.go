// Package realtime pushes session snapshots to websocket subscribers.
package realtime

import (
	"context"
	"sync"

	"github.com/sketchduel/backend/internal/models"
	"github.com/sketchduel/backend/pkg/logger"
)

// Message types sent to subscribers
const (
	MessageTypeSession = "session"
	MessageTypeDeleted = "deleted"
	MessageTypePing    = "ping"
	MessageTypePong    = "pong"
)

// Message is one websocket frame
type Message struct {
	Type   string      `json:"type"`
	GameID string      `json:"game_id,omitempty"`
	Data   interface{} `json:"data,omitempty"`
}

type envelope struct {
	gameID string
	msg    Message
	last   bool
}

// Hub fans session changes out to the clients subscribed to that session.
// It implements game.Notifier.
type Hub struct {
	mu        sync.RWMutex
	rooms     map[string]map[*Client]struct{}
	broadcast chan envelope
	logger    *logger.Logger
}

// NewHub creates a hub. Serve must be running for messages to be delivered.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		rooms:     make(map[string]map[*Client]struct{}),
		broadcast: make(chan envelope, 256),
		logger:    log,
	}
}

// SessionChanged queues a snapshot for the session's subscribers
func (h *Hub) SessionChanged(s *models.GameSession) {
	h.enqueue(envelope{gameID: s.ID, msg: Message{Type: MessageTypeSession, GameID: s.ID, Data: s}})
}

// SessionDeleted tells subscribers the session is gone and disconnects them
func (h *Hub) SessionDeleted(gameID string) {
	h.enqueue(envelope{gameID: gameID, msg: Message{Type: MessageTypeDeleted, GameID: gameID}, last: true})
}

func (h *Hub) enqueue(e envelope) {
	if h.Subscribers(e.gameID) == 0 {
		return
	}
	select {
	case h.broadcast <- e:
	default:
		h.logger.Warn("Broadcast queue full, dropping update", logger.F("game_id", e.gameID))
	}
}

// Register subscribes c to its session
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	room, ok := h.rooms[c.gameID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[c.gameID] = room
	}
	room[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Debug("Websocket client connected", logger.F("game_id", c.gameID))
}

// Unregister removes c and closes its send queue. Safe to call twice.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	room, ok := h.rooms[c.gameID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	close(c.send)
	if len(room) == 0 {
		delete(h.rooms, c.gameID)
	}
}

// Subscribers returns the number of clients watching a session
func (h *Hub) Subscribers(gameID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[gameID])
}

// Serve delivers queued messages until ctx is canceled, then drops every client.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return ctx.Err()
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *Hub) deliver(e envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.rooms[e.gameID] {
		select {
		case c.send <- e.msg:
		default:
			// slow consumer
			h.removeLocked(c)
			continue
		}
		if e.last {
			h.removeLocked(c)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for c := range room {
			h.removeLocked(c)
		}
	}
}

// String names the hub for the supervisor
func (h *Hub) String() string {
	return "realtime-hub"
}

package realtime

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/sketchduel/backend/pkg/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Client is one websocket subscriber of a session
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	gameID string
	send   chan Message
}

// NewClient wraps an upgraded connection
func NewClient(hub *Hub, conn *websocket.Conn, gameID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		gameID: gameID,
		send:   make(chan Message, 16),
	}
}

// Start registers the client and runs its pumps. The initial snapshot, if
// any, is sent before live updates.
func (c *Client) Start(initial *Message) {
	if initial != nil {
		c.send <- *initial
	}
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

// readPump only exists to answer pings and notice disconnects
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var msg Message
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("Unexpected websocket close", logger.F("game_id", c.gameID), logger.Err(err))
			}
			return
		}
		if msg.Type == MessageTypePing {
			c.hub.mu.RLock()
			if _, ok := c.hub.rooms[c.gameID][c]; ok {
				select {
				case c.send <- Message{Type: MessageTypePong}:
				default:
				}
			}
			c.hub.mu.RUnlock()
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

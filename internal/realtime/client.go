package realtime

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"stashhub/internal/chat/broadcast"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	// Inbound control messages per connection. Subscribing is cheap but
	// a misbehaving client should not be able to spin the hub.
	controlRate  = 5
	controlBurst = 10
)

// ControlMessage is the only thing clients send upstream: channel
// subscription management. Chat messages go through the HTTP API.
type ControlMessage struct {
	Action string `json:"action"` // "subscribe" | "unsubscribe"
	RoomID *int64 `json:"room_id,omitempty"`
}

type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	send     chan []byte
	userID   string
	channels map[string]bool
	limiter  *rate.Limiter
	logger   *slog.Logger
}

func NewClient(hub *Hub, conn *websocket.Conn, userID string, logger *slog.Logger) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		channels: make(map[string]bool),
		limiter:  rate.NewLimiter(rate.Limit(controlRate), controlBurst),
		logger:   logger,
	}
}

// ReadPump consumes control messages until the connection dies.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg ControlMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.Debug("websocket read error", "user_id", c.userID, "error", err)
			}
			return
		}

		if !c.limiter.Allow() {
			c.sendError("too many control messages")
			continue
		}

		if err := c.handleControl(&msg); err != nil {
			c.sendError(err.Error())
		}
	}
}

// WritePump relays hub frames to the peer and keeps the ping cycle.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleControl(msg *ControlMessage) error {
	switch strings.ToLower(msg.Action) {
	case "subscribe":
		if msg.RoomID == nil {
			return fmt.Errorf("subscribe requires room_id")
		}
		c.hub.subscribe <- subscription{client: c, channel: broadcast.RoomChannel(*msg.RoomID)}
		c.hub.subscribe <- subscription{client: c, channel: broadcast.RoomPresenceChannel(*msg.RoomID)}
		return nil
	case "unsubscribe":
		if msg.RoomID == nil {
			return fmt.Errorf("unsubscribe requires room_id")
		}
		c.hub.unsubscribe <- subscription{client: c, channel: broadcast.RoomChannel(*msg.RoomID)}
		c.hub.unsubscribe <- subscription{client: c, channel: broadcast.RoomPresenceChannel(*msg.RoomID)}
		return nil
	default:
		return fmt.Errorf("unknown action %q", msg.Action)
	}
}

func (c *Client) sendError(message string) {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

package notifications

import (
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/aslbekqoziboyev/aiverselabs/internal/middleware"
	"github.com/aslbekqoziboyev/aiverselabs/internal/observability"

	"github.com/gofiber/websocket/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	maxSubscriptions = 16
)

// WSHub is implemented by hubs that own clients.
type WSHub interface {
	UnregisterClient(c *Client)
	Name() string
}

// ClientMessage is what a browser sends over the socket.
type ClientMessage struct {
	Type   string `json:"type"`
	Table  string `json:"table"`
	Filter Filter `json:"filter"`
}

// Client is a middleman between one websocket connection and the hub.
type Client struct {
	Hub WSHub

	// The websocket connection.
	Conn *websocket.Conn

	// Buffered channel of outbound messages.
	Send chan []byte

	UserID uint

	// AllowTable reports whether a table may be subscribed to. Nil allows all.
	AllowTable func(table string) bool

	mu        sync.RWMutex
	subs      map[string]Filter
	closeOnce sync.Once
	// closeFrame is the close payload WritePump sends once Send is closed.
	closeFrame []byte
}

// NewClient creates a new Client instance
func NewClient(hub WSHub, conn *websocket.Conn, userID uint) *Client {
	return &Client{
		Hub:    hub,
		Conn:   conn,
		UserID: userID,
		Send:   make(chan []byte, 256),
		subs:   make(map[string]Filter),
	}
}

// Subscribe starts delivering changes of table that match filter.
func (c *Client) Subscribe(table string, filter Filter) bool {
	table = strings.TrimSpace(table)
	if table == "" || (c.AllowTable != nil && !c.AllowTable(table)) {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[table]; !ok && len(c.subs) >= maxSubscriptions {
		return false
	}
	c.subs[table] = filter
	return true
}

// Unsubscribe stops delivering changes of table.
func (c *Client) Unsubscribe(table string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, strings.TrimSpace(table))
}

// Wants reports whether ev matches one of the client's subscriptions.
func (c *Client) Wants(ev ChangeEvent) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.subs[ev.Table]
	return ok && f.Matches(ev)
}

// HandleMessage applies a subscribe/unsubscribe message and acknowledges it.
func (c *Client) HandleMessage(raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.reply("error", map[string]any{"error": "invalid message"})
		return
	}
	switch msg.Type {
	case "subscribe":
		if !c.Subscribe(msg.Table, msg.Filter) {
			c.reply("error", map[string]any{"error": "cannot subscribe", "table": msg.Table})
			return
		}
		c.reply("subscribed", map[string]any{"table": msg.Table, "filter": msg.Filter})
	case "unsubscribe":
		c.Unsubscribe(msg.Table)
		c.reply("unsubscribed", map[string]any{"table": msg.Table})
	case "ping":
		c.reply("pong", nil)
	default:
		c.reply("error", map[string]any{"error": "unknown message type", "type": msg.Type})
	}
}

func (c *Client) reply(eventType string, payload map[string]any) {
	data, err := json.Marshal(map[string]any{"type": eventType, "payload": payload})
	if err != nil {
		return
	}
	c.TrySend(data)
}

// ReadPump pumps messages from the websocket connection to the client's subscriptions.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.UnregisterClient(c)
		_ = c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { _ = c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				middleware.Logger.Warn("websocket read failed", slog.Uint64("user_id", uint64(c.UserID)), slog.Any("error", err))
			}
			return
		}
		c.HandleMessage(message)
	}
}

// WritePump pumps messages from the hub to the websocket connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, c.closeFrame)
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// TrySend queues message without blocking; a full buffer drops it.
func (c *Client) TrySend(message []byte) {
	defer func() {
		if r := recover(); r != nil {
			observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "closed").Inc()
		}
	}()

	select {
	case c.Send <- message:
	default:
		observability.WebSocketBackpressureDrops.WithLabelValues(c.Hub.Name(), "full").Inc()
		middleware.Logger.Warn("websocket buffer full, dropped message", slog.Uint64("user_id", uint64(c.UserID)))

		// Lets the client detect the gap and resubscribe.
		dropNotice := []byte(`{"type":"messages_dropped","payload":{"reason":"buffer_full"}}`)
		select {
		case c.Send <- dropNotice:
		default:
		}
	}
}

func (c *Client) closeSend() {
	c.closeWith(nil)
}

// closeWith closes Send so that WritePump, the connection's only writer,
// sends frame as the close message and exits.
func (c *Client) closeWith(frame []byte) {
	c.closeOnce.Do(func() {
		c.closeFrame = frame
		close(c.Send)
	})
}

// Package ws streams engine change notifications to websocket clients.
package ws

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/GetStream/chat-state-engine/chat"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBufSize    = 64
)

// Event types.
const (
	EventConversationListChanged = "conversation_list_changed"
	EventTimelineChanged         = "timeline_changed"
)

// An Event is one outbound notification.
type Event struct {
	Type           string           `json:"type"`
	ConversationID string           `json:"conversation_id,omitempty"`
	Conversations  []chat.Summary   `json:"conversations,omitempty"`
	Timeline       []chat.DateGroup `json:"timeline,omitempty"`
}

// Hub fans engine notifications out to connected clients. It implements
// chat.Listener and never blocks the engine: a client whose buffer is full
// is disconnected.
type Hub struct {
	logger   *slog.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		clients: make(map[*client]struct{}),
	}
}

// Serve upgrades the request and streams events until the client goes away.
// A non-empty conversationID limits timeline events to that conversation.
// The initial events are queued before any notification.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, conversationID string, initial ...Event) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		h.logger.Error("Could not upgrade connection", "error", err.Error())
		return
	}

	c := &client{
		hub:            h,
		conn:           conn,
		conversationID: conversationID,
		send:           make(chan []byte, sendBufSize),
		done:           make(chan struct{}),
	}
	for _, ev := range initial {
		if b, err := json.Marshal(ev); err == nil {
			c.send <- b
		}
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		c.close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("Websocket client connected", "conversation_id", conversationID)

	go c.writePump()
	go c.readPump()
}

// ConversationListChanged broadcasts the new conversation list.
func (h *Hub) ConversationListChanged(list []chat.Summary) {
	h.broadcast(Event{Type: EventConversationListChanged, Conversations: list}, "")
}

// TimelineChanged broadcasts a conversation's new timeline.
func (h *Hub) TimelineChanged(conversationID string, groups []chat.DateGroup) {
	h.broadcast(Event{Type: EventTimelineChanged, ConversationID: conversationID, Timeline: groups}, conversationID)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := h.clients
	h.clients = make(map[*client]struct{})
	h.mu.Unlock()

	for c := range clients {
		c.close()
	}
}

func (h *Hub) broadcast(ev Event, conversationID string) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Could not encode event", "type", ev.Type, "error", err.Error())
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		if conversationID != "" && c.conversationID != "" && c.conversationID != conversationID {
			continue
		}
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Error("Dropping slow websocket client", "conversation_id", c.conversationID)
		h.unregister(c)
	}
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// client is a single websocket connection.
type client struct {
	hub            *Hub
	conn           *websocket.Conn
	conversationID string
	send           chan []byte

	done chan struct{}
	once sync.Once
}

// close is safe to call more than once.
func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client messages; it exists to process control frames
// and notice disconnects.
func (c *client) readPump() {
	defer c.hub.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Error("Websocket read error", "error", err.Error())
			}
			return
		}
	}
}

func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.unregister(c)
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		case payload := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
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

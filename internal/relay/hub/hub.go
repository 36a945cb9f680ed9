// Package hub manages WebSocket subscribers to conversation event feeds.
package hub

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ashleydavis/wunderlust-example/internal/protocol"
)

// Connection represents a single WebSocket subscriber, bound to one
// conversation.
type Connection struct {
	ID             string
	ConversationID string
	Conn           *websocket.Conn
	Send           chan []byte
}

// Hub fans conversation events out to their subscribers. The map widget's
// live feed is one such subscriber.
type Hub struct {
	mu sync.RWMutex

	// Connections indexed by connection ID
	connections map[string]*Connection

	// conversations maps conversation_id to set of connection IDs
	conversations map[string]map[string]bool

	register   chan *Connection
	unregister chan *Connection
	broadcast  chan *protocol.Event
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		connections:   make(map[string]*Connection),
		conversations: make(map[string]map[string]bool),
		register:      make(chan *Connection),
		unregister:    make(chan *Connection),
		broadcast:     make(chan *protocol.Event, 256),
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run() {
	for {
		select {
		case conn := <-h.register:
			h.mu.Lock()
			h.connections[conn.ID] = conn
			if h.conversations[conn.ConversationID] == nil {
				h.conversations[conn.ConversationID] = make(map[string]bool)
			}
			h.conversations[conn.ConversationID][conn.ID] = true
			h.mu.Unlock()
			log.Printf("Event subscriber registered: %s (conversation: %s)", conn.ID, conn.ConversationID)

		case conn := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.connections[conn.ID]; ok {
				delete(h.connections, conn.ID)
				if set := h.conversations[conn.ConversationID]; set != nil {
					delete(set, conn.ID)
					if len(set) == 0 {
						delete(h.conversations, conn.ConversationID)
					}
				}
				close(conn.Send)
			}
			h.mu.Unlock()
			log.Printf("Event subscriber unregistered: %s", conn.ID)

		case event := <-h.broadcast:
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("ERROR marshal event: %v", err)
				continue
			}
			h.mu.RLock()
			for connID := range h.conversations[event.ConversationID] {
				if conn, exists := h.connections[connID]; exists {
					select {
					case conn.Send <- data:
					default:
						// Buffer full, drop the subscriber
						log.Printf("Subscriber %s buffer full, closing", connID)
						go h.Unregister(conn)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// NewConnection creates a connection bound to a conversation.
func (h *Hub) NewConnection(ws *websocket.Conn, conversationID string) *Connection {
	return &Connection{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Conn:           ws,
		Send:           make(chan []byte, 256),
	}
}

// Register registers a connection with the hub.
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister unregisters a connection from the hub.
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// Publish broadcasts an event to the conversation's subscribers. Non-blocking:
// if the broadcast queue is full the event is dropped, the feed is advisory.
func (h *Hub) Publish(eventType protocol.EventType, conversationID, runID string, payload interface{}) {
	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Printf("ERROR marshal event payload: %v", err)
			return
		}
		raw = data
	}

	event := &protocol.Event{
		Type:           eventType,
		Ts:             time.Now().UnixMilli(),
		ConversationID: conversationID,
		RunID:          runID,
		Payload:        raw,
	}

	select {
	case h.broadcast <- event:
	default:
		log.Printf("WARN event queue full, dropping %s for %s", eventType, conversationID)
	}
}

// WritePump forwards queued frames to the socket until the send channel
// closes or a write fails.
func (c *Connection) WritePump() {
	defer c.Conn.Close()
	for data := range c.Send {
		if err := c.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

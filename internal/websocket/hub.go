package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Message tells a client which cached read views a completed operation
// invalidated, so it can refetch them.
type Message struct {
	Type      string   `json:"type"`
	Operation string   `json:"operation"`
	Views     []string `json:"views"`
}

// NewInvalidation builds the standard invalidation message for an operation.
func NewInvalidation(operation string, views []string) Message {
	return Message{
		Type:      "views_invalidated",
		Operation: operation,
		Views:     views,
	}
}

// Hub tracks connected clients by user and delivers invalidation messages.
// Messages are scoped to a single user: one user's activity is never
// broadcast to another's connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		logger:  logger,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

// Unregister removes a client from the hub and closes its send channel.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// Notify delivers a message to every connection the given user has open.
func (h *Hub) Notify(userID int64, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal invalidation", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if c.userID != userID {
			continue
		}
		select {
		case c.send <- data:
		default:
			// Client buffer full — drop message to avoid blocking
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

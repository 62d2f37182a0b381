// Package events fans scheduler events out to connected dashboards over WebSocket.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/ashureev/moltdash/internal/domain"
	"github.com/coder/websocket"
)

const writeTimeout = 5 * time.Second

// Conn is the subset of *websocket.Conn the hub writes to.
type Conn interface {
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
}

// Hub tracks active dashboard connections.
type Hub struct {
	mu     sync.RWMutex
	active map[string]Conn
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		active: make(map[string]Conn),
	}
}

// Register adds a connection under id, replacing any previous one.
func (h *Hub) Register(id string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, exists := h.active[id]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "connection replaced")
	}
	h.active[id] = conn
	slog.Info("Event stream registered", "conn_id", id)
}

// Unregister removes id if it still maps to conn.
func (h *Hub) Unregister(id string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, exists := h.active[id]; exists && current == conn {
		delete(h.active, id)
		slog.Info("Event stream unregistered", "conn_id", id)
	}
}

// Len returns the number of active connections.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.active)
}

// Notify implements autopost.Notifier.
func (h *Hub) Notify(event domain.Event) {
	h.Broadcast(event)
}

// Broadcast writes event to every connection; failed connections are closed and dropped.
func (h *Hub) Broadcast(event domain.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to encode event", "error", err, "type", event.Type)
		return
	}

	h.mu.RLock()
	targets := make(map[string]Conn, len(h.active))
	for id, conn := range h.active {
		targets[id] = conn
	}
	h.mu.RUnlock()

	for id, conn := range targets {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := conn.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("Dropping event stream after write error", "conn_id", id, "error", err)
			_ = conn.Close(websocket.StatusGoingAway, "write failed")
			h.Unregister(id, conn)
		}
	}
}

// CloseAll terminates every connection.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, conn := range h.active {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(h.active, id)
	}
}

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ashureev/moltdash/internal/domain"
	"github.com/coder/websocket"
	"github.com/google/uuid"
)

// StatusFunc returns the event sent to a client right after it connects.
type StatusFunc func() domain.Event

// WebSocketHandler upgrades dashboard connections and registers them with a Hub.
type WebSocketHandler struct {
	hub           *Hub
	status        StatusFunc
	allowedOrigin string
	isDev         bool
}

// NewWebSocketHandler creates a new WebSocket handler. status may be nil.
func NewWebSocketHandler(hub *Hub, status StatusFunc, allowedOrigin string, isDev bool) *WebSocketHandler {
	return &WebSocketHandler{
		hub:           hub,
		status:        status,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "stream ended"); closeErr != nil {
			slog.Debug("Failed to close websocket", "error", closeErr)
		}
	}()

	id := uuid.NewString()
	h.hub.Register(id, ws)
	defer h.hub.Unregister(id, ws)

	if h.status != nil {
		if err := writeJSON(r.Context(), ws, h.status()); err != nil {
			slog.Debug("Failed to send initial status", "error", err, "conn_id", id)
			return
		}
	}

	h.readLoop(r.Context(), ws, id)
}

// readLoop answers pings and returns when the client goes away.
func (h *WebSocketHandler) readLoop(ctx context.Context, ws *websocket.Conn, id string) {
	for {
		_, message, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("WebSocket closed by client", "conn_id", id)
			} else {
				slog.Debug("WebSocket read error", "error", err, "conn_id", id)
			}
			return
		}

		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			if err := writeJSON(ctx, ws, map[string]string{"type": "pong"}); err != nil {
				slog.Debug("Failed to send pong", "error", err)
			}
		}
	}
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func writeJSON(ctx context.Context, ws *websocket.Conn, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

// StatusEvent builds the greeting event for a scheduler state.
func StatusEvent(running bool, at time.Time) domain.Event {
	if running {
		return domain.Event{Type: domain.EventStarted, Message: "Auto-Post active", At: at}
	}
	return domain.Event{Type: domain.EventStopped, Message: "Auto-Post inactive", At: at}
}

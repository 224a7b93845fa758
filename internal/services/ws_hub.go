package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"pact-proof-backend/internal/feed"
	"pact-proof-backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message.
type WSMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// FeedHub manages WebSocket connections and pushes feed events to online
// users as their crew mates check in and react.
type FeedHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewFeedHub creates a new feed hub.
func NewFeedHub() *FeedHub {
	return &FeedHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a WebSocket connection for a user, replacing any
// existing one.
func (h *FeedHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[userID]; ok {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a user's WebSocket connection.
func (h *FeedHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, ok := h.connections[userID]; ok {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// IsOnline checks if a user has a live connection.
func (h *FeedHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[userID]
	return ok
}

// SendToUser sends a message to a specific user.
func (h *FeedHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, ok := h.connections[userID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// NotifyCheckInCreated pushes a new feed entry to every online user in ids.
func (h *FeedHub) NotifyCheckInCreated(ids []string, entry feed.Entry) {
	message := WSMessage{
		Type: "check_in_created",
		Data: entry,
	}
	h.broadcast(ids, message)
}

// NotifyKudosToggled pushes a reaction change to every online user in ids.
func (h *FeedHub) NotifyKudosToggled(ids []string, checkIn *models.CheckIn, userID string, added bool) {
	message := WSMessage{
		Type: "kudos_toggled",
		Data: map[string]interface{}{
			"check_in_id": checkIn.ID,
			"user_id":     userID,
			"added":       added,
			"kudos_count": checkIn.KudosCount,
		},
	}
	h.broadcast(ids, message)
}

// broadcast sends a message to every online user in ids, skipping the rest.
func (h *FeedHub) broadcast(ids []string, message WSMessage) {
	for _, id := range ids {
		if !h.IsOnline(id) {
			continue
		}
		if err := h.SendToUser(id, message); err != nil {
			log.Error().Err(err).Str("user_id", id).Str("type", message.Type).Msg("Failed to push feed event")
		}
	}
}

package handlers

import (
	"encoding/json"
	"net/http"

	"pact-proof-backend/internal/repository"
	"pact-proof-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for MVP
	},
}

// WebSocketHandler handles WebSocket connections for realtime feed events.
type WebSocketHandler struct {
	hub            *services.FeedHub
	profileService *services.ProfileService
	crewRepo       *repository.CrewRepository
}

// NewWebSocketHandler creates a new WebSocket handler.
func NewWebSocketHandler(hub *services.FeedHub, profileService *services.ProfileService, crewRepo *repository.CrewRepository) *WebSocketHandler {
	return &WebSocketHandler{
		hub:            hub,
		profileService: profileService,
		crewRepo:       crewRepo,
	}
}

// HandleWebSocket handles GET /ws?token=. The token travels as a query
// parameter because browser WebSocket clients cannot set headers.
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}
	userID, err := h.profileService.ValidateJWT(token)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	// Tell the client which crew mates are currently online.
	ctx := r.Context()
	ids, err := h.crewRepo.MemberIDs(ctx, userID)
	if err == nil {
		online := make([]string, 0, len(ids))
		for _, id := range ids {
			if h.hub.IsOnline(id) {
				online = append(online, id)
			}
		}
		statusMsg := services.WSMessage{
			Type: "crew_status",
			Data: map[string]interface{}{"online": online},
		}
		if err := h.hub.SendToUser(userID, statusMsg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to send crew_status message")
		}
	}

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("Failed to parse WebSocket message")
			h.sendError(conn, "Invalid message format")
			continue
		}

		switch msg.Type {
		case "ping":
			if err := h.hub.SendToUser(userID, services.WSMessage{Type: "pong"}); err != nil {
				log.Error().Err(err).Str("user_id", userID).Msg("Failed to send pong")
			}
		default:
			h.sendError(conn, "Unknown message type")
		}
	}
}

// sendError sends an error message to the WebSocket connection.
func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := services.WSMessage{
		Type:    "error",
		Message: message,
	}
	data, _ := json.Marshal(msg)
	conn.WriteMessage(websocket.TextMessage, data)
}

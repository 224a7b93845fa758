package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"pact-proof-backend/internal/middleware"
	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// CrewHandler handles crew-related HTTP requests.
type CrewHandler struct {
	sessions *session.Manager
}

// NewCrewHandler creates a new crew handler.
func NewCrewHandler(sessions *session.Manager) *CrewHandler {
	return &CrewHandler{sessions: sessions}
}

// ListCrews handles GET /api/v1/crews.
func (h *CrewHandler) ListCrews(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	if err := sess.FetchCrews(ctx); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to fetch crews")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	crews, members := sess.Crews()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"crews":   crews,
		"members": members,
	})
}

// CreateCrewRequest represents the request body for creating a crew.
type CreateCrewRequest struct {
	Name string `json:"name"`
}

// CreateCrew handles POST /api/v1/crews.
func (h *CrewHandler) CreateCrew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	var req CreateCrewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Name == "" {
		respondError(w, "name is required", http.StatusBadRequest)
		return
	}

	crew, err := sess.CreateCrew(ctx, req.Name)
	if err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to create crew")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	log.Info().Str("user_id", sess.UserID()).Str("crew_id", crew.ID).Msg("Crew created")
	respondJSON(w, http.StatusOK, crew)
}

// JoinCrewRequest represents the request body for joining a crew.
type JoinCrewRequest struct {
	InviteCode string `json:"invite_code"`
}

// JoinCrew handles POST /api/v1/crews/join.
func (h *CrewHandler) JoinCrew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	var req JoinCrewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.InviteCode) != 6 {
		respondError(w, "invite_code must be 6 characters", http.StatusBadRequest)
		return
	}

	crew, err := sess.JoinCrew(ctx, req.InviteCode)
	if err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to join crew")
		status := statusFor(err)
		if errors.Is(err, models.ErrNotFound) {
			status = http.StatusNotFound
		}
		respondError(w, err.Error(), status)
		return
	}

	log.Info().Str("user_id", sess.UserID()).Str("crew_id", crew.ID).Msg("Crew joined")
	respondJSON(w, http.StatusOK, crew)
}

// LeaveCrew handles DELETE /api/v1/crews/{crew_id}/members/me.
func (h *CrewHandler) LeaveCrew(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))
	crewID := chi.URLParam(r, "crew_id")

	if err := sess.LeaveCrew(ctx, crewID); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Str("crew_id", crewID).Msg("Failed to leave crew")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	log.Info().Str("user_id", sess.UserID()).Str("crew_id", crewID).Msg("Crew left")
	w.WriteHeader(http.StatusNoContent)
}

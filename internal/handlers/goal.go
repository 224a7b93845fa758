package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"pact-proof-backend/internal/middleware"
	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// GoalHandler handles goal-related HTTP requests.
type GoalHandler struct {
	sessions *session.Manager
}

// NewGoalHandler creates a new goal handler.
func NewGoalHandler(sessions *session.Manager) *GoalHandler {
	return &GoalHandler{sessions: sessions}
}

// ListGoals handles GET /api/v1/goals.
func (h *GoalHandler) ListGoals(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	if err := sess.FetchGoals(ctx); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to fetch goals")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{"goals": sess.Goals()})
}

// CreateGoal handles POST /api/v1/goals.
func (h *GoalHandler) CreateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	var input models.CreateGoalInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if input.Title == "" {
		respondError(w, "title is required", http.StatusBadRequest)
		return
	}
	if !input.Category.Valid() {
		respondError(w, "invalid category", http.StatusBadRequest)
		return
	}
	if input.Cadence == "" {
		input.Cadence = models.CadenceDaily
	}
	if !input.Cadence.Valid() {
		respondError(w, "invalid cadence", http.StatusBadRequest)
		return
	}

	goal, err := sess.CreateGoal(ctx, input)
	if err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to create goal")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	log.Info().Str("user_id", sess.UserID()).Str("goal_id", goal.ID).Msg("Goal created")
	respondJSON(w, http.StatusOK, goal)
}

// UpdateGoal handles PATCH /api/v1/goals/{goal_id}.
func (h *GoalHandler) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))
	goalID := chi.URLParam(r, "goal_id")

	if !h.ownsGoal(ctx, sess, goalID, w) {
		return
	}

	var upd models.GoalUpdate
	if err := json.NewDecoder(r.Body).Decode(&upd); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if upd.Category != nil && !upd.Category.Valid() {
		respondError(w, "invalid category", http.StatusBadRequest)
		return
	}
	if upd.Cadence != nil && !upd.Cadence.Valid() {
		respondError(w, "invalid cadence", http.StatusBadRequest)
		return
	}

	goal, err := sess.UpdateGoal(ctx, goalID, upd)
	if err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Str("goal_id", goalID).Msg("Failed to update goal")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, goal)
}

// DeleteGoal handles DELETE /api/v1/goals/{goal_id}.
func (h *GoalHandler) DeleteGoal(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))
	goalID := chi.URLParam(r, "goal_id")

	if !h.ownsGoal(ctx, sess, goalID, w) {
		return
	}

	if err := sess.DeleteGoal(ctx, goalID); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Str("goal_id", goalID).Msg("Failed to delete goal")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	log.Info().Str("user_id", sess.UserID()).Str("goal_id", goalID).Msg("Goal deleted")
	w.WriteHeader(http.StatusNoContent)
}

// ownsGoal verifies the current user owns the goal, refreshing the cache once
// when the goal is not cached yet. Writes the error response itself.
func (h *GoalHandler) ownsGoal(ctx context.Context, sess *session.Session, goalID string, w http.ResponseWriter) bool {
	goal := findCachedGoal(sess, goalID)
	if goal == nil {
		if err := sess.FetchGoals(ctx); err != nil {
			respondError(w, err.Error(), statusFor(err))
			return false
		}
		goal = findCachedGoal(sess, goalID)
	}
	if goal == nil {
		respondError(w, "goal not found", http.StatusNotFound)
		return false
	}
	if goal.OwnerID != sess.UserID() {
		respondError(w, "user does not own this goal", http.StatusForbidden)
		return false
	}
	return true
}

func findCachedGoal(sess *session.Session, goalID string) *models.Goal {
	for _, g := range sess.Goals() {
		if g.ID == goalID {
			return g
		}
	}
	return nil
}

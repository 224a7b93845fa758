package handlers

import (
	"io"
	"mime/multipart"
	"net/http"

	"pact-proof-backend/internal/feed"
	"pact-proof-backend/internal/middleware"
	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/repository"
	"pact-proof-backend/internal/services"
	"pact-proof-backend/internal/session"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// maxUploadSize bounds a proof submission (two JPEG stills plus fields).
const maxUploadSize = 32 << 20

// CheckInHandler handles check-in and feed HTTP requests.
type CheckInHandler struct {
	sessions       *session.Manager
	checkInService *services.CheckInService
	crewRepo       *repository.CrewRepository
	hub            *services.FeedHub
	push           *services.PushNotifier
}

// NewCheckInHandler creates a new check-in handler.
func NewCheckInHandler(
	sessions *session.Manager,
	checkInService *services.CheckInService,
	crewRepo *repository.CrewRepository,
	hub *services.FeedHub,
	push *services.PushNotifier,
) *CheckInHandler {
	return &CheckInHandler{
		sessions:       sessions,
		checkInService: checkInService,
		crewRepo:       crewRepo,
		hub:            hub,
		push:           push,
	}
}

// GetFeed handles GET /api/v1/feed.
func (h *CheckInHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	if err := sess.FetchFeed(ctx); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Msg("Failed to fetch feed")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"feed": feed.Assemble(sess.Feed()),
	})
}

// ListCheckIns handles GET /api/v1/check-ins?goal_id=.
func (h *CheckInHandler) ListCheckIns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := h.sessions.Session(middleware.GetUserID(ctx))

	goalID := r.URL.Query().Get("goal_id")
	if goalID == "" {
		respondError(w, "goal_id is required", http.StatusBadRequest)
		return
	}

	if err := sess.FetchCheckIns(ctx, goalID); err != nil {
		log.Error().Err(err).Str("user_id", sess.UserID()).Str("goal_id", goalID).Msg("Failed to fetch check-ins")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"check_ins": feed.Assemble(sess.Feed()),
	})
}

// CreateCheckIn handles POST /api/v1/check-ins. The request is multipart:
// goal_id, optional note and location_name fields, and the two captured
// stills as "photo" and "selfie" files.
func (h *CheckInHandler) CreateCheckIn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sess := h.sessions.Session(userID)

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		respondError(w, "Invalid multipart body", http.StatusBadRequest)
		return
	}

	goalID := r.FormValue("goal_id")
	if goalID == "" {
		respondError(w, "goal_id is required", http.StatusBadRequest)
		return
	}

	activity, err := readFormFile(r, "photo")
	if err != nil {
		respondError(w, "photo image is required", http.StatusBadRequest)
		return
	}
	selfie, err := readFormFile(r, "selfie")
	if err != nil {
		respondError(w, "selfie image is required", http.StatusBadRequest)
		return
	}

	checkIn, err := h.checkInService.Submit(ctx, sess, services.SubmitInput{
		GoalID:       goalID,
		Activity:     activity,
		Selfie:       selfie,
		Note:         optionalFormValue(r, "note"),
		LocationName: optionalFormValue(r, "location_name"),
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("goal_id", goalID).Msg("Failed to create check-in")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	h.notifyCrew(r, userID, checkIn)

	respondJSON(w, http.StatusOK, feed.Entry{
		CheckIn:    checkIn,
		Goal:       checkIn.Goal,
		Author:     checkIn.User,
		KudosCount: checkIn.KudosCount,
		Band:       feed.Classify(checkIn),
	})
}

// ToggleKudos handles POST /api/v1/check-ins/{check_in_id}/kudos.
func (h *CheckInHandler) ToggleKudos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	sess := h.sessions.Session(userID)
	checkInID := chi.URLParam(r, "check_in_id")

	added, err := sess.ToggleKudos(ctx, checkInID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Str("check_in_id", checkInID).Msg("Failed to toggle kudos")
		respondError(w, err.Error(), statusFor(err))
		return
	}

	var count int
	var target *models.CheckIn
	for _, ci := range sess.Feed() {
		if ci.ID == checkInID {
			target = ci
			count = ci.KudosCount
			break
		}
	}

	if target != nil {
		if added && target.UserID != userID {
			reactorName := "Someone"
			for _, k := range target.Kudos {
				if k.UserID == userID && k.User != nil {
					reactorName = k.User.Name
					break
				}
			}
			h.push.NotifyKudos(ctx, target, reactorName)
		}
		if ids, err := h.crewRepo.MemberIDs(ctx, userID); err == nil {
			h.hub.NotifyKudosToggled(append(ids, target.UserID), target, userID, added)
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"added":       added,
		"kudos_count": count,
	})
}

// notifyCrew pushes the new check-in to online crew mates and their devices.
// The check-in is already created; delivery failures are logged, not returned.
func (h *CheckInHandler) notifyCrew(r *http.Request, userID string, checkIn *models.CheckIn) {
	ctx := r.Context()
	ids, err := h.crewRepo.MemberIDs(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to resolve crew mates for notification")
		return
	}
	if len(ids) == 0 {
		return
	}
	h.hub.NotifyCheckInCreated(ids, feed.Entry{
		CheckIn:    checkIn,
		Goal:       checkIn.Goal,
		Author:     checkIn.User,
		KudosCount: checkIn.KudosCount,
		Band:       feed.Classify(checkIn),
	})
	h.push.NotifyCrewCheckIn(ctx, ids, checkIn)
}

// readFormFile reads one uploaded file fully into memory.
func readFormFile(r *http.Request, field string) ([]byte, error) {
	file, _, err := r.FormFile(field)
	if err != nil {
		return nil, err
	}
	defer func(f multipart.File) { f.Close() }(file)
	return io.ReadAll(file)
}

// optionalFormValue returns a pointer to a non-empty form value, or nil.
func optionalFormValue(r *http.Request, field string) *string {
	v := r.FormValue(field)
	if v == "" {
		return nil
	}
	return &v
}

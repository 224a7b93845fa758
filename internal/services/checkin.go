package services

import (
	"context"
	"fmt"
	"sync"

	"pact-proof-backend/internal/capture"
	"pact-proof-backend/internal/models"
	"pact-proof-backend/internal/session"

	"github.com/rs/zerolog/log"
)

// CheckInService orchestrates proof verification: it scores the activity
// image, uploads both images to durable storage and hands the assembled
// check-in to the session cache for persistence.
type CheckInService struct {
	scorer Scorer
	blobs  BlobStore
}

// NewCheckInService creates a new check-in service.
func NewCheckInService(scorer Scorer, blobs BlobStore) *CheckInService {
	return &CheckInService{scorer: scorer, blobs: blobs}
}

// SubmitInput carries one proof submission through the pipeline.
type SubmitInput struct {
	GoalID       string
	Activity     []byte
	Selfie       []byte
	Note         *string
	LocationName *string
}

// Submit runs the verification pipeline for a captured proof.
//
// The scorer call completes before persistence because its judgment is
// embedded in the stored record; the two uploads run concurrently with it. A
// scorer failure is absorbed into a fallback judgment and an individual
// upload failure yields a nil media reference; only a persistence failure
// aborts the operation, in which case no check-in is created and the cache is
// untouched. There is no cancellation once the pipeline has started.
func (s *CheckInService) Submit(ctx context.Context, sess *session.Session, in SubmitInput) (*models.CheckIn, error) {
	userID := sess.UserID()
	if userID == "" {
		return nil, models.ErrNoCurrentUser
	}
	goal := findGoal(sess.Goals(), in.GoalID)
	if goal == nil {
		// The cache may simply be cold; refresh once before giving up.
		if err := sess.FetchGoals(ctx); err != nil {
			return nil, err
		}
		if goal = findGoal(sess.Goals(), in.GoalID); goal == nil {
			return nil, fmt.Errorf("goal %s: %w", in.GoalID, models.ErrNotFound)
		}
	}

	var wg sync.WaitGroup
	var photoURL, selfieURL *string
	wg.Add(2)
	go s.upload(ctx, &wg, in.Activity, MediaKindActivity, userID, &photoURL)
	go s.upload(ctx, &wg, in.Selfie, MediaKindSelfie, userID, &selfieURL)

	var definitionOfDone string
	if goal.DefinitionOfDone != nil {
		definitionOfDone = *goal.DefinitionOfDone
	}
	judgment := s.scorer.Score(ctx, in.Activity, goal.Title, definitionOfDone)

	wg.Wait()

	checkIn, err := sess.CreateCheckIn(ctx, models.CreateCheckInInput{
		GoalID:          in.GoalID,
		PhotoURL:        photoURL,
		SelfieURL:       selfieURL,
		Note:            in.Note,
		LocationName:    in.LocationName,
		Verdict:         judgment.Verdict,
		ConfidenceScore: judgment.Confidence,
		IsFake:          judgment.IsFake,
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("user_id", userID).
		Str("goal_id", in.GoalID).
		Str("check_in_id", checkIn.ID).
		Int("confidence", judgment.Confidence).
		Bool("is_fake", judgment.IsFake).
		Msg("Check-in created")

	return checkIn, nil
}

// SubmitCapture drains a capture session in its review step and runs the
// pipeline on the two stills.
func (s *CheckInService) SubmitCapture(ctx context.Context, sess *session.Session, cs *capture.Session, goalID string, note, locationName *string) (*models.CheckIn, error) {
	activity, selfie, err := cs.Submit()
	if err != nil {
		return nil, err
	}
	return s.Submit(ctx, sess, SubmitInput{
		GoalID:       goalID,
		Activity:     activity,
		Selfie:       selfie,
		Note:         note,
		LocationName: locationName,
	})
}

// upload stores one image; failure leaves the reference nil and the pipeline
// continues with whichever media succeeded.
func (s *CheckInService) upload(ctx context.Context, wg *sync.WaitGroup, data []byte, kind, ownerID string, out **string) {
	defer wg.Done()
	url, err := s.blobs.Upload(ctx, data, kind, ownerID)
	if err != nil {
		log.Warn().Err(err).Str("user_id", ownerID).Str("kind", kind).Msg("Media upload failed")
		return
	}
	*out = &url
}

func findGoal(goals []*models.Goal, id string) *models.Goal {
	for _, g := range goals {
		if g.ID == id {
			return g
		}
	}
	return nil
}

package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// ScoreResult is an authenticity judgment for a proof image.
type ScoreResult struct {
	Confidence int    `json:"confidence"`
	Verdict    string `json:"verdict"`
	IsFake     bool   `json:"is_fake"`
}

// Scorer produces an authenticity judgment for an activity image against the
// goal it claims to prove. Implementations must fail soft: a judgment is
// always returned, never an error.
type Scorer interface {
	Score(ctx context.Context, image []byte, goalTitle, definitionOfDone string) ScoreResult
}

// Fallback judgment substituted when the scoring service cannot be reached.
// Check-in creation is never blocked by scorer unavailability.
const (
	fallbackConfidence = 50

	// VerdictUnavailable is the fixed verdict for scorer transport/service errors.
	VerdictUnavailable = "Verification service unavailable."
	// VerdictTimedOut is the fixed verdict when the scorer call timed out.
	VerdictTimedOut = "Verification engine timed out."
)

// Verifier calls the remote authenticity scoring service.
type Verifier struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewVerifier creates a scorer client. A zero timeout leaves the call bounded
// only by the service's own behavior.
func NewVerifier(endpoint, apiKey string, timeout time.Duration) *Verifier {
	return &Verifier{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Image            string `json:"image"`
	GoalTitle        string `json:"goal_title"`
	DefinitionOfDone string `json:"definition_of_done"`
}

// Score submits the activity image for authenticity scoring. Any transport or
// service failure yields the neutral fallback judgment instead of an error.
func (v *Verifier) Score(ctx context.Context, image []byte, goalTitle, definitionOfDone string) ScoreResult {
	body, err := json.Marshal(scoreRequest{
		Image:            base64.StdEncoding.EncodeToString(image),
		GoalTitle:        goalTitle,
		DefinitionOfDone: definitionOfDone,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode scorer request")
		return fallback(VerdictUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(body))
	if err != nil {
		log.Error().Err(err).Msg("Failed to build scorer request")
		return fallback(VerdictUnavailable)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		log.Error().Err(err).Str("goal_title", goalTitle).Msg("Scorer call failed")
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			return fallback(VerdictTimedOut)
		}
		return fallback(VerdictUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Error().Int("status", resp.StatusCode).Str("goal_title", goalTitle).Msg("Scorer returned error status")
		return fallback(VerdictUnavailable)
	}

	var result ScoreResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Error().Err(err).Msg("Failed to decode scorer response")
		return fallback(VerdictUnavailable)
	}

	if result.Confidence < 0 {
		result.Confidence = 0
	}
	if result.Confidence > 100 {
		result.Confidence = 100
	}
	return result
}

func fallback(verdict string) ScoreResult {
	return ScoreResult{Confidence: fallbackConfidence, Verdict: verdict, IsFake: false}
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

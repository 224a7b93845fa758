// Package feed derives the denormalized view of recent check-ins consumed by
// presentation. It is pure: no state, no mutation, recomputed on every read.
package feed

import "pact-proof-backend/internal/models"

// Band classifies a check-in's authenticity judgment for display.
type Band string

// Authenticity bands.
const (
	BandVerified   Band = "verified"
	BandSuspicious Band = "suspicious"
	BandNeutral    Band = "neutral"
)

// Confidence thresholds for band classification.
const (
	verifiedThreshold   = 70
	suspiciousThreshold = 50
)

// Classify maps a check-in's judgment to its band: suspicious when flagged
// fake or confidence < 50, verified when confidence >= 70, neutral otherwise
// (including the 50-69 band and missing scores).
func Classify(ci *models.CheckIn) Band {
	if ci.IsFake {
		return BandSuspicious
	}
	if ci.ConfidenceScore == nil {
		return BandNeutral
	}
	switch score := *ci.ConfidenceScore; {
	case score >= verifiedThreshold:
		return BandVerified
	case score < suspiciousThreshold:
		return BandSuspicious
	default:
		return BandNeutral
	}
}

// Entry is one renderable feed row: the check-in together with its resolved
// goal and author projections, reaction count and authenticity band.
type Entry struct {
	CheckIn    *models.CheckIn `json:"check_in"`
	Goal       *models.Goal    `json:"goal,omitempty"`
	Author     *models.Profile `json:"author,omitempty"`
	KudosCount int             `json:"kudos_count"`
	Band       Band            `json:"band"`
}

// Assemble derives feed entries from cached check-ins, preserving order.
func Assemble(checkIns []*models.CheckIn) []Entry {
	entries := make([]Entry, 0, len(checkIns))
	for _, ci := range checkIns {
		entries = append(entries, Entry{
			CheckIn:    ci,
			Goal:       ci.Goal,
			Author:     ci.User,
			KudosCount: ci.KudosCount,
			Band:       Classify(ci),
		})
	}
	return entries
}

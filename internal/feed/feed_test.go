package feed

import (
	"testing"
	"time"

	"pact-proof-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func score(n int) *int { return &n }

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		checkIn *models.CheckIn
		want    Band
	}{
		{"high confidence", &models.CheckIn{ConfidenceScore: score(82)}, BandVerified},
		{"threshold is inclusive", &models.CheckIn{ConfidenceScore: score(70)}, BandVerified},
		{"just below verified", &models.CheckIn{ConfidenceScore: score(69)}, BandNeutral},
		{"middle band", &models.CheckIn{ConfidenceScore: score(50)}, BandNeutral},
		{"low confidence", &models.CheckIn{ConfidenceScore: score(49)}, BandSuspicious},
		{"zero confidence", &models.CheckIn{ConfidenceScore: score(0)}, BandSuspicious},
		{"missing score", &models.CheckIn{}, BandNeutral},
		{"fake flag wins over high confidence", &models.CheckIn{ConfidenceScore: score(95), IsFake: true}, BandSuspicious},
		{"fake flag without score", &models.CheckIn{IsFake: true}, BandSuspicious},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.checkIn))
		})
	}
}

func TestAssemblePreservesOrder(t *testing.T) {
	goal := &models.Goal{ID: "goal-1", Title: "Run 5k"}
	author := &models.Profile{ID: "user-1", Name: "Dana"}
	now := time.Now()

	checkIns := []*models.CheckIn{
		{ID: "ci-2", GoalID: goal.ID, Goal: goal, User: author, ConfidenceScore: score(82), KudosCount: 3, CreatedAt: now},
		{ID: "ci-1", GoalID: goal.ID, Goal: goal, User: author, ConfidenceScore: score(40), CreatedAt: now.Add(-time.Hour)},
	}

	entries := Assemble(checkIns)
	require.Len(t, entries, 2)

	assert.Equal(t, "ci-2", entries[0].CheckIn.ID)
	assert.Equal(t, BandVerified, entries[0].Band)
	assert.Equal(t, 3, entries[0].KudosCount)
	assert.Equal(t, goal, entries[0].Goal)
	assert.Equal(t, author, entries[0].Author)

	assert.Equal(t, "ci-1", entries[1].CheckIn.ID)
	assert.Equal(t, BandSuspicious, entries[1].Band)
	assert.Equal(t, 0, entries[1].KudosCount)
}

func TestAssembleEmpty(t *testing.T) {
	entries := Assemble(nil)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

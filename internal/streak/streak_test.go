package streak

import (
	"testing"
	"time"

	"pact-proof-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestComputeDaily(t *testing.T) {
	now := day("2026-08-31")

	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"no history", nil, 0},
		{"single check-in today", []time.Time{day("2026-08-31")}, 1},
		{"three consecutive days", []time.Time{day("2026-08-29"), day("2026-08-30"), day("2026-08-31")}, 3},
		{"unordered history", []time.Time{day("2026-08-31"), day("2026-08-29"), day("2026-08-30")}, 3},
		{"duplicates in one day count once", []time.Time{day("2026-08-31"), day("2026-08-31"), day("2026-08-30")}, 2},
		{"streak ending yesterday is alive", []time.Time{day("2026-08-29"), day("2026-08-30")}, 2},
		{"gap before now breaks streak", []time.Time{day("2026-08-27"), day("2026-08-28")}, 0},
		{"gap inside history restarts count", []time.Time{day("2026-08-25"), day("2026-08-26"), day("2026-08-30"), day("2026-08-31")}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(models.CadenceDaily, tt.times, now))
		})
	}
}

func TestComputeWeekly(t *testing.T) {
	// 2026-08-31 is a Monday.
	now := day("2026-08-31")

	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"this week only", []time.Time{day("2026-08-31")}, 1},
		{"two consecutive weeks", []time.Time{day("2026-08-26"), day("2026-08-31")}, 2},
		{"several check-ins in one week count once", []time.Time{day("2026-08-24"), day("2026-08-26"), day("2026-08-28")}, 1},
		{"sunday belongs to the preceding iso week", []time.Time{day("2026-08-30"), day("2026-08-31")}, 2},
		{"streak ending last week is alive", []time.Time{day("2026-08-26")}, 1},
		{"two week gap breaks streak", []time.Time{day("2026-08-12")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(models.CadenceWeekly, tt.times, now))
		})
	}
}

func TestComputeMonthly(t *testing.T) {
	now := day("2026-08-15")

	tests := []struct {
		name  string
		times []time.Time
		want  int
	}{
		{"three consecutive months", []time.Time{day("2026-06-30"), day("2026-07-01"), day("2026-08-02")}, 3},
		{"streak ending last month is alive", []time.Time{day("2026-07-10")}, 1},
		{"stale history", []time.Time{day("2026-05-10")}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Compute(models.CadenceMonthly, tt.times, now))
		})
	}

	// December and January are consecutive periods across the year boundary.
	boundary := []time.Time{day("2025-12-25"), day("2026-01-03")}
	assert.Equal(t, 2, Compute(models.CadenceMonthly, boundary, day("2026-01-15")))
}

func TestComputeOnce(t *testing.T) {
	now := day("2026-08-31")
	assert.Equal(t, 0, Compute(models.CadenceOnce, nil, now))
	assert.Equal(t, 1, Compute(models.CadenceOnce, []time.Time{day("2020-01-01")}, now), "any check-in completes a once goal")
	assert.Equal(t, 1, Compute(models.CadenceOnce, []time.Time{day("2020-01-01"), day("2026-08-31")}, now))
}

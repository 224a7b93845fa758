// Package streak derives a goal's streak from its check-in history. The
// streak counts consecutive qualifying periods (days, ISO weeks or months,
// depending on cadence) ending at the most recent check-in, and is only ever
// recomputed from history, never adjusted directly.
package streak

import (
	"time"

	"pact-proof-backend/internal/models"
)

// Compute returns the streak for a goal given the times of its check-ins.
// The times may be in any order and may contain several check-ins in the same
// period. A streak is alive when its most recent period is the current one or
// the one immediately before it; otherwise the streak is zero. For a "once"
// cadence any check-in yields a streak of 1.
func Compute(cadence models.Cadence, times []time.Time, now time.Time) int {
	if len(times) == 0 {
		return 0
	}
	if cadence == models.CadenceOnce {
		return 1
	}

	seen := make(map[int64]struct{}, len(times))
	periods := make([]int64, 0, len(times))
	for _, t := range times {
		p := periodIndex(cadence, t)
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		periods = append(periods, p)
	}

	latest := periods[0]
	for _, p := range periods[1:] {
		if p > latest {
			latest = p
		}
	}

	// A gap of more than one period before now breaks the streak.
	if periodIndex(cadence, now)-latest > 1 {
		return 0
	}

	count := 1
	for p := latest - 1; ; p-- {
		if _, ok := seen[p]; !ok {
			break
		}
		count++
	}
	return count
}

// periodIndex maps a time to a monotonically increasing index of its cadence
// period, so that consecutive periods differ by exactly one.
func periodIndex(cadence models.Cadence, t time.Time) int64 {
	t = t.UTC()
	switch cadence {
	case models.CadenceWeekly:
		// Days since epoch of the Monday starting t's ISO week.
		monday := t.AddDate(0, 0, -mondayOffset(t.Weekday()))
		return daysSinceEpoch(monday) / 7
	case models.CadenceMonthly:
		return int64(t.Year())*12 + int64(t.Month()-1)
	default: // daily
		return daysSinceEpoch(t)
	}
}

func daysSinceEpoch(t time.Time) int64 {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400
}

func mondayOffset(d time.Weekday) int {
	if d == time.Sunday {
		return 6
	}
	return int(d - time.Monday)
}

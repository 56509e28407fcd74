package stats

import (
	"log/slog"
	"math"
	"time"
)

// StreakState is the persisted daily-streak pair: consecutive active days
// and the timestamp of the activity that last advanced the streak.
type StreakState struct {
	Days       int64
	LastActive time.Time
}

// AdvanceStreak computes the streak after new activity at now.
// Day boundaries are evaluated in one fixed reference zone; actors in other
// zones may see their day roll over at an unexpected hour.
//
//	no prior activity        → (1, now)
//	same calendar day        → unchanged (no double credit)
//	next calendar day        → (days+1, now)
//	gap of more than one day → (1, now)
//
// An anomalous prior state (last activity in the future) fails safe to
// (1, now) with a warning instead of propagating.
func AdvanceStreak(prior StreakState, now time.Time, loc *time.Location) StreakState {
	if loc == nil {
		loc = time.UTC
	}
	if prior.LastActive.IsZero() {
		return StreakState{Days: 1, LastActive: now}
	}

	diff := calendarDayDiff(prior.LastActive, now, loc)
	switch {
	case diff == 0:
		return prior
	case diff == 1:
		days := prior.Days
		if days < 0 {
			days = 0
		}
		return StreakState{Days: days + 1, LastActive: now}
	case diff > 1:
		return StreakState{Days: 1, LastActive: now}
	default:
		slog.Warn("[Streak] Prior activity is in the future, resetting",
			"prior_last_active", prior.LastActive,
			"now", now,
		)
		return StreakState{Days: 1, LastActive: now}
	}
}

// calendarDayDiff returns whole calendar days between a and b in loc.
// Rounding absorbs DST transitions (23h/25h days).
func calendarDayDiff(a, b time.Time, loc *time.Location) int {
	a = a.In(loc)
	b = b.In(loc)
	dayA := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, loc)
	dayB := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, loc)
	return int(math.Round(dayB.Sub(dayA).Hours() / 24))
}

// Package quota computes the remaining weekly upload allowance for a plan.
// It is pure: callers pass upload timestamps and "now", nothing is read
// from storage here.
package quota

import (
	"time"

	"swinglab/pkg/domain"
)

// Window is the trailing interval uploads are counted over.
const Window = 7 * 24 * time.Hour

// PerClipAllowance is the sentinel allowance for the pay-per-clip plan.
// Large enough to never bind in practice while keeping arithmetic total.
const PerClipAllowance = 9999

var planLabels = map[domain.Plan]string{
	domain.PlanPerClip: "Swing Analysis (per-clip)",
	domain.PlanMinor:   "Minor League – 3 uploads/week",
	domain.PlanMajor:   "Major League – 10 uploads/week",
}

// Allowance returns the number of uploads a plan permits per rolling week.
// Unknown tiers get zero rather than an error so the function stays total.
func Allowance(plan domain.Plan) int {
	switch plan {
	case domain.PlanPerClip:
		return PerClipAllowance
	case domain.PlanMinor:
		return 3
	case domain.PlanMajor:
		return 10
	default:
		return 0
	}
}

// Label returns the user-facing plan name.
func Label(plan domain.Plan) string {
	if label, ok := planLabels[plan]; ok {
		return label
	}
	return string(plan)
}

// Used counts uploads inside the trailing window [now-Window, now].
// The lower bound is inclusive: an upload at exactly now-7d still counts.
func Used(uploadTimes []time.Time, now time.Time) int {
	cutoff := now.Add(-Window)
	used := 0
	for _, ts := range uploadTimes {
		if !ts.Before(cutoff) && !ts.After(now) {
			used++
		}
	}
	return used
}

// Remaining returns the uploads left in the current window, never negative.
func Remaining(plan domain.Plan, uploadTimes []time.Time, now time.Time) int {
	remaining := Allowance(plan) - Used(uploadTimes, now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

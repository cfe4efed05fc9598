package domain

import "time"

// Plan is a named quota/service level governing the weekly upload allowance.
type Plan string

const (
	// PlanPerClip is the pay-per-analysis plan. Uploads are effectively
	// unmetered; quota arithmetic uses a large sentinel allowance.
	PlanPerClip Plan = "swing"
	// PlanMinor allows 3 uploads per rolling week.
	PlanMinor Plan = "minor"
	// PlanMajor allows 10 uploads per rolling week.
	PlanMajor Plan = "major"
)

// ParsePlan maps a stored plan string to a known tier.
func ParsePlan(raw string) (Plan, bool) {
	switch Plan(raw) {
	case PlanPerClip, PlanMinor, PlanMajor:
		return Plan(raw), true
	default:
		return "", false
	}
}

// User is an athlete profile. The identity itself is owned by the external
// session provider; this record only carries the plan tier.
type User struct {
	ID        string    `json:"id"`
	Plan      Plan      `json:"plan"`
	CreatedAt time.Time `json:"createdAt"`
}

// Video is an accepted swing clip. Immutable once created: it is written
// atomically with a successful blob upload and never mutated or deleted.
type Video struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"ownerId"`
	StoragePath string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt"`

	// PlaybackURL is presigned at read time, never stored.
	PlaybackURL string `json:"playbackUrl,omitempty"`
}

// Analysis is the persisted result of one report-generator run against one
// video. At most one exists per (owner, video); re-analysis replaces it.
type Analysis struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	VideoID   string    `json:"videoId"`
	Feedback  string    `json:"feedback"`
	Drills    []string  `json:"drills"`
	CreatedAt time.Time `json:"createdAt"`
}

// Report is what the external report generator returns for a video URL.
type Report struct {
	Feedback string   `json:"feedback"`
	Drills   []string `json:"drills"`
}

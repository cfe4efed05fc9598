package store

import "swinglab/pkg/domain"

// Store defines persistence for athlete profiles, the video registry, and
// the analysis ledger.
type Store interface {
	// users
	// EnsureUser returns the profile for owner, creating it with
	// defaultPlan on first sight. Called once per session by the server,
	// never implicitly inside a read path.
	EnsureUser(owner string, defaultPlan domain.Plan) (domain.User, error)
	GetUser(owner string) (domain.User, bool, error)

	// video registry (append-only)
	CreateVideo(owner, storagePath string) (domain.Video, error)
	ListVideosByOwner(owner string) ([]domain.Video, error)
	GetVideo(owner, id string) (domain.Video, bool, error)

	// analysis ledger: at most one record per (owner, video)
	GetAnalysis(owner, videoID string) (domain.Analysis, bool, error)
	UpsertAnalysis(owner, videoID, feedback string, drills []string) (domain.Analysis, error)
}

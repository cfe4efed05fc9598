package store

import (
	"fmt"
	"sync"
	"time"

	"swinglab/internal/util"
	"swinglab/pkg/domain"
)

// MemoryStore keeps profiles, videos, and analyses in-process. It backs
// orchestrator and server tests and small local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[string]domain.User
	videos   map[string]domain.Video
	order    []string // video IDs in insertion order
	paths    map[string]struct{}
	analyses map[string]domain.Analysis // key: owner|videoID
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		videos:   make(map[string]domain.Video),
		paths:    make(map[string]struct{}),
		analyses: make(map[string]domain.Analysis),
	}
}

// EnsureUser creates the profile on first sight; an existing profile wins.
func (m *MemoryStore) EnsureUser(owner string, defaultPlan domain.Plan) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[owner]; ok {
		return user, nil
	}
	user := domain.User{
		ID:        owner,
		Plan:      defaultPlan,
		CreatedAt: time.Now().UTC(),
	}
	m.users[owner] = user
	return user, nil
}

// GetUser returns a profile by owner ID.
func (m *MemoryStore) GetUser(owner string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[owner]
	return user, ok, nil
}

// CreateVideo appends a video record, rejecting duplicate storage paths the
// way the durable store's unique index would.
func (m *MemoryStore) CreateVideo(owner, storagePath string) (domain.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.paths[storagePath]; exists {
		return domain.Video{}, fmt.Errorf("duplicate storage path %s", storagePath)
	}
	video := domain.Video{
		ID:          util.NewID(),
		OwnerID:     owner,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
	m.videos[video.ID] = video
	m.order = append(m.order, video.ID)
	m.paths[storagePath] = struct{}{}
	return video, nil
}

// ListVideosByOwner returns the owner's videos, newest first.
func (m *MemoryStore) ListVideosByOwner(owner string) ([]domain.Video, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Video, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		if v, ok := m.videos[m.order[i]]; ok && v.OwnerID == owner {
			res = append(res, v)
		}
	}
	return res, nil
}

// GetVideo retrieves one of the owner's videos.
func (m *MemoryStore) GetVideo(owner, id string) (domain.Video, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.videos[id]
	if !ok || v.OwnerID != owner {
		return domain.Video{}, false, nil
	}
	return v, true, nil
}

// GetAnalysis returns the ledger record for (owner, video), if any.
func (m *MemoryStore) GetAnalysis(owner, videoID string) (domain.Analysis, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.analyses[owner+"|"+videoID]
	return record, ok, nil
}

// UpsertAnalysis replaces any prior record for (owner, video).
func (m *MemoryStore) UpsertAnalysis(owner, videoID, feedback string, drills []string) (domain.Analysis, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record := domain.Analysis{
		ID:        util.NewID(),
		OwnerID:   owner,
		VideoID:   videoID,
		Feedback:  feedback,
		Drills:    DecodeDrills(EncodeDrills(drills)),
		CreatedAt: time.Now().UTC(),
	}
	m.analyses[owner+"|"+videoID] = record
	return record, nil
}

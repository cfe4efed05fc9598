package store

import (
	"reflect"
	"testing"

	"swinglab/pkg/domain"
)

func TestEnsureUserCreatesOnceAndKeepsPlan(t *testing.T) {
	s := NewMemoryStore()
	first, err := s.EnsureUser("owner-1", domain.PlanMajor)
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if first.Plan != domain.PlanMajor {
		t.Fatalf("plan = %s, want %s", first.Plan, domain.PlanMajor)
	}
	// A later ensure with a different default must not change the plan.
	second, err := s.EnsureUser("owner-1", domain.PlanMinor)
	if err != nil {
		t.Fatalf("ensure user again: %v", err)
	}
	if second.Plan != domain.PlanMajor {
		t.Fatalf("existing plan overwritten: got %s", second.Plan)
	}
}

func TestListVideosByOwnerNewestFirst(t *testing.T) {
	s := NewMemoryStore()
	v1, err := s.CreateVideo("owner-1", "swings/owner-1/a.mp4")
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	v2, err := s.CreateVideo("owner-1", "swings/owner-1/b.mp4")
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	if _, err := s.CreateVideo("owner-2", "swings/owner-2/c.mp4"); err != nil {
		t.Fatalf("create video: %v", err)
	}

	videos, err := s.ListVideosByOwner("owner-1")
	if err != nil {
		t.Fatalf("list videos: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("len = %d, want 2", len(videos))
	}
	if videos[0].ID != v2.ID || videos[1].ID != v1.ID {
		t.Fatalf("order = [%s %s], want newest first [%s %s]", videos[0].ID, videos[1].ID, v2.ID, v1.ID)
	}
}

func TestCreateVideoRejectsDuplicatePath(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.CreateVideo("owner-1", "swings/owner-1/a.mp4"); err != nil {
		t.Fatalf("create video: %v", err)
	}
	if _, err := s.CreateVideo("owner-1", "swings/owner-1/a.mp4"); err == nil {
		t.Fatalf("duplicate storage path should be rejected")
	}
}

func TestUpsertAnalysisReplacesPriorRecord(t *testing.T) {
	s := NewMemoryStore()
	if _, err := s.UpsertAnalysis("owner-1", "vid-1", "first pass", []string{"Tee work"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	replaced, err := s.UpsertAnalysis("owner-1", "vid-1", "second pass", []string{"Front toss", "Mirror swings"})
	if err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	stored, ok, err := s.GetAnalysis("owner-1", "vid-1")
	if err != nil || !ok {
		t.Fatalf("get analysis: ok=%v err=%v", ok, err)
	}
	if stored.Feedback != "second pass" {
		t.Fatalf("feedback = %q, want %q", stored.Feedback, "second pass")
	}
	if !reflect.DeepEqual(stored.Drills, replaced.Drills) {
		t.Fatalf("drills = %v, want %v", stored.Drills, replaced.Drills)
	}
	if !reflect.DeepEqual(stored.Drills, []string{"Front toss", "Mirror swings"}) {
		t.Fatalf("drills = %v", stored.Drills)
	}
}

func TestGetVideoScopedToOwner(t *testing.T) {
	s := NewMemoryStore()
	v, err := s.CreateVideo("owner-1", "swings/owner-1/a.mp4")
	if err != nil {
		t.Fatalf("create video: %v", err)
	}
	if _, ok, _ := s.GetVideo("owner-2", v.ID); ok {
		t.Fatalf("video should not be visible to another owner")
	}
	if _, ok, _ := s.GetVideo("owner-1", v.ID); !ok {
		t.Fatalf("owner should see own video")
	}
}

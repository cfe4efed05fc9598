package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"swinglab/pkg/domain"
	"swinglab/pkg/store"
)

type fakeObjectStore struct {
	mu      sync.Mutex
	puts    []string
	failPut bool
	barrier *sync.WaitGroup
}

func (f *fakeObjectStore) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	if f.barrier != nil {
		f.barrier.Done()
		f.barrier.Wait()
	}
	if f.failPut {
		return errors.New("blob store down")
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return err
	}
	f.mu.Lock()
	f.puts = append(f.puts, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeObjectStore) PublicURL(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://blobs.test/" + key, nil
}

func (f *fakeObjectStore) putCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.puts)
}

type fakeReporter struct {
	report domain.Report
	err    error
	calls  int
}

func (f *fakeReporter) GenerateReport(_ context.Context, _ string) (domain.Report, error) {
	f.calls++
	if f.err != nil {
		return domain.Report{}, f.err
	}
	return f.report, nil
}

// failingVideoStore fails CreateVideo to exercise the orphan-blob path.
type failingVideoStore struct {
	store.Store
}

func (f *failingVideoStore) CreateVideo(string, string) (domain.Video, error) {
	return domain.Video{}, errors.New("metadata store rejected write")
}

func newTestApp(t *testing.T, s store.Store, objects *fakeObjectStore, reporter *fakeReporter) *App {
	t.Helper()
	if s == nil {
		s = store.NewMemoryStore()
	}
	if objects == nil {
		objects = &fakeObjectStore{}
	}
	if reporter == nil {
		reporter = &fakeReporter{}
	}
	a, err := New(Config{Store: s, Objects: objects, Reporter: reporter})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return a
}

func testUser(plan domain.Plan) domain.User {
	return domain.User{ID: "owner-1", Plan: plan}
}

func upload(t *testing.T, a *App, user domain.User, name string) domain.Video {
	t.Helper()
	body := []byte("clip bytes")
	video, err := a.UploadSwing(context.Background(), user, name, bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("upload %s: %v", name, err)
	}
	return video
}

func TestUploadSwingCreatesVideoNewestFirst(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, nil, objects, nil)
	user := testUser(domain.PlanMinor)

	upload(t, a, user, "open side.mp4")
	v2 := upload(t, a, user, "behind.mp4")

	videos, err := a.ListSwings(context.Background(), user)
	if err != nil {
		t.Fatalf("list swings: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("len = %d, want 2", len(videos))
	}
	if videos[0].ID != v2.ID {
		t.Fatalf("newest video should come first")
	}
	if videos[0].PlaybackURL == "" {
		t.Fatalf("listed videos should carry a playback URL")
	}
	if objects.putCount() != 2 {
		t.Fatalf("puts = %d, want 2", objects.putCount())
	}
	for _, key := range objects.puts {
		if !strings.HasPrefix(key, "swings/owner-1/") {
			t.Fatalf("storage key %q not owner-scoped", key)
		}
		if strings.Contains(key, " ") {
			t.Fatalf("storage key %q contains whitespace", key)
		}
	}
}

func TestUploadSwingStorageKeysUniqueForSameName(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, nil, objects, nil)
	user := testUser(domain.PlanMajor)

	upload(t, a, user, "swing.mp4")
	upload(t, a, user, "swing.mp4")

	if objects.puts[0] == objects.puts[1] {
		t.Fatalf("identical file names must not collide: %q", objects.puts[0])
	}
}

func TestUploadSwingQuotaExhaustedWritesNothing(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, nil, objects, nil)
	user := testUser(domain.PlanMinor)

	for i := 0; i < 3; i++ {
		upload(t, a, user, fmt.Sprintf("clip-%d.mp4", i))
	}

	body := []byte("one more")
	_, err := a.UploadSwing(context.Background(), user, "extra.mp4", bytes.NewReader(body), int64(len(body)))
	var quotaErr QuotaExceededError
	if !errors.As(err, &quotaErr) {
		t.Fatalf("err = %v, want QuotaExceededError", err)
	}
	if quotaErr.Allowance != 3 || quotaErr.Used != 3 {
		t.Fatalf("quota error carries allowance=%d used=%d, want 3/3", quotaErr.Allowance, quotaErr.Used)
	}
	if objects.putCount() != 3 {
		t.Fatalf("blob store must not be called on a rejected upload")
	}
	videos, _ := a.ListSwings(context.Background(), user)
	if len(videos) != 3 {
		t.Fatalf("no video record may exist for a rejected upload")
	}
}

func TestUploadSwingBlobFailureCreatesNoRecord(t *testing.T) {
	objects := &fakeObjectStore{failPut: true}
	a := newTestApp(t, nil, objects, nil)
	user := testUser(domain.PlanMinor)

	body := []byte("clip")
	_, err := a.UploadSwing(context.Background(), user, "swing.mp4", bytes.NewReader(body), int64(len(body)))
	if !errors.Is(err, ErrUploadFailed) {
		t.Fatalf("err = %v, want ErrUploadFailed", err)
	}
	videos, _ := a.ListSwings(context.Background(), user)
	if len(videos) != 0 {
		t.Fatalf("no video record may exist after a blob failure")
	}
}

func TestUploadSwingRegistryFailureLeavesOrphanBlob(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, &failingVideoStore{Store: store.NewMemoryStore()}, objects, nil)
	user := testUser(domain.PlanMinor)

	body := []byte("clip")
	_, err := a.UploadSwing(context.Background(), user, "swing.mp4", bytes.NewReader(body), int64(len(body)))
	if !errors.Is(err, ErrPersistence) {
		t.Fatalf("err = %v, want ErrPersistence", err)
	}
	// The blob write happened and is not rolled back.
	if objects.putCount() != 1 {
		t.Fatalf("puts = %d, want the orphan blob to remain", objects.putCount())
	}
}

func TestUploadSwingRejectsEmptyBody(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)
	if _, err := a.UploadSwing(context.Background(), testUser(domain.PlanMinor), "swing.mp4", bytes.NewReader(nil), 0); err == nil {
		t.Fatalf("empty upload should fail")
	}
}

// The quota is soft: concurrent uploads can both pass the remaining check
// before either writes. This pins that tradeoff rather than fixing it with
// pessimistic locking.
func TestUploadSwingSoftQuotaUnderConcurrency(t *testing.T) {
	objects := &fakeObjectStore{}
	a := newTestApp(t, nil, objects, nil)
	user := testUser(domain.PlanMinor)

	for i := 0; i < 2; i++ {
		upload(t, a, user, fmt.Sprintf("warmup-%d.mp4", i))
	}

	// remaining == 1; both concurrent callers read it before either writes.
	barrier := &sync.WaitGroup{}
	barrier.Add(2)
	objects.barrier = barrier
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			body := []byte("clip")
			_, errs[slot] = a.UploadSwing(context.Background(), user, fmt.Sprintf("race-%d.mp4", slot), bytes.NewReader(body), int64(len(body)))
		}(i)
	}
	wg.Wait()

	if errs[0] != nil || errs[1] != nil {
		t.Fatalf("soft quota admits concurrent callers: errs = %v %v", errs[0], errs[1])
	}
	videos, _ := a.ListSwings(context.Background(), user)
	if len(videos) != 4 {
		t.Fatalf("len = %d, want 4 (allowance transiently exceeded by design)", len(videos))
	}
}

func TestAnalyzeSwingPersistsReport(t *testing.T) {
	reporter := &fakeReporter{report: domain.Report{
		Feedback: "Good load.",
		Drills:   []string{"Tee work", "Front toss"},
	}}
	a := newTestApp(t, nil, nil, reporter)
	user := testUser(domain.PlanMinor)
	video := upload(t, a, user, "swing.mp4")

	record, err := a.AnalyzeSwing(context.Background(), user, video.ID)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if record.Feedback != "Good load." {
		t.Fatalf("feedback = %q", record.Feedback)
	}
	if !reflect.DeepEqual(record.Drills, []string{"Tee work", "Front toss"}) {
		t.Fatalf("drills = %v, want exact order preserved", record.Drills)
	}

	cached, ok, err := a.GetAnalysis(user, video.ID)
	if err != nil || !ok {
		t.Fatalf("get analysis: ok=%v err=%v", ok, err)
	}
	if cached.Feedback != record.Feedback {
		t.Fatalf("cached feedback = %q", cached.Feedback)
	}
}

func TestAnalyzeSwingTwiceOverwritesSingleRecord(t *testing.T) {
	reporter := &fakeReporter{report: domain.Report{Feedback: "first", Drills: []string{"A"}}}
	a := newTestApp(t, nil, nil, reporter)
	user := testUser(domain.PlanMinor)
	video := upload(t, a, user, "swing.mp4")

	if _, err := a.AnalyzeSwing(context.Background(), user, video.ID); err != nil {
		t.Fatalf("first analyze: %v", err)
	}
	reporter.report = domain.Report{Feedback: "second", Drills: []string{"B", "C"}}
	if _, err := a.AnalyzeSwing(context.Background(), user, video.ID); err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if reporter.calls != 2 {
		t.Fatalf("generator calls = %d, want 2 (no already-analyzed rejection)", reporter.calls)
	}

	record, ok, err := a.GetAnalysis(user, video.ID)
	if err != nil || !ok {
		t.Fatalf("get analysis: ok=%v err=%v", ok, err)
	}
	if record.Feedback != "second" {
		t.Fatalf("feedback = %q, want the second call to win", record.Feedback)
	}
	if !reflect.DeepEqual(record.Drills, []string{"B", "C"}) {
		t.Fatalf("drills = %v", record.Drills)
	}
}

func TestAnalyzeSwingGeneratorFailureLeavesLedgerUntouched(t *testing.T) {
	reporter := &fakeReporter{err: errors.New("upstream timeout")}
	a := newTestApp(t, nil, nil, reporter)
	user := testUser(domain.PlanMinor)
	video := upload(t, a, user, "swing.mp4")

	_, err := a.AnalyzeSwing(context.Background(), user, video.ID)
	if !errors.Is(err, ErrGenerationFailed) {
		t.Fatalf("err = %v, want ErrGenerationFailed", err)
	}
	if _, ok, _ := a.GetAnalysis(user, video.ID); ok {
		t.Fatalf("no analysis record may exist after a generation failure")
	}
}

func TestAnalyzeSwingUnknownVideo(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)
	user := testUser(domain.PlanMinor)
	if _, err := a.AnalyzeSwing(context.Background(), user, "missing"); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("err = %v, want ErrVideoNotFound", err)
	}
	// Another owner's video is indistinguishable from a missing one.
	other := domain.User{ID: "owner-2", Plan: domain.PlanMinor}
	video := upload(t, a, user, "swing.mp4")
	if _, err := a.AnalyzeSwing(context.Background(), other, video.ID); !errors.Is(err, ErrVideoNotFound) {
		t.Fatalf("err = %v, want ErrVideoNotFound for foreign video", err)
	}
}

func TestGetOverviewComputesWindow(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)
	user := testUser(domain.PlanMajor)
	for i := 0; i < 3; i++ {
		upload(t, a, user, fmt.Sprintf("clip-%d.mp4", i))
	}

	overview, err := a.GetOverview(user)
	if err != nil {
		t.Fatalf("overview: %v", err)
	}
	if overview.Allowance != 10 || overview.Used != 3 || overview.Remaining != 7 {
		t.Fatalf("overview = %+v, want allowance 10 used 3 remaining 7", overview)
	}
	if overview.PlanLabel == "" {
		t.Fatalf("overview should carry a plan label")
	}
}

func TestEnsureUserDefaultsPlan(t *testing.T) {
	a := newTestApp(t, nil, nil, nil)
	user, err := a.EnsureUser("owner-9")
	if err != nil {
		t.Fatalf("ensure user: %v", err)
	}
	if user.Plan != domain.PlanMajor {
		t.Fatalf("default plan = %s, want %s", user.Plan, domain.PlanMajor)
	}
	if _, err := a.EnsureUser("  "); err == nil {
		t.Fatalf("blank owner should fail")
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"swinglab/internal/util"
	"swinglab/pkg/ai"
	"swinglab/pkg/domain"
	"swinglab/pkg/quota"
	"swinglab/pkg/storage"
	"swinglab/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL    string
	Store          store.Store
	Objects        storage.ObjectStore
	Reporter       ai.ReportGenerator
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	ReportBaseURL  string
	ReportAPIKey   string
	ReportModel    string
	DefaultPlan    domain.Plan
}

// App wires the quota policy, blob store, video registry, report generator,
// and analysis ledger into the upload and analyze transactions.
type App struct {
	store         store.Store
	objects       storage.ObjectStore
	reporter      ai.ReportGenerator
	defaultPlan   domain.Plan
	presignExpiry time.Duration
}

// New constructs the application. Store, Objects, and Reporter may be
// injected (tests); otherwise they are built from the config.
func New(cfg Config) (*App, error) {
	objects := cfg.Objects
	if objects == nil {
		var err error
		objects, err = storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return nil, err
		}
	}
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	reporter := cfg.Reporter
	if reporter == nil {
		if cfg.ReportBaseURL == "" || cfg.ReportModel == "" {
			return nil, fmt.Errorf("report generator base URL and model required")
		}
		reporter = ai.NewOpenAICompatReporter(cfg.ReportBaseURL, cfg.ReportAPIKey, cfg.ReportModel)
	}
	defaultPlan := cfg.DefaultPlan
	if defaultPlan == "" {
		defaultPlan = domain.PlanMajor
	}

	return &App{
		store:         dataStore,
		objects:       objects,
		reporter:      reporter,
		defaultPlan:   defaultPlan,
		presignExpiry: 15 * time.Minute,
	}, nil
}

// EnsureUser materializes the athlete profile for a session subject. The
// identity provider has already vouched for the owner; this only attaches
// the plan tier, creating the profile with the default plan on first sight.
func (a *App) EnsureUser(owner string) (domain.User, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return domain.User{}, errors.New("owner required")
	}
	user, err := a.store.EnsureUser(owner, a.defaultPlan)
	if err != nil {
		return domain.User{}, fmt.Errorf("%w: ensure user: %v", ErrPersistence, err)
	}
	return user, nil
}

// UploadSwing runs the upload transaction: quota check, blob write, video
// record. Blob first, metadata second, so a failure leaves at most an
// unreferenced blob and never a video record pointing at nothing.
//
// The quota is soft: two concurrent uploads from one owner can both read
// the same remaining count before either writes, transiently exceeding the
// allowance by at most the number of concurrent callers. The durable store
// favors availability over a serialized counter for this.
func (a *App) UploadSwing(ctx context.Context, user domain.User, filename string, r io.Reader, size int64) (domain.Video, error) {
	if strings.TrimSpace(user.ID) == "" {
		return domain.Video{}, errors.New("owner required")
	}
	if size <= 0 {
		return domain.Video{}, errors.New("empty upload")
	}
	if filename == "" {
		return domain.Video{}, errors.New("filename required")
	}

	existing, err := a.store.ListVideosByOwner(user.ID)
	if err != nil {
		return domain.Video{}, fmt.Errorf("%w: list videos: %v", ErrPersistence, err)
	}
	now := time.Now().UTC()
	uploadTimes := make([]time.Time, 0, len(existing))
	for _, v := range existing {
		uploadTimes = append(uploadTimes, v.CreatedAt)
	}
	if quota.Remaining(user.Plan, uploadTimes, now) <= 0 {
		return domain.Video{}, QuotaExceededError{
			Plan:      user.Plan,
			Allowance: quota.Allowance(user.Plan),
			Used:      quota.Used(uploadTimes, now),
		}
	}

	key := buildStorageKey(user.ID, now, filename)
	contentType := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if err := a.objects.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Video{}, fmt.Errorf("%w: store clip: %v", ErrUploadFailed, err)
	}

	video, err := a.store.CreateVideo(user.ID, key)
	if err != nil {
		// The blob stays: an unreferenced object is an operational cleanup
		// concern, not a reason to risk deleting bytes another writer owns.
		util.LoggerFromContext(ctx).Error("partial_upload_orphan",
			"owner", user.ID,
			"storage_path", key,
			"err", err,
		)
		return domain.Video{}, fmt.Errorf("%w: create video: %v", ErrPersistence, err)
	}
	return video, nil
}

// ListSwings returns the owner's videos, newest first, each with a
// presigned playback URL. URLs are resolved concurrently.
func (a *App) ListSwings(ctx context.Context, user domain.User) ([]domain.Video, error) {
	videos, err := a.store.ListVideosByOwner(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: list videos: %v", ErrPersistence, err)
	}
	g, gctx := errgroup.WithContext(ctx)
	for i := range videos {
		i := i
		g.Go(func() error {
			url, err := a.objects.PublicURL(gctx, videos[i].StoragePath, a.presignExpiry)
			if err != nil {
				return fmt.Errorf("%w: presign %s: %v", ErrPersistence, videos[i].StoragePath, err)
			}
			videos[i].PlaybackURL = url
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return videos, nil
}

// GetSwing retrieves one of the owner's videos with a playback URL.
func (a *App) GetSwing(ctx context.Context, user domain.User, videoID string) (domain.Video, error) {
	video, ok, err := a.store.GetVideo(user.ID, videoID)
	if err != nil {
		return domain.Video{}, fmt.Errorf("%w: get video: %v", ErrPersistence, err)
	}
	if !ok {
		return domain.Video{}, ErrVideoNotFound
	}
	url, err := a.objects.PublicURL(ctx, video.StoragePath, a.presignExpiry)
	if err != nil {
		return domain.Video{}, fmt.Errorf("%w: presign %s: %v", ErrPersistence, video.StoragePath, err)
	}
	video.PlaybackURL = url
	return video, nil
}

// AnalyzeSwing runs the analyze transaction: resolve a fetchable URL for
// the clip, call the report generator once (no in-core retry; the caller
// owns timeout and retry policy), and upsert the ledger record.
//
// Re-invocation is always legal and overwrites the prior record; two
// concurrent calls are last-writer-wins with no corruption.
func (a *App) AnalyzeSwing(ctx context.Context, user domain.User, videoID string) (domain.Analysis, error) {
	video, ok, err := a.store.GetVideo(user.ID, videoID)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: get video: %v", ErrPersistence, err)
	}
	if !ok {
		return domain.Analysis{}, ErrVideoNotFound
	}

	videoURL, err := a.objects.PublicURL(ctx, video.StoragePath, a.presignExpiry)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: resolve clip url: %v", ErrGenerationFailed, err)
	}

	report, err := a.reporter.GenerateReport(ctx, videoURL)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: %v", ErrGenerationFailed, err)
	}

	record, err := a.store.UpsertAnalysis(user.ID, video.ID, report.Feedback, report.Drills)
	if err != nil {
		return domain.Analysis{}, fmt.Errorf("%w: save analysis: %v", ErrPersistence, err)
	}
	return record, nil
}

// GetAnalysis returns the cached ledger record for one of the owner's
// videos, if it exists.
func (a *App) GetAnalysis(user domain.User, videoID string) (domain.Analysis, bool, error) {
	if _, ok, err := a.store.GetVideo(user.ID, videoID); err != nil {
		return domain.Analysis{}, false, fmt.Errorf("%w: get video: %v", ErrPersistence, err)
	} else if !ok {
		return domain.Analysis{}, false, ErrVideoNotFound
	}
	record, ok, err := a.store.GetAnalysis(user.ID, videoID)
	if err != nil {
		return domain.Analysis{}, false, fmt.Errorf("%w: get analysis: %v", ErrPersistence, err)
	}
	return record, ok, nil
}

// Overview summarizes the athlete's plan and quota window for the
// dashboard header: allowance, uploads used in the trailing week, and
// what is left. The window is recomputed from the registry on every call.
type Overview struct {
	User      domain.User `json:"user"`
	PlanLabel string      `json:"planLabel"`
	Allowance int         `json:"allowance"`
	Used      int         `json:"used"`
	Remaining int         `json:"remaining"`
}

// GetOverview computes the dashboard summary for a user.
func (a *App) GetOverview(user domain.User) (Overview, error) {
	videos, err := a.store.ListVideosByOwner(user.ID)
	if err != nil {
		return Overview{}, fmt.Errorf("%w: list videos: %v", ErrPersistence, err)
	}
	now := time.Now().UTC()
	uploadTimes := make([]time.Time, 0, len(videos))
	for _, v := range videos {
		uploadTimes = append(uploadTimes, v.CreatedAt)
	}
	return Overview{
		User:      user,
		PlanLabel: quota.Label(user.Plan),
		Allowance: quota.Allowance(user.Plan),
		Used:      quota.Used(uploadTimes, now),
		Remaining: quota.Remaining(user.Plan, uploadTimes, now),
	}, nil
}

// buildStorageKey derives a collision-resistant object key. The timestamp
// keeps keys sortable; the uuid disambiguates identical file names uploaded
// inside the same millisecond.
func buildStorageKey(owner string, now time.Time, filename string) string {
	name := sanitizeFilename(filepath.Base(filename))
	if name == "" {
		name = "swing"
	}
	return path.Join("swings", owner, fmt.Sprintf("%d-%s-%s", now.UnixMilli(), uuid.NewString(), name))
}

func sanitizeFilename(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	lastDash := false
	for _, r := range name {
		if r <= 0x7f {
			if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.' || r == '-' || r == '_' {
				b.WriteRune(r)
				lastDash = false
				continue
			}
		}
		if !lastDash {
			b.WriteByte('-')
			lastDash = true
		}
	}
	return strings.Trim(b.String(), "-")
}

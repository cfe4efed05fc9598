package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"swinglab/internal/util"
	"swinglab/pkg/domain"
)

const migrateLockID int64 = 52415241

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &VideoModel{}, &AnalysisModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// EnsureUser materializes the profile for owner on first sight. An existing
// profile wins; defaultPlan is only used for the initial insert.
func (s *GormStore) EnsureUser(owner string, defaultPlan domain.Plan) (domain.User, error) {
	model := UserModel{
		ID:        owner,
		Plan:      string(defaultPlan),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoNothing: true,
	}).Create(&model).Error; err != nil {
		return domain.User{}, err
	}
	user, ok, err := s.GetUser(owner)
	if err != nil {
		return domain.User{}, err
	}
	if !ok {
		return domain.User{}, fmt.Errorf("user %s missing after ensure", owner)
	}
	return user, nil
}

// GetUser returns a profile by owner ID.
func (s *GormStore) GetUser(owner string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", owner).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// CreateVideo appends a video record. The write is all-or-nothing: on error
// no partial record exists.
func (s *GormStore) CreateVideo(owner, storagePath string) (domain.Video, error) {
	model := VideoModel{
		ID:          util.NewID(),
		OwnerID:     owner,
		StoragePath: storagePath,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Video{}, err
	}
	return videoFromModel(model), nil
}

// ListVideosByOwner returns the owner's videos, newest first.
func (s *GormStore) ListVideosByOwner(owner string) ([]domain.Video, error) {
	var models []VideoModel
	if err := s.db.Where("owner_id = ?", owner).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Video, 0, len(models))
	for _, m := range models {
		res = append(res, videoFromModel(m))
	}
	return res, nil
}

// GetVideo retrieves one of the owner's videos.
func (s *GormStore) GetVideo(owner, id string) (domain.Video, bool, error) {
	var model VideoModel
	if err := s.db.First(&model, "id = ? AND owner_id = ?", id, owner).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Video{}, false, nil
		}
		return domain.Video{}, false, err
	}
	return videoFromModel(model), true, nil
}

// GetAnalysis returns the ledger record for (owner, video), if any.
func (s *GormStore) GetAnalysis(owner, videoID string) (domain.Analysis, bool, error) {
	var model AnalysisModel
	if err := s.db.First(&model, "owner_id = ? AND video_id = ?", owner, videoID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Analysis{}, false, nil
		}
		return domain.Analysis{}, false, err
	}
	return analysisFromModel(model), true, nil
}

// UpsertAnalysis writes the ledger record for (owner, video), replacing any
// prior one. The unique index makes concurrent writers last-writer-wins.
func (s *GormStore) UpsertAnalysis(owner, videoID, feedback string, drills []string) (domain.Analysis, error) {
	model := AnalysisModel{
		ID:        util.NewID(),
		OwnerID:   owner,
		VideoID:   videoID,
		Feedback:  feedback,
		Drills:    EncodeDrills(drills),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "owner_id"}, {Name: "video_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"feedback", "drills", "created_at"}),
	}).Create(&model).Error; err != nil {
		return domain.Analysis{}, err
	}
	stored, ok, err := s.GetAnalysis(owner, videoID)
	if err != nil {
		return domain.Analysis{}, err
	}
	if !ok {
		return domain.Analysis{}, fmt.Errorf("analysis for video %s missing after upsert", videoID)
	}
	return stored, nil
}

func userFromModel(m UserModel) domain.User {
	plan, ok := domain.ParsePlan(m.Plan)
	if !ok {
		plan = domain.PlanMajor
	}
	return domain.User{
		ID:        m.ID,
		Plan:      plan,
		CreatedAt: m.CreatedAt,
	}
}

func videoFromModel(m VideoModel) domain.Video {
	return domain.Video{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		StoragePath: m.StoragePath,
		CreatedAt:   m.CreatedAt,
	}
}

func analysisFromModel(m AnalysisModel) domain.Analysis {
	return domain.Analysis{
		ID:        m.ID,
		OwnerID:   m.OwnerID,
		VideoID:   m.VideoID,
		Feedback:  m.Feedback,
		Drills:    DecodeDrills(m.Drills),
		CreatedAt: m.CreatedAt,
	}
}

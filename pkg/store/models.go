package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID        string    `gorm:"primaryKey"`
	Plan      string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null"`
}

type VideoModel struct {
	ID          string    `gorm:"primaryKey"`
	OwnerID     string    `gorm:"not null;index"`
	StoragePath string    `gorm:"uniqueIndex;not null"`
	CreatedAt   time.Time `gorm:"not null;index"`
}

type AnalysisModel struct {
	ID        string         `gorm:"primaryKey"`
	OwnerID   string         `gorm:"not null;uniqueIndex:idx_analysis_owner_video"`
	VideoID   string         `gorm:"not null;uniqueIndex:idx_analysis_owner_video"`
	Feedback  string         `gorm:"type:text"`
	Drills    datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt time.Time      `gorm:"not null"`
}

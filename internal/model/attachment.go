package model

import (
	"time"

	"github.com/google/uuid"
)

// FileAttachment is metadata for one version of a file stored in an external blob store.
// Versions of the same logical file form a tree through ParentFileID.
type FileAttachment struct {
	ID           uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	TaskID       uuid.UUID  `gorm:"type:uuid;not null;index"`
	UploadedBy   uuid.UUID  `gorm:"type:uuid;not null"`
	FileName     string     `gorm:"not null"`
	FilePath     string     `gorm:"not null"`
	FileType     string
	FileSize     int64
	Version      int        `gorm:"not null"`
	ParentFileID *uuid.UUID `gorm:"type:uuid;index"`
	CreatedAt    time.Time  `gorm:"not null;autoCreateTime:false"`
	UpdatedAt    time.Time  `gorm:"not null;autoUpdateTime:false"`

	Versions []FileAttachment `gorm:"foreignKey:ParentFileID"`
}

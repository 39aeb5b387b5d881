package model

import (
	"time"

	"github.com/google/uuid"
)

// ProjectMember grants a non-owner access to a project.
type ProjectMember struct {
	ID        uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;index"`
	Role      string    `gorm:"not null;check:role IN ('viewer', 'editor')"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime:false"`

	Project Project `gorm:"foreignKey:ProjectID"`
	User    User    `gorm:"foreignKey:UserID"`
}

// Member roles within a project.
const (
	MemberViewer = "viewer" // read only
	MemberEditor = "editor" // may change tasks, comments and attachments
)

package model

import (
	"time"

	"github.com/google/uuid"
)

type Role string

// User roles. Every registered account starts as a contributor.
const (
	RoleAdmin       Role = "ADMIN"
	RoleManager     Role = "MANAGER"
	RoleContributor Role = "CONTRIBUTOR"
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleContributor:
		return true
	}
	return false
}

type User struct {
	ID             uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Email          string    `gorm:"uniqueIndex;not null"`
	HashedPassword string    `gorm:"not null"`
	Name           string    `gorm:"not null"`
	Role           Role      `gorm:"type:varchar(20);not null"`
	Enabled        bool      `gorm:"not null"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime:false"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime:false"`
}

package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a thin projection of the identity store. The engine only needs a
// stable id to hang profiles, preferences and feedback off of; registration,
// passwords and sessions live elsewhere.
type User struct {
	ID        uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	CreatedAt time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:now()" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (User) TableName() string { return "user" }

package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User represents a Deckly account that owns proposals and carries a quota.
type User struct {
	ID string `gorm:"type:varchar(36);primaryKey"` // Opaque account identifier (UUID).

	Email    string `gorm:"type:text;not null;uniqueIndex"` // Login email address.
	Name     string `gorm:"type:text"`                      // Display name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	IsAdmin  bool `gorm:"not null;default:false"` // Grants access to the admin dashboard.
	Disabled bool `gorm:"not null;default:false"` // Explicit disable flag.

	LastLoginAt *time.Time // Last successful login.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if strings.TrimSpace(u.ID) == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

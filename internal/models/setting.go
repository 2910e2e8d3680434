package models

import (
	"time"

	"gorm.io/datatypes"
)

// Setting stores a runtime configuration value as JSON.
type Setting struct {
	Key   string         `gorm:"type:varchar(128);primaryKey"` // Setting key.
	Value datatypes.JSON `gorm:"not null"`                     // JSON encoded value.

	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

package settings

import (
	"context"
	"encoding/json"
	"strings"
	"sync/atomic"
	"time"

	"github.com/deckly-app/deckly/internal/models"
	"gorm.io/gorm"
)

type dbConfig struct {
	updatedAt time.Time
	values    map[string]json.RawMessage
}

var current atomic.Pointer[dbConfig]

// StoreDBConfig replaces the in-memory settings snapshot.
func StoreDBConfig(updatedAt time.Time, values map[string]json.RawMessage) {
	copied := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		copied[k] = v
	}
	current.Store(&dbConfig{updatedAt: updatedAt.UTC(), values: copied})
}

// DBConfigValue returns the raw JSON value stored for key.
func DBConfigValue(key string) (json.RawMessage, bool) {
	cfg := current.Load()
	if cfg == nil {
		return nil, false
	}
	v, ok := cfg.values[key]
	return v, ok
}

// DBConfigUpdatedAt returns the newest update time seen in the snapshot.
func DBConfigUpdatedAt() time.Time {
	cfg := current.Load()
	if cfg == nil {
		return time.Time{}
	}
	return cfg.updatedAt
}

// Refresh rebuilds the in-memory settings snapshot from the settings table.
func Refresh(ctx context.Context, db *gorm.DB) error {
	var rows []models.Setting
	if errFind := db.WithContext(ctx).
		Select("key", "value", "updated_at").
		Order("key ASC").
		Find(&rows).Error; errFind != nil {
		return errFind
	}

	values := make(map[string]json.RawMessage, len(rows))
	maxUpdatedAt := time.Time{}
	for _, row := range rows {
		key := strings.TrimSpace(row.Key)
		if key == "" {
			continue
		}
		values[key] = json.RawMessage(row.Value)
		if row.UpdatedAt.After(maxUpdatedAt) {
			maxUpdatedAt = row.UpdatedAt
		}
	}
	StoreDBConfig(maxUpdatedAt, values)
	return nil
}

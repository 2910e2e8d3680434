package ratelimit

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	internalsettings "github.com/deckly-app/deckly/internal/settings"
)

// SettingsConfig is the throttle configuration read from the settings snapshot.
type SettingsConfig struct {
	Limit         int
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// LoadSettingsConfig reads the current snapshot, ignoring malformed values.
func LoadSettingsConfig() SettingsConfig {
	cfg := SettingsConfig{
		Limit:       internalsettings.DefaultGenerationRateLimit,
		RedisPrefix: internalsettings.DefaultRateLimitRedisPrefix,
	}
	lookupInt(internalsettings.GenerationRateLimitKey, &cfg.Limit)
	lookupBool(internalsettings.RateLimitRedisEnabledKey, &cfg.RedisEnabled)
	lookupString(internalsettings.RateLimitRedisAddrKey, &cfg.RedisAddr)
	lookupString(internalsettings.RateLimitRedisPasswordKey, &cfg.RedisPassword)
	lookupInt(internalsettings.RateLimitRedisDBKey, &cfg.RedisDB)
	lookupString(internalsettings.RateLimitRedisPrefixKey, &cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	return cfg
}

func lookupInt(key string, dst *int) {
	if raw, ok := internalsettings.DBConfigValue(key); ok {
		if v, okParse := parseNonNegativeInt(raw); okParse {
			*dst = v
		}
	}
}

func lookupBool(key string, dst *bool) {
	if raw, ok := internalsettings.DBConfigValue(key); ok {
		if v, okParse := parseBool(raw); okParse {
			*dst = v
		}
	}
}

func lookupString(key string, dst *string) {
	if raw, ok := internalsettings.DBConfigValue(key); ok {
		var v string
		if json.Unmarshal(bytes.TrimSpace(raw), &v) == nil {
			*dst = strings.TrimSpace(v)
		}
	}
}

// parseBool accepts JSON booleans, 0/1 and common yes/no strings.
func parseBool(raw json.RawMessage) (bool, bool) {
	var v any
	if json.Unmarshal(bytes.TrimSpace(raw), &v) != nil {
		return false, false
	}
	switch typed := v.(type) {
	case bool:
		return typed, true
	case float64:
		switch typed {
		case 1:
			return true, true
		case 0:
			return false, true
		}
	case string:
		switch strings.ToLower(strings.TrimSpace(typed)) {
		case "1", "true", "yes", "y", "on":
			return true, true
		case "0", "false", "no", "n", "off":
			return false, true
		}
	}
	return false, false
}

// parseNonNegativeInt accepts whole JSON numbers and numeric strings.
func parseNonNegativeInt(raw json.RawMessage) (int, bool) {
	var v any
	if json.Unmarshal(bytes.TrimSpace(raw), &v) != nil {
		return 0, false
	}
	switch typed := v.(type) {
	case float64:
		if math.IsNaN(typed) || typed < 0 || typed != math.Trunc(typed) || typed > math.MaxInt32 {
			return 0, false
		}
		return int(typed), true
	case string:
		n, errAtoi := strconv.Atoi(strings.TrimSpace(typed))
		if errAtoi != nil || n < 0 {
			return 0, false
		}
		return n, true
	}
	return 0, false
}

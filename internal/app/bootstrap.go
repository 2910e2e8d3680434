package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/deckly-app/deckly/internal/db"
	"github.com/deckly-app/deckly/internal/models"
	"github.com/deckly-app/deckly/internal/security"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// InitRequest contains parameters for writing an initial config file.
type InitRequest struct {
	DatabaseType     string
	DatabaseHost     string
	DatabasePort     int
	DatabaseUser     string
	DatabasePassword string
	DatabaseName     string
	DatabasePath     string
	DatabaseSSLMode  string
	Port             int
	GeminiModel      string
}

// ErrAdminExists is returned when an account with the requested email exists.
var ErrAdminExists = errors.New("app: account already exists")

// ConfigExists reports whether the config file exists at the path.
func ConfigExists(configPath string) bool {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return false
	}
	return true
}

// defaultSQLitePath is the default SQLite database file name.
const defaultSQLitePath = "deckly.db"

// BuildDSN builds a database DSN from the init request.
func BuildDSN(req InitRequest) (string, error) {
	switch strings.ToLower(strings.TrimSpace(req.DatabaseType)) {
	case "", "sqlite":
		return buildSQLiteDSN(req.DatabasePath), nil
	case "postgres":
		if strings.TrimSpace(req.DatabaseHost) == "" {
			return "", fmt.Errorf("database host is required")
		}
		if strings.TrimSpace(req.DatabaseName) == "" {
			return "", fmt.Errorf("database name is required")
		}
		port := req.DatabasePort
		if port <= 0 {
			port = 5432
		}
		sslMode := req.DatabaseSSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			req.DatabaseUser,
			req.DatabasePassword,
			req.DatabaseHost,
			port,
			req.DatabaseName,
			sslMode,
		), nil
	default:
		return "", fmt.Errorf("unsupported database type")
	}
}

// buildSQLiteDSN constructs a SQLite DSN with default parameters.
func buildSQLiteDSN(path string) string {
	dsn := strings.TrimSpace(path)
	if dsn == "" {
		dsn = defaultSQLitePath
	}
	if !strings.HasPrefix(strings.ToLower(dsn), "file:") {
		dsn = "file:" + dsn
	}
	separator := "?"
	if strings.Contains(dsn, "?") {
		separator = "&"
	}
	return dsn + separator + strings.Join([]string{
		"_busy_timeout=5000",
		"_journal_mode=WAL",
		"_foreign_keys=on",
		"_synchronous=NORMAL",
	}, "&")
}

// configFile maps YAML fields for the generated config file.
type configFile struct {
	Host        string        `yaml:"host"`
	Port        int           `yaml:"port"`
	DatabaseDSN string        `yaml:"database-dsn"`
	LogLevel    string        `yaml:"log-level"`
	JWT         jwtCfg        `yaml:"jwt"`
	Generation  generationCfg `yaml:"generation"`
}

// jwtCfg holds JWT settings for the generated config file.
type jwtCfg struct {
	Secret string `yaml:"secret"`
	Expiry string `yaml:"expiry"`
}

// generationCfg holds generation settings for the generated config file.
type generationCfg struct {
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"`
}

// WriteConfigFile writes an initial config file with a fresh JWT secret.
func WriteConfigFile(configPath string, req InitRequest) error {
	if ConfigExists(configPath) {
		return fmt.Errorf("config file already exists: %s", configPath)
	}
	dsn, errDSN := BuildDSN(req)
	if errDSN != nil {
		return errDSN
	}
	secret, errSecret := security.GenerateRandomString(32)
	if errSecret != nil {
		return fmt.Errorf("generate jwt secret: %w", errSecret)
	}
	port := req.Port
	if port <= 0 {
		port = defaultPort
	}
	model := strings.TrimSpace(req.GeminiModel)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	cfg := configFile{
		Port:        port,
		DatabaseDSN: dsn,
		LogLevel:    "info",
		JWT: jwtCfg{
			Secret: secret,
			Expiry: "168h",
		},
		Generation: generationCfg{
			Provider: "gemini",
			Model:    model,
			Timeout:  "5m",
		},
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if errMkdir := os.MkdirAll(filepath.Dir(configPath), 0o755); errMkdir != nil {
		return fmt.Errorf("create config dir: %w", errMkdir)
	}
	if errWrite := os.WriteFile(configPath, data, 0o600); errWrite != nil {
		return fmt.Errorf("write config file: %w", errWrite)
	}
	return nil
}

// CreateAdminUser creates an admin account, or promotes nothing and fails
// with ErrAdminExists when the email is taken.
func CreateAdminUser(conn *gorm.DB, email, password, name string) (models.User, error) {
	if conn == nil {
		return models.User{}, fmt.Errorf("open database: nil connection")
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return models.User{}, fmt.Errorf("admin email is required")
	}
	if len(password) < 8 {
		return models.User{}, fmt.Errorf("admin password must be at least 8 characters")
	}

	hashedPassword, errHash := security.HashPassword(password)
	if errHash != nil {
		return models.User{}, fmt.Errorf("hash password: %w", errHash)
	}

	now := time.Now().UTC()
	admin := models.User{
		Email:     email,
		Name:      strings.TrimSpace(name),
		Password:  hashedPassword,
		IsAdmin:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if errCreate := conn.Create(&admin).Error; errCreate != nil {
		if db.IsUniqueViolation(errCreate) {
			return models.User{}, ErrAdminExists
		}
		return models.User{}, fmt.Errorf("create admin: %w", errCreate)
	}
	return admin, nil
}

// HasAdminInitialized reports whether the system has at least one admin account.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.User{}) {
		return false, nil
	}
	var count int64
	if errCount := conn.Model(&models.User{}).Where("is_admin = ?", true).Count(&count).Error; errCount != nil {
		return false, errCount
	}
	return count > 0, nil
}

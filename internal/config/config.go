package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	EnvConfigPath         = "CONFIG_PATH"
	EnvDBConnection       = "DB_CONNECTION"
	EnvJWTSecret          = "JWT_SECRET"
	EnvJWTExpiry          = "JWT_EXPIRY"
	EnvGeminiAPIKey       = "GEMINI_API_KEY"
	EnvGenerationEndpoint = "GENERATION_ENDPOINT"
	EnvGenerationTimeout  = "GENERATION_TIMEOUT"
)

// Generation providers understood by the server.
const (
	ProviderGemini = "gemini"
	ProviderHTTP   = "http"
)

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath string
}

// LoadFromEnv loads app config from environment variables.
func LoadFromEnv() (AppConfig, error) {
	return AppConfig{ConfigPath: ResolveConfigPath(os.Getenv(EnvConfigPath))}, nil
}

// ResolveConfigPath normalizes the config path and applies defaults.
func ResolveConfigPath(p string) string {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		trimmed = "./config.yaml"
	}
	if abs, err := filepath.Abs(trimmed); err == nil {
		return abs
	}
	return trimmed
}

// ErrMissingDatabaseDSN indicates no database DSN is present in the config file.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// GenerationConfig selects and configures the text-generation collaborator.
type GenerationConfig struct {
	Provider string        `yaml:"provider"`
	APIKey   string        `yaml:"api-key"`
	Model    string        `yaml:"model"`
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig holds listener, logging and CORS settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	LogLevel       string   `yaml:"log-level"`
	AllowedOrigins []string `yaml:"-"`
}

// LoadDatabaseDSN reads the database DSN from the YAML config file.
func LoadDatabaseDSN(configPath string) (string, error) {
	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		return dsn, nil
	}

	// fileConfig maps the YAML fields needed for DSN resolution.
	type fileConfig struct {
		DatabaseDSN string `yaml:"database-dsn"`
		Database    struct {
			DSN string `yaml:"dsn"`
		} `yaml:"database"`
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return "", fmt.Errorf("read config file: %w", err)
	}

	var cfg fileConfig
	if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
		return "", fmt.Errorf("parse config file: %w", errUnmarshal)
	}

	if dsn := strings.TrimSpace(cfg.DatabaseDSN); dsn != "" {
		return dsn, nil
	}
	if dsn := strings.TrimSpace(cfg.Database.DSN); dsn != "" {
		return dsn, nil
	}
	return "", ErrMissingDatabaseDSN
}

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 7 * 24 * time.Hour

// LoadJWTConfig loads JWT settings from the YAML config file.
func LoadJWTConfig(configPath string) (JWTConfig, error) {
	// fileConfig maps the YAML fields needed for JWT settings.
	type fileConfig struct {
		JWT JWTConfig `yaml:"jwt"`
	}

	result := JWTConfig{Expiry: defaultJWTExpiry}

	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal == nil {
			result = cfg.JWT
		}
	}

	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.Expiry = expiry
		}
	}

	if result.Expiry <= 0 {
		result.Expiry = defaultJWTExpiry
	}
	return result, nil
}

// defaultGenerationTimeout budgets for slow LLM responses.
const defaultGenerationTimeout = 5 * time.Minute

const defaultGeminiModel = "gemini-2.5-flash"

// LoadGenerationConfig loads text-generation settings from the YAML config file.
func LoadGenerationConfig(configPath string) (GenerationConfig, error) {
	type fileConfig struct {
		Generation GenerationConfig `yaml:"generation"`
	}

	var result GenerationConfig
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return GenerationConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result = cfg.Generation
	}

	if key := strings.TrimSpace(os.Getenv(EnvGeminiAPIKey)); key != "" {
		result.APIKey = key
	}
	if endpoint := strings.TrimSpace(os.Getenv(EnvGenerationEndpoint)); endpoint != "" {
		result.Endpoint = endpoint
	}
	if timeoutRaw := strings.TrimSpace(os.Getenv(EnvGenerationTimeout)); timeoutRaw != "" {
		if timeout, errParse := time.ParseDuration(timeoutRaw); errParse == nil && timeout > 0 {
			result.Timeout = timeout
		}
	}

	result.Provider = strings.ToLower(strings.TrimSpace(result.Provider))
	if result.Provider == "" {
		if result.Endpoint != "" && result.APIKey == "" {
			result.Provider = ProviderHTTP
		} else {
			result.Provider = ProviderGemini
		}
	}
	switch result.Provider {
	case ProviderGemini, ProviderHTTP:
	default:
		return GenerationConfig{}, fmt.Errorf("unsupported generation provider: %s", result.Provider)
	}
	if strings.TrimSpace(result.Model) == "" {
		result.Model = defaultGeminiModel
	}
	if result.Timeout <= 0 {
		result.Timeout = defaultGenerationTimeout
	}
	return result, nil
}

// LoadServerConfig loads listener and logging settings from the YAML config file.
func LoadServerConfig(configPath string) (ServerConfig, error) {
	type fileConfig struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		LogLevel string `yaml:"log-level"`
		CORS     struct {
			AllowedOrigins []string `yaml:"allowed-origins"`
		} `yaml:"cors"`
	}

	result := ServerConfig{LogLevel: "info"}
	data, errRead := os.ReadFile(configPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return ServerConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result.Host = strings.TrimSpace(cfg.Host)
		result.Port = cfg.Port
		if level := strings.TrimSpace(cfg.LogLevel); level != "" {
			result.LogLevel = level
		}
		for _, origin := range cfg.CORS.AllowedOrigins {
			if origin = strings.TrimSpace(origin); origin != "" {
				result.AllowedOrigins = append(result.AllowedOrigins, origin)
			}
		}
	}
	return result, nil
}

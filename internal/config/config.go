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
	EnvConfigPath    = "CONFIG_PATH"
	EnvDBConnection  = "DB_CONNECTION"
	EnvJWTSecret     = "JWT_SECRET"
	EnvJWTExpiry     = "JWT_EXPIRY"
	EnvEncryptionKey = "ACCOUNT_ENCRYPTION_KEY"
	EnvRiotAPIKey    = "RIOT_API_KEY"
)

// ErrMissingDatabaseDSN indicates no database DSN is present in the config
// file or environment.
var ErrMissingDatabaseDSN = errors.New("missing database dsn (set `database-dsn` or `database.dsn` in config file)")

// defaultJWTExpiry is used when the config omits or invalidates JWT expiry.
const defaultJWTExpiry = 24 * time.Hour

// JWTConfig holds JWT secret and expiry settings.
type JWTConfig struct {
	Secret string        `yaml:"secret"`
	Expiry time.Duration `yaml:"expiry"`
}

// RedisConfig holds the optional redis backend for rate limiting.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// RateLimitConfig holds auth endpoint rate limiting settings.
type RateLimitConfig struct {
	AuthPerSecond int         `yaml:"auth-per-second"`
	Redis         RedisConfig `yaml:"redis"`
}

// AppConfig holds resolved application configuration values.
type AppConfig struct {
	ConfigPath    string
	DatabaseDSN   string
	JWT           JWTConfig
	EncryptionKey string
	RiotAPIKey    string
	RateLimit     RateLimitConfig
}

// fileConfig maps the YAML layout of config.yaml.
type fileConfig struct {
	DatabaseDSN string `yaml:"database-dsn"`
	Database    struct {
		DSN string `yaml:"dsn"`
	} `yaml:"database"`
	JWT           JWTConfig       `yaml:"jwt"`
	EncryptionKey string          `yaml:"encryption-key"`
	RiotAPIKey    string          `yaml:"riot-api-key"`
	RateLimit     RateLimitConfig `yaml:"rate-limit"`
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

// Load reads config.yaml and applies environment overrides. A missing file
// is tolerated as long as the environment supplies a database DSN.
func Load(configPath string) (AppConfig, error) {
	result := AppConfig{
		ConfigPath: ResolveConfigPath(configPath),
		JWT:        JWTConfig{Expiry: defaultJWTExpiry},
	}

	data, errRead := os.ReadFile(result.ConfigPath)
	if errRead == nil {
		var cfg fileConfig
		if errUnmarshal := yaml.Unmarshal(data, &cfg); errUnmarshal != nil {
			return AppConfig{}, fmt.Errorf("parse config file: %w", errUnmarshal)
		}
		result.DatabaseDSN = strings.TrimSpace(cfg.DatabaseDSN)
		if result.DatabaseDSN == "" {
			result.DatabaseDSN = strings.TrimSpace(cfg.Database.DSN)
		}
		result.JWT = cfg.JWT
		result.EncryptionKey = strings.TrimSpace(cfg.EncryptionKey)
		result.RiotAPIKey = strings.TrimSpace(cfg.RiotAPIKey)
		result.RateLimit = cfg.RateLimit
	}

	if dsn := strings.TrimSpace(os.Getenv(EnvDBConnection)); dsn != "" {
		result.DatabaseDSN = dsn
	}
	if secret := strings.TrimSpace(os.Getenv(EnvJWTSecret)); secret != "" {
		result.JWT.Secret = secret
	}
	if expiryRaw := strings.TrimSpace(os.Getenv(EnvJWTExpiry)); expiryRaw != "" {
		if expiry, errParse := time.ParseDuration(expiryRaw); errParse == nil && expiry > 0 {
			result.JWT.Expiry = expiry
		}
	}
	if key := strings.TrimSpace(os.Getenv(EnvEncryptionKey)); key != "" {
		result.EncryptionKey = key
	}
	if key := strings.TrimSpace(os.Getenv(EnvRiotAPIKey)); key != "" {
		result.RiotAPIKey = key
	}

	if result.JWT.Expiry <= 0 {
		result.JWT.Expiry = defaultJWTExpiry
	}
	if result.DatabaseDSN == "" {
		return AppConfig{}, ErrMissingDatabaseDSN
	}
	return result, nil
}

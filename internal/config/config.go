// Package config loads server configuration from an optional YAML file and
// environment variables. Environment variables take precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration values for the server
type Config struct {
	Port     int    `koanf:"port"`
	Env      string `koanf:"env"`
	LogLevel string `koanf:"log_level"`
	DataDir  string `koanf:"data_dir"`

	Database DatabaseConfig `koanf:"database"`

	RedisAddr       string `koanf:"redis_addr"`
	RedisPassword   string `koanf:"redis_password"`
	RedisDB         int    `koanf:"redis_db"`
	RateLimitPerMin int    `koanf:"rate_limit_per_min"`

	CacheTTL     time.Duration `koanf:"cache_ttl"`
	CORSOrigins  []string      `koanf:"cors_origins"`
	AdminEnabled bool          `koanf:"admin_enabled"`
	WarmMatrix   bool          `koanf:"warm_matrix"`
}

// DatabaseConfig selects and configures the database driver
type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

// Configuration validation errors
var (
	ErrInvalidPort      = errors.New("PORT must be between 1 and 65535")
	ErrInvalidDriver    = errors.New("DATABASE_DRIVER must be sqlite or mysql")
	ErrMissingDSN       = errors.New("DATABASE_DSN is required for mysql")
	ErrInvalidRateLimit = errors.New("RATE_LIMIT_PER_MIN must not be negative")
	ErrInvalidCacheTTL  = errors.New("CACHE_TTL must not be negative")
	ErrInvalidLogLevel  = errors.New("LOG_LEVEL must be debug, info, warn or error")
)

// Default values
const (
	DefaultPort            = 8080
	DefaultEnv             = "development"
	DefaultLogLevel        = "info"
	DefaultDataDir         = "./data"
	DefaultDriver          = "sqlite"
	DefaultRateLimitPerMin = 120
	DefaultCacheTTL        = time.Minute
)

// Load reads configuration from an optional YAML file, then environment
// variables. It returns the config and every validation error found.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")

	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var loadErrs []error

	port, err := envInt([]string{"DEVMINE_PORT", "PORT"}, k, "port", DefaultPort)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	redisDB, err := envInt([]string{"DEVMINE_REDIS_DB", "REDIS_DB"}, k, "redis_db", 0)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	rateLimit, err := envInt([]string{"DEVMINE_RATE_LIMIT_PER_MIN", "RATE_LIMIT_PER_MIN"}, k, "rate_limit_per_min", DefaultRateLimitPerMin)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}
	cacheTTL, err := envDuration([]string{"DEVMINE_CACHE_TTL", "CACHE_TTL"}, k, "cache_ttl", DefaultCacheTTL)
	if err != nil {
		loadErrs = append(loadErrs, err)
	}

	cfg := &Config{
		Port:     port,
		Env:      envString([]string{"DEVMINE_ENV", "ENV"}, k, "env", DefaultEnv),
		LogLevel: strings.ToLower(envString([]string{"DEVMINE_LOG_LEVEL", "LOG_LEVEL"}, k, "log_level", DefaultLogLevel)),
		DataDir:  envString([]string{"DEVMINE_DATA_DIR", "DATA_DIR"}, k, "data_dir", DefaultDataDir),
		Database: DatabaseConfig{
			Driver: envString([]string{"DEVMINE_DATABASE_DRIVER", "DATABASE_DRIVER"}, k, "database.driver", DefaultDriver),
			DSN:    envString([]string{"DEVMINE_DATABASE_DSN", "DATABASE_DSN"}, k, "database.dsn", ""),
		},
		RedisAddr:       envString([]string{"DEVMINE_REDIS_ADDR", "REDIS_ADDR"}, k, "redis_addr", ""),
		RedisPassword:   envString([]string{"DEVMINE_REDIS_PASSWORD", "REDIS_PASSWORD"}, k, "redis_password", ""),
		RedisDB:         redisDB,
		RateLimitPerMin: rateLimit,
		CacheTTL:        cacheTTL,
		CORSOrigins:     envList([]string{"DEVMINE_CORS_ORIGINS", "CORS_ORIGINS"}, k, "cors_origins"),
		AdminEnabled:    envBool([]string{"DEVMINE_ADMIN_ENABLED", "ADMIN_ENABLED"}, k, "admin_enabled", false),
		WarmMatrix:      envBool([]string{"DEVMINE_WARM_MATRIX", "WARM_MATRIX"}, k, "warm_matrix", true),
	}

	return cfg, append(loadErrs, cfg.Validate()...)
}

// Validate checks the configuration and returns every problem found
func (c *Config) Validate() []error {
	var errs []error

	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, ErrInvalidPort)
	}

	switch c.Database.Driver {
	case "sqlite":
	case "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, ErrMissingDSN)
		}
	default:
		errs = append(errs, ErrInvalidDriver)
	}

	if c.RateLimitPerMin < 0 {
		errs = append(errs, ErrInvalidRateLimit)
	}
	if c.CacheTTL < 0 {
		errs = append(errs, ErrInvalidCacheTTL)
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}

	return errs
}

// IsProduction reports whether the server runs in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Addr returns the listen address
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// ParseLogLevel maps a level name to a slog level
func ParseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, ErrInvalidLogLevel
	}
}

func lookupEnv(keys []string) (string, bool) {
	for _, key := range keys {
		if val := os.Getenv(key); val != "" {
			return val, true
		}
	}
	return "", false
}

func envString(keys []string, k *koanf.Koanf, path, def string) string {
	if val, ok := lookupEnv(keys); ok {
		return val
	}
	if k.Exists(path) {
		return k.String(path)
	}
	return def
}

func envInt(keys []string, k *koanf.Koanf, path string, def int) (int, error) {
	if val, ok := lookupEnv(keys); ok {
		n, err := strconv.Atoi(val)
		if err != nil {
			return def, fmt.Errorf("%s must be a valid integer: %w", keys[len(keys)-1], err)
		}
		return n, nil
	}
	if k.Exists(path) {
		return k.Int(path), nil
	}
	return def, nil
}

func envBool(keys []string, k *koanf.Koanf, path string, def bool) bool {
	if val, ok := lookupEnv(keys); ok {
		switch strings.ToLower(val) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	if k.Exists(path) {
		return k.Bool(path)
	}
	return def
}

func envDuration(keys []string, k *koanf.Koanf, path string, def time.Duration) (time.Duration, error) {
	if val, ok := lookupEnv(keys); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return def, fmt.Errorf("%s must be a duration: %w", keys[len(keys)-1], err)
		}
		return d, nil
	}
	if k.Exists(path) {
		return k.Duration(path), nil
	}
	return def, nil
}

func envList(keys []string, k *koanf.Koanf, path string) []string {
	if val, ok := lookupEnv(keys); ok {
		var out []string
		for _, part := range strings.Split(val, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out
	}
	return k.Strings(path)
}

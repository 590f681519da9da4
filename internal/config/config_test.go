package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"DEVMINE_PORT", "PORT", "DEVMINE_ENV", "ENV", "DEVMINE_LOG_LEVEL", "LOG_LEVEL",
	"DEVMINE_DATA_DIR", "DATA_DIR", "DEVMINE_DATABASE_DRIVER", "DATABASE_DRIVER",
	"DEVMINE_DATABASE_DSN", "DATABASE_DSN", "DEVMINE_REDIS_ADDR", "REDIS_ADDR",
	"DEVMINE_REDIS_PASSWORD", "REDIS_PASSWORD", "DEVMINE_REDIS_DB", "REDIS_DB",
	"DEVMINE_RATE_LIMIT_PER_MIN", "RATE_LIMIT_PER_MIN", "DEVMINE_CACHE_TTL", "CACHE_TTL",
	"DEVMINE_CORS_ORIGINS", "CORS_ORIGINS", "DEVMINE_ADMIN_ENABLED", "ADMIN_ENABLED",
	"DEVMINE_WARM_MATRIX", "WARM_MATRIX",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, errs := Load("")
	require.Empty(t, errs)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultEnv, cfg.Env)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultDataDir, cfg.DataDir)
	assert.Equal(t, DefaultDriver, cfg.Database.Driver)
	assert.Equal(t, DefaultRateLimitPerMin, cfg.RateLimitPerMin)
	assert.Equal(t, DefaultCacheTTL, cfg.CacheTTL)
	assert.True(t, cfg.WarmMatrix)
	assert.False(t, cfg.AdminEnabled)
	assert.Equal(t, ":8080", cfg.Addr())
}

func TestLoadFromFile(t *testing.T) {
	clearEnv(t)

	path := writeConfig(t, `
port: 9090
env: production
log_level: debug
database:
  driver: mysql
  dsn: "devmine:secret@tcp(localhost:3306)/devmine?parseTime=true"
redis_addr: "localhost:6379"
rate_limit_per_min: 30
cache_ttl: 30s
cors_origins:
  - https://devmine.example
admin_enabled: true
warm_matrix: false
`)

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, 9090, cfg.Port)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "mysql", cfg.Database.Driver)
	assert.Contains(t, cfg.Database.DSN, "tcp(localhost:3306)")
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, 30, cfg.RateLimitPerMin)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, []string{"https://devmine.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.AdminEnabled)
	assert.False(t, cfg.WarmMatrix)
}

func TestEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "port: 9090\nrate_limit_per_min: 30\n")

	t.Setenv("PORT", "7070")
	t.Setenv("DEVMINE_RATE_LIMIT_PER_MIN", "5")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("ADMIN_ENABLED", "yes")

	cfg, errs := Load(path)
	require.Empty(t, errs)

	assert.Equal(t, 7070, cfg.Port)
	assert.Equal(t, 5, cfg.RateLimitPerMin)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.True(t, cfg.AdminEnabled)
}

func TestLoadCollectsErrors(t *testing.T) {
	clearEnv(t)

	t.Setenv("PORT", "not-a-port")
	t.Setenv("DATABASE_DRIVER", "mysql")
	t.Setenv("CACHE_TTL", "soon")
	t.Setenv("LOG_LEVEL", "loud")

	_, errs := Load("")
	require.NotEmpty(t, errs)

	var hasDSN, hasLevel bool
	for _, err := range errs {
		if errors.Is(err, ErrMissingDSN) {
			hasDSN = true
		}
		if errors.Is(err, ErrInvalidLogLevel) {
			hasLevel = true
		}
	}
	assert.True(t, hasDSN)
	assert.True(t, hasLevel)
	assert.GreaterOrEqual(t, len(errs), 4)
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)

	_, errs := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Len(t, errs, 1)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Config)
		expected error
	}{
		{name: "port too large", mutate: func(c *Config) { c.Port = 70000 }, expected: ErrInvalidPort},
		{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "oracle" }, expected: ErrInvalidDriver},
		{name: "negative rate limit", mutate: func(c *Config) { c.RateLimitPerMin = -1 }, expected: ErrInvalidRateLimit},
		{name: "negative cache ttl", mutate: func(c *Config) { c.CacheTTL = -time.Second }, expected: ErrInvalidCacheTTL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{Port: DefaultPort, LogLevel: "info", Database: DatabaseConfig{Driver: "sqlite"}}
			tt.mutate(cfg)

			errs := cfg.Validate()
			require.Len(t, errs, 1)
			assert.ErrorIs(t, errs[0], tt.expected)
		})
	}
}

func TestParseLogLevel(t *testing.T) {
	level, err := ParseLogLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	level, err = ParseLogLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, level)

	_, err = ParseLogLevel("verbose")
	assert.ErrorIs(t, err, ErrInvalidLogLevel)
}

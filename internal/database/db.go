package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported database drivers
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Options configures the database connection
type Options struct {
	Driver       string
	DSN          string
	DataDir      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  time.Duration
	LogLevel     logger.LogLevel
}

// DefaultOptions returns sqlite defaults rooted at dataDir
func DefaultOptions(dataDir string) Options {
	return Options{
		Driver:       DriverSQLite,
		DataDir:      dataDir,
		MaxOpenConns: 25,
		MaxIdleConns: 5,
		MaxLifetime:  5 * time.Minute,
		LogLevel:     logger.Warn,
	}
}

// DB represents the database connection with pooling
type DB struct {
	*gorm.DB
	sqlDB *sql.DB
	opts  Options
}

// Open creates a new database connection with the configured driver
func Open(opts Options) (*DB, error) {
	dialector, err := dialectorFor(opts)
	if err != nil {
		return nil, err
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(opts.LogLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql handle: %w", err)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if opts.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(opts.MaxIdleConns)
	}
	if opts.MaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(opts.MaxLifetime)
	}

	slog.Info("Database initialized",
		"driver", opts.Driver,
		"max_open_conns", opts.MaxOpenConns,
		"max_idle_conns", opts.MaxIdleConns,
		"max_lifetime", opts.MaxLifetime)

	return &DB{DB: gdb, sqlDB: sqlDB, opts: opts}, nil
}

// ErrInvalidOptions reports a driver configuration that cannot work on retry
var ErrInvalidOptions = errors.New("invalid database options")

func dialectorFor(opts Options) (gorm.Dialector, error) {
	switch opts.Driver {
	case DriverSQLite, "":
		dsn := opts.DSN
		if dsn == "" {
			if err := os.MkdirAll(opts.DataDir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
			dsn = filepath.Join(opts.DataDir, "devmine.db") + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
		}
		return sqlite.Open(dsn), nil
	case DriverMySQL:
		if opts.DSN == "" {
			return nil, fmt.Errorf("%w: mysql driver requires a dsn", ErrInvalidOptions)
		}
		return mysql.Open(opts.DSN), nil
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", ErrInvalidOptions, opts.Driver)
	}
}

// Migrate creates or updates the read model tables
func (db *DB) Migrate() error {
	if err := db.AutoMigrate(&Feature{}, &Score{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// Ping checks the connection is alive
func (db *DB) Ping(ctx context.Context) error {
	return db.sqlDB.PingContext(ctx)
}

// HealthCheck pings the database for the health endpoint
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

// GetPoolStats returns connection pool statistics
func (db *DB) GetPoolStats() map[string]interface{} {
	stats := db.sqlDB.Stats()

	return map[string]interface{}{
		"driver":               db.opts.Driver,
		"open_connections":     stats.OpenConnections,
		"in_use":               stats.InUse,
		"idle":                 stats.Idle,
		"max_open_connections": stats.MaxOpenConnections,
		"wait_count":           stats.WaitCount,
		"wait_duration_ms":     stats.WaitDuration.Milliseconds(),
		"max_idle_closed":      stats.MaxIdleClosed,
		"max_lifetime_closed":  stats.MaxLifetimeClosed,
	}
}

// Close closes the underlying connection pool
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// Command devmine serves developer scores and weighted feature rankings.
//
// @title        devmine API
// @version      1.0
// @description  Developer scores and weighted feature ranking.
// @BasePath     /
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ZanzyTHEbar/devmine/internal/config"
	"github.com/ZanzyTHEbar/devmine/internal/database"
	"github.com/ZanzyTHEbar/devmine/internal/monitoring"
	"github.com/ZanzyTHEbar/devmine/internal/resilience"
)

// Version is reported by --version and the health endpoint
var Version = "1.0.0"

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "devmine",
	Short: "Developer scores and weighted feature ranking",
	Long: `devmine exposes developer feature scores over HTTP and ranks developers
by a weighted sum of their scores.

Configuration is read from an optional YAML file (--config) and then from
environment variables such as PORT, DATA_DIR, DATABASE_DRIVER and
DATABASE_DSN, each also accepted with a DEVMINE_ prefix.

Examples:
  devmine serve
  devmine migrate
  devmine seed fixtures.yaml
  devmine rank python:5 java:3 --sort --limit 10`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug|info|warn|error)")

	// --log_level and --log-level are the same flag.
	rootCmd.SetGlobalNormalizationFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	rootCmd.AddCommand(serveCmd, rankCmd, migrateCmd, seedCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads configuration and installs the default JSON logger
func loadConfig() (*config.Config, *monitoring.Logger, error) {
	cfg, errs := config.Load(configPath)
	if logLevel != "" && cfg != nil {
		cfg.LogLevel = strings.ToLower(logLevel)
		errs = cfg.Validate()
	}
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config:", err)
		}
		return nil, nil, fmt.Errorf("invalid configuration (%d errors)", len(errs))
	}

	level, _ := config.ParseLogLevel(cfg.LogLevel)
	logger := monitoring.NewLogger(level)
	slog.SetDefault(logger.Logger)

	return cfg, logger, nil
}

func openDatabase(ctx context.Context, cfg *config.Config) (*database.DB, error) {
	opts := database.DefaultOptions(cfg.DataDir)
	opts.Driver = cfg.Database.Driver
	opts.DSN = cfg.Database.DSN

	var db *database.DB
	err := resilience.Retry(ctx, "database_open", resilience.DefaultRetryConfig(), func(ctx context.Context) error {
		var err error
		db, err = database.Open(opts)
		if errors.Is(err, database.ErrInvalidOptions) {
			return resilience.Permanent(err)
		}
		if err != nil {
			return err
		}
		if err := db.HealthCheck(ctx); err != nil {
			db.Close()
			return err
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return db, nil
}

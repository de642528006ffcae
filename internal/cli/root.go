package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/imagine/internal/core/config"
	"github.com/vietddude/imagine/internal/infra/storage"
	"github.com/vietddude/imagine/internal/infra/storage/postgres"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "imagine",
	Short: "Image generation job runner",
	Long: `Imagine submits image jobs to a Midjourney-compatible proxy, waits for them
to finish and records the outcome. Transient failures are retried with
exponential backoff; plain generation falls back to a placeholder image.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
}

// bootstrap loads .env and the config file, then installs the logger.
func bootstrap() (*config.AppConfig, error) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		return nil, err
	}

	setupLogging(cfg.Logging)
	return cfg, nil
}

func setupLogging(cfg config.LoggingConfig) {
	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Level == "error":
		slogLevel = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slogLevel})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// openRuns returns the run history store. Without a database URL there is
// no history and both returned values are nil.
func openRuns(ctx context.Context, cfg config.AppConfig) (storage.RunRepository, *postgres.DB, error) {
	if cfg.Database.URL == "" {
		slog.Debug("No database configured, run history disabled")
		return nil, nil, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return postgres.NewRunRepo(db), db, nil
}

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/imagine/internal/core/config"
	"github.com/vietddude/imagine/internal/health"
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/storage/postgres"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check the image service and database once",
	RunE:  runHealth,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve /health, /health/detailed and /metrics",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(serveCmd)
}

// newChecker connects what the config names. The returned db may be nil.
func newChecker(ctx context.Context, cfg *config.AppConfig) (*health.Checker, *imagine.Client, *postgres.DB, error) {
	client := imagine.NewClient(cfg.Service)
	if cfg.Database.URL == "" {
		return health.NewChecker(client, nil), client, nil, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		_ = client.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return health.NewChecker(client, db), client, db, nil
}

func runHealth(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	checker, client, db, err := newChecker(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if db != nil {
		defer db.Close()
	}

	report := checker.Check(ctx)
	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if report.SystemStatus == health.StatusCritical {
		return fmt.Errorf("system is %s", report.SystemStatus)
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checker, client, db, err := newChecker(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()
	if db != nil {
		defer db.Close()
		db.StartMetricsCollector(ctx)
	}

	server := health.NewServer(checker, cfg.Server.Port)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("Starting health server", "port", cfg.Server.Port)
		errCh <- server.Start()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal, shutting down...", "signal", sig)
	case err := <-errCh:
		return fmt.Errorf("health server stopped: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return server.Stop(shutdownCtx)
}

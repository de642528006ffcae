package postgres

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // registers the "postgres" driver
	"github.com/pressly/goose/v3"

	"github.com/vietddude/imagine/internal/infra/retry"
	"github.com/vietddude/imagine/internal/metrics"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Config holds PostgreSQL connection configuration.
type Config struct {
	URL      string       `yaml:"url"`
	Driver   string       `yaml:"driver"` // pgx (default) or postgres (lib/pq)
	MaxConns int          `yaml:"max_conns"`
	MinConns int          `yaml:"min_conns"`
	Retry    retry.Config `yaml:"retry"`
}

// DB wraps the PostgreSQL connection. Every repository call goes through
// Guard, which retries connection-class failures only.
type DB struct {
	*sqlx.DB
	exec *retry.Executor
}

// NewDB creates a new database connection.
func NewDB(ctx context.Context, cfg Config) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "pgx"
	}

	retryCfg := cfg.Retry
	if retryCfg.InitialDelay == 0 {
		retryCfg = retry.PersistenceConfig
	}
	exec := retry.NewPersistence(retryCfg)

	db, err := sqlx.Open(driver, cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set pool configuration
	if cfg.MaxConns > 0 {
		db.SetMaxOpenConns(cfg.MaxConns)
	} else {
		db.SetMaxOpenConns(10)
	}

	if cfg.MinConns > 0 {
		db.SetMaxIdleConns(cfg.MinConns)
	} else {
		db.SetMaxIdleConns(2)
	}

	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(30 * time.Minute)

	// Test connection, riding out a database that is still starting up
	if err := exec.Execute(ctx, "ping", db.PingContext); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{DB: db, exec: exec}, nil
}

// Migrate applies the embedded schema migrations.
func (db *DB) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return db.Guard(ctx, "migrate", func(ctx context.Context) error {
		return goose.UpContext(ctx, db.DB.DB, "migrations")
	})
}

// Guard runs a persistence operation with the persistence retry bounds.
// It knows nothing about the schema; failures other than lost connections
// are returned on the first attempt.
func (db *DB) Guard(ctx context.Context, label string, op func(ctx context.Context) error) error {
	return db.exec.Execute(ctx, label, op)
}

// StartMetricsCollector starts a background goroutine to collect DB metrics.
func (db *DB) StartMetricsCollector(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := db.Stats()
				if stats.MaxOpenConnections > 0 {
					usage := float64(stats.InUse) / float64(stats.MaxOpenConnections) * 100
					metrics.DBConnectionPoolUsage.Set(usage)
				}
			}
		}
	}()
}

// Health checks if the database is healthy.
func (db *DB) Health(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the database connection.
func (db *DB) Close() error {
	slog.Debug("Closing database connection")
	return db.DB.Close()
}

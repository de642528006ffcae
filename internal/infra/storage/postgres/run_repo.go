package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/storage"
)

// RunRepo implements storage.RunRepository using PostgreSQL.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

const runColumns = `id, kind, job_id, outcome, output_uri, model, strategy, elapsed_ms, error_msg, created_at`

// Save inserts a run record. The insert is not idempotent, so only
// connection failures (where the statement never reached the server) are retried.
func (r *RunRepo) Save(ctx context.Context, run *domain.RunRecord) error {
	query := `
		INSERT INTO job_runs (` + runColumns + `)
		VALUES (:id, :kind, :job_id, :outcome, :output_uri, :model, :strategy, :elapsed_ms, :error_msg, :created_at)
	`
	err := r.db.Guard(ctx, "save_run", func(ctx context.Context) error {
		_, err := r.db.NamedExecContext(ctx, query, run)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	return nil
}

// Get retrieves a run by id.
func (r *RunRepo) Get(ctx context.Context, id string) (*domain.RunRecord, error) {
	return r.getOne(ctx, "get_run", `SELECT `+runColumns+` FROM job_runs WHERE id = $1`, id)
}

// GetByJobID retrieves the run that produced a remote job.
func (r *RunRepo) GetByJobID(ctx context.Context, jobID string) (*domain.RunRecord, error) {
	return r.getOne(ctx, "get_run_by_job",
		`SELECT `+runColumns+` FROM job_runs WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID)
}

func (r *RunRepo) getOne(ctx context.Context, label, query string, arg string) (*domain.RunRecord, error) {
	var run domain.RunRecord
	err := r.db.Guard(ctx, label, func(ctx context.Context) error {
		return r.db.GetContext(ctx, &run, query, arg)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return &run, nil
}

// List returns the most recent runs first.
func (r *RunRepo) List(ctx context.Context, filter storage.RunFilter) ([]*domain.RunRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		where = append(where, fmt.Sprintf("kind = $%d", len(args)))
	}
	if filter.Outcome != "" {
		args = append(args, string(filter.Outcome))
		where = append(where, fmt.Sprintf("outcome = $%d", len(args)))
	}

	query := `SELECT ` + runColumns + ` FROM job_runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	var runs []*domain.RunRecord
	err := r.db.Guard(ctx, "list_runs", func(ctx context.Context) error {
		runs = runs[:0]
		return r.db.SelectContext(ctx, &runs, query, args...)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Count returns run totals grouped by outcome.
func (r *RunRepo) Count(ctx context.Context) (map[domain.RunOutcome]int, error) {
	var rows []struct {
		Outcome string `db:"outcome"`
		Total   int    `db:"total"`
	}
	err := r.db.Guard(ctx, "count_runs", func(ctx context.Context) error {
		rows = rows[:0]
		return r.db.SelectContext(ctx, &rows, `SELECT outcome, COUNT(*) AS total FROM job_runs GROUP BY outcome`)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to count runs: %w", err)
	}

	counts := make(map[domain.RunOutcome]int, len(rows))
	for _, row := range rows {
		counts[domain.RunOutcome(row.Outcome)] = row.Total
	}
	return counts, nil
}

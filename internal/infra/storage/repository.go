package storage

import (
	"context"
	"errors"

	"github.com/vietddude/imagine/internal/core/domain"
)

var (
	// ErrRunNotFound is returned when a run record doesn't exist
	ErrRunNotFound = errors.New("run not found")
)

// RunFilter narrows a history listing.
type RunFilter struct {
	Kind    domain.JobKind
	Outcome domain.RunOutcome
	Limit   int
}

// RunRepository stores the history of finished job runs
type RunRepository interface {
	// Save records one finished run
	Save(ctx context.Context, run *domain.RunRecord) error

	// Get retrieves a run by its record id
	Get(ctx context.Context, id string) (*domain.RunRecord, error)

	// GetByJobID retrieves the run that produced a remote job
	GetByJobID(ctx context.Context, jobID string) (*domain.RunRecord, error)

	// List returns the most recent runs first
	List(ctx context.Context, filter RunFilter) ([]*domain.RunRecord, error)

	// Count returns run totals grouped by outcome
	Count(ctx context.Context) (map[domain.RunOutcome]int, error)
}

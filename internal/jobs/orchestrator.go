package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/retry"
	"github.com/vietddude/imagine/internal/metrics"
)

// Transport is the remote image service.
type Transport interface {
	StatusFetcher
	Submit(ctx context.Context, sub imagine.Submission) (domain.JobHandle, error)
}

// Orchestrator runs one job to completion: submit, poll, normalise.
// It holds no per-run state and is safe for concurrent use.
type Orchestrator struct {
	transport Transport
	network   *retry.Executor
	poller    *Poller
	model     string
	newState  func() string
	now       func() time.Time
	log       *slog.Logger
}

// NewOrchestrator creates an orchestrator sharing one network executor
// between submissions and status queries.
func NewOrchestrator(transport Transport, network *retry.Executor, poller *Poller, model string) *Orchestrator {
	if model == "" {
		model = "midjourney"
	}
	return &Orchestrator{
		transport: transport,
		network:   network,
		poller:    poller,
		model:     model,
		newState:  func() string { return uuid.NewString() },
		now:       time.Now,
		log:       slog.Default(),
	}
}

// Run executes one job of any kind except region edit, which goes through
// the strategy cascade. Errors from submission and polling are returned
// unmodified.
func (o *Orchestrator) Run(ctx context.Context, req domain.JobRequest) (*domain.JobResult, error) {
	a, ok := adapters[req.Kind]
	if !ok || a.build == nil {
		return nil, fmt.Errorf("%w: no direct submission for kind %q", domain.ErrInvalidParams, req.Kind)
	}

	sub, err := a.build(req.Params, o.newState())
	if err != nil {
		return nil, err
	}
	return o.RunSubmission(ctx, req.Kind, sub)
}

// RunSubmission submits a prepared request for kind and waits for its result.
func (o *Orchestrator) RunSubmission(ctx context.Context, kind domain.JobKind, sub imagine.Submission) (*domain.JobResult, error) {
	a, ok := adapters[kind]
	if !ok {
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidParams, kind)
	}

	start := o.now()
	log := o.log.With("kind", kind, "action", sub.Action)

	handle, err := retry.Do(ctx, o.network, "submit_"+sub.Action, func(ctx context.Context) (domain.JobHandle, error) {
		return o.transport.Submit(ctx, sub)
	})
	if err != nil {
		o.observe(kind, start, err)
		return nil, err
	}
	log.Info("Job submitted", "job", handle.ID)

	term, err := o.poller.Poll(ctx, handle, a.extract)
	if err != nil {
		o.observe(kind, start, err)
		log.Info("Job ended without result", "job", handle.ID, "error", err)
		return nil, err
	}

	elapsed := o.now().Sub(start)
	o.observe(kind, start, nil)
	log.Info("Job finished", "job", handle.ID, "elapsed", elapsed, "polls", term.Polls)

	return &domain.JobResult{
		PrimaryOutputURI: term.Outputs[0],
		Outputs:          term.Outputs,
		MimeType:         a.mime(term.Outputs),
		Metadata: domain.JobMetadata{
			Model:     modelLabel(o.model, term.Snapshot.FinalPrompt),
			JobID:     handle.ID,
			ElapsedMs: elapsed.Milliseconds(),
			Progress:  term.Snapshot.Progress,
		},
	}, nil
}

func (o *Orchestrator) observe(kind domain.JobKind, start time.Time, err error) {
	metrics.JobsTotal.WithLabelValues(string(kind), string(Outcome(err))).Inc()
	metrics.JobDuration.WithLabelValues(string(kind)).Observe(o.now().Sub(start).Seconds())
}

// Outcome maps a run error to the outcome recorded in history.
func Outcome(err error) domain.RunOutcome {
	var (
		failed    *domain.JobFailedError
		timedOut  *domain.JobTimedOutError
		rejection *domain.RejectionError
	)
	switch {
	case err == nil:
		return domain.OutcomeSucceeded
	case errors.As(err, &timedOut):
		return domain.OutcomeTimedOut
	case errors.As(err, &failed):
		return domain.OutcomeFailed
	case errors.As(err, &rejection), errors.Is(err, domain.ErrInvalidParams):
		return domain.OutcomeRejected
	default:
		return domain.OutcomeFailed
	}
}

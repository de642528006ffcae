package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/retry"
	"github.com/vietddude/imagine/internal/metrics"
)

// PollConfig bounds the status polling loop.
type PollConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	Interval    time.Duration `yaml:"interval"`
}

// DefaultPollConfig allows roughly five minutes per job.
var DefaultPollConfig = PollConfig{
	MaxAttempts: 60,
	Interval:    5 * time.Second,
}

// StatusFetcher reads the current status of a job.
type StatusFetcher interface {
	Fetch(ctx context.Context, jobID string) (*domain.TaskSnapshot, error)
}

// Terminal is a successful end of polling.
type Terminal struct {
	Snapshot *domain.TaskSnapshot
	Outputs  []string
	Polls    int
}

// Poller waits for a job to reach a terminal status.
type Poller struct {
	fetcher StatusFetcher
	network *retry.Executor
	cfg     PollConfig
	sleep   retry.Sleeper
	now     func() time.Time
	log     *slog.Logger
}

// NewPoller creates a poller. Each status query runs through network.
func NewPoller(fetcher StatusFetcher, network *retry.Executor, cfg PollConfig) *Poller {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultPollConfig.MaxAttempts
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultPollConfig.Interval
	}
	return &Poller{
		fetcher: fetcher,
		network: network,
		cfg:     cfg,
		sleep:   retry.Sleep,
		now:     time.Now,
		log:     slog.Default(),
	}
}

// Poll queries the job until it succeeds with output, fails, or the attempt
// budget runs out.
//
// SUBMITTED and IN_PROGRESS (and anything unrecognised) keep the loop going.
// SUCCESS with outputs returns; FAILURE returns *domain.JobFailedError; running
// out of attempts returns *domain.JobTimedOutError.
func (p *Poller) Poll(ctx context.Context, handle domain.JobHandle, extract Extractor) (*Terminal, error) {
	observed := domain.StatusSubmitted

	for attempt := 1; attempt <= p.cfg.MaxAttempts; attempt++ {
		snap, err := retry.Do(ctx, p.network, "fetch", func(ctx context.Context) (*domain.TaskSnapshot, error) {
			return p.fetcher.Fetch(ctx, handle.ID)
		})
		if err != nil {
			return nil, err
		}
		metrics.PollsTotal.WithLabelValues(string(snap.Status)).Inc()

		// Status never moves backwards; a stale report keeps the last one.
		if snap.Status.Rank() < observed.Rank() {
			p.log.Debug("Ignoring status regression",
				"job", handle.ID, "observed", observed, "reported", snap.Status)
			snap.Status = observed
		}
		observed = snap.Status

		switch {
		case snap.Status == domain.StatusFailed:
			return nil, &domain.JobFailedError{JobID: handle.ID, Reason: snap.FailReason}
		case snap.Status.IsTerminal():
			if outputs := extract(snap); len(outputs) > 0 {
				return &Terminal{Snapshot: snap, Outputs: outputs, Polls: attempt}, nil
			}
			p.log.Debug("Job reported success without output", "job", handle.ID, "attempt", attempt)
		default:
			p.log.Debug("Job still running",
				"job", handle.ID, "status", snap.Status, "progress", snap.Progress, "attempt", attempt)
		}

		if attempt == p.cfg.MaxAttempts {
			break
		}
		if err := p.sleep(ctx, p.cfg.Interval); err != nil {
			return nil, err
		}
	}

	timedOut := &domain.JobTimedOutError{
		JobID:      handle.ID,
		Attempts:   p.cfg.MaxAttempts,
		Elapsed:    p.now().Sub(handle.SubmittedAt),
		LastStatus: observed,
	}
	metrics.PollsTotal.WithLabelValues(string(timedOut.Status())).Inc()
	return nil, timedOut
}

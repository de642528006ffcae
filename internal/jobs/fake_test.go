package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/infra/retry"
)

// fakeTransport scripts the image service.
type fakeTransport struct {
	mu      sync.Mutex
	submit  func(sub imagine.Submission) (domain.JobHandle, error)
	fetch   func(n int) (*domain.TaskSnapshot, error)
	submits []imagine.Submission
	fetches int
}

func (f *fakeTransport) Submit(_ context.Context, sub imagine.Submission) (domain.JobHandle, error) {
	f.mu.Lock()
	f.submits = append(f.submits, sub)
	f.mu.Unlock()
	if f.submit == nil {
		return domain.JobHandle{ID: "job-1", SubmittedAt: time.Unix(0, 0)}, nil
	}
	return f.submit(sub)
}

func (f *fakeTransport) Fetch(_ context.Context, jobID string) (*domain.TaskSnapshot, error) {
	f.mu.Lock()
	f.fetches++
	n := f.fetches
	f.mu.Unlock()
	snap, err := f.fetch(n)
	if snap != nil && snap.ID == "" {
		snap.ID = jobID
	}
	return snap, err
}

// sequence returns the given statuses in order, repeating the last one.
func sequence(snaps ...domain.TaskSnapshot) func(n int) (*domain.TaskSnapshot, error) {
	return func(n int) (*domain.TaskSnapshot, error) {
		i := n - 1
		if i >= len(snaps) {
			i = len(snaps) - 1
		}
		s := snaps[i]
		return &s, nil
	}
}

type countingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (c *countingSleeper) sleep(_ context.Context, d time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delays = append(c.delays, d)
	return nil
}

func (c *countingSleeper) count(d time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, x := range c.delays {
		if x == d {
			n++
		}
	}
	return n
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *fakeTransport, s *countingSleeper, opts ...Option) *Service {
	opts = append([]Option{
		WithSleeper(s.sleep),
		WithLogger(quietLogger()),
		WithStateFunc(func() string { return "state-1" }),
	}, opts...)
	return NewService(t, Config{Model: "midjourney", Retry: retry.NetworkConfig, Poll: DefaultPollConfig}, opts...)
}

var (
	processing = domain.TaskSnapshot{Status: domain.StatusProcessing, Progress: "40%"}
	submitted  = domain.TaskSnapshot{Status: domain.StatusSubmitted}
	succeeded  = domain.TaskSnapshot{
		Status:      domain.StatusSuccess,
		Progress:    "100%",
		ImageURL:    "https://cdn.example.com/out.png",
		FinalPrompt: "a red fox --v 6.1",
	}
)

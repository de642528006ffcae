// Package retry runs operations with bounded, classified retries and
// geometric backoff.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/vietddude/imagine/internal/metrics"
)

// Config defines retry behavior.
type Config struct {
	MaxRetries      int           `yaml:"max_retries"`
	InitialDelay    time.Duration `yaml:"initial_delay"`
	MaxDelay        time.Duration `yaml:"max_delay"`
	BackoffMultiple float64       `yaml:"backoff_multiple"`
}

// PersistenceConfig bounds retries around relational store calls.
var PersistenceConfig = Config{
	MaxRetries:      5,
	InitialDelay:    1000 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 1.5,
}

// NetworkConfig bounds retries around calls to the image service.
var NetworkConfig = Config{
	MaxRetries:      3,
	InitialDelay:    2000 * time.Millisecond,
	MaxDelay:        10 * time.Second,
	BackoffMultiple: 1.5,
}

// Classifier reports whether err is worth another attempt.
type Classifier func(err error) bool

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor retries operations that fail with retryable errors.
// It holds only configuration; every call keeps its own attempt state.
type Executor struct {
	name  string
	cfg   Config
	retry Classifier
	sleep Sleeper
	log   *slog.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithSleeper replaces the sleep primitive.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) { e.sleep = s }
}

// WithLogger sets the logger used for retry messages.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// New creates an executor. name labels metrics ("network", "persistence").
func New(name string, cfg Config, classify Classifier, opts ...Option) *Executor {
	e := &Executor{
		name:  name,
		cfg:   cfg,
		retry: classify,
		sleep: Sleep,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// NewNetwork creates an executor for image service calls.
func NewNetwork(cfg Config, opts ...Option) *Executor {
	return New("network", cfg, IsNetworkRetryable, opts...)
}

// NewPersistence creates an executor for relational store calls.
func NewPersistence(cfg Config, opts ...Option) *Executor {
	return New("persistence", cfg, IsConnectionError, opts...)
}

// Attempts returns the total number of tries a call may make.
func (e *Executor) Attempts() int {
	if e.cfg.MaxRetries < 1 {
		return 1
	}
	return e.cfg.MaxRetries
}

// Backoff returns the delay after the given failed attempt (0-based),
// truncated to whole milliseconds.
func (e *Executor) Backoff(attempt int) time.Duration {
	return calculateBackoff(attempt, e.cfg)
}

// Schedule returns the delay after each possible attempt.
func (e *Executor) Schedule() []time.Duration {
	out := make([]time.Duration, 0, e.Attempts())
	for i := 0; i < e.Attempts(); i++ {
		out = append(out, e.Backoff(i))
	}
	return out
}

// Execute runs op until it succeeds, fails with a non-retryable error, or
// the attempt budget runs out. The last error is returned unchanged.
func (e *Executor) Execute(ctx context.Context, label string, op func(ctx context.Context) error) error {
	_, err := Do(ctx, e, label, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// Do is Execute for operations that return a value.
func Do[T any](ctx context.Context, e *Executor, label string, op func(ctx context.Context) (T, error)) (T, error) {
	attempts := e.Attempts()
	var zero T

	for attempt := 0; attempt < attempts; attempt++ {
		result, err := op(ctx)
		if err == nil {
			return result, nil
		}

		if !e.retry(err) {
			return zero, err
		}

		if attempt == attempts-1 {
			metrics.RetryExhausted.WithLabelValues(e.name, label).Inc()
			e.log.Warn("Retries exhausted",
				"executor", e.name, "op", label, "attempts", attempts, "error", err)
			return zero, err
		}

		delay := e.Backoff(attempt)
		metrics.RetryAttempts.WithLabelValues(e.name, label).Inc()
		e.log.Debug("Retrying after transient failure",
			"executor", e.name, "op", label, "attempt", attempt+1, "delay", delay, "error", err)

		if serr := e.sleep(ctx, delay); serr != nil {
			return zero, err
		}
	}

	return zero, nil // unreachable: attempts >= 1
}

func calculateBackoff(attempt int, config Config) time.Duration {
	ms := float64(config.InitialDelay.Milliseconds()) * math.Pow(config.BackoffMultiple, float64(attempt))
	if maxMs := float64(config.MaxDelay.Milliseconds()); config.MaxDelay > 0 && ms > maxMs {
		ms = maxMs
	}
	return time.Duration(math.Floor(ms)) * time.Millisecond
}

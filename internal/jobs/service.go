// Package jobs runs remote image jobs to completion.
//
// Every kind shares one skeleton: build a submission, submit it through the
// network retry executor, poll until terminal, normalise the result. Generate
// additionally falls back to a placeholder; region edit tries several request
// encodings through a Cascade.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/retry"
)

// Config holds job execution settings.
type Config struct {
	Model              string       `yaml:"model"`
	PlaceholderBaseURL string       `yaml:"placeholder_base_url"`
	Poll               PollConfig   `yaml:"poll"`
	Retry              retry.Config `yaml:"retry"`
}

// Service is the entry point used by request handlers: one method per job kind.
type Service struct {
	orch     *Orchestrator
	fallback *Fallback
	cascade  *Cascade
}

// Option customises a Service.
type Option func(*options)

type options struct {
	sleep      retry.Sleeper
	now        func() time.Time
	log        *slog.Logger
	newState   func() string
	strategies []Strategy
}

// WithSleeper replaces every sleep (retry backoff and poll interval).
func WithSleeper(s retry.Sleeper) Option {
	return func(o *options) { o.sleep = s }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithStateFunc replaces the correlation id generator.
func WithStateFunc(f func() string) Option {
	return func(o *options) { o.newState = f }
}

// WithStrategies replaces the region edit strategies.
func WithStrategies(s ...Strategy) Option {
	return func(o *options) { o.strategies = s }
}

// NewService wires executor, poller, orchestrator, fallback and cascade.
func NewService(transport Transport, cfg Config, opts ...Option) *Service {
	o := options{
		sleep: retry.Sleep,
		now:   time.Now,
		log:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	retryCfg := cfg.Retry
	if retryCfg.InitialDelay == 0 {
		retryCfg = retry.NetworkConfig
	}
	network := retry.NewNetwork(retryCfg, retry.WithSleeper(o.sleep), retry.WithLogger(o.log))

	poller := NewPoller(transport, network, cfg.Poll)
	poller.sleep = o.sleep
	poller.now = o.now
	poller.log = o.log

	orch := NewOrchestrator(transport, network, poller, cfg.Model)
	orch.now = o.now
	orch.log = o.log

	fallback := NewFallback(orch, cfg.PlaceholderBaseURL)
	fallback.now = o.now
	fallback.log = o.log

	cascade := NewCascade(orch, o.strategies...)
	cascade.log = o.log

	if o.newState != nil {
		orch.newState = o.newState
		cascade.newState = o.newState
	}

	return &Service{orch: orch, fallback: fallback, cascade: cascade}
}

// Generate never fails: on any error it returns a placeholder result.
func (s *Service) Generate(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.fallback.Generate(ctx, p), nil
}

// Variation creates a variation of one grid image.
func (s *Service) Variation(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.orch.Run(ctx, domain.JobRequest{Kind: domain.KindVariation, Params: p})
}

// Upscale upscales one grid image.
func (s *Service) Upscale(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.orch.Run(ctx, domain.JobRequest{Kind: domain.KindUpscale, Params: p})
}

// Describe suggests prompts for an image.
func (s *Service) Describe(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.orch.Run(ctx, domain.JobRequest{Kind: domain.KindDescribe, Params: p})
}

// Blend merges 2 to 5 images.
func (s *Service) Blend(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.orch.Run(ctx, domain.JobRequest{Kind: domain.KindBlend, Params: p})
}

// RegionEdit repaints the masked region of an image.
func (s *Service) RegionEdit(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	return s.cascade.Run(ctx, p)
}

// Run dispatches a request to the method for its kind.
func (s *Service) Run(ctx context.Context, req domain.JobRequest) (*domain.JobResult, error) {
	switch req.Kind {
	case domain.KindGenerate:
		return s.Generate(ctx, req.Params)
	case domain.KindVariation:
		return s.Variation(ctx, req.Params)
	case domain.KindUpscale:
		return s.Upscale(ctx, req.Params)
	case domain.KindDescribe:
		return s.Describe(ctx, req.Params)
	case domain.KindBlend:
		return s.Blend(ctx, req.Params)
	case domain.KindRegionEdit:
		return s.RegionEdit(ctx, req.Params)
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", domain.ErrInvalidParams, req.Kind)
	}
}

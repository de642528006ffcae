package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
	"github.com/vietddude/imagine/internal/metrics"
)

// Strategy is one request encoding for a region edit.
type Strategy struct {
	Name  string
	Build Builder
}

// RegionEditStrategies lists the encodings the service has accepted for
// region edits, most preferred first.
func RegionEditStrategies() []Strategy {
	return []Strategy{
		{Name: "modal", Build: buildModal},
		{Name: "action-inpaint", Build: buildInpaintAction},
		{Name: "imagine-reference", Build: buildReferenceImagine},
	}
}

// Cascade tries strategies in order until one produces a result.
type Cascade struct {
	orch       *Orchestrator
	strategies []Strategy
	newState   func() string
	log        *slog.Logger
}

// NewCascade creates a cascade over strategies. With none given it uses
// RegionEditStrategies.
func NewCascade(orch *Orchestrator, strategies ...Strategy) *Cascade {
	if len(strategies) == 0 {
		strategies = RegionEditStrategies()
	}
	return &Cascade{
		orch:       orch,
		strategies: strategies,
		newState:   func() string { return uuid.NewString() },
		log:        slog.Default(),
	}
}

// Run returns the first strategy's successful result, annotated with the
// strategy name. When all fail it returns *domain.CascadeExhaustedError
// wrapping the last failure. A done ctx stops the cascade with ctx.Err().
func (c *Cascade) Run(ctx context.Context, p domain.JobParams) (*domain.JobResult, error) {
	var lastErr error
	tried := 0

	for _, s := range c.strategies {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		tried++
		res, err := c.try(ctx, s, p)
		if err == nil {
			metrics.CascadeAttempts.WithLabelValues(s.Name, "ok").Inc()
			res.Metadata.Strategy = s.Name
			return res, nil
		}

		metrics.CascadeAttempts.WithLabelValues(s.Name, "failed").Inc()
		c.log.Warn("Region edit strategy failed", "strategy", s.Name, "error", err)
		lastErr = err
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no region edit strategies configured", domain.ErrInvalidParams)
	}
	return nil, &domain.CascadeExhaustedError{Tried: tried, Last: lastErr}
}

func (c *Cascade) try(ctx context.Context, s Strategy, p domain.JobParams) (*domain.JobResult, error) {
	sub, err := s.Build(p, c.newState())
	if err != nil {
		return nil, err
	}
	return c.orch.RunSubmission(ctx, domain.KindRegionEdit, sub)
}

func checkRegionEdit(p domain.JobParams) error {
	if p.Mask == "" {
		return invalid("region edit needs a mask")
	}
	if p.Prompt == "" {
		return invalid("region edit needs a prompt")
	}
	return nil
}

// buildModal submits the mask straight to the modal endpoint.
func buildModal(p domain.JobParams, state string) (imagine.Submission, error) {
	if err := checkRegionEdit(p); err != nil {
		return imagine.Submission{}, err
	}
	if p.TaskID == "" {
		return imagine.Submission{}, invalid("modal region edit needs a source task id")
	}
	return imagine.Submission{
		Action: "modal",
		Payload: map[string]any{
			"taskId":     p.TaskID,
			"prompt":     p.Prompt,
			"maskBase64": p.Mask,
			"state":      state,
		},
	}, nil
}

// buildInpaintAction presses the Vary (Region) button with the mask attached.
func buildInpaintAction(p domain.JobParams, state string) (imagine.Submission, error) {
	if err := checkRegionEdit(p); err != nil {
		return imagine.Submission{}, err
	}
	if p.TaskID == "" {
		return imagine.Submission{}, invalid("inpaint action needs a source task id")
	}
	index := p.Index
	if index < 1 {
		index = 1
	}
	return imagine.Submission{
		Action: "action",
		Payload: map[string]any{
			"taskId":     p.TaskID,
			"customId":   fmt.Sprintf("MJ::Inpaint::%d::%s::SOLO", index, p.TaskID),
			"prompt":     p.Prompt,
			"maskBase64": p.Mask,
			"state":      state,
		},
	}, nil
}

// buildReferenceImagine sends the base image and mask as references to a
// plain imagine call. It needs the base image inline.
func buildReferenceImagine(p domain.JobParams, state string) (imagine.Submission, error) {
	if err := checkRegionEdit(p); err != nil {
		return imagine.Submission{}, err
	}
	if len(p.Images) == 0 {
		return imagine.Submission{}, invalid("reference region edit needs the base image")
	}
	return imagine.Submission{
		Action: "imagine",
		Payload: map[string]any{
			"prompt":      p.Prompt,
			"base64Array": []string{p.Images[0], p.Mask},
			"state":       state,
		},
	}, nil
}

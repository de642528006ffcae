package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
)

func TestService_GenerateEndToEnd(t *testing.T) {
	f := &fakeTransport{fetch: sequence(submitted, processing, succeeded)}
	s := &countingSleeper{}

	res, err := newTestService(f, s).Generate(context.Background(), domain.JobParams{Prompt: "a red fox"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(f.submits) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(f.submits))
	}
	sub := f.submits[0]
	if sub.Action != "imagine" || sub.Payload["prompt"] != "a red fox" || sub.Payload["state"] != "state-1" {
		t.Errorf("unexpected submission %+v", sub)
	}

	if res.PrimaryOutputURI != succeeded.ImageURL {
		t.Errorf("unexpected primary output %q", res.PrimaryOutputURI)
	}
	if res.MimeType != "image/png" {
		t.Errorf("expected image/png, got %q", res.MimeType)
	}
	if res.Metadata.JobID != "job-1" {
		t.Errorf("expected job id job-1, got %q", res.Metadata.JobID)
	}
	if res.Metadata.Model != "midjourney-v6.1" {
		t.Errorf("expected model from prompt flags, got %q", res.Metadata.Model)
	}
	if res.Metadata.Progress != "100%" {
		t.Errorf("expected progress 100%%, got %q", res.Metadata.Progress)
	}
}

func TestService_GenerateFallsBackToPlaceholder(t *testing.T) {
	f := &fakeTransport{
		submit: func(imagine.Submission) (domain.JobHandle, error) {
			return domain.JobHandle{}, errors.New("dial tcp: connection refused")
		},
	}
	s := &countingSleeper{}

	res, err := newTestService(f, s).Generate(context.Background(), domain.JobParams{Prompt: "a red fox", Style: "Sketch"})
	if err != nil {
		t.Fatalf("generate must not fail, got %v", err)
	}
	if res == nil {
		t.Fatal("expected a result")
	}
	if res.Metadata.Model != PlaceholderModel {
		t.Errorf("expected model %q, got %q", PlaceholderModel, res.Metadata.Model)
	}
	if res.PrimaryOutputURI != Placeholder(DefaultPlaceholderBaseURL, "sketch") {
		t.Errorf("unexpected placeholder %q", res.PrimaryOutputURI)
	}
	if res.MimeType == "" || len(res.Outputs) != 1 {
		t.Errorf("placeholder result is not structurally complete: %+v", res)
	}
	if !strings.Contains(res.Metadata.FallbackReason, "connection refused") {
		t.Errorf("expected fallback reason, got %q", res.Metadata.FallbackReason)
	}
	// submission retried with network bounds before giving up
	if len(f.submits) != 3 {
		t.Errorf("expected 3 submission attempts, got %d", len(f.submits))
	}
}

func TestService_GenerateFallbackOnTimeout(t *testing.T) {
	f := &fakeTransport{fetch: sequence(processing)}
	s := &countingSleeper{}

	clock := time.Unix(1000, 0)
	now := func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}

	res, _ := newTestService(f, s, WithClock(now)).Generate(context.Background(), domain.JobParams{Prompt: "x"})
	if res.Metadata.Model != PlaceholderModel {
		t.Fatalf("expected placeholder, got %+v", res.Metadata)
	}
	if res.Metadata.ElapsedMs <= 0 {
		t.Errorf("expected elapsed time up to failure, got %d", res.Metadata.ElapsedMs)
	}
}

func TestService_OtherKindsPropagateFailures(t *testing.T) {
	rej := &domain.RejectionError{Code: 24, Description: "quota exhausted"}
	f := &fakeTransport{
		submit: func(imagine.Submission) (domain.JobHandle, error) { return domain.JobHandle{}, rej },
	}
	s := &countingSleeper{}
	svc := newTestService(f, s)

	calls := []struct {
		name string
		run  func(context.Context, domain.JobParams) (*domain.JobResult, error)
		p    domain.JobParams
	}{
		{"variation", svc.Variation, domain.JobParams{TaskID: "t1", Index: 2}},
		{"upscale", svc.Upscale, domain.JobParams{TaskID: "t1", Index: 1}},
		{"describe", svc.Describe, domain.JobParams{Images: []string{"data:image/png;base64,AAA"}}},
		{"blend", svc.Blend, domain.JobParams{Images: []string{"a", "b"}}},
	}

	for _, c := range calls {
		res, err := c.run(context.Background(), c.p)
		if res != nil {
			t.Errorf("%s: expected no result", c.name)
		}
		if err != rej {
			t.Errorf("%s: expected rejection unchanged, got %v", c.name, err)
		}
	}
	if len(s.delays) != 0 {
		t.Errorf("rejections must not be retried, slept %v", s.delays)
	}
}

func TestService_Describe(t *testing.T) {
	f := &fakeTransport{fetch: sequence(domain.TaskSnapshot{
		Status:      domain.StatusSuccess,
		Progress:    "100%",
		FinalPrompt: "1 a fox in snow\n\n2 a fox at dusk\n",
	})}
	s := &countingSleeper{}

	res, err := newTestService(f, s).Describe(context.Background(), domain.JobParams{Images: []string{"data:image/png;base64,AAA"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.MimeType != "text/plain" {
		t.Errorf("expected text/plain, got %q", res.MimeType)
	}
	if len(res.Outputs) != 2 || res.PrimaryOutputURI != "1 a fox in snow" {
		t.Errorf("unexpected outputs %v", res.Outputs)
	}
	if f.submits[0].Action != "describe" {
		t.Errorf("expected describe action, got %q", f.submits[0].Action)
	}
}

func TestService_InvalidParamsNeverReachService(t *testing.T) {
	f := &fakeTransport{}
	s := &countingSleeper{}
	svc := newTestService(f, s)

	_, err := svc.Blend(context.Background(), domain.JobParams{Images: []string{"only-one"}})
	if !errors.Is(err, domain.ErrInvalidParams) {
		t.Fatalf("expected ErrInvalidParams, got %v", err)
	}
	if len(f.submits) != 0 {
		t.Errorf("expected no submission, got %d", len(f.submits))
	}
}

func TestService_RunDispatch(t *testing.T) {
	f := &fakeTransport{fetch: sequence(succeeded)}
	s := &countingSleeper{}
	svc := newTestService(f, s)

	res, err := svc.Run(context.Background(), domain.JobRequest{
		Kind:   domain.KindUpscale,
		Params: domain.JobParams{TaskID: "t1", Index: 3},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.PrimaryOutputURI == "" {
		t.Error("expected output")
	}
	if got := f.submits[0].Payload["customId"]; got != "MJ::JOB::upsample::3::t1" {
		t.Errorf("unexpected customId %v", got)
	}

	if _, err := svc.Run(context.Background(), domain.JobRequest{Kind: "paint"}); !errors.Is(err, domain.ErrInvalidParams) {
		t.Errorf("expected ErrInvalidParams for unknown kind, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want domain.RunOutcome
	}{
		{nil, domain.OutcomeSucceeded},
		{&domain.JobFailedError{JobID: "1"}, domain.OutcomeFailed},
		{&domain.JobTimedOutError{JobID: "1"}, domain.OutcomeTimedOut},
		{&domain.RejectionError{Code: 4}, domain.OutcomeRejected},
		{&domain.CascadeExhaustedError{Tried: 3, Last: &domain.JobTimedOutError{}}, domain.OutcomeTimedOut},
		{errors.New("boom"), domain.OutcomeFailed},
	}
	for _, tt := range tests {
		if got := Outcome(tt.err); got != tt.want {
			t.Errorf("Outcome(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

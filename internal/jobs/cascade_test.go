package jobs

import (
	"context"
	"errors"
	"testing"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
)

func stubStrategy(name string, calls *[]string) Strategy {
	return Strategy{
		Name: name,
		Build: func(p domain.JobParams, state string) (imagine.Submission, error) {
			*calls = append(*calls, name)
			return imagine.Submission{Action: name, Payload: map[string]any{"prompt": p.Prompt}}, nil
		},
	}
}

func TestCascade_StopsAtFirstSuccess(t *testing.T) {
	var built []string
	f := &fakeTransport{
		submit: func(sub imagine.Submission) (domain.JobHandle, error) {
			if sub.Action == "first" {
				return domain.JobHandle{}, &domain.RejectionError{Code: 4, Description: "unsupported payload"}
			}
			return domain.JobHandle{ID: "edit-1"}, nil
		},
		fetch: sequence(succeeded),
	}
	s := &countingSleeper{}
	svc := newTestService(f, s, WithStrategies(
		stubStrategy("first", &built),
		stubStrategy("second", &built),
		stubStrategy("third", &built),
	))

	res, err := svc.RegionEdit(context.Background(), domain.JobParams{Prompt: "add a hat"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metadata.Strategy != "second" {
		t.Errorf("expected strategy second, got %q", res.Metadata.Strategy)
	}
	if res.Metadata.JobID != "edit-1" {
		t.Errorf("expected job id edit-1, got %q", res.Metadata.JobID)
	}
	if len(built) != 2 || built[1] != "second" {
		t.Errorf("expected only first and second to run, got %v", built)
	}
	for _, sub := range f.submits {
		if sub.Action == "third" {
			t.Error("third strategy must not be invoked")
		}
	}
}

func TestCascade_Exhausted(t *testing.T) {
	var built []string
	lastErr := &domain.JobFailedError{JobID: "j3", Reason: "mask rejected"}
	n := 0
	f := &fakeTransport{
		submit: func(sub imagine.Submission) (domain.JobHandle, error) {
			n++
			if n < 3 {
				return domain.JobHandle{}, &domain.RejectionError{Code: 4, Description: "bad request"}
			}
			return domain.JobHandle{ID: "j3"}, nil
		},
		fetch: func(int) (*domain.TaskSnapshot, error) { return nil, lastErr },
	}
	s := &countingSleeper{}
	svc := newTestService(f, s, WithStrategies(
		stubStrategy("a", &built),
		stubStrategy("b", &built),
		stubStrategy("c", &built),
	))

	_, err := svc.RegionEdit(context.Background(), domain.JobParams{Prompt: "x"})

	var exhausted *domain.CascadeExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected CascadeExhaustedError, got %v", err)
	}
	if exhausted.Tried != 3 {
		t.Errorf("expected 3 tried, got %d", exhausted.Tried)
	}
	if exhausted.Last != lastErr {
		t.Errorf("expected last underlying error, got %v", exhausted.Last)
	}
	if !errors.Is(err, lastErr) {
		t.Error("expected cascade error to unwrap to the last failure")
	}
}

func TestCascade_BuildErrorsAdvance(t *testing.T) {
	f := &fakeTransport{fetch: sequence(succeeded)}
	s := &countingSleeper{}
	svc := newTestService(f, s)

	// no task id: modal and action-inpaint cannot build; reference imagine can
	res, err := svc.RegionEdit(context.Background(), domain.JobParams{
		Prompt: "replace sky",
		Mask:   "data:image/png;base64,MASK",
		Images: []string{"data:image/png;base64,BASE"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Metadata.Strategy != "imagine-reference" {
		t.Errorf("expected imagine-reference, got %q", res.Metadata.Strategy)
	}
	if len(f.submits) != 1 || f.submits[0].Action != "imagine" {
		t.Errorf("unexpected submissions %+v", f.submits)
	}
}

func TestRegionEditStrategies_Order(t *testing.T) {
	p := domain.JobParams{TaskID: "t9", Prompt: "hat", Mask: "m", Images: []string{"b"}}
	want := []struct{ name, action string }{
		{"modal", "modal"},
		{"action-inpaint", "action"},
		{"imagine-reference", "imagine"},
	}

	got := RegionEditStrategies()
	if len(got) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(got))
	}
	for i, w := range want {
		if got[i].Name != w.name {
			t.Errorf("strategy %d: expected %s, got %s", i, w.name, got[i].Name)
		}
		sub, err := got[i].Build(p, "st")
		if err != nil {
			t.Errorf("%s: unexpected build error: %v", w.name, err)
			continue
		}
		if sub.Action != w.action {
			t.Errorf("%s: expected action %s, got %s", w.name, w.action, sub.Action)
		}
	}

	sub, _ := got[1].Build(p, "st")
	if sub.Payload["customId"] != "MJ::Inpaint::1::t9::SOLO" {
		t.Errorf("unexpected inpaint customId %v", sub.Payload["customId"])
	}
}

func TestCascade_StopsWhenContextIsDone(t *testing.T) {
	var built []string
	ctx, cancel := context.WithCancel(context.Background())
	f := &fakeTransport{
		submit: func(sub imagine.Submission) (domain.JobHandle, error) {
			cancel()
			return domain.JobHandle{}, &domain.RejectionError{Code: 4, Description: "unsupported payload"}
		},
		fetch: sequence(succeeded),
	}
	s := &countingSleeper{}
	svc := newTestService(f, s, WithStrategies(
		stubStrategy("first", &built),
		stubStrategy("second", &built),
		stubStrategy("third", &built),
	))

	_, err := svc.RegionEdit(ctx, domain.JobParams{Prompt: "add a hat"})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled unchanged, got %v", err)
	}
	var exhausted *domain.CascadeExhaustedError
	if errors.As(err, &exhausted) {
		t.Error("a cancelled cascade must not report exhaustion")
	}
	if len(f.submits) != 1 {
		t.Errorf("expected one submission before cancellation, got %d", len(f.submits))
	}
}

func TestCascade_AlreadyCancelledSubmitsNothing(t *testing.T) {
	var built []string
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeTransport{fetch: sequence(succeeded)}
	svc := newTestService(f, &countingSleeper{}, WithStrategies(stubStrategy("first", &built)))

	if _, err := svc.RegionEdit(ctx, domain.JobParams{Prompt: "add a hat"}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if len(built) != 0 || len(f.submits) != 0 {
		t.Errorf("expected no strategy to run, built %v, submitted %d", built, len(f.submits))
	}
}

package jobs

import (
	"errors"
	"testing"

	"github.com/vietddude/imagine/internal/core/domain"
)

func TestBuilders(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.JobKind
		params  domain.JobParams
		action  string
		wantErr bool
	}{
		{"generate", domain.KindGenerate, domain.JobParams{Prompt: "fox"}, "imagine", false},
		{"generate empty prompt", domain.KindGenerate, domain.JobParams{Prompt: "  "}, "", true},
		{"variation", domain.KindVariation, domain.JobParams{TaskID: "t", Index: 4}, "action", false},
		{"variation custom id", domain.KindVariation, domain.JobParams{TaskID: "t", CustomID: "MJ::JOB::reroll::0::t::SOLO"}, "action", false},
		{"variation bad index", domain.KindVariation, domain.JobParams{TaskID: "t", Index: 5}, "", true},
		{"upscale no task", domain.KindUpscale, domain.JobParams{Index: 1}, "", true},
		{"describe", domain.KindDescribe, domain.JobParams{Images: []string{"img"}}, "describe", false},
		{"describe no image", domain.KindDescribe, domain.JobParams{}, "", true},
		{"blend", domain.KindBlend, domain.JobParams{Images: []string{"a", "b", "c"}, Dimensions: "portrait"}, "blend", false},
		{"blend too many", domain.KindBlend, domain.JobParams{Images: []string{"a", "b", "c", "d", "e", "f"}}, "", true},
		{"blend bad dims", domain.KindBlend, domain.JobParams{Images: []string{"a", "b"}, Dimensions: "round"}, "", true},
	}

	for _, tt := range tests {
		sub, err := adapters[tt.kind].build(tt.params, "st")
		if tt.wantErr {
			if !errors.Is(err, domain.ErrInvalidParams) {
				t.Errorf("%s: expected ErrInvalidParams, got %v", tt.name, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
			continue
		}
		if sub.Action != tt.action {
			t.Errorf("%s: expected action %s, got %s", tt.name, tt.action, sub.Action)
		}
		if sub.Payload["state"] != "st" {
			t.Errorf("%s: expected state to be echoed", tt.name)
		}
	}
}

func TestVariationCustomID(t *testing.T) {
	sub, err := adapters[domain.KindVariation].build(domain.JobParams{TaskID: "abc", Index: 2}, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sub.Payload["customId"] != "MJ::JOB::variation::2::abc" {
		t.Errorf("unexpected customId %v", sub.Payload["customId"])
	}
}

func TestImageMime(t *testing.T) {
	tests := map[string]string{
		"https://cdn.example.com/a.png":        "image/png",
		"https://cdn.example.com/a.JPG?x=1":    "image/jpeg",
		"https://cdn.example.com/a.webp#frag":  "image/webp",
		"https://cdn.example.com/no-extension": "image/png",
	}
	for u, want := range tests {
		if got := imageMime([]string{u}); got != want {
			t.Errorf("imageMime(%q) = %s, want %s", u, got, want)
		}
	}
}

func TestModelLabel(t *testing.T) {
	tests := []struct{ prompt, want string }{
		{"a fox --ar 16:9 --v 6", "midjourney-v6"},
		{"a fox --niji 5", "niji-5"},
		{"a fox", "midjourney"},
		{"a fox --v", "midjourney"},
	}
	for _, tt := range tests {
		if got := modelLabel("midjourney", tt.prompt); got != tt.want {
			t.Errorf("modelLabel(%q) = %s, want %s", tt.prompt, got, tt.want)
		}
	}
}

func TestPlaceholderIsDeterministic(t *testing.T) {
	a := Placeholder(DefaultPlaceholderBaseURL, "wireframe")
	b := Placeholder(DefaultPlaceholderBaseURL, " WireFrame ")
	if a != b {
		t.Errorf("expected same placeholder, got %q and %q", a, b)
	}
	if Placeholder(DefaultPlaceholderBaseURL, "unknown") != Placeholder(DefaultPlaceholderBaseURL, "") {
		t.Error("unknown styles should share the default placeholder")
	}
}

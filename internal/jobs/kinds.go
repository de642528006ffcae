package jobs

import (
	"fmt"
	"path"
	"strings"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/infra/imagine"
)

// Builder turns caller parameters into one submission. state is a
// correlation id echoed back by the service.
type Builder func(p domain.JobParams, state string) (imagine.Submission, error)

// Extractor pulls outputs from a terminal snapshot. An empty slice means the
// job has not produced anything yet.
type Extractor func(snap *domain.TaskSnapshot) []string

// adapter is everything that differs between job kinds.
type adapter struct {
	build   Builder
	extract Extractor
	mime    func(outputs []string) string
}

var adapters = map[domain.JobKind]adapter{
	domain.KindGenerate:   {build: buildImagine, extract: imageOutputs, mime: imageMime},
	domain.KindVariation:  {build: buildAction("variation"), extract: imageOutputs, mime: imageMime},
	domain.KindUpscale:    {build: buildAction("upsample"), extract: imageOutputs, mime: imageMime},
	domain.KindDescribe:   {build: buildDescribe, extract: promptOutputs, mime: textMime},
	domain.KindBlend:      {build: buildBlend, extract: imageOutputs, mime: imageMime},
	// region edit submissions come from the cascade strategies
	domain.KindRegionEdit: {extract: imageOutputs, mime: imageMime},
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrInvalidParams, fmt.Sprintf(format, args...))
}

func buildImagine(p domain.JobParams, state string) (imagine.Submission, error) {
	if strings.TrimSpace(p.Prompt) == "" {
		return imagine.Submission{}, invalid("generate needs a prompt")
	}
	payload := map[string]any{
		"prompt": p.Prompt,
		"state":  state,
	}
	if len(p.Images) > 0 {
		payload["base64Array"] = p.Images
	}
	return imagine.Submission{Action: "imagine", Payload: payload}, nil
}

// buildAction builds variation/upscale requests, which press a button on a
// finished grid job.
func buildAction(verb string) Builder {
	return func(p domain.JobParams, state string) (imagine.Submission, error) {
		if p.TaskID == "" {
			return imagine.Submission{}, invalid("%s needs a source task id", verb)
		}
		customID := p.CustomID
		if customID == "" {
			if p.Index < 1 || p.Index > 4 {
				return imagine.Submission{}, invalid("%s index must be 1..4, got %d", verb, p.Index)
			}
			customID = fmt.Sprintf("MJ::JOB::%s::%d::%s", verb, p.Index, p.TaskID)
		}
		return imagine.Submission{
			Action: "action",
			Payload: map[string]any{
				"taskId":   p.TaskID,
				"customId": customID,
				"state":    state,
			},
		}, nil
	}
}

func buildDescribe(p domain.JobParams, state string) (imagine.Submission, error) {
	if len(p.Images) == 0 || p.Images[0] == "" {
		return imagine.Submission{}, invalid("describe needs an image")
	}
	return imagine.Submission{
		Action:  "describe",
		Payload: map[string]any{"base64": p.Images[0], "state": state},
	}, nil
}

var blendDimensions = map[string]bool{"PORTRAIT": true, "SQUARE": true, "LANDSCAPE": true}

func buildBlend(p domain.JobParams, state string) (imagine.Submission, error) {
	if n := len(p.Images); n < 2 || n > 5 {
		return imagine.Submission{}, invalid("blend needs 2 to 5 images, got %d", n)
	}
	dims := strings.ToUpper(p.Dimensions)
	if dims == "" {
		dims = "SQUARE"
	}
	if !blendDimensions[dims] {
		return imagine.Submission{}, invalid("unknown blend dimensions %q", p.Dimensions)
	}
	return imagine.Submission{
		Action: "blend",
		Payload: map[string]any{
			"base64Array": p.Images,
			"dimensions":  dims,
			"state":       state,
		},
	}, nil
}

func imageOutputs(snap *domain.TaskSnapshot) []string {
	if snap.ImageURL == "" {
		return nil
	}
	return []string{snap.ImageURL}
}

// promptOutputs splits a describe answer into its suggested prompts.
func promptOutputs(snap *domain.TaskSnapshot) []string {
	text := snap.FinalPrompt
	if text == "" {
		text = snap.Prompt
	}
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

func imageMime(outputs []string) string {
	if len(outputs) == 0 {
		return "image/png"
	}
	u := outputs[0]
	if i := strings.IndexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch strings.ToLower(path.Ext(u)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return "image/png"
	}
}

func textMime([]string) string { return "text/plain" }

// modelLabel names the model from version flags in the final prompt.
func modelLabel(base, prompt string) string {
	fields := strings.Fields(prompt)
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "--v", "--version":
			return base + "-v" + fields[i+1]
		case "--niji":
			return "niji-" + fields[i+1]
		}
	}
	return base
}

package jobs

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/metrics"
)

// PlaceholderModel labels results that did not come from the service.
const PlaceholderModel = "placeholder"

// DefaultPlaceholderBaseURL serves the stand-in images.
const DefaultPlaceholderBaseURL = "https://placehold.co/1024x1024/png"

// placeholderStyles maps known styles to the caption on their stand-in.
var placeholderStyles = map[string]string{
	"sketch":       "Sketch",
	"wireframe":    "Wireframe",
	"photo":        "Photo",
	"illustration": "Illustration",
	"diagram":      "Diagram",
	"concept":      "Concept Art",
}

// Fallback wraps generate so callers always get a usable result.
type Fallback struct {
	orch    *Orchestrator
	baseURL string
	now     func() time.Time
	log     *slog.Logger
}

// NewFallback creates the generate fallback.
func NewFallback(orch *Orchestrator, placeholderBaseURL string) *Fallback {
	if placeholderBaseURL == "" {
		placeholderBaseURL = DefaultPlaceholderBaseURL
	}
	return &Fallback{
		orch:    orch,
		baseURL: placeholderBaseURL,
		now:     time.Now,
		log:     slog.Default(),
	}
}

// Generate runs a generate job. Any failure is replaced by the placeholder
// for the requested style.
func (f *Fallback) Generate(ctx context.Context, p domain.JobParams) *domain.JobResult {
	start := f.now()

	res, err := f.orch.Run(ctx, domain.JobRequest{Kind: domain.KindGenerate, Params: p})
	if err == nil {
		return res
	}

	style := normaliseStyle(p.Style)
	metrics.FallbacksTotal.WithLabelValues(style).Inc()
	f.log.Warn("Generate failed, returning placeholder", "style", style, "error", err)

	uri := Placeholder(f.baseURL, style)
	return &domain.JobResult{
		PrimaryOutputURI: uri,
		Outputs:          []string{uri},
		MimeType:         "image/png",
		Metadata: domain.JobMetadata{
			Model:          PlaceholderModel,
			ElapsedMs:      f.now().Sub(start).Milliseconds(),
			FallbackReason: err.Error(),
		},
	}
}

// Placeholder returns the fixed stand-in URI for a style.
func Placeholder(baseURL, style string) string {
	caption, ok := placeholderStyles[normaliseStyle(style)]
	if !ok {
		caption = "Image"
	}
	return baseURL + "?text=" + url.QueryEscape(caption)
}

func normaliseStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	if _, ok := placeholderStyles[s]; !ok {
		return "default"
	}
	return s
}

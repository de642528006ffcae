// Package imagine is the HTTP transport to the generative image service.
//
// This package contains:
//   - Client: submit and fetch calls against the service's REST API
//   - Submission: the action + payload pair a job kind sends
//   - response decoding into domain types and the service's error taxonomy
package imagine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/vietddude/imagine/internal/core/domain"
	"github.com/vietddude/imagine/internal/metrics"
)

// SecretHeader carries the static API secret on every request.
const SecretHeader = "mj-api-secret"

// Result codes returned by the submit endpoints.
const (
	CodeSuccess  = 1
	CodeExisted  = 21
	CodeInQueue  = 22
	codeNotFound = 3
)

// Config holds connection settings for the image service.
type Config struct {
	BaseURL   string        `yaml:"base_url"`
	Secret    string        `yaml:"secret"`
	Timeout   time.Duration `yaml:"timeout"`
	RateLimit float64       `yaml:"rate_limit"` // requests per second, 0 = unlimited
	Burst     int           `yaml:"burst"`
}

// Submission is one request that starts a remote job.
type Submission struct {
	// Action is the submit endpoint name: imagine, action, describe, blend, modal.
	Action  string
	Payload map[string]any
}

// Client talks to the image service. It keeps no per-job state and is safe
// for concurrent use.
type Client struct {
	baseURL    string
	secret     string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClient creates a new image service client.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.Secret,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: limiter,
		now:     time.Now,
	}
}

type submitResponse struct {
	Code        int            `json:"code"`
	Description string         `json:"description"`
	Result      any            `json:"result"`
	Properties  map[string]any `json:"properties"`
}

// Submit starts one remote job and returns its handle.
func (c *Client) Submit(ctx context.Context, sub Submission) (domain.JobHandle, error) {
	endpoint := "/mj/submit/" + sub.Action

	body, err := c.do(ctx, http.MethodPost, endpoint, sub.Payload)
	if err != nil {
		return domain.JobHandle{}, err
	}

	var resp submitResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return domain.JobHandle{}, fmt.Errorf("parse submit response: %w", err)
	}

	switch resp.Code {
	case CodeSuccess, CodeExisted, CodeInQueue:
	default:
		return domain.JobHandle{}, &domain.RejectionError{Code: resp.Code, Description: describe(resp.Description, body)}
	}

	id := resultID(resp.Result)
	if id == "" {
		return domain.JobHandle{}, &domain.RejectionError{Code: resp.Code, Description: describe(resp.Description, body)}
	}

	return domain.JobHandle{ID: id, SubmittedAt: c.now()}, nil
}

type taskResponse struct {
	ID         string         `json:"id"`
	Action     string         `json:"action"`
	Status     string         `json:"status"`
	Progress   string         `json:"progress"`
	ImageURL   string         `json:"imageUrl"`
	Prompt     string         `json:"prompt"`
	FailReason string         `json:"failReason"`
	Properties map[string]any `json:"properties"`
}

// Fetch returns the current status of a job.
func (c *Client) Fetch(ctx context.Context, jobID string) (*domain.TaskSnapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/mj/task/"+jobID+"/fetch", nil)
	if err != nil {
		return nil, err
	}

	// The service answers an unknown id with an empty body.
	if len(bytes.TrimSpace(body)) == 0 || string(bytes.TrimSpace(body)) == "null" {
		return nil, &domain.RejectionError{Code: codeNotFound, Description: "task not found: " + jobID}
	}

	var resp taskResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse task response: %w", err)
	}

	snap := &domain.TaskSnapshot{
		ID:         resp.ID,
		Action:     resp.Action,
		Status:     domain.ParseRemoteStatus(resp.Status),
		Progress:   resp.Progress,
		ImageURL:   resp.ImageURL,
		Prompt:     resp.Prompt,
		FailReason: resp.FailReason,
	}
	if snap.ID == "" {
		snap.ID = jobID
	}
	if fp, ok := resp.Properties["finalPrompt"].(string); ok {
		snap.FinalPrompt = fp
	}
	return snap, nil
}

// Ping checks that the service answers HTTP at all. Each call returns its own
// result; nothing is cached between calls.
func (c *Client) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/mj/task/list", nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("ping: %w", err)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return time.Since(start), fmt.Errorf("ping: http %d", resp.StatusCode)
	}
	return time.Since(start), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, payload any) ([]byte, error) {
	start := time.Now()
	label := metricLabel(endpoint)

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ServiceCallsTotal.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("%s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	metrics.ServiceLatency.WithLabelValues(label).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ServiceCallsTotal.WithLabelValues(label, "error").Inc()
		return nil, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		metrics.ServiceCallsTotal.WithLabelValues(label, "transient").Inc()
		return nil, &domain.TransientError{
			Op:         endpoint,
			StatusCode: resp.StatusCode,
			Err:        errors.New(truncate(string(body), 200)),
		}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		metrics.ServiceCallsTotal.WithLabelValues(label, "rejected").Inc()
		return nil, &domain.RejectionError{
			Code:        resp.StatusCode,
			Description: describe(errorDescription(body), body),
		}
	}

	metrics.ServiceCallsTotal.WithLabelValues(label, "ok").Inc()
	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.secret != "" {
		req.Header.Set(SecretHeader, c.secret)
	}
}

// resultID accepts the job id as either a string or a number.
func resultID(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return fmt.Sprintf("%.0f", id)
	default:
		return ""
	}
}

func errorDescription(body []byte) string {
	var e struct {
		Description string `json:"description"`
		Message     string `json:"message"`
		Error       string `json:"error"`
	}
	if json.Unmarshal(body, &e) != nil {
		return ""
	}
	for _, s := range []string{e.Description, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func describe(desc string, body []byte) string {
	if desc != "" {
		return desc
	}
	return truncate(string(body), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

func metricLabel(endpoint string) string {
	if strings.HasPrefix(endpoint, "/mj/task/") {
		return "fetch"
	}
	return strings.TrimPrefix(endpoint, "/mj/submit/")
}

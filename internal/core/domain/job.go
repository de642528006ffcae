package domain

import "time"

// JobKind identifies one of the remote job types.
type JobKind string

const (
	KindGenerate   JobKind = "generate"
	KindVariation  JobKind = "variation"
	KindUpscale    JobKind = "upscale"
	KindDescribe   JobKind = "describe"
	KindBlend      JobKind = "blend"
	KindRegionEdit JobKind = "region_edit"
)

// AllKinds lists every supported job kind.
var AllKinds = []JobKind{
	KindGenerate,
	KindVariation,
	KindUpscale,
	KindDescribe,
	KindBlend,
	KindRegionEdit,
}

// ParseJobKind converts user input to a JobKind.
func ParseJobKind(s string) (JobKind, bool) {
	for _, k := range AllKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// JobParams carries every parameter a job kind may read.
// Each kind reads only the fields it needs.
type JobParams struct {
	Prompt     string   `json:"prompt,omitempty"     yaml:"prompt"`
	Style      string   `json:"style,omitempty"      yaml:"style"`
	TaskID     string   `json:"taskId,omitempty"     yaml:"task_id"`  // source job for variation/upscale/region edit
	Index      int      `json:"index,omitempty"      yaml:"index"`    // 1..4 grid position
	CustomID   string   `json:"customId,omitempty"   yaml:"custom_id"` // explicit button id, overrides Index
	Images     []string `json:"images,omitempty"     yaml:"images"`   // base64 data URLs
	Mask       string   `json:"mask,omitempty"       yaml:"mask"`     // base64 data URL
	Dimensions string   `json:"dimensions,omitempty" yaml:"dimensions"`
}

// JobRequest is a caller-constructed, immutable description of one job.
type JobRequest struct {
	Kind   JobKind
	Params JobParams
}

// JobHandle identifies one remote job. It is the only key used for polling.
type JobHandle struct {
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// JobStatus is the locally normalised job state.
type JobStatus string

const (
	StatusSubmitted  JobStatus = "SUBMITTED"
	StatusProcessing JobStatus = "IN_PROGRESS"
	StatusSuccess    JobStatus = "SUCCESS"
	StatusFailed     JobStatus = "FAILURE"
	StatusTimedOut   JobStatus = "TIMED_OUT" // synthesized locally, never reported by the server
)

// ParseRemoteStatus maps a status string reported by the service.
// Unknown values map to StatusSubmitted so they keep the poller waiting.
func ParseRemoteStatus(s string) JobStatus {
	switch s {
	case "IN_PROGRESS":
		return StatusProcessing
	case "SUCCESS":
		return StatusSuccess
	case "FAILURE", "FAILED":
		return StatusFailed
	default:
		// NOT_START, SUBMITTED, MODAL and anything new
		return StatusSubmitted
	}
}

// IsTerminal reports whether no further transition can happen.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusTimedOut
}

// Rank orders statuses along the only allowed transition path.
func (s JobStatus) Rank() int {
	switch s {
	case StatusSubmitted:
		return 0
	case StatusProcessing:
		return 1
	default:
		return 2
	}
}

// TaskSnapshot is one status observation of a remote job.
type TaskSnapshot struct {
	ID          string
	Action      string
	Status      JobStatus
	Progress    string
	ImageURL    string
	Prompt      string
	FinalPrompt string
	FailReason  string
}

// JobMetadata describes how a result was produced.
type JobMetadata struct {
	Model          string `json:"model"`
	JobID          string `json:"jobId"`
	ElapsedMs      int64  `json:"elapsedMs"`
	Progress       string `json:"progress,omitempty"`
	Strategy       string `json:"strategy,omitempty"`
	FallbackReason string `json:"fallbackReason,omitempty"`
}

// JobResult is the uniform result shape handed back to callers.
type JobResult struct {
	PrimaryOutputURI string      `json:"primaryOutputUri"`
	Outputs          []string    `json:"outputs,omitempty"`
	MimeType         string      `json:"mimeType"`
	Metadata         JobMetadata `json:"metadata"`
}

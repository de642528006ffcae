package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidParams is returned before any remote call when a request lacks
// what its kind needs.
var ErrInvalidParams = errors.New("invalid job parameters")

// TransientError marks a failure worth retrying (overload, gateway errors).
type TransientError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transient http %d: %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transient: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// RejectionError is the service refusing a request (bad prompt, quota,
// invalid parameter). It is never retried.
type RejectionError struct {
	Code        int
	Description string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("request rejected (code %d): %s", e.Code, e.Description)
}

// JobFailedError is a terminal FAILURE observed while polling.
type JobFailedError struct {
	JobID  string
	Reason string
}

func (e *JobFailedError) Error() string {
	reason := e.Reason
	if reason == "" {
		reason = "no reason given"
	}
	return fmt.Sprintf("job %s failed: %s", e.JobID, reason)
}

// JobTimedOutError is raised locally after the poll budget runs out without a
// terminal status. The remote job may still complete.
type JobTimedOutError struct {
	JobID      string
	Attempts   int
	Elapsed    time.Duration
	LastStatus JobStatus // last status the service reported
}

func (e *JobTimedOutError) Error() string {
	return fmt.Sprintf("job %s did not finish after %d polls (%s, last %s)",
		e.JobID, e.Attempts, e.Elapsed.Round(time.Second), e.LastStatus)
}

// Status is the locally synthesized terminal status.
func (e *JobTimedOutError) Status() JobStatus { return StatusTimedOut }

// CascadeExhaustedError means every region edit strategy failed.
type CascadeExhaustedError struct {
	Tried int
	Last  error
}

func (e *CascadeExhaustedError) Error() string {
	return fmt.Sprintf("all %d region edit strategies failed, last: %v", e.Tried, e.Last)
}

func (e *CascadeExhaustedError) Unwrap() error { return e.Last }

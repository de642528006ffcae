package domain

import "time"

// RunOutcome is the final state of one finished run as recorded by callers.
type RunOutcome string

const (
	OutcomeSucceeded   RunOutcome = "succeeded"
	OutcomeFailed      RunOutcome = "failed"
	OutcomeTimedOut    RunOutcome = "timed_out"
	OutcomeRejected    RunOutcome = "rejected"
	OutcomePlaceholder RunOutcome = "placeholder"
)

// RunRecord is one row of run history.
type RunRecord struct {
	ID        string     `db:"id"`
	Kind      JobKind    `db:"kind"`
	JobID     string     `db:"job_id"`
	Outcome   RunOutcome `db:"outcome"`
	OutputURI string     `db:"output_uri"`
	Model     string     `db:"model"`
	Strategy  string     `db:"strategy"`
	ElapsedMs int64      `db:"elapsed_ms"`
	Error     string     `db:"error_msg"`
	CreatedAt time.Time  `db:"created_at"`
}

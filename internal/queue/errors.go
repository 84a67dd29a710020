package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateJob marks an enqueue for a path that already has a live job.
	ErrDuplicateJob = errors.New("duplicate job")
	// ErrInvalidTransition marks a rejected state change.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrJobNotFound marks an operation on a missing job id.
	ErrJobNotFound = errors.New("job not found")
)

// DuplicateJobError reports the live job that already owns a source path.
type DuplicateJobError struct {
	SourcePath string
	ExistingID int64
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("job %d already active for %s", e.ExistingID, e.SourcePath)
}

func (e *DuplicateJobError) Unwrap() error { return ErrDuplicateJob }

// InvalidTransitionError reports a transition outside the table or a failed
// compare-and-swap. Current holds the persisted state when it was read.
type InvalidTransitionError struct {
	JobID   int64
	From    State
	To      State
	Current State
	Reason  string
}

func (e *InvalidTransitionError) Error() string {
	msg := fmt.Sprintf("job %d: %s -> %s", e.JobID, e.From, e.To)
	if e.Current != "" && e.Current != e.From {
		msg += fmt.Sprintf(" (job is %s)", e.Current)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// ErrLeaseLost marks a renewal for a claim the worker no longer holds.
var ErrLeaseLost = errors.New("lease lost")

package queue

import (
	"time"

	"mediaconv/internal/planner"
)

// State represents the lifecycle of a job.
type State string

const (
	StatePending      State = "pending"
	StateClaimed      State = "claimed"
	StateProbing      State = "probing"
	StateEncoding     State = "encoding"
	StateRetryPending State = "retry_pending"
	StateFinalizing   State = "finalizing"
	StateSucceeded    State = "succeeded"
	StateFailed       State = "failed"
)

var allStates = []State{
	StatePending,
	StateClaimed,
	StateProbing,
	StateEncoding,
	StateRetryPending,
	StateFinalizing,
	StateSucceeded,
	StateFailed,
}

// AllStates returns every state in lifecycle order.
func AllStates() []State {
	return append([]State(nil), allStates...)
}

// ParseState normalizes a user-supplied state name.
func ParseState(value string) (State, bool) {
	for _, state := range allStates {
		if string(state) == value {
			return state, true
		}
	}
	return "", false
}

// IsTerminal reports whether the state accepts no further transitions.
func (s State) IsTerminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// IsActive reports whether a worker holds the job.
func (s State) IsActive() bool {
	switch s {
	case StateClaimed, StateProbing, StateEncoding, StateFinalizing:
		return true
	default:
		return false
	}
}

// MediaType distinguishes movies from series episodes.
type MediaType string

const (
	MediaMovie   MediaType = "movie"
	MediaEpisode MediaType = "episode"
)

// Outcome classifies a finished attempt.
type Outcome string

const (
	OutcomeSuccess          Outcome = "success"
	OutcomeTransientFailure Outcome = "transient_failure"
	OutcomePermanentFailure Outcome = "permanent_failure"
)

// FailureReason refines a failed outcome.
type FailureReason string

const (
	ReasonNone              FailureReason = ""
	ReasonHardwareMemory    FailureReason = "hardware_memory"
	ReasonHardwareTransient FailureReason = "hardware_transient"
	ReasonTimeout           FailureReason = "timeout"
	ReasonCorruptSource     FailureReason = "corrupt_source"
	ReasonUnsupportedStream FailureReason = "unsupported_stream"
	ReasonCancelled         FailureReason = "cancelled"
	ReasonRetriesExhausted  FailureReason = "retries_exhausted"
	ReasonProbeFailed       FailureReason = "probe_failed"
	ReasonFinalizeFailed    FailureReason = "finalize_failed"
)

// IsTransient reports whether the reason belongs to the retryable family.
func (r FailureReason) IsTransient() bool {
	switch r {
	case ReasonHardwareMemory, ReasonHardwareTransient, ReasonTimeout:
		return true
	default:
		return false
	}
}

// SeriesContext locates an episode inside its series.
type SeriesContext struct {
	SeriesName string `json:"series_name"`
	SeriesRoot string `json:"series_root"`
	Season     int    `json:"season"`
	Episode    int    `json:"episode"`
}

// JobError is the last failure recorded on a job.
type JobError struct {
	Kind    Outcome       `json:"kind"`
	Reason  FailureReason `json:"reason"`
	Message string        `json:"message,omitempty"`
}

func (e *JobError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Message
}

// Job is a unit of conversion work persisted in SQLite.
type Job struct {
	ID              int64
	SourcePath      string
	MediaType       MediaType
	Series          *SeriesContext
	Title           string
	State           State
	AttemptCount    int
	Params          *planner.EncodingParams
	Probe           *planner.SourceProbe
	LastError       *JobError
	ClaimedBy       string
	ClaimExpiry     time.Time
	CancelRequested bool
	OutputPath      string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	FinishedAt      time.Time
}

// ResolutionClass returns the bias bucket for the job's probed source, or an
// empty string before the first probe.
func (j *Job) ResolutionClass() string {
	if j == nil || j.Probe == nil {
		return ""
	}
	return planner.ResolutionClass(j.Probe.Width, j.Probe.Height)
}

// NewJob describes a job to enqueue.
type NewJob struct {
	SourcePath string
	MediaType  MediaType
	Series     *SeriesContext
	Title      string
	Params     *planner.EncodingParams
}

// Payload carries the optional column updates applied with a transition.
type Payload struct {
	WorkerID   string
	Lease      time.Duration
	Params     *planner.EncodingParams
	Probe      *planner.SourceProbe
	Error      *JobError
	ClearError bool
	OutputPath string
}

// Attempt is one append-only encode attempt record.
type Attempt struct {
	JobID           int64
	Number          int
	Params          planner.EncodingParams
	Outcome         Outcome
	Reason          FailureReason
	Diagnostics     string
	WorkerID        string
	ResolutionClass string
	Duration        time.Duration
	Timestamp       time.Time
}

// BiasEntry aggregates attempt outcomes for one dimension value.
type BiasEntry struct {
	Dimension planner.Dimension
	Value     string
	Tries     int
	Successes int
}

// SuccessRate returns successes over tries, or zero when untried.
func (e BiasEntry) SuccessRate() float64 {
	if e.Tries == 0 {
		return 0
	}
	return float64(e.Successes) / float64(e.Tries)
}

// Bias is the historical success table for a resolution class.
type Bias struct {
	ResolutionClass string
	Entries         map[planner.Dimension]map[string]BiasEntry
}

// Lookup returns the entry for a dimension value when one exists.
func (b Bias) Lookup(dim planner.Dimension, value string) (BiasEntry, bool) {
	values, ok := b.Entries[dim]
	if !ok {
		return BiasEntry{}, false
	}
	entry, ok := values[value]
	return entry, ok
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	SchemaVersion    int
	TablesPresent    []string
	MissingTables    []string
	IntegrityCheck   bool
	TotalJobs        int
	TotalAttempts    int
	Error            string
}

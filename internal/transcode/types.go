package transcode

import (
	"context"
	"time"

	"mediaconv/internal/planner"
)

// Request describes one encode attempt.
type Request struct {
	Source  string
	Output  string
	Params  planner.EncodingParams
	LogPath string
}

// Result reports how the transcoder process ended.
type Result struct {
	ExitCode    int
	Diagnostics string
	Duration    time.Duration
	// OutputBytes is the size of Output after the run, or -1 when missing.
	OutputBytes int64
	TimedOut    bool
}

// Transcoder runs one encode attempt to completion. A non-nil error means
// the process never started; every other failure is described by Result.
type Transcoder interface {
	Transcode(ctx context.Context, req Request) (Result, error)
}

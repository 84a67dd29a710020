package retry

import (
	"regexp"
	"strings"

	"mediaconv/internal/queue"
)

// Observation is what the workflow saw of one transcoder run.
type Observation struct {
	ExitCode    int
	Diagnostics string
	TimedOut    bool
	Cancelled   bool
	// OutputBytes is the size of the produced file, or -1 when it is missing.
	OutputBytes int64
}

// Classification is the outcome of one attempt together with the diagnostic
// line that decided it.
type Classification struct {
	Outcome  queue.Outcome
	Reason   queue.FailureReason
	Evidence string
}

// minOutputBytes is the smallest output accepted from a zero exit.
const minOutputBytes = 1000

// sigkillExit is what a shell reports for a process killed by SIGKILL, which on
// these hosts almost always means the kernel OOM killer.
const sigkillExit = 137

type pattern struct {
	reason queue.FailureReason
	re     *regexp.Regexp
}

// Order matters: memory exhaustion wins over everything because allocation
// failures cascade into decoder and muxer noise, then permanent source
// problems, then generic device faults.
var patterns = []pattern{
	{queue.ReasonHardwareMemory, regexp.MustCompile(`MFX_ERR_MEMORY_ALLOC|MFX_ERR_NOT_ENOUGH_BUFFER`)},
	{queue.ReasonHardwareMemory, regexp.MustCompile(`(?i)cannot allocate memory|out of (video )?memory|failed to allocate|error allocating (a )?(frame|surface|buffer)`)},
	{queue.ReasonCorruptSource, regexp.MustCompile(`(?i)invalid data found when processing input|moov atom not found|ebml header parsing failed`)},
	{queue.ReasonCorruptSource, regexp.MustCompile(`(?i)(corrupt|truncated) (input|file|packet|frame)|error while decoding stream .*: invalid data`)},
	{queue.ReasonUnsupportedStream, regexp.MustCompile(`(?i)unsupported codec|decoder \(codec [^)]*\) not found|codec not currently supported|could not find codec parameters`)},
	{queue.ReasonUnsupportedStream, regexp.MustCompile(`(?i)no decoder for|unknown encoder|not supported by the (qsv|hardware) decoder`)},
	{queue.ReasonHardwareTransient, regexp.MustCompile(`MFX_ERR_DEVICE_FAILED|MFX_ERR_DEVICE_LOST|MFX_ERR_GPU_HANG|MFX_ERR_ABORTED`)},
	{queue.ReasonHardwareTransient, regexp.MustCompile(`(?i)gpu hang|device creation failed|failed to (initiali[sz]e|create) (vaapi|qsv|hardware)|resource temporarily unavailable`)},
}

// Classify maps a transcoder run to an outcome. A non-zero exit that matches
// no known pattern counts as a transient hardware failure so the engine steps
// down rather than giving up.
func Classify(obs Observation) Classification {
	switch {
	case obs.Cancelled:
		return Classification{Outcome: queue.OutcomePermanentFailure, Reason: queue.ReasonCancelled}
	case obs.TimedOut:
		return Classification{Outcome: queue.OutcomeTransientFailure, Reason: queue.ReasonTimeout, Evidence: "attempt timed out"}
	}

	for _, p := range patterns {
		if line := matchLine(p.re, obs.Diagnostics); line != "" {
			if obs.ExitCode == 0 && obs.OutputBytes >= minOutputBytes {
				// ffmpeg logs recoverable decode errors and still finishes.
				break
			}
			return classificationFor(p.reason, line)
		}
	}

	if obs.ExitCode == 0 {
		if obs.OutputBytes < minOutputBytes {
			return Classification{Outcome: queue.OutcomeTransientFailure, Reason: queue.ReasonHardwareTransient, Evidence: "output missing or empty"}
		}
		return Classification{Outcome: queue.OutcomeSuccess}
	}
	if obs.ExitCode == sigkillExit {
		return Classification{Outcome: queue.OutcomeTransientFailure, Reason: queue.ReasonHardwareMemory, Evidence: "process killed (SIGKILL)"}
	}
	return Classification{Outcome: queue.OutcomeTransientFailure, Reason: queue.ReasonHardwareTransient, Evidence: lastLine(obs.Diagnostics)}
}

func classificationFor(reason queue.FailureReason, evidence string) Classification {
	outcome := queue.OutcomePermanentFailure
	if reason.IsTransient() {
		outcome = queue.OutcomeTransientFailure
	}
	return Classification{Outcome: outcome, Reason: reason, Evidence: evidence}
}

func matchLine(re *regexp.Regexp, text string) string {
	loc := re.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	start := strings.LastIndexByte(text[:loc[0]], '\n') + 1
	end := strings.IndexByte(text[loc[1]:], '\n')
	if end < 0 {
		return strings.TrimSpace(text[start:])
	}
	return strings.TrimSpace(text[start : loc[1]+end])
}

func lastLine(text string) string {
	text = strings.TrimRight(text, "\r\n ")
	if idx := strings.LastIndexByte(text, '\n'); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return strings.TrimSpace(text)
}

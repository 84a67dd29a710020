// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Stream: individual audio/video/subtitle stream properties
//   - Prober: adapts Result into planner.SourceProbe for the workflow
//
// Inspect and Prober.Probe wrap ErrUnreadable when ffprobe rejects the
// source; ToSourceProbe wraps ErrNoVideo when no usable video stream exists.
package ffprobe

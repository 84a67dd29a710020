// Package logging assembles structured slog loggers and formatting helpers used
// across mediaconv services.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so workflow code can tag log
// lines with job IDs, job states, worker IDs, and correlation IDs. The package
// also prunes per-attempt transcoder logs and provides a no-op logger for tests.
package logging

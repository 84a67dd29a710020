// Package services defines shared utilities consumed by the workflow and the
// external tool adapters.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, job states, worker IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so adapters report
//     failures with a consistent shape and callers can tell retryable
//     operational errors from configuration mistakes.
package services

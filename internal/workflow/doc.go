// Package workflow runs the worker loops that carry jobs from claim to a
// terminal state.
//
// Each worker reclaims expired leases, claims the oldest eligible job and
// drives it through probing, encoding and finalizing. Failed encode attempts
// are recorded and handed to the retry engine, which either mutates the
// parameters and returns the job to retry_pending or fails it. While a worker
// holds a claim a lease keeper renews the lease and polls the operator cancel
// flag; a cancel request terminates the running transcoder.
//
// The Manager owns no queue state of its own: every decision is persisted
// through queue.Store transitions, so a crashed daemon resumes from the
// database alone.
package workflow

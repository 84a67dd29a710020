// Package queue persists conversion jobs and their attempt history in SQLite
// and enforces the job state machine.
//
// Every state change goes through the Store as a compare-and-swap on the
// persisted state (and, for active jobs, the claiming worker), so two workers
// can never both act on one job. Claims carry a lease that the owning worker
// renews; expired leases are reclaimed back to pending on every poll.
//
// The attempts table is append-only. attempt_count on the job row and the
// attempt insert happen in one transaction, and Bias aggregates attempts by
// resolution class and dimension value to steer future retries. Retention
// purges remove finished job rows but keep their attempts.
//
// Schema changes append a migration in schema.go. Opening a database written
// by a newer build fails with ErrSchemaMismatch.
package queue

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// reclaimableSQL matches active jobs whose claim is missing or expired. The
// single placeholder is the cutoff timestamp.
const reclaimableSQL = `state IN ('claimed', 'probing', 'encoding', 'finalizing') AND (claim_expiry IS NULL OR claim_expiry < ?)`

// orphanCutoff sorts after every stored timestamp.
const orphanCutoff = "9999-12-31T23:59:59.999999999Z"

// Claim atomically hands the oldest eligible job to workerID. Active jobs with
// an expired lease are reclaimed first in the same transaction, so eligible
// jobs are pending or retry_pending. Returns nil when nothing is eligible.
func (s *Store) Claim(ctx context.Context, workerID string, lease time.Duration) (*Job, error) {
	if strings.TrimSpace(workerID) == "" {
		return nil, errors.New("claim: worker id is required")
	}
	if lease <= 0 {
		return nil, errors.New("claim: lease must be positive")
	}
	var claimed *Job
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		claimed = nil
		now := s.clock()
		if _, err := reclaimTx(ctx, tx, formatTime(now), now); err != nil {
			return err
		}
		row := tx.QueryRowContext(ctx,
			`UPDATE jobs
            SET state = ?, claimed_by = ?, claim_expiry = ?, updated_at = ?
            WHERE id = (
                SELECT id FROM jobs
                WHERE cancel_requested = 0 AND state IN (?, ?)
                ORDER BY updated_at, id
                LIMIT 1
            )
            RETURNING `+jobColumns,
			StateClaimed, workerID, formatTime(now.Add(lease)), formatTime(now),
			StatePending, StateRetryPending,
		)
		job, err := scanJob(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("claim job: %w", err)
		}
		claimed = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

// Advance moves a job from one state to another. The transition must appear
// in the table and the persisted state (and claim, for active jobs) must still
// match; otherwise *InvalidTransitionError is returned and nothing changes.
func (s *Store) Advance(ctx context.Context, jobID int64, from, to State, payload Payload) error {
	if err := validateTransition(jobID, from, to, payload); err != nil {
		return err
	}
	if from.IsActive() && payload.WorkerID == "" {
		return &InvalidTransitionError{JobID: jobID, From: from, To: to, Reason: "worker id required for claimed jobs"}
	}

	now := s.clock()
	sets := []string{"state = ?", "updated_at = ?"}
	args := []any{string(to), formatTime(now)}

	if payload.Params != nil {
		raw, err := nullableJSON(payload.Params)
		if err != nil {
			return fmt.Errorf("marshal params: %w", err)
		}
		sets = append(sets, "params_json = ?")
		args = append(args, raw)
	}
	if payload.Probe != nil {
		raw, err := nullableJSON(payload.Probe)
		if err != nil {
			return fmt.Errorf("marshal probe: %w", err)
		}
		sets = append(sets, "probe_json = ?")
		args = append(args, raw)
	}
	switch {
	case payload.ClearError:
		sets = append(sets, "last_error_json = NULL")
	case payload.Error != nil:
		raw, err := nullableJSON(payload.Error)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		sets = append(sets, "last_error_json = ?")
		args = append(args, raw)
	}
	if payload.OutputPath != "" {
		sets = append(sets, "output_path = ?")
		args = append(args, payload.OutputPath)
	}
	switch {
	case to == StateClaimed:
		if payload.WorkerID == "" || payload.Lease <= 0 {
			return &InvalidTransitionError{JobID: jobID, From: from, To: to, Reason: "claim requires worker id and lease"}
		}
		sets = append(sets, "claimed_by = ?", "claim_expiry = ?")
		args = append(args, payload.WorkerID, formatTime(now.Add(payload.Lease)))
	case to == StateRetryPending || to.IsTerminal():
		sets = append(sets, "claimed_by = NULL", "claim_expiry = NULL")
	}
	if to.IsTerminal() {
		sets = append(sets, "finished_at = ?")
		args = append(args, formatTime(now))
	}

	query := `UPDATE jobs SET ` + strings.Join(sets, ", ") + ` WHERE id = ? AND state = ?`
	args = append(args, jobID, string(from))
	if from.IsActive() {
		query += ` AND claimed_by = ?`
		args = append(args, payload.WorkerID)
	}

	res, err := s.execWithRetry(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("advance job %d %s -> %s: %w", jobID, from, to, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance rows affected: %w", err)
	}
	if affected == 0 {
		current, err := s.currentState(ctx, jobID)
		if err != nil {
			return err
		}
		reason := "state changed concurrently"
		if current == from {
			reason = "claim held by another worker"
		}
		return &InvalidTransitionError{JobID: jobID, From: from, To: to, Current: current, Reason: reason}
	}
	return nil
}

func (s *Store) currentState(ctx context.Context, jobID int64) (State, error) {
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, jobID).Scan(&state)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("job %d: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read job state: %w", err)
	}
	return State(state), nil
}

// Release clears the claim held by workerID without changing state, making the
// job immediately reclaimable.
func (s *Store) Release(ctx context.Context, jobID int64, workerID string) error {
	if _, err := s.execWithRetry(ctx,
		`UPDATE jobs SET claimed_by = NULL, claim_expiry = NULL, updated_at = ?
         WHERE id = ? AND claimed_by = ? AND state NOT IN `+terminalStatesSQL,
		formatTime(s.clock()), jobID, workerID,
	); err != nil {
		return fmt.Errorf("release job %d: %w", jobID, err)
	}
	return nil
}

// RenewLease extends the claim held by workerID. ErrLeaseLost is returned when
// the claim moved to another worker or the job left the active states.
func (s *Store) RenewLease(ctx context.Context, jobID int64, workerID string, lease time.Duration) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs SET claim_expiry = ?
         WHERE id = ? AND claimed_by = ? AND state IN ('claimed', 'probing', 'encoding', 'finalizing')`,
		formatTime(s.clock().Add(lease)), jobID, workerID,
	)
	if err != nil {
		return fmt.Errorf("renew lease: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("renew lease rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("job %d worker %s: %w", jobID, workerID, ErrLeaseLost)
	}
	return nil
}

// ReclaimExpired returns active jobs with expired leases to pending. Jobs with
// a pending cancel request fail as cancelled instead. A job whose lease ran
// out while encoding is charged a timeout attempt, so a source that keeps
// killing its worker still exhausts the retry budget.
func (s *Store) ReclaimExpired(ctx context.Context, now time.Time) (int64, error) {
	return s.reclaim(ctx, formatTime(now))
}

// ResetOrphaned reclaims every active job regardless of lease. The daemon
// calls it at startup while holding the instance lock, when no other worker
// can be alive.
func (s *Store) ResetOrphaned(ctx context.Context) (int64, error) {
	return s.reclaim(ctx, orphanCutoff)
}

func (s *Store) reclaim(ctx context.Context, cutoff string) (int64, error) {
	var total int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		total, err = reclaimTx(ctx, tx, cutoff, s.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}

func reclaimTx(ctx context.Context, tx *sql.Tx, cutoff string, now time.Time) (int64, error) {
	cancelled, err := cancelledErrorJSON()
	if err != nil {
		return 0, err
	}
	if err := chargeStalledEncodes(ctx, tx, cutoff, now); err != nil {
		return 0, err
	}
	stamp := formatTime(now)
	res, err := tx.ExecContext(ctx,
		`UPDATE jobs
        SET state = ?, last_error_json = ?, claimed_by = NULL, claim_expiry = NULL,
            finished_at = ?, updated_at = ?
        WHERE cancel_requested = 1 AND `+reclaimableSQL,
		StateFailed, cancelled, stamp, stamp, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("fail cancelled expired jobs: %w", err)
	}
	failed, _ := res.RowsAffected()

	res, err = tx.ExecContext(ctx,
		`UPDATE jobs
        SET state = ?, claimed_by = NULL, claim_expiry = NULL, updated_at = ?
        WHERE `+reclaimableSQL,
		StatePending, stamp, cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim expired jobs: %w", err)
	}
	reverted, _ := res.RowsAffected()
	return failed + reverted, nil
}

// StalledEncodeMessage is the diagnostics text of the attempt charged to an
// encode whose worker stopped renewing its lease.
const StalledEncodeMessage = "encode lease expired before the worker reported a result"

// chargeStalledEncodes records a transient timeout attempt for every expired
// encoding job about to be reclaimed. Jobs released on shutdown have no owner
// and are not charged.
func chargeStalledEncodes(ctx context.Context, tx *sql.Tx, cutoff string, now time.Time) error {
	rows, err := tx.QueryContext(ctx,
		`SELECT `+jobColumns+` FROM jobs
        WHERE state = 'encoding' AND claimed_by IS NOT NULL
          AND (claim_expiry IS NULL OR claim_expiry < ?)`,
		cutoff,
	)
	if err != nil {
		return fmt.Errorf("list stalled encodes: %w", err)
	}
	var stalled []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			rows.Close()
			return fmt.Errorf("scan stalled encode: %w", err)
		}
		stalled = append(stalled, job)
	}
	if err := rows.Close(); err != nil {
		return fmt.Errorf("close stalled encodes: %w", err)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate stalled encodes: %w", err)
	}

	lastError, err := json.Marshal(JobError{
		Kind:    OutcomeTransientFailure,
		Reason:  ReasonTimeout,
		Message: StalledEncodeMessage,
	})
	if err != nil {
		return fmt.Errorf("marshal stall error: %w", err)
	}
	for _, job := range stalled {
		if job.Params == nil {
			continue
		}
		if _, err := insertAttempt(ctx, tx, job.ID, Attempt{
			Params:          *job.Params,
			Outcome:         OutcomeTransientFailure,
			Reason:          ReasonTimeout,
			Diagnostics:     StalledEncodeMessage,
			WorkerID:        job.ClaimedBy,
			ResolutionClass: job.ResolutionClass(),
		}, now); err != nil {
			return fmt.Errorf("charge stalled encode of job %d: %w", job.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE jobs SET last_error_json = ? WHERE id = ?`, string(lastError), job.ID,
		); err != nil {
			return fmt.Errorf("record stall error for job %d: %w", job.ID, err)
		}
	}
	return nil
}

// RequestCancel flags a non-terminal job for cancellation. Jobs no worker
// holds (pending, retry_pending) fail immediately; active jobs are failed by
// their worker at the next checkpoint. Returns false when the job is already
// terminal.
func (s *Store) RequestCancel(ctx context.Context, jobID int64) (bool, error) {
	cancelled, err := cancelledErrorJSON()
	if err != nil {
		return false, err
	}
	var accepted bool
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		accepted = false
		var state string
		err := tx.QueryRowContext(ctx, `SELECT state FROM jobs WHERE id = ?`, jobID).Scan(&state)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("cancel job %d: %w", jobID, ErrJobNotFound)
		}
		if err != nil {
			return fmt.Errorf("read job state: %w", err)
		}
		current := State(state)
		if current.IsTerminal() {
			return nil
		}
		now := formatTime(s.clock())
		if current == StatePending || current == StateRetryPending {
			_, err = tx.ExecContext(ctx,
				`UPDATE jobs
                SET state = ?, cancel_requested = 1, last_error_json = ?,
                    claimed_by = NULL, claim_expiry = NULL, finished_at = ?, updated_at = ?
                WHERE id = ? AND state = ?`,
				StateFailed, cancelled, now, now, jobID, state,
			)
		} else {
			_, err = tx.ExecContext(ctx,
				`UPDATE jobs SET cancel_requested = 1, updated_at = ? WHERE id = ? AND state = ?`,
				now, jobID, state,
			)
		}
		if err != nil {
			return fmt.Errorf("request cancel: %w", err)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return accepted, nil
}

// CancelRequested reports whether an operator asked to cancel the job.
func (s *Store) CancelRequested(ctx context.Context, jobID int64) (bool, error) {
	var flag int
	err := s.db.QueryRowContext(ctx, `SELECT cancel_requested FROM jobs WHERE id = ?`, jobID).Scan(&flag)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("job %d: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return false, fmt.Errorf("read cancel flag: %w", err)
	}
	return flag != 0, nil
}

// FailCancelled executes the cancel system transition: a non-terminal job
// with a pending cancel request becomes failed{cancelled} and its claim is
// cleared. Returns false when there was nothing to cancel.
func (s *Store) FailCancelled(ctx context.Context, jobID int64) (bool, error) {
	cancelled, err := cancelledErrorJSON()
	if err != nil {
		return false, err
	}
	now := formatTime(s.clock())
	res, err := s.execWithRetry(ctx,
		`UPDATE jobs
        SET state = ?, last_error_json = ?, claimed_by = NULL, claim_expiry = NULL,
            finished_at = ?, updated_at = ?
        WHERE id = ? AND cancel_requested = 1 AND state NOT IN `+terminalStatesSQL,
		StateFailed, cancelled, now, now, jobID,
	)
	if err != nil {
		return false, fmt.Errorf("fail cancelled job %d: %w", jobID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("fail cancelled rows affected: %w", err)
	}
	return affected > 0, nil
}

func cancelledErrorJSON() (string, error) {
	data, err := json.Marshal(JobError{
		Kind:    OutcomePermanentFailure,
		Reason:  ReasonCancelled,
		Message: "cancelled by operator",
	})
	if err != nil {
		return "", fmt.Errorf("marshal cancel error: %w", err)
	}
	return string(data), nil
}

package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"mediaconv/internal/planner"
)

const attemptColumns = "job_id, number, params_json, outcome, reason, diagnostics, worker_id, resolution_class, duration_ms, recorded_at"

// maxDiagnosticsBytes bounds the stderr excerpt stored with each attempt.
const maxDiagnosticsBytes = 8 * 1024

// RecordAttempt increments the job's attempt_count and appends the attempt
// record in one transaction, so the count always equals the number of
// records. The assigned attempt number is returned.
func (s *Store) RecordAttempt(ctx context.Context, jobID int64, attempt Attempt) (int, error) {
	switch attempt.Outcome {
	case OutcomeSuccess, OutcomeTransientFailure, OutcomePermanentFailure:
	default:
		return 0, fmt.Errorf("record attempt: unknown outcome %q", attempt.Outcome)
	}
	var number int
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		number, err = insertAttempt(ctx, tx, jobID, attempt, s.clock())
		return err
	})
	if err != nil {
		return 0, err
	}
	return number, nil
}

// insertAttempt bumps attempt_count and appends the matching record inside tx.
func insertAttempt(ctx context.Context, tx *sql.Tx, jobID int64, attempt Attempt, now time.Time) (int, error) {
	paramsJSON, err := json.Marshal(attempt.Params)
	if err != nil {
		return 0, fmt.Errorf("marshal attempt params: %w", err)
	}
	diagnostics := attempt.Diagnostics
	if len(diagnostics) > maxDiagnosticsBytes {
		diagnostics = strings.ToValidUTF8(diagnostics[len(diagnostics)-maxDiagnosticsBytes:], "")
	}

	var number int
	err = tx.QueryRowContext(ctx,
		`UPDATE jobs SET attempt_count = attempt_count + 1, updated_at = ?
         WHERE id = ? AND state NOT IN `+terminalStatesSQL+`
         RETURNING attempt_count`,
		formatTime(now), jobID,
	).Scan(&number)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("record attempt for job %d: %w", jobID, ErrJobNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("increment attempt count: %w", err)
	}
	recorded := attempt.Timestamp
	if recorded.IsZero() {
		recorded = now
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO attempts (
            job_id, number, params_json, frame_buffers, b_frames, padding_mode,
            outcome, reason, diagnostics, worker_id, resolution_class, duration_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		jobID, number, string(paramsJSON),
		attempt.Params.FrameBuffers, attempt.Params.BFrames, string(attempt.Params.PaddingMode),
		string(attempt.Outcome), nullableString(string(attempt.Reason)), nullableString(diagnostics),
		nullableString(attempt.WorkerID), attempt.ResolutionClass,
		attempt.Duration.Milliseconds(), formatTime(recorded),
	)
	if err != nil {
		return 0, fmt.Errorf("insert attempt: %w", err)
	}
	return number, nil
}

// Attempts returns every attempt of a job ordered by number.
func (s *Store) Attempts(ctx context.Context, jobID int64) ([]Attempt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+attemptColumns+` FROM attempts WHERE job_id = ? ORDER BY number`,
		jobID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []Attempt
	for rows.Next() {
		attempt, err := scanAttempt(rows)
		if err != nil {
			return nil, err
		}
		attempts = append(attempts, attempt)
	}
	return attempts, rows.Err()
}

// Bias aggregates historical outcomes for a resolution class by dimension
// value. It is a plain read; in WAL mode it never waits on writers and may
// miss attempts committed after the snapshot.
func (s *Store) Bias(ctx context.Context, resolutionClass string) (Bias, error) {
	bias := Bias{
		ResolutionClass: resolutionClass,
		Entries:         make(map[planner.Dimension]map[string]BiasEntry),
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT ?, CAST(frame_buffers AS TEXT), COUNT(1), SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END)
            FROM attempts WHERE resolution_class = ? GROUP BY frame_buffers
         UNION ALL
         SELECT ?, CAST(b_frames AS TEXT), COUNT(1), SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END)
            FROM attempts WHERE resolution_class = ? GROUP BY b_frames
         UNION ALL
         SELECT ?, padding_mode, COUNT(1), SUM(CASE WHEN outcome = 'success' THEN 1 ELSE 0 END)
            FROM attempts WHERE resolution_class = ? GROUP BY padding_mode`,
		string(planner.DimensionFrameBuffers), resolutionClass,
		string(planner.DimensionBFrames), resolutionClass,
		string(planner.DimensionPaddingMode), resolutionClass,
	)
	if err != nil {
		return bias, fmt.Errorf("query bias: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			dim       string
			value     string
			tries     int
			successes int
		)
		if err := rows.Scan(&dim, &value, &tries, &successes); err != nil {
			return bias, fmt.Errorf("scan bias: %w", err)
		}
		dimension := planner.Dimension(dim)
		if bias.Entries[dimension] == nil {
			bias.Entries[dimension] = make(map[string]BiasEntry)
		}
		bias.Entries[dimension][strings.TrimSpace(value)] = BiasEntry{
			Dimension: dimension,
			Value:     value,
			Tries:     tries,
			Successes: successes,
		}
	}
	return bias, rows.Err()
}

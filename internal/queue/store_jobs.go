package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

const sqliteConstraintCode = 19

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code()&0xff == sqliteConstraintCode {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Enqueue inserts a pending job. A live (non-terminal) job for the same source
// path yields *DuplicateJobError; enqueueing the same path twice is therefore
// idempotent.
func (s *Store) Enqueue(ctx context.Context, job NewJob) (int64, error) {
	sourcePath := filepath.Clean(strings.TrimSpace(job.SourcePath))
	if sourcePath == "." || sourcePath == "" {
		return 0, errors.New("enqueue: source path is required")
	}
	if !filepath.IsAbs(sourcePath) {
		return 0, fmt.Errorf("enqueue: source path %q is not absolute", sourcePath)
	}
	switch job.MediaType {
	case MediaMovie, MediaEpisode:
	default:
		return 0, fmt.Errorf("enqueue: unknown media type %q", job.MediaType)
	}
	if job.MediaType == MediaEpisode && job.Series == nil {
		return 0, errors.New("enqueue: episode jobs require series context")
	}
	title := strings.TrimSpace(job.Title)
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	}

	seriesJSON, err := nullableJSON(job.Series)
	if err != nil {
		return 0, fmt.Errorf("marshal series: %w", err)
	}
	paramsJSON, err := nullableJSON(job.Params)
	if err != nil {
		return 0, fmt.Errorf("marshal params: %w", err)
	}

	var id int64
	err = s.withTx(ctx, func(tx *sql.Tx) error {
		existing, err := activeJobID(ctx, tx, sourcePath)
		if err != nil {
			return err
		}
		if existing != 0 {
			return &DuplicateJobError{SourcePath: sourcePath, ExistingID: existing}
		}
		now := formatTime(s.clock())
		res, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (
                source_path, media_type, series_json, title, state,
                attempt_count, params_json, created_at, updated_at
            ) VALUES (?, ?, ?, ?, ?, 0, ?, ?, ?)`,
			sourcePath, string(job.MediaType), seriesJSON, title, StatePending,
			paramsJSON, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return &DuplicateJobError{SourcePath: sourcePath}
			}
			return fmt.Errorf("insert job: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		return nil
	})
	if err != nil {
		var dup *DuplicateJobError
		if errors.As(err, &dup) && dup.ExistingID == 0 {
			if existing, lookupErr := activeJobID(ctx, s.db, sourcePath); lookupErr == nil {
				dup.ExistingID = existing
			}
		}
		return 0, err
	}
	return id, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func activeJobID(ctx context.Context, q queryRower, sourcePath string) (int64, error) {
	var id int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM jobs WHERE source_path = ? AND state NOT IN `+terminalStatesSQL+` LIMIT 1`,
		sourcePath,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("lookup active job: %w", err)
	}
	return id, nil
}

// Get fetches a job by identifier. A missing job returns nil without error.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs in the given states, or every job when none are given,
// ordered by id.
func (s *Store) List(ctx context.Context, states ...State) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs`
	args := make([]any, 0, len(states))
	if len(states) > 0 {
		query += ` WHERE state IN (` + makePlaceholders(len(states)) + `)`
		for _, state := range states {
			args = append(args, string(state))
		}
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// Requeue enqueues a fresh pending job for the source path of a failed job,
// carrying its last parameters. The failed job itself stays untouched.
func (s *Store) Requeue(ctx context.Context, id int64) (int64, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return 0, err
	}
	if job == nil {
		return 0, fmt.Errorf("requeue job %d: %w", id, ErrJobNotFound)
	}
	if job.State != StateFailed {
		return 0, &InvalidTransitionError{JobID: id, From: job.State, To: StatePending, Current: job.State, Reason: "only failed jobs can be requeued"}
	}
	return s.Enqueue(ctx, NewJob{
		SourcePath: job.SourcePath,
		MediaType:  job.MediaType,
		Series:     job.Series,
		Title:      job.Title,
		Params:     job.Params,
	})
}


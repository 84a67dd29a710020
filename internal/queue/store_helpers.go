package queue

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"mediaconv/internal/planner"
)

// timeLayout is fixed width so stored timestamps compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const jobColumns = "id, source_path, media_type, series_json, title, state, attempt_count, params_json, probe_json, last_error_json, claimed_by, claim_expiry, cancel_requested, output_path, created_at, updated_at, finished_at"

const terminalStatesSQL = "('succeeded', 'failed')"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func scanJob(scanner interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		id              int64
		sourcePath      string
		mediaType       string
		seriesJSON      sql.NullString
		title           string
		state           string
		attemptCount    int
		paramsJSON      sql.NullString
		probeJSON       sql.NullString
		lastErrorJSON   sql.NullString
		claimedBy       sql.NullString
		claimExpiryRaw  sql.NullString
		cancelRequested int
		outputPath      sql.NullString
		createdRaw      string
		updatedRaw      string
		finishedRaw     sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&sourcePath,
		&mediaType,
		&seriesJSON,
		&title,
		&state,
		&attemptCount,
		&paramsJSON,
		&probeJSON,
		&lastErrorJSON,
		&claimedBy,
		&claimExpiryRaw,
		&cancelRequested,
		&outputPath,
		&createdRaw,
		&updatedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	job := &Job{
		ID:              id,
		SourcePath:      sourcePath,
		MediaType:       MediaType(mediaType),
		Title:           title,
		State:           State(state),
		AttemptCount:    attemptCount,
		ClaimedBy:       claimedBy.String,
		CancelRequested: cancelRequested != 0,
		OutputPath:      outputPath.String,
	}
	if seriesJSON.Valid && seriesJSON.String != "" {
		var series SeriesContext
		if err := json.Unmarshal([]byte(seriesJSON.String), &series); err != nil {
			return nil, fmt.Errorf("decode series for job %d: %w", id, err)
		}
		job.Series = &series
	}
	if paramsJSON.Valid && paramsJSON.String != "" {
		var params planner.EncodingParams
		if err := json.Unmarshal([]byte(paramsJSON.String), &params); err != nil {
			return nil, fmt.Errorf("decode params for job %d: %w", id, err)
		}
		job.Params = &params
	}
	if probeJSON.Valid && probeJSON.String != "" {
		var probe planner.SourceProbe
		if err := json.Unmarshal([]byte(probeJSON.String), &probe); err != nil {
			return nil, fmt.Errorf("decode probe for job %d: %w", id, err)
		}
		job.Probe = &probe
	}
	if lastErrorJSON.Valid && lastErrorJSON.String != "" {
		var jobErr JobError
		if err := json.Unmarshal([]byte(lastErrorJSON.String), &jobErr); err != nil {
			return nil, fmt.Errorf("decode last error for job %d: %w", id, err)
		}
		job.LastError = &jobErr
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		job.UpdatedAt = updated
	}
	if claimExpiryRaw.Valid {
		if expiry, err := parseTimeString(claimExpiryRaw.String); err == nil {
			job.ClaimExpiry = expiry
		}
	}
	if finishedRaw.Valid {
		if finished, err := parseTimeString(finishedRaw.String); err == nil {
			job.FinishedAt = finished
		}
	}
	return job, nil
}

func scanAttempt(scanner interface{ Scan(dest ...any) error }) (Attempt, error) {
	var (
		attempt     Attempt
		paramsJSON  string
		outcome     string
		reason      sql.NullString
		diagnostics sql.NullString
		workerID    sql.NullString
		durationMS  int64
		recordedRaw string
	)
	if err := scanner.Scan(
		&attempt.JobID,
		&attempt.Number,
		&paramsJSON,
		&outcome,
		&reason,
		&diagnostics,
		&workerID,
		&attempt.ResolutionClass,
		&durationMS,
		&recordedRaw,
	); err != nil {
		return Attempt{}, err
	}
	if err := json.Unmarshal([]byte(paramsJSON), &attempt.Params); err != nil {
		return Attempt{}, fmt.Errorf("decode attempt %d/%d params: %w", attempt.JobID, attempt.Number, err)
	}
	attempt.Outcome = Outcome(outcome)
	attempt.Reason = FailureReason(reason.String)
	attempt.Diagnostics = diagnostics.String
	attempt.WorkerID = workerID.String
	attempt.Duration = time.Duration(durationMS) * time.Millisecond
	if recorded, err := parseTimeString(recordedRaw); err == nil {
		attempt.Timestamp = recorded
	}
	return attempt, nil
}

// nullableJSON marshals v, mapping nil pointers to SQL NULL.
func nullableJSON[T any](v *T) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func makePlaceholders(count int) string {
	if count <= 0 {
		return ""
	}
	placeholders := make([]byte, 0, count*2)
	for i := 0; i < count; i++ {
		if i > 0 {
			placeholders = append(placeholders, ',')
		}
		placeholders = append(placeholders, '?')
	}
	return string(placeholders)
}

package services

import "context"

type contextKey string

const (
	jobIDKey    contextKey = "job_id"
	stageKey    contextKey = "stage"
	workerIDKey contextKey = "worker_id"
)

// WithJobID annotates context with the job identifier.
func WithJobID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, jobIDKey, id)
}

// JobIDFromContext extracts the job identifier if present.
func JobIDFromContext(ctx context.Context) (int64, bool) {
	switch val := ctx.Value(jobIDKey).(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	default:
		return 0, false
	}
}

// WithStage annotates context with the job state currently being executed.
func WithStage(ctx context.Context, stage string) context.Context {
	if stage == "" {
		return ctx
	}
	return context.WithValue(ctx, stageKey, stage)
}

// StageFromContext returns the stage name if present.
func StageFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(stageKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

// WithWorkerID annotates context with the worker holding the job's claim.
func WithWorkerID(ctx context.Context, worker string) context.Context {
	if worker == "" {
		return ctx
	}
	return context.WithValue(ctx, workerIDKey, worker)
}

// WorkerIDFromContext returns the worker id if present.
func WorkerIDFromContext(ctx context.Context) (string, bool) {
	if str, ok := ctx.Value(workerIDKey).(string); ok && str != "" {
		return str, true
	}
	return "", false
}

package workflow

import (
	"context"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

// fail moves the job to failed and notifies. The source file is never
// touched on failure.
func (m *Manager) fail(ctx context.Context, run *jobRun, jobErr *queue.JobError, attempts []queue.Attempt) {
	from := run.job.State
	if !m.advance(ctx, run, queue.StateFailed, queue.Payload{Error: jobErr}) {
		return
	}
	m.setLastError(jobErr)
	logging.ErrorWithContext(run.logger, "job failed", "job_failed",
		logging.String("from_state", string(from)),
		logging.String("reason", string(jobErr.Reason)),
		logging.String("error_message", jobErr.Message),
		logging.Int("attempts", run.job.AttemptCount),
		logging.Alert("job_failure"),
		logging.String(logging.FieldErrorHint, failureHint(jobErr.Reason)),
		logging.String(logging.FieldImpact, "source left in place; nothing archived"),
	)
	if attempts == nil && run.job.AttemptCount > 0 {
		if loaded, err := m.store.Attempts(ctx, run.job.ID); err == nil {
			attempts = loaded
		}
	}
	m.notifyFailure(ctx, run, jobErr, attempts)
}

// failCancelled ends an operator-cancelled job and notifies like any other
// permanent failure.
func (m *Manager) failCancelled(ctx context.Context, run *jobRun) {
	jobErr := &queue.JobError{
		Kind:    queue.OutcomePermanentFailure,
		Reason:  queue.ReasonCancelled,
		Message: "cancelled by operator",
	}
	if !m.advance(ctx, run, queue.StateFailed, queue.Payload{Error: jobErr}) {
		// A checkpoint outside the cancel table falls back to the system transition.
		ok, err := m.store.FailCancelled(ctx, run.job.ID)
		if err != nil {
			run.logger.Warn("cancel transition failed", logging.Error(err))
			return
		}
		if !ok {
			return
		}
		run.job.State = queue.StateFailed
		run.job.LastError = jobErr
	}
	run.logger.Info("job cancelled",
		logging.String("state", "failed"),
		logging.Int("attempts", run.job.AttemptCount),
	)
	var attempts []queue.Attempt
	if run.job.AttemptCount > 0 {
		loaded, err := m.store.Attempts(ctx, run.job.ID)
		if err != nil {
			run.logger.Warn("attempt history unavailable for cancel notification", logging.Error(err))
		}
		attempts = loaded
	}
	m.notifyFailure(ctx, run, jobErr, attempts)
}

func failureHint(reason queue.FailureReason) string {
	switch reason {
	case queue.ReasonCorruptSource:
		return "re-download or remux the source; ffprobe/ffmpeg could not read it"
	case queue.ReasonUnsupportedStream:
		return "the source has no stream the QSV pipeline can decode"
	case queue.ReasonRetriesExhausted:
		return "inspect the transcoder logs; raise encoding.max_attempts or check the GPU"
	case queue.ReasonFinalizeFailed:
		return "check archive permissions and free space, then requeue"
	case queue.ReasonProbeFailed:
		return "check that ffprobe runs and the source is readable"
	default:
		return "inspect the transcoder logs and requeue"
	}
}

package workflow

import (
	"context"
	"log/slog"

	"mediaconv/internal/logging"
	"mediaconv/internal/notifications"
	"mediaconv/internal/preflight"
	"mediaconv/internal/queue"
)

func (m *Manager) notifyFailure(ctx context.Context, run *jobRun, jobErr *queue.JobError, attempts []queue.Attempt) {
	paths := make([]string, 0, len(attempts))
	for _, attempt := range attempts {
		paths = append(paths, m.attemptLogPath(run.job.ID, attempt.Number))
	}
	message := jobErr.Message
	if lastReason(attempts) == queue.ReasonHardwareMemory {
		if status, err := preflight.MemorySnapshot(ctx); err == nil {
			message += "\nhost memory: " + status.String()
		}
	}
	job := *run.job
	failure := notifications.Failure{
		Job:         &job,
		Reason:      jobErr.Reason,
		Message:     message,
		Attempts:    attempts,
		LogExcerpts: notifications.CollectExcerpts(paths, m.cfg.Notifications.LogExcerptLines),
	}
	if err := m.deps.Notifier.NotifyFailure(ctx, failure); err != nil {
		logNotifyError(run.logger, "failure", err)
	}
}

func (m *Manager) notifySuccess(ctx context.Context, run *jobRun) {
	job := *run.job
	success := notifications.Success{
		Job:        &job,
		OutputPath: run.job.OutputPath,
		Attempts:   run.job.AttemptCount,
		Duration:   m.now().Sub(run.started),
	}
	if err := m.deps.Notifier.NotifySuccess(ctx, success); err != nil {
		logNotifyError(run.logger, "success", err)
	}
}

func (m *Manager) logMemorySnapshot(ctx context.Context, logger *slog.Logger) {
	status, err := preflight.MemorySnapshot(ctx)
	if err != nil {
		logger.Debug("memory snapshot unavailable", logging.Error(err))
		return
	}
	logger.Info("host memory at hardware memory failure",
		logging.Int64("available_bytes", int64(status.AvailableBytes)),
		logging.Int64("total_bytes", int64(status.TotalBytes)),
		logging.Float64("used_percent", status.UsedPercent),
	)
}

func lastReason(attempts []queue.Attempt) queue.FailureReason {
	if len(attempts) == 0 {
		return queue.ReasonNone
	}
	return attempts[len(attempts)-1].Reason
}

func logNotifyError(logger *slog.Logger, kind string, err error) {
	logging.WarnWithContext(logger, "notification failed", "notification_failed",
		logging.String("notification", kind),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check ntfy topic and SMTP settings"),
		logging.String(logging.FieldImpact, "operator not notified"),
	)
}

package workflow

import (
	"context"
	"log/slog"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

func (m *Manager) jobLogger(ctx context.Context, job *queue.Job) *slog.Logger {
	logger := logging.WithContext(ctx, m.logger)
	if job == nil {
		return logger
	}
	return logger.With(
		logging.String("title", job.Title),
		logging.String("source", job.SourcePath),
		logging.String("media_type", string(job.MediaType)),
	)
}

package notifications

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

const userAgent = "mediaconv/0.1.0"

// Excerpt is the tail of one transcoder log.
type Excerpt struct {
	Name  string
	Lines string
}

// Failure describes a job that reached the failed state.
type Failure struct {
	Job         *queue.Job
	Reason      queue.FailureReason
	Message     string
	Attempts    []queue.Attempt
	LogExcerpts []Excerpt
}

// Success describes a job that was archived.
type Success struct {
	Job        *queue.Job
	OutputPath string
	Attempts   int
	Duration   time.Duration
}

// Service is the notification surface used by the workflow.
type Service interface {
	NotifyFailure(ctx context.Context, failure Failure) error
	NotifySuccess(ctx context.Context, success Success) error
}

// NewService builds the configured transports. Without an ntfy topic or an
// SMTP host it returns a no-op service.
func NewService(cfg *config.Config, logger *slog.Logger) Service {
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "notifications")
	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	var services []Service
	if topic := strings.TrimSpace(cfg.Notifications.NtfyTopic); topic != "" {
		services = append(services, newNtfyService(topic, timeout))
	}
	if host := strings.TrimSpace(cfg.Notifications.SMTPHost); host != "" {
		services = append(services, newSMTPService(cfg.Notifications, timeout))
	}
	switch len(services) {
	case 0:
		logger.Debug("no notification transport configured")
		return noopService{}
	case 1:
		return services[0]
	default:
		return fanout(services)
	}
}

type fanout []Service

func (f fanout) NotifyFailure(ctx context.Context, failure Failure) error {
	var errs []error
	for _, svc := range f {
		if err := svc.NotifyFailure(ctx, failure); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanout) NotifySuccess(ctx context.Context, success Success) error {
	var errs []error
	for _, svc := range f {
		if err := svc.NotifySuccess(ctx, success); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewNoop returns a Service that discards every notification.
func NewNoop() Service { return noopService{} }

type noopService struct{}

func (noopService) NotifyFailure(context.Context, Failure) error { return nil }
func (noopService) NotifySuccess(context.Context, Success) error { return nil }

func jobLabel(job *queue.Job) string {
	if job == nil {
		return "unknown job"
	}
	if title := strings.TrimSpace(job.Title); title != "" {
		return title
	}
	return job.SourcePath
}

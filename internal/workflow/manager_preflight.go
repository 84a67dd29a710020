package workflow

import (
	"context"

	"mediaconv/internal/logging"
	"mediaconv/internal/preflight"
)

// Preflight runs the host readiness checks and logs each result. It returns
// an error naming every failed required check.
func (m *Manager) Preflight(ctx context.Context) error {
	results := preflight.RunAll(ctx, m.cfg)
	for _, r := range results {
		switch {
		case r.Passed:
			m.logger.Info("preflight check passed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldEventType, "preflight_passed"),
			)
		case r.Advisory:
			logging.WarnWithContext(m.logger, "preflight advisory", "preflight_advisory",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "free resources before long encodes"),
				logging.String(logging.FieldImpact, "encodes may fail with hardware memory errors"),
			)
		default:
			logging.ErrorWithContext(m.logger, "preflight check failed", "preflight_failed",
				logging.String("check", r.Name),
				logging.String("detail", r.Detail),
				logging.String(logging.FieldErrorHint, "fix the reported issue and restart the daemon"),
			)
		}
	}
	return preflight.Summarize(results)
}

package workflow

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
)

// Start launches the configured number of workers. Expired leases left by a
// previous process are reclaimed before the first claim.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("workflow already running")
	}
	if m.deps.Prober == nil || m.deps.Transcoder == nil || m.deps.Finalizer == nil || m.deps.Engine == nil {
		m.mu.Unlock()
		return errors.New("workflow collaborators not configured")
	}
	workers := m.cfg.Workflow.Workers
	if workers < 1 {
		workers = 1
	}

	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.running = true
	m.wg.Add(workers)
	m.mu.Unlock()

	m.reclaim(runCtx, m.logger)
	for i := 0; i < workers; i++ {
		workerID := "worker-" + uuid.NewString()
		go m.runWorker(runCtx, workerID)
	}
	m.logger.Info("workflow started", logging.Int("workers", workers))
	return nil
}

// Stop terminates background processing and waits for in-flight jobs to
// release their claims.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.logger.Info("workflow stopped")
}

func (m *Manager) runWorker(ctx context.Context, workerID string) {
	defer m.wg.Done()
	ctx = services.WithWorkerID(ctx, workerID)
	logger := logging.WithContext(ctx, m.logger)
	logger.Debug("worker started")

	for {
		if ctx.Err() != nil {
			return
		}

		m.reclaim(ctx, logger)
		m.maybePurge(ctx, logger)

		job, err := m.store.Claim(ctx, workerID, m.cfg.LeaseDuration())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.handleClaimError(ctx, logger, err)
			continue
		}
		if job == nil {
			m.waitForJobOrShutdown(ctx)
			continue
		}

		m.trackActive(workerID, job.ID)
		m.processJob(ctx, workerID, job)
		m.trackActive(workerID, 0)
	}
}

func (m *Manager) reclaim(ctx context.Context, logger *slog.Logger) {
	reclaimed, err := m.store.ReclaimExpired(ctx, m.now())
	if err != nil {
		if ctx.Err() == nil {
			logging.WarnWithContext(logger, "reclaim expired leases failed; stuck jobs may remain", "lease_reclaim_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "jobs with expired leases wait for the next poll"),
			)
		}
		return
	}
	if reclaimed > 0 {
		logger.Info("reclaimed expired leases", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) maybePurge(ctx context.Context, logger *slog.Logger) {
	now := m.now()
	m.mu.Lock()
	if !m.lastPurge.IsZero() && now.Sub(m.lastPurge) < purgeInterval {
		m.mu.Unlock()
		return
	}
	m.lastPurge = now
	m.mu.Unlock()

	if retention := m.cfg.Retention(); retention > 0 {
		purged, err := m.store.Purge(ctx, now.Add(-retention))
		if err != nil {
			logging.WarnWithContext(logger, "retention purge failed", "retention_purge_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check queue database access"),
				logging.String(logging.FieldImpact, "old terminal jobs remain listed"),
			)
		} else if purged > 0 {
			logger.Info("purged terminal jobs", logging.Int64("count", purged))
		}
	}
	logging.CleanupOldLogs(logger, now, m.cfg.Logging.RetentionDays, logging.RetentionTarget{
		Dir:     m.cfg.TranscoderLogDir(),
		Pattern: "*.log",
		Keep:    m.liveAttemptLogs(ctx),
	})
}

// liveAttemptLogs protects the attempt logs of jobs that are not finished,
// so a long retry chain keeps its history. Logs are named "<job>-<attempt>.log".
func (m *Manager) liveAttemptLogs(ctx context.Context) func(string) bool {
	var active []queue.State
	for _, state := range queue.AllStates() {
		if !state.IsTerminal() {
			active = append(active, state)
		}
	}
	jobs, err := m.store.List(ctx, active...)
	if err != nil || len(jobs) == 0 {
		return nil
	}
	live := make(map[string]struct{}, len(jobs))
	for _, job := range jobs {
		live[strconv.FormatInt(job.ID, 10)] = struct{}{}
	}
	return func(name string) bool {
		id, _, ok := strings.Cut(name, "-")
		if !ok {
			return false
		}
		_, keep := live[id]
		return keep
	}
}

func (m *Manager) handleClaimError(ctx context.Context, logger *slog.Logger, err error) {
	m.setLastError(err)
	logging.ErrorWithContext(logger, "failed to claim next job", "queue_claim_failed",
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check queue database access"),
	)
	select {
	case <-ctx.Done():
	case <-time.After(m.errorInterval):
	}
}

func (m *Manager) waitForJobOrShutdown(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-time.After(m.pollInterval):
	}
}

// sleep waits for d or until ctx is done, reporting whether the full
// duration elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

package workflow

import (
	"context"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

// StatusSummary represents lightweight workflow diagnostics.
type StatusSummary struct {
	Running    bool
	LastError  string
	LastJob    *queue.Job
	QueueStats map[queue.State]int
	// Active maps worker IDs to the job each currently holds.
	Active map[string]int64
}

// Status returns the latest workflow information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Active: make(map[string]int64, len(m.active))}
	for worker, id := range m.active {
		if id != 0 {
			summary.Active[worker] = id
		}
	}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	if m.lastJob != nil {
		copy := *m.lastJob
		summary.LastJob = &copy
	}
	m.mu.RUnlock()

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) setLastJob(job *queue.Job) {
	m.mu.Lock()
	if job != nil {
		copy := *job
		m.lastJob = &copy
	} else {
		m.lastJob = nil
	}
	m.mu.Unlock()
}

func (m *Manager) trackActive(workerID string, jobID int64) {
	m.mu.Lock()
	m.active[workerID] = jobID
	m.mu.Unlock()
}

package workflow

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
)

// leaseKeeper renews a claim and watches the cancel flag while a worker
// processes a job. Either a cancel request or a lost lease cancels the job
// context, which terminates a running transcoder.
type leaseKeeper struct {
	cancelJob context.CancelFunc
	cancelled atomic.Bool
	lost      atomic.Bool
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

func (m *Manager) startLeaseKeeper(ctx context.Context, cancelJob context.CancelFunc, jobID int64, workerID string, logger *slog.Logger) *leaseKeeper {
	k := &leaseKeeper{cancelJob: cancelJob, stopCh: make(chan struct{})}
	renewEvery := m.cfg.LeaseRenewInterval()
	poll := m.cancelPoll
	if renewEvery > 0 && renewEvery < poll {
		poll = renewEvery
	}
	logger = logger.With(logging.String(logging.FieldComponent, "workflow-heartbeat"))

	k.wg.Add(1)
	go func() {
		defer k.wg.Done()
		ticker := time.NewTicker(poll)
		defer ticker.Stop()
		lastRenew := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			case <-k.stopCh:
				return
			case <-ticker.C:
			}

			requested, err := m.store.CancelRequested(ctx, jobID)
			switch {
			case err != nil && ctx.Err() == nil:
				logger.Warn("cancel flag check failed", logging.Error(err))
			case requested:
				if k.cancelled.CompareAndSwap(false, true) {
					logger.Info("cancel requested; stopping job")
					cancelJob()
				}
			}

			if renewEvery <= 0 || time.Since(lastRenew) < renewEvery {
				continue
			}
			if err := m.store.RenewLease(ctx, jobID, workerID, m.cfg.LeaseDuration()); err != nil {
				if ctx.Err() != nil {
					return
				}
				if errors.Is(err, queue.ErrLeaseLost) {
					logging.WarnWithContext(logger, "lease lost; abandoning job", "lease_lost",
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "raise workflow.lease_seconds if encodes outlive the lease"),
						logging.String(logging.FieldImpact, "another worker owns the job; this attempt is discarded"),
					)
					k.lost.Store(true)
					cancelJob()
					return
				}
				logger.Warn("lease renewal failed", logging.Error(err))
				continue
			}
			lastRenew = time.Now()
		}
	}()
	return k
}

func (k *leaseKeeper) stop() {
	close(k.stopCh)
	k.wg.Wait()
}

func (k *leaseKeeper) wasCancelled() bool { return k.cancelled.Load() }

func (k *leaseKeeper) wasLost() bool { return k.lost.Load() }

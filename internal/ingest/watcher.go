package ingest

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
)

// Watcher re-consumes the ingestion file when it changes and on a fixed
// poll interval.
type Watcher struct {
	ingester  *Ingester
	queueFile string
	debounce  time.Duration
	poll      time.Duration
	logger    *slog.Logger
	onEnqueue func()
}

// NewWatcher constructs a Watcher. A non-positive poll disables polling.
func NewWatcher(ingester *Ingester, queueFile string, debounce, poll time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &Watcher{
		ingester:  ingester,
		queueFile: filepath.Clean(queueFile),
		debounce:  debounce,
		poll:      poll,
		logger:    logging.NewComponentLogger(logger, "ingest-watcher"),
	}
}

// OnEnqueue registers fn to run after a pass that created new jobs.
func (w *Watcher) OnEnqueue(fn func()) {
	w.onEnqueue = fn
}

// Run consumes the file once, then watches until ctx is cancelled. When the
// directory cannot be watched it falls back to polling alone.
func (w *Watcher) Run(ctx context.Context) error {
	w.consume(ctx)

	var events <-chan fsnotify.Event
	var errs <-chan error
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		logging.WarnWithContext(w.logger, "file watcher unavailable; polling only", "ingest_watch_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "raise fs.inotify.max_user_instances"),
			logging.String(logging.FieldImpact, "ingestion latency bounded by the poll interval"),
		)
	} else {
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(w.queueFile)); err != nil {
			logging.WarnWithContext(w.logger, "cannot watch ingestion directory; polling only", "ingest_watch_unavailable",
				logging.String("dir", filepath.Dir(w.queueFile)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "create the directory holding the ingestion file"),
				logging.String(logging.FieldImpact, "ingestion latency bounded by the poll interval"),
			)
		} else {
			events = watcher.Events
			errs = watcher.Errors
			w.logger.Info("watching ingestion file", logging.String("path", w.queueFile))
		}
	}

	var pollC <-chan time.Time
	if w.poll > 0 {
		ticker := time.NewTicker(w.poll)
		defer ticker.Stop()
		pollC = ticker.C
	}

	debounce := time.NewTimer(time.Hour)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if filepath.Clean(event.Name) != w.queueFile {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Rename) == 0 {
				continue
			}
			debounce.Reset(w.debounce)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			w.logger.Warn("file watcher error", logging.Error(err))
		case <-debounce.C:
			w.consume(ctx)
		case <-pollC:
			w.consume(ctx)
		}
	}
}

func (w *Watcher) consume(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	report, err := w.ingester.ConsumeFile(ctx, w.queueFile)
	if err != nil {
		logging.WarnWithContext(w.logger, "ingestion pass failed", "ingest_pass_failed",
			logging.String("path", w.queueFile),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check permissions on the ingestion file"),
			logging.String(logging.FieldImpact, "queued paths wait for the next pass"),
		)
		return
	}
	if report.Enqueued() > 0 && w.onEnqueue != nil {
		w.onEnqueue()
	}
}

// NewWatcherFromConfig builds a Watcher for the configured ingestion file.
func NewWatcherFromConfig(cfg *config.Config, ingester *Ingester, logger *slog.Logger) *Watcher {
	return NewWatcher(ingester,
		cfg.Paths.QueueFile,
		time.Duration(cfg.Workflow.IngestDebounceMS)*time.Millisecond,
		time.Duration(cfg.Workflow.QueuePollInterval)*time.Second,
		logger,
	)
}

package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/finalize"
	"mediaconv/internal/logging"
	"mediaconv/internal/media/ffprobe"
	"mediaconv/internal/notifications"
	"mediaconv/internal/queue"
	"mediaconv/internal/retry"
	"mediaconv/internal/subtitles"
	"mediaconv/internal/transcode"
)

// defaultCancelPoll is how often a worker checks the cancel flag while it
// holds a claim.
const defaultCancelPoll = 5 * time.Second

// purgeInterval bounds how often workers run the retention purge.
const purgeInterval = time.Hour

// Collaborators are the external components a Manager drives.
type Collaborators struct {
	Prober     Prober
	Transcoder transcode.Transcoder
	Extractor  SubtitleExtractor
	Normalizer SubtitleNormalizer
	Finalizer  Finalizer
	Notifier   notifications.Service
	Engine     *retry.Engine
}

// Manager coordinates the worker loops.
type Manager struct {
	cfg    *config.Config
	store  *queue.Store
	deps   Collaborators
	logger *slog.Logger

	pollInterval  time.Duration
	errorInterval time.Duration
	cancelPoll    time.Duration
	cooldown      time.Duration
	now           func() time.Time

	wake chan struct{}

	mu        sync.RWMutex
	running   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	lastErr   error
	lastJob   *queue.Job
	lastPurge time.Time
	active    map[string]int64
}

// NewManager constructs a manager around explicit collaborators. A nil
// notifier disables notifications.
func NewManager(cfg *config.Config, store *queue.Store, deps Collaborators, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	if deps.Notifier == nil {
		deps.Notifier = notifications.NewNoop()
	}
	return &Manager{
		cfg:           cfg,
		store:         store,
		deps:          deps,
		logger:        logging.NewComponentLogger(logger, "workflow"),
		pollInterval:  time.Duration(cfg.Workflow.QueuePollInterval) * time.Second,
		errorInterval: time.Duration(cfg.Workflow.ErrorRetryInterval) * time.Second,
		cancelPoll:    defaultCancelPoll,
		cooldown:      time.Duration(cfg.Encoding.CooldownSeconds) * time.Second,
		now:           time.Now,
		wake:          make(chan struct{}, 1),
		active:        make(map[string]int64),
	}
}

// NewFromConfig wires the production collaborators: ffprobe, the ffmpeg QSV
// transcoder and extractor, the subtitle normalizer, the archive finalizer,
// the configured notifiers and a retry engine backed by the store's bias.
func NewFromConfig(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	engine, err := retry.NewEngine(store, cfg.Encoding.MutationOrder, cfg.Encoding.MaxAttempts, logger)
	if err != nil {
		return nil, fmt.Errorf("retry engine: %w", err)
	}
	fold, err := subtitles.ParseFoldMode(cfg.Subtitles.RomanianFold)
	if err != nil {
		return nil, fmt.Errorf("subtitles: %w", err)
	}
	return NewManager(cfg, store, Collaborators{
		Prober:     ffprobe.Prober{Binary: cfg.Encoding.FFprobeBinary},
		Transcoder: transcode.NewFromConfig(cfg, logger),
		Extractor:  transcode.NewExtractor(cfg.Encoding.FFmpegBinary, logger),
		Normalizer: subtitles.New(subtitles.Options{Fold: fold, Logger: logger}),
		Finalizer:  finalize.NewFromConfig(cfg, logger),
		Notifier:   notifications.NewService(cfg, logger),
		Engine:     engine,
	}, logger), nil
}

// Wake prompts idle workers to poll the queue immediately.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

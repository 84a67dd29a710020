package daemonrun

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mediaconv/internal/classify"
	"mediaconv/internal/config"
	"mediaconv/internal/daemon"
	"mediaconv/internal/identification/tmdb"
	"mediaconv/internal/ingest"
	"mediaconv/internal/logging"
	"mediaconv/internal/preflight"
	"mediaconv/internal/queue"
	"mediaconv/internal/workflow"
)

// Options configures daemon process runtime behavior.
type Options struct {
	LogLevel    string
	Development bool
	// SkipPreflight starts workers even when required host checks fail.
	SkipPreflight bool
}

// Run starts the mediaconv daemon and blocks until SIGINT or SIGTERM.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	level := cfg.Logging.Level
	if strings.TrimSpace(opts.LogLevel) != "" {
		level = opts.LogLevel
	}
	logPath := cfg.DaemonLogPath()
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	logDependencySnapshot(logger, cfg)
	logging.CleanupOldLogs(logger, time.Now(), cfg.Logging.RetentionDays,
		logging.RetentionTarget{Dir: cfg.TranscoderLogDir(), Pattern: "*.log"},
	)
	pidPath := filepath.Join(cfg.Paths.StateDir, "mediaconvd.pid")
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	store, err := queue.Open(cfg)
	if err != nil {
		logger.Error("open queue store", logging.Error(err))
		return err
	}

	manager, err := workflow.NewFromConfig(cfg, store, logger)
	if err != nil {
		store.Close()
		return fmt.Errorf("create workflow: %w", err)
	}
	if err := manager.Preflight(signalCtx); err != nil {
		if !opts.SkipPreflight {
			store.Close()
			return err
		}
		logging.WarnWithContext(logger, "starting despite failed preflight", "preflight_skipped",
			logging.Error(err),
			logging.String(logging.FieldImpact, "encodes are likely to fail until the host is fixed"),
		)
	}

	watcher, err := newWatcher(cfg, store, logger)
	if err != nil {
		store.Close()
		return err
	}

	d, err := daemon.New(cfg, store, logger, manager, watcher)
	if err != nil {
		store.Close()
		return fmt.Errorf("create daemon: %w", err)
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		if errors.Is(err, daemon.ErrAlreadyRunning) {
			return err
		}
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check configuration and queue database access"),
		)
		return err
	}

	<-signalCtx.Done()
	logger.Info("mediaconv daemon shutting down")
	return nil
}

func newWatcher(cfg *config.Config, store *queue.Store, logger *slog.Logger) (*ingest.Watcher, error) {
	if strings.TrimSpace(cfg.Paths.QueueFile) == "" {
		return nil, nil
	}
	lookup, err := tmdb.NewLookup(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("metadata lookup: %w", err)
	}
	if lookup == nil {
		logger.Info("tmdb lookup disabled; titles come from file names",
			logging.String(logging.FieldEventType, "tmdb_disabled"),
		)
	}
	ingester := ingest.New(classify.NewFromConfig(cfg, lookup, logger), store, logger)
	return ingest.NewWatcherFromConfig(cfg, ingester, logger), nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logDependencySnapshot(logger *slog.Logger, cfg *config.Config) {
	if logger == nil || cfg == nil {
		return
	}
	ffmpeg := preflight.FFmpegBinary(cfg)
	ffprobe := preflight.FFprobeBinary(cfg)
	logger.Info("dependency snapshot",
		logging.String(logging.FieldEventType, "dependency_snapshot"),
		logging.Bool("tmdb_token_present", strings.TrimSpace(cfg.TMDB.ReadAccessToken) != ""),
		logging.Bool("ffmpeg_available", binaryAvailable(ffmpeg)),
		logging.String("ffmpeg_binary", ffmpeg),
		logging.Bool("ffprobe_available", binaryAvailable(ffprobe)),
		logging.String("ffprobe_binary", ffprobe),
		logging.String("qsv_device", cfg.Encoding.QSVDevice),
		logging.Int("workers", cfg.Workflow.Workers),
		logging.Bool("subtitles_enabled", cfg.Subtitles.Enabled),
		logging.Bool("ntfy_configured", strings.TrimSpace(cfg.Notifications.NtfyTopic) != ""),
		logging.Bool("smtp_configured", strings.TrimSpace(cfg.Notifications.SMTPHost) != ""),
	)
}

func binaryAvailable(name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	_, err := exec.LookPath(name)
	return err == nil
}

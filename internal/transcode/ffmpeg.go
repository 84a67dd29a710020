package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

const (
	diagnosticLines = 40
	killGrace       = 10 * time.Second
)

// Options holds the encoder settings that do not vary between attempts.
type Options struct {
	Binary         string
	Device         string
	GlobalQuality  int
	DenoiseLevel   int
	AttemptTimeout time.Duration
}

// FFmpeg is the production Transcoder.
type FFmpeg struct {
	opts   Options
	logger *slog.Logger
}

// NewFFmpeg constructs an ffmpeg-backed transcoder.
func NewFFmpeg(opts Options, logger *slog.Logger) *FFmpeg {
	if opts.Binary == "" {
		opts.Binary = "ffmpeg"
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &FFmpeg{opts: opts, logger: logging.NewComponentLogger(logger, "transcode")}
}

// OptionsFromConfig maps the encoding section onto transcoder options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Binary:         cfg.Encoding.FFmpegBinary,
		Device:         cfg.Encoding.QSVDevice,
		GlobalQuality:  cfg.Encoding.GlobalQuality,
		DenoiseLevel:   cfg.Encoding.DenoiseLevel,
		AttemptTimeout: time.Duration(cfg.Encoding.AttemptTimeout) * time.Second,
	}
}

// NewFromConfig builds the transcoder from the encoding section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	return NewFFmpeg(OptionsFromConfig(cfg), logger)
}

// Transcode runs ffmpeg in its own process group so that cancellation and
// timeouts take down any helper processes with it.
func (f *FFmpeg) Transcode(ctx context.Context, req Request) (Result, error) {
	if err := os.MkdirAll(filepath.Dir(req.Output), 0o755); err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "encoding", "prepare output", "create output directory", err)
	}
	_ = os.Remove(req.Output)

	runCtx := ctx
	if f.opts.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.opts.AttemptTimeout)
		defer cancel()
	}

	logWriter, closeLog, err := openAttemptLog(req.LogPath)
	if err != nil {
		return Result{}, services.Wrap(services.ErrConfiguration, "encoding", "open log", "create transcoder log", err)
	}
	defer closeLog()

	args := BuildArgs(req, f.opts)
	fmt.Fprintf(logWriter, "# %s %s\n", f.opts.Binary, strings.Join(args, " "))

	tail := &tailWriter{}
	cmd := exec.CommandContext(runCtx, f.opts.Binary, args...) //nolint:gosec
	cmd.Stdout = io.Discard
	cmd.Stderr = io.MultiWriter(logWriter, tail)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
	cmd.WaitDelay = killGrace

	f.logger.Info("transcoder launched",
		logging.String("source", req.Source),
		logging.String("output", req.Output),
		logging.String("log_path", req.LogPath),
		logging.Int("frame_buffers", req.Params.FrameBuffers),
		logging.Int("b_frames", req.Params.BFrames),
		logging.String("padding_mode", string(req.Params.PaddingMode)),
	)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "encoding", "start ffmpeg", "failed to launch transcoder", err)
	}
	waitErr := cmd.Wait()

	result := Result{
		ExitCode:    exitCode(waitErr),
		Diagnostics: tail.Lines(diagnosticLines),
		Duration:    time.Since(start),
		OutputBytes: outputSize(req.Output),
		TimedOut:    errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil,
	}
	fmt.Fprintf(logWriter, "# exit=%d duration=%s\n", result.ExitCode, result.Duration.Round(time.Millisecond))

	f.logger.Info("transcoder finished",
		logging.Int("exit_code", result.ExitCode),
		logging.Duration("duration", result.Duration),
		logging.Int64("output_bytes", result.OutputBytes),
		logging.Bool("timed_out", result.TimedOut),
	)
	return result, nil
}

func openAttemptLog(path string) (io.Writer, func(), error) {
	if strings.TrimSpace(path) == "" {
		return io.Discard, func() {}, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, err
	}
	return file, func() { _ = file.Close() }, nil
}

// exitCode maps a Wait error to a shell-style exit status: signals become
// 128+signal so a SIGKILL from the OOM killer reads as 137.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return -1
	}
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return 128 + int(status.Signal())
	}
	return exitErr.ExitCode()
}

func outputSize(path string) int64 {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return -1
	}
	return info.Size()
}

package finalize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"mediaconv/internal/classify"
	"mediaconv/internal/config"
	"mediaconv/internal/fileutil"
	"mediaconv/internal/logging"
	"mediaconv/internal/queue"
	"mediaconv/internal/services"
	"mediaconv/internal/subtitles"
)

const stageName = "finalizing"

// Artifacts are the outputs of a successful conversion.
type Artifacts struct {
	Job      *queue.Job
	Encoded  string
	Sidecars []subtitles.Sidecar
}

// Options configures a Finalizer.
type Options struct {
	MoviesRoot      string
	TVRoot          string
	TargetMoviesDir string
	TargetTVDir     string
	KeepExtensions  []string
	CleanupSource   bool
	Logger          *slog.Logger
}

// Finalizer moves artifacts into the archive.
type Finalizer struct {
	opts   Options
	keep   map[string]bool
	logger *slog.Logger
}

// New constructs a Finalizer.
func New(opts Options) *Finalizer {
	keep := make(map[string]bool, len(opts.KeepExtensions))
	for _, ext := range opts.KeepExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		keep[ext] = true
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Finalizer{opts: opts, keep: keep, logger: logging.NewComponentLogger(logger, "finalize")}
}

// NewFromConfig builds a Finalizer from the paths and finalize sections.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Finalizer {
	return New(Options{
		MoviesRoot:      cfg.Paths.MoviesRoot,
		TVRoot:          cfg.Paths.TVRoot,
		TargetMoviesDir: cfg.Paths.TargetMoviesDir,
		TargetTVDir:     cfg.Paths.TargetTVDir,
		KeepExtensions:  cfg.Finalize.KeepExtensions,
		CleanupSource:   cfg.Finalize.CleanupSource,
		Logger:          logger,
	})
}

// TargetDir returns the archive directory for a job.
func (f *Finalizer) TargetDir(job *queue.Job) (string, error) {
	if job == nil || strings.TrimSpace(job.Title) == "" {
		return "", services.Wrap(services.ErrValidation, stageName, "resolve target", "job has no title", nil)
	}
	switch job.MediaType {
	case queue.MediaEpisode:
		if job.Series == nil || strings.TrimSpace(job.Series.SeriesName) == "" {
			return "", services.Wrap(services.ErrValidation, stageName, "resolve target", "episode has no series context", nil)
		}
		return filepath.Join(f.opts.TargetTVDir, job.Series.SeriesName, classify.SeasonFolderName(job.Series.Season)), nil
	default:
		return filepath.Join(f.opts.TargetMoviesDir, job.Title), nil
	}
}

// Finalize moves the encoded file and sidecars into the archive, removes the
// source, and cleans the scratch directories. It returns the final path of
// the encoded file. Re-running after a partial failure is safe: artifacts
// already at their destination are replaced.
func (f *Finalizer) Finalize(ctx context.Context, a Artifacts) (string, error) {
	logger := logging.WithContext(ctx, f.logger)
	if a.Job == nil {
		return "", services.Wrap(services.ErrValidation, stageName, "validate inputs", "no job supplied", nil)
	}
	if _, err := os.Stat(a.Encoded); err != nil {
		return "", services.Wrap(services.ErrValidation, stageName, "validate inputs", "encoded output missing", err)
	}
	targetDir, err := f.TargetDir(a.Job)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "create target", "cannot create archive directory", err)
	}

	finalPath := filepath.Join(targetDir, a.Job.Title+filepath.Ext(a.Encoded))
	if err := fileutil.MoveFile(a.Encoded, finalPath); err != nil {
		return "", services.Wrap(services.ErrTransient, stageName, "move encoded", "failed to move encoded file into archive", err)
	}
	logger.Info("encoded file archived", logging.String("final_path", finalPath))

	for _, sidecar := range a.Sidecars {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		if err := moveInto(sidecar.Path, targetDir); err != nil {
			return "", services.Wrap(services.ErrTransient, stageName, "move sidecar", "failed to move subtitle sidecar", err)
		}
		if sidecar.Companion != "" {
			if err := moveInto(sidecar.Companion, targetDir); err != nil {
				return "", services.Wrap(services.ErrTransient, stageName, "move sidecar", "failed to move idx companion", err)
			}
		}
	}

	f.removeSource(logger, a)
	return finalPath, nil
}

// moveInto moves path into dir under the same name. A missing source with
// the destination present counts as already moved.
func moveInto(path, dir string) error {
	dest := filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if _, destErr := os.Stat(dest); destErr == nil {
			return nil
		}
		return err
	}
	return fileutil.MoveFile(path, dest)
}

// removeSource deletes the source and the subtitle files it consumed, then
// tidies the source directory. Failures here never fail the job: the
// artifacts are already archived.
func (f *Finalizer) removeSource(logger *slog.Logger, a Artifacts) {
	source := a.Job.SourcePath
	sourceDir := filepath.Dir(source)

	consumed := []string{source}
	for _, sidecar := range a.Sidecars {
		if sidecar.Source != "" && filepath.Dir(sidecar.Source) == sourceDir {
			consumed = append(consumed, sidecar.Source, vobSubIndex(sidecar.Source))
		}
	}
	for _, path := range consumed {
		if path == "" {
			continue
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logging.WarnWithContext(logger, "failed to remove consumed source", "source_cleanup_failed",
				logging.String("path", path),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the file manually"),
				logging.String(logging.FieldImpact, "scratch space not reclaimed"),
			)
		}
	}

	if f.opts.CleanupSource && a.Job.MediaType == queue.MediaMovie && f.isMovieSubdir(sourceDir) {
		removed, err := f.cleanDirectory(sourceDir)
		if err != nil {
			logging.WarnWithContext(logger, "movie directory cleanup incomplete", "source_cleanup_failed",
				logging.String("dir", sourceDir),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check directory permissions"),
				logging.String(logging.FieldImpact, "leftover files in scratch"),
			)
		} else if removed > 0 {
			logger.Info("movie directory cleaned", logging.String("dir", sourceDir), logging.Int("removed", removed))
		}
	}

	dirs, err := fileutil.RemoveEmptyParents(sourceDir, f.opts.MoviesRoot, f.opts.TVRoot)
	if err != nil {
		logger.Warn("empty directory removal stopped", logging.String("dir", sourceDir), logging.Error(err))
	}
	logger.Info("source removed",
		logging.String("source", source),
		logging.Int("directories_removed", dirs),
	)
}

// cleanDirectory removes files whose extension is not on the keep list.
// Subdirectories are left alone.
func (f *Finalizer) cleanDirectory(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	removed := 0
	var errs []error
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if f.keep[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			errs = append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

func (f *Finalizer) isMovieSubdir(dir string) bool {
	root := filepath.Clean(f.opts.MoviesRoot)
	if root == "" || root == "." {
		return false
	}
	rel, err := filepath.Rel(root, filepath.Clean(dir))
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func vobSubIndex(path string) string {
	if !strings.EqualFold(filepath.Ext(path), ".sub") {
		return ""
	}
	return strings.TrimSuffix(path, filepath.Ext(path)) + ".idx"
}

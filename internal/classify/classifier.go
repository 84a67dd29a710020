package classify

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mediaconv/internal/config"
	"mediaconv/internal/logging"
	"mediaconv/internal/services"
)

// Options configures a Classifier.
type Options struct {
	MoviesRoot     string
	TVRoot         string
	RejectPrefixes []string
	SampleMinBytes int64
	Lookup         Lookup
	LookupTimeout  time.Duration
	Now            func() time.Time
	Logger         *slog.Logger
}

// Classifier maps ingestion paths to job candidates.
type Classifier struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a classifier. A nil Lookup disables metadata resolution.
func New(opts Options) *Classifier {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	opts.MoviesRoot = cleanRoot(opts.MoviesRoot)
	opts.TVRoot = cleanRoot(opts.TVRoot)
	prefixes := make([]string, 0, len(opts.RejectPrefixes))
	for _, prefix := range opts.RejectPrefixes {
		if cleaned := cleanRoot(prefix); cleaned != "" {
			prefixes = append(prefixes, cleaned)
		}
	}
	opts.RejectPrefixes = prefixes
	return &Classifier{
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "classify"),
	}
}

// NewFromConfig builds a classifier from the loaded configuration.
func NewFromConfig(cfg *config.Config, lookup Lookup, logger *slog.Logger) *Classifier {
	return New(Options{
		MoviesRoot:     cfg.Paths.MoviesRoot,
		TVRoot:         cfg.Paths.TVRoot,
		RejectPrefixes: cfg.Paths.RejectPrefixes,
		SampleMinBytes: cfg.SampleMinBytes(),
		Lookup:         lookup,
		LookupTimeout:  cfg.LookupTimeout(),
		Logger:         logger,
	})
}

// KindFor applies the path guard and reports which root contains path.
// Rejected prefixes win over root membership, and a root itself is never a
// valid ingestion path.
func (c *Classifier) KindFor(path string) (Kind, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "classify", "resolve path", path, err)
	}
	for _, prefix := range c.opts.RejectPrefixes {
		if abs == prefix || within(prefix, abs) {
			return "", fmt.Errorf("%s: %w", abs, ErrRejectedPrefix)
		}
	}
	switch {
	case c.opts.MoviesRoot != "" && within(c.opts.MoviesRoot, abs):
		return KindMovie, nil
	case c.opts.TVRoot != "" && within(c.opts.TVRoot, abs):
		return KindSeries, nil
	default:
		return "", fmt.Errorf("%s: %w", abs, ErrOutsideRoots)
	}
}

// Classify inspects path and returns the jobs it yields. When kind is empty it
// is derived with KindFor. Per-file problems are collected in Result.Errors;
// the returned error is reserved for guard and filesystem failures on path
// itself.
func (c *Classifier) Classify(ctx context.Context, path string, kind Kind) (Result, error) {
	abs, err := filepath.Abs(strings.TrimSpace(path))
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "classify", "resolve path", path, err)
	}
	derived, err := c.KindFor(abs)
	if err != nil {
		return Result{}, err
	}
	if kind == "" {
		kind = derived
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{}, services.Wrap(services.ErrNotFound, "classify", "stat path", abs, err)
		}
		return Result{}, services.Wrap(services.ErrTransient, "classify", "stat path", abs, err)
	}

	switch kind {
	case KindMovie:
		return c.classifyMovie(ctx, abs, info)
	case KindSeries:
		return c.classifySeries(abs, info)
	default:
		return Result{}, services.Wrap(services.ErrValidation, "classify", "kind", fmt.Sprintf("unknown kind %q", kind), nil)
	}
}

func cleanRoot(root string) string {
	root = strings.TrimSpace(root)
	if root == "" {
		return ""
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return filepath.Clean(root)
	}
	return abs
}

// within reports whether child is strictly below parent.
func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

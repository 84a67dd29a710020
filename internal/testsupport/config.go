package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"mediaconv/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Roots, targets, state and logs all live under one temp dir and are created.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.MoviesRoot = filepath.Join(base, "scratch", "movies")
	cfgVal.Paths.TVRoot = filepath.Join(base, "scratch", "tv-series")
	cfgVal.Paths.TargetMoviesDir = filepath.Join(base, "archive", "movies")
	cfgVal.Paths.TargetTVDir = filepath.Join(base, "archive", "tv-series")
	cfgVal.Paths.QueueFile = filepath.Join(base, "scratch", "conversion.txt")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.RejectPrefixes = []string{filepath.Join(base, "seeding")}
	cfgVal.Encoding.CooldownSeconds = 0
	cfgVal.Encoding.SampleMinMiB = 1

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	for _, dir := range []string{
		cfgVal.Paths.MoviesRoot,
		cfgVal.Paths.TVRoot,
		cfgVal.Paths.TargetMoviesDir,
		cfgVal.Paths.TargetTVDir,
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", dir, err)
		}
	}
	if err := cfgVal.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithMaxAttempts overrides the retry budget.
func WithMaxAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Encoding.MaxAttempts = n
	}
}

// WithTMDBToken sets the TMDB read access token and base URL.
func WithTMDBToken(token, baseURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.ReadAccessToken = token
		if baseURL != "" {
			b.cfg.TMDB.BaseURL = baseURL
		}
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffmpeg and ffprobe are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffmpeg", "ffprobe"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

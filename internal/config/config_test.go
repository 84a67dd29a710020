package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"mediaconv/internal/config"
)

func TestLoadDefaultConfigUsesEnvTokenAndExpandsPaths(t *testing.T) {
	t.Setenv("TMDB_READ_ACCESS_TOKEN", "test-token")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Chdir(tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	if want := filepath.Join(tempHome, ".local", "share", "mediaconv"); cfg.Paths.StateDir != want {
		t.Fatalf("unexpected state dir: got %q want %q", cfg.Paths.StateDir, want)
	}
	if cfg.TMDB.ReadAccessToken != "test-token" {
		t.Fatalf("expected TMDB token from env, got %q", cfg.TMDB.ReadAccessToken)
	}
	if cfg.Encoding.MaxAttempts != 3 {
		t.Fatalf("expected default max attempts 3, got %d", cfg.Encoding.MaxAttempts)
	}
	if got := strings.Join(cfg.Encoding.MutationOrder, ","); got != "frame_buffers,b_frames,padding_mode" {
		t.Fatalf("unexpected default mutation order %q", got)
	}
	if len(cfg.Paths.RejectPrefixes) != 1 || cfg.Paths.RejectPrefixes[0] != "/share/seeding" {
		t.Fatalf("unexpected reject prefixes %v", cfg.Paths.RejectPrefixes)
	}
	if cfg.QueueDBPath() != filepath.Join(cfg.Paths.StateDir, "queue.db") {
		t.Fatalf("unexpected queue db path %q", cfg.QueueDBPath())
	}
}

func TestLoadCustomConfigOverrides(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)
	t.Setenv("TMDB_READ_ACCESS_TOKEN", "")

	configPath := filepath.Join(tempHome, "config.toml")
	payload := map[string]any{
		"paths": map[string]any{
			"movies_root": "~/scratch/movies",
			"tv_root":     "~/scratch/tv",
			"state_dir":   "~/state",
		},
		"encoding": map[string]any{
			"max_attempts":   5,
			"mutation_order": []string{"B_FRAMES", "frame_buffers"},
		},
		"subtitles": map[string]any{
			"romanian_fold": "ASCII",
		},
		"logging": map[string]any{
			"format": "JSON",
			"level":  "Debug",
		},
	}
	data, err := toml.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != configPath {
		t.Fatalf("expected custom config to be used, got %q exists=%v", resolved, exists)
	}
	if cfg.Paths.MoviesRoot != filepath.Join(tempHome, "scratch", "movies") {
		t.Fatalf("unexpected movies root %q", cfg.Paths.MoviesRoot)
	}
	if cfg.Encoding.MaxAttempts != 5 {
		t.Fatalf("expected max attempts 5, got %d", cfg.Encoding.MaxAttempts)
	}
	if got := strings.Join(cfg.Encoding.MutationOrder, ","); got != "b_frames,frame_buffers" {
		t.Fatalf("unexpected mutation order %q", got)
	}
	if cfg.Subtitles.RomanianFold != "ascii" {
		t.Fatalf("expected normalized fold mode, got %q", cfg.Subtitles.RomanianFold)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("expected normalized logging, got %q/%q", cfg.Logging.Format, cfg.Logging.Level)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"quality", func(c *config.Config) { c.Encoding.GlobalQuality = 60 }, "global_quality"},
		{"attempts", func(c *config.Config) { c.Encoding.MaxAttempts = 0 }, "max_attempts"},
		{"dimension", func(c *config.Config) { c.Encoding.MutationOrder = []string{"gop"} }, "unknown dimension"},
		{"duplicate dimension", func(c *config.Config) {
			c.Encoding.MutationOrder = []string{"b_frames", "b_frames"}
		}, "duplicate dimension"},
		{"fold", func(c *config.Config) { c.Subtitles.RomanianFold = "latin" }, "romanian_fold"},
		{"lease", func(c *config.Config) { c.Workflow.LeaseSeconds = 60 }, "lease_seconds"},
		{"workers", func(c *config.Config) { c.Workflow.Workers = 0 }, "workers"},
		{"nested roots", func(c *config.Config) {
			c.Paths.MoviesRoot = "/data"
			c.Paths.TVRoot = "/data/tv"
		}, "must not contain"},
		{"smtp recipient", func(c *config.Config) {
			c.Notifications.SMTPHost = "smtp.example.com"
			c.Notifications.SMTPFrom = "bot@example.com"
		}, "recipient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatalf("expected validation error containing %q", tt.want)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestDefaultConfigValidates(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestCreateSampleWritesLoadableConfig(t *testing.T) {
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	path := filepath.Join(tempHome, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if err := config.CreateSample(path); err == nil {
		t.Fatal("expected second CreateSample to refuse overwrite")
	}
	if _, _, _, err := config.Load(path); err != nil {
		t.Fatalf("sample config should load: %v", err)
	}
}

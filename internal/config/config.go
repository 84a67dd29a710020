package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains scratch, archive, and state directory configuration.
type Paths struct {
	MoviesRoot      string   `toml:"movies_root"`
	TVRoot          string   `toml:"tv_root"`
	TargetMoviesDir string   `toml:"target_movies_dir"`
	TargetTVDir     string   `toml:"target_tv_dir"`
	QueueFile       string   `toml:"queue_file"`
	StateDir        string   `toml:"state_dir"`
	LogDir          string   `toml:"log_dir"`
	RejectPrefixes  []string `toml:"reject_prefixes"`
}

// TMDB contains configuration for The Movie Database title lookup.
type TMDB struct {
	ReadAccessToken string `toml:"read_access_token"`
	BaseURL         string `toml:"base_url"`
	Language        string `toml:"language"`
	TimeoutSeconds  int    `toml:"timeout_seconds"`
}

// Encoding contains hardware encoder and retry policy settings.
type Encoding struct {
	FFmpegBinary    string   `toml:"ffmpeg_binary"`
	FFprobeBinary   string   `toml:"ffprobe_binary"`
	QSVDevice       string   `toml:"qsv_device"`
	GlobalQuality   int      `toml:"global_quality"`
	DenoiseLevel    int      `toml:"denoise_level"`
	MaxAttempts     int      `toml:"max_attempts"`
	MutationOrder   []string `toml:"mutation_order"`
	AttemptTimeout  int      `toml:"attempt_timeout_seconds"`
	CooldownSeconds int      `toml:"cooldown_seconds"`
	SampleMinMiB    int      `toml:"sample_min_mib"`
}

// Subtitles contains subtitle normalization settings.
type Subtitles struct {
	Enabled       bool   `toml:"enabled"`
	RomanianFold  string `toml:"romanian_fold"`
	ExtractTracks bool   `toml:"extract_embedded"`
}

// Notifications contains ntfy and SMTP notifier settings.
type Notifications struct {
	NtfyTopic       string `toml:"ntfy_topic"`
	RequestTimeout  int    `toml:"request_timeout"`
	SMTPHost        string `toml:"smtp_host"`
	SMTPPort        int    `toml:"smtp_port"`
	SMTPImplicitTLS bool   `toml:"smtp_implicit_tls"`
	SMTPUsername    string `toml:"smtp_username"`
	SMTPPassword    string `toml:"smtp_password"`
	SMTPFrom        string `toml:"smtp_from"`
	Recipient       string `toml:"recipient"`
	OnSuccess       bool   `toml:"on_success"`
	LogExcerptLines int    `toml:"log_excerpt_lines"`
}

// Finalize contains artifact relocation and cleanup settings.
type Finalize struct {
	KeepExtensions []string `toml:"keep_extensions"`
	CleanupSource  bool     `toml:"cleanup_source_dir"`
}

// Workflow contains worker loop timing and lease configuration.
type Workflow struct {
	Workers            int `toml:"workers"`
	QueuePollInterval  int `toml:"queue_poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	LeaseSeconds       int `toml:"lease_seconds"`
	LeaseRenewSeconds  int `toml:"lease_renew_seconds"`
	RetentionDays      int `toml:"retention_days"`
	IngestDebounceMS   int `toml:"ingest_debounce_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for mediaconv.
//
// Configuration sections by subsystem:
//   - Paths: scratch roots, archive targets, queue file, state and logs
//   - TMDB: movie title lookup
//   - Encoding: ffmpeg/QSV settings and the retry mutation policy
//   - Subtitles: charset repair and Romanian substitution mode
//   - Notifications: ntfy push and SMTP failure mail
//   - Finalize: archive relocation and source cleanup
//   - Workflow: workers, polling, leases, and retention
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	TMDB          TMDB          `toml:"tmdb"`
	Encoding      Encoding      `toml:"encoding"`
	Subtitles     Subtitles     `toml:"subtitles"`
	Notifications Notifications `toml:"notifications"`
	Finalize      Finalize      `toml:"finalize"`
	Workflow      Workflow      `toml:"workflow"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/mediaconv/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediaconv.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories. Scratch roots and
// archive targets belong to the library owner and are only checked by preflight.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir, c.TranscoderLogDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// QueueDBPath returns the SQLite database location.
func (c *Config) QueueDBPath() string {
	return filepath.Join(c.Paths.StateDir, "queue.db")
}

// DaemonLockPath returns the single-instance lock file location.
func (c *Config) DaemonLockPath() string {
	return filepath.Join(c.Paths.StateDir, "mediaconvd.lock")
}

// TranscoderLogDir holds one log file per encode attempt.
func (c *Config) TranscoderLogDir() string {
	return filepath.Join(c.Paths.LogDir, "transcoder")
}

// AttemptLogPath is the transcoder log for one encode attempt of a job.
func (c *Config) AttemptLogPath(jobID int64, attempt int) string {
	return filepath.Join(c.TranscoderLogDir(), fmt.Sprintf("%d-%d.log", jobID, attempt))
}

// DaemonLogPath is the daemon's own log file.
func (c *Config) DaemonLogPath() string {
	return filepath.Join(c.Paths.LogDir, "mediaconv.log")
}

// LeaseDuration returns the claim lease length.
func (c *Config) LeaseDuration() time.Duration {
	return time.Duration(c.Workflow.LeaseSeconds) * time.Second
}

// LeaseRenewInterval returns how often a worker extends its lease.
func (c *Config) LeaseRenewInterval() time.Duration {
	return time.Duration(c.Workflow.LeaseRenewSeconds) * time.Second
}

// Retention returns how long terminal jobs are kept before purge.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Workflow.RetentionDays) * 24 * time.Hour
}

// LookupTimeout bounds a single metadata lookup.
func (c *Config) LookupTimeout() time.Duration {
	return time.Duration(c.TMDB.TimeoutSeconds) * time.Second
}

// SampleMinBytes is the size below which a video is treated as a sample or extra.
func (c *Config) SampleMinBytes() int64 {
	return int64(c.Encoding.SampleMinMiB) * 1024 * 1024
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path. Existing
// files are left untouched.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists: %s", expanded)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

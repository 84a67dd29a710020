package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTMDB()
	c.normalizeEncoding()
	c.normalizeSubtitles()
	c.normalizeNotifications()
	c.normalizeFinalize()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	fields := []struct {
		name  string
		value *string
	}{
		{"paths.movies_root", &c.Paths.MoviesRoot},
		{"paths.tv_root", &c.Paths.TVRoot},
		{"paths.target_movies_dir", &c.Paths.TargetMoviesDir},
		{"paths.target_tv_dir", &c.Paths.TargetTVDir},
		{"paths.queue_file", &c.Paths.QueueFile},
		{"paths.state_dir", &c.Paths.StateDir},
		{"paths.log_dir", &c.Paths.LogDir},
	}
	for _, field := range fields {
		expanded, err := expandPath(strings.TrimSpace(*field.value))
		if err != nil {
			return fmt.Errorf("%s: %w", field.name, err)
		}
		*field.value = expanded
	}

	prefixes := make([]string, 0, len(c.Paths.RejectPrefixes))
	for _, prefix := range c.Paths.RejectPrefixes {
		prefix = strings.TrimSpace(prefix)
		if prefix == "" {
			continue
		}
		expanded, err := expandPath(prefix)
		if err != nil {
			return fmt.Errorf("paths.reject_prefixes: %w", err)
		}
		prefixes = append(prefixes, expanded)
	}
	c.Paths.RejectPrefixes = prefixes
	return nil
}

func (c *Config) normalizeTMDB() {
	if c.TMDB.ReadAccessToken == "" {
		if value, ok := os.LookupEnv("TMDB_READ_ACCESS_TOKEN"); ok {
			c.TMDB.ReadAccessToken = strings.TrimSpace(value)
		}
	}
	c.TMDB.BaseURL = strings.TrimRight(strings.TrimSpace(c.TMDB.BaseURL), "/")
	if c.TMDB.BaseURL == "" {
		c.TMDB.BaseURL = defaultTMDBBaseURL
	}
	if strings.TrimSpace(c.TMDB.Language) == "" {
		c.TMDB.Language = defaultTMDBLanguage
	}
	if c.TMDB.TimeoutSeconds <= 0 {
		c.TMDB.TimeoutSeconds = defaultTMDBTimeoutSeconds
	}
}

func (c *Config) normalizeEncoding() {
	c.Encoding.FFmpegBinary = strings.TrimSpace(c.Encoding.FFmpegBinary)
	if c.Encoding.FFmpegBinary == "" {
		c.Encoding.FFmpegBinary = defaultFFmpegBinary
	}
	c.Encoding.FFprobeBinary = strings.TrimSpace(c.Encoding.FFprobeBinary)
	if c.Encoding.FFprobeBinary == "" {
		c.Encoding.FFprobeBinary = defaultFFprobeBinary
	}
	order := make([]string, 0, len(c.Encoding.MutationOrder))
	for _, dim := range c.Encoding.MutationOrder {
		dim = strings.ToLower(strings.TrimSpace(dim))
		if dim != "" {
			order = append(order, dim)
		}
	}
	if len(order) == 0 {
		order = DefaultMutationOrder()
	}
	c.Encoding.MutationOrder = order
}

func (c *Config) normalizeSubtitles() {
	c.Subtitles.RomanianFold = strings.ToLower(strings.TrimSpace(c.Subtitles.RomanianFold))
	if c.Subtitles.RomanianFold == "" {
		c.Subtitles.RomanianFold = defaultRomanianFold
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	c.Notifications.SMTPHost = strings.TrimSpace(c.Notifications.SMTPHost)
	if c.Notifications.SMTPPassword == "" {
		if value, ok := os.LookupEnv("MEDIACONV_SMTP_PASSWORD"); ok {
			c.Notifications.SMTPPassword = value
		}
	}
	if c.Notifications.SMTPFrom == "" {
		c.Notifications.SMTPFrom = c.Notifications.SMTPUsername
	}
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	if c.Notifications.LogExcerptLines <= 0 {
		c.Notifications.LogExcerptLines = defaultLogExcerptLines
	}
}

func (c *Config) normalizeFinalize() {
	exts := make([]string, 0, len(c.Finalize.KeepExtensions))
	for _, ext := range c.Finalize.KeepExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		exts = append(exts, ext)
	}
	if len(exts) == 0 {
		exts = defaultKeepExtensions()
	}
	c.Finalize.KeepExtensions = exts
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateEncoding(); err != nil {
		return err
	}
	if err := c.validateSubtitles(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	required := []struct {
		name  string
		value string
	}{
		{"paths.movies_root", c.Paths.MoviesRoot},
		{"paths.tv_root", c.Paths.TVRoot},
		{"paths.target_movies_dir", c.Paths.TargetMoviesDir},
		{"paths.target_tv_dir", c.Paths.TargetTVDir},
		{"paths.state_dir", c.Paths.StateDir},
		{"paths.log_dir", c.Paths.LogDir},
	}
	for _, field := range required {
		if strings.TrimSpace(field.value) == "" {
			return fmt.Errorf("%s must be set", field.name)
		}
	}
	if within(c.Paths.MoviesRoot, c.Paths.TVRoot) || within(c.Paths.TVRoot, c.Paths.MoviesRoot) {
		return errors.New("paths.movies_root and paths.tv_root must not contain each other")
	}
	return nil
}

func (c *Config) validateEncoding() error {
	if c.Encoding.GlobalQuality < 1 || c.Encoding.GlobalQuality > 51 {
		return fmt.Errorf("encoding.global_quality must be between 1 and 51, got %d", c.Encoding.GlobalQuality)
	}
	if c.Encoding.DenoiseLevel < 0 || c.Encoding.DenoiseLevel > 100 {
		return fmt.Errorf("encoding.denoise_level must be between 0 and 100, got %d", c.Encoding.DenoiseLevel)
	}
	if c.Encoding.MaxAttempts < 1 {
		return errors.New("encoding.max_attempts must be at least 1")
	}
	if c.Encoding.AttemptTimeout < 0 {
		return errors.New("encoding.attempt_timeout_seconds must be non-negative")
	}
	if c.Encoding.CooldownSeconds < 0 {
		return errors.New("encoding.cooldown_seconds must be non-negative")
	}
	seen := make(map[string]struct{}, len(c.Encoding.MutationOrder))
	for _, dim := range c.Encoding.MutationOrder {
		switch dim {
		case DimensionFrameBuffers, DimensionBFrames, DimensionPaddingMode:
		default:
			return fmt.Errorf("encoding.mutation_order: unknown dimension %q", dim)
		}
		if _, dup := seen[dim]; dup {
			return fmt.Errorf("encoding.mutation_order: duplicate dimension %q", dim)
		}
		seen[dim] = struct{}{}
	}
	return nil
}

func (c *Config) validateSubtitles() error {
	switch c.Subtitles.RomanianFold {
	case "comma", "ascii":
		return nil
	default:
		return fmt.Errorf("subtitles.romanian_fold: unsupported value %q (want comma or ascii)", c.Subtitles.RomanianFold)
	}
}

func (c *Config) validateNotifications() error {
	if c.Notifications.SMTPHost == "" {
		return nil
	}
	if c.Notifications.SMTPPort <= 0 || c.Notifications.SMTPPort > 65535 {
		return fmt.Errorf("notifications.smtp_port out of range: %d", c.Notifications.SMTPPort)
	}
	if strings.TrimSpace(c.Notifications.Recipient) == "" {
		return errors.New("notifications.recipient must be set when notifications.smtp_host is configured")
	}
	if strings.TrimSpace(c.Notifications.SMTPFrom) == "" {
		return errors.New("notifications.smtp_from or notifications.smtp_username must be set")
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	if c.Workflow.Workers < 1 {
		return errors.New("workflow.workers must be at least 1")
	}
	if c.Workflow.QueuePollInterval <= 0 {
		return errors.New("workflow.queue_poll_interval must be positive")
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		return errors.New("workflow.error_retry_interval must be positive")
	}
	if c.Workflow.LeaseRenewSeconds <= 0 {
		return errors.New("workflow.lease_renew_seconds must be positive")
	}
	if c.Workflow.LeaseSeconds < c.Workflow.LeaseRenewSeconds*minimumLeaseRenewMultiples {
		return fmt.Errorf("workflow.lease_seconds must be at least %dx workflow.lease_renew_seconds", minimumLeaseRenewMultiples)
	}
	if c.Workflow.RetentionDays < 0 {
		return errors.New("workflow.retention_days must be non-negative")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be non-negative")
	}
	return nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

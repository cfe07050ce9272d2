package config

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
// It contains the field name and a description of the issue.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ve.Field, ve.Message)
}

// maxWorkers caps per-process read concurrency.
const maxWorkers = 256

// minInterval keeps the refresh loop from spinning on /proc.
const minInterval = 100 * time.Millisecond

var (
	validLogLevels  = []string{"debug", "info", "warn", "error"}
	validLogFormats = []string{"console", "json"}
)

// Validate checks cfg and returns every problem found, joined with
// errors.Join. Each joined error is a ValidationError.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}

	var errs []error
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if cfg.Source.Root == "" && !cfg.Source.Remote.Enabled() {
		add("root", "must not be empty")
	}
	if r := cfg.Source.Remote; r.Enabled() {
		if !strings.Contains(r.Target, "@") {
			add("remote", "expected user@host[:port], got %q", r.Target)
		}
		auths := 0
		for _, set := range []bool{r.KeyFile != "", r.Password != "", r.UseAgent} {
			if set {
				auths++
			}
		}
		if auths == 0 {
			add("remote", "one of ssh_key, ssh_password or ssh_agent is required")
		}
		if auths > 1 {
			add("remote", "ssh_key, ssh_password and ssh_agent are mutually exclusive")
		}
		if r.CommandTimeout < 0 {
			add("command_timeout", "must be non-negative, got %v", r.CommandTimeout)
		}
	}

	for _, p := range []struct {
		field, value string
	}{
		{"proc_path", cfg.Paths.Proc},
		{"os_release_path", cfg.Paths.OSRelease},
		{"passwd_path", cfg.Paths.Passwd},
	} {
		switch {
		case p.value == "":
			add(p.field, "must not be empty")
		case strings.HasPrefix(p.value, "/"):
			add(p.field, "must be relative to the source root, got %q", p.value)
		case path.Clean(p.value) != p.value || strings.HasPrefix(p.value, ".."):
			add(p.field, "must be a clean path, got %q", p.value)
		}
	}

	if cfg.Sampling.Interval < 0 {
		add("update_interval", "must be non-negative, got %v", cfg.Sampling.Interval)
	} else if cfg.Sampling.Interval > 0 && cfg.Sampling.Interval < minInterval {
		add("update_interval", "must be at least %v, got %v", minInterval, cfg.Sampling.Interval)
	}
	if cfg.Sampling.Count < 0 {
		add("count", "must be non-negative, got %d", cfg.Sampling.Count)
	}
	if cfg.Sampling.Workers < 1 || cfg.Sampling.Workers > maxWorkers {
		add("workers", "must be between 1 and %d, got %d", maxWorkers, cfg.Sampling.Workers)
	}
	if cfg.Sampling.ClockTicks < 0 {
		add("clock_ticks", "must be non-negative, got %d", cfg.Sampling.ClockTicks)
	}

	if cfg.Output.Top < 0 {
		add("top", "must be non-negative, got %d", cfg.Output.Top)
	}

	if !contains(validLogLevels, cfg.Log.Level) {
		add("log_level", "must be one of %s, got %q", strings.Join(validLogLevels, ", "), cfg.Log.Level)
	}
	if !contains(validLogFormats, cfg.Log.Format) {
		add("log_format", "must be one of %s, got %q", strings.Join(validLogFormats, ", "), cfg.Log.Format)
	}

	return errors.Join(errs...)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

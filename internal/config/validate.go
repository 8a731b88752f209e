package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/roach88/bugzapp/internal/qa"
	"github.com/roach88/bugzapp/internal/store"
)

// Validate checks cfg for values no component could use. All problems are
// reported together in one CONFIGURATION error.
func Validate(cfg *Config) error {
	var errs []string

	switch cfg.Storage.Backend {
	case store.BackendJSON:
		if cfg.Storage.Dir == "" {
			errs = append(errs, "storage.dir must not be empty")
		}
	case store.BackendSQLite:
		if cfg.Storage.SQLitePath == "" {
			errs = append(errs, "storage.sqlite_path must not be empty")
		}
	default:
		errs = append(errs, fmt.Sprintf("storage.backend must be one of: json, sqlite (got %q)", cfg.Storage.Backend))
	}

	if cfg.Runner.EvidenceDir == "" {
		errs = append(errs, "runner.evidence_dir must not be empty")
	}
	if cfg.Runner.StepTimeout < 0 {
		errs = append(errs, "runner.step_timeout must not be negative")
	}

	if cfg.Submission.StorePath == "" {
		errs = append(errs, "submission.store_path must not be empty")
	}
	if cfg.Submission.MaxPages < 1 {
		errs = append(errs, fmt.Sprintf("submission.max_pages must be at least 1 (got %d)", cfg.Submission.MaxPages))
	}
	if cfg.Submission.MaxDepth < 0 {
		errs = append(errs, fmt.Sprintf("submission.max_depth must not be negative (got %d)", cfg.Submission.MaxDepth))
	}
	if cfg.Submission.RequestsPerSecond < 0 {
		errs = append(errs, "submission.requests_per_second must not be negative")
	}

	if _, err := ParseLevel(cfg.Logging.Level); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return qa.NewError(qa.ErrCodeConfiguration, "invalid configuration:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ParseLevel maps a logging.level value to a slog level. Empty means info.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging.level must be one of: debug, info, warn, error (got %q)", level)
}

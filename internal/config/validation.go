package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fieldsync/internal/pipeline"
	"fieldsync/internal/transform"
)

// maxDebounceMs bounds the quiet period; longer delays make the field
// look unresponsive.
const maxDebounceMs = 60000

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// ValidateConfig checks every section and returns all problems found as
// ValidationErrors, or nil.
func ValidateConfig(c *Config) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validatePipeline(&c.Pipeline)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validatePipeline(p *PipelineConfig) ValidationErrors {
	var errs ValidationErrors

	if p.DebounceMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.debounce_ms",
			Message: "debounce cannot be negative",
		})
	}
	if p.DebounceMs > maxDebounceMs {
		errs = append(errs, ValidationError{
			Field:   "pipeline.debounce_ms",
			Message: fmt.Sprintf("debounce cannot exceed %dms", maxDebounceMs),
		})
	}

	if _, err := pipeline.ParseMode(p.Mode); err != nil {
		errs = append(errs, ValidationError{
			Field:   "pipeline.mode",
			Message: fmt.Sprintf("invalid mode: %s (valid: per-item, latest)", p.Mode),
		})
	}

	if len(p.Transforms) == 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.transforms",
			Message: "at least one transform is required",
		})
	}
	for i, name := range p.Transforms {
		if _, ok := transform.Lookup(name); !ok {
			errs = append(errs, ValidationError{
				Field: fmt.Sprintf("pipeline.transforms[%d]", i),
				Message: fmt.Sprintf("unknown transform: %s (valid: %s)",
					name, strings.Join(transform.Names(), ", ")),
			})
		}
	}

	if p.BacklogWarn < 0 {
		errs = append(errs, ValidationError{
			Field:   "pipeline.backlog_warn",
			Message: "backlog warning threshold cannot be negative",
		})
	}

	return errs
}

func validateLogging(l *LoggingConfig) ValidationErrors {
	var errs ValidationErrors

	switch l.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Message: fmt.Sprintf("invalid log level: %s (valid: debug, info, warn, error)", l.Level),
		})
	}

	switch l.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Message: fmt.Sprintf("invalid log format: %s (valid: text, json)", l.Format),
		})
	}

	switch l.Output {
	case "stdout", "stderr":
	case "file", "both":
		if expandPath(l.FilePath) == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: fmt.Sprintf("file path is required when output is '%s'", l.Output),
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %s (valid: stdout, stderr, file, both)", l.Output),
		})
	}

	if l.MaxSizeMB < 1 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_size_mb",
			Message: "max size must be at least 1 MB",
		})
	}

	if l.MaxBackups < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_backups",
			Message: "max backups cannot be negative",
		})
	}

	if l.MaxAgeDays < 0 {
		errs = append(errs, ValidationError{
			Field:   "logging.max_age_days",
			Message: "max age cannot be negative",
		})
	}

	return errs
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}

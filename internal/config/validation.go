package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

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

// Is lets errors.Is match ErrInvalidConfig.
func (e ValidationErrors) Is(target error) bool {
	return target == ErrInvalidConfig
}

// ErrInvalidConfig is returned when validation fails.
var ErrInvalidConfig = errors.New("invalid configuration")

// ValidateConfig performs comprehensive validation of the configuration.
func ValidateConfig(c *Config) error {
	var errs ValidationErrors

	if c.Version < 1 || c.Version > Version {
		errs = append(errs, ValidationError{
			Field:   "version",
			Message: fmt.Sprintf("unsupported version %d (current: %d)", c.Version, Version),
		})
	}

	errs = append(errs, validateConversion(&c.Conversion)...)
	errs = append(errs, validateRequest(&c.Request)...)
	errs = append(errs, validateStore(&c.Store)...)
	errs = append(errs, validateMetrics(&c.Metrics)...)
	errs = append(errs, validateTracing(&c.Tracing)...)
	errs = append(errs, validateLogging(&c.Logging)...)

	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validateConversion(c *ConversionConfig) ValidationErrors {
	var errs ValidationErrors

	switch c.SelectionShortcut {
	case ShortcutNone, Shortcut123456789, ShortcutASDFGHJKL:
	default:
		errs = append(errs, ValidationError{
			Field: "conversion.selection_shortcut",
			Message: fmt.Sprintf("invalid shortcut set: %q (valid: %s, %s, %s)",
				c.SelectionShortcut, Shortcut123456789, ShortcutASDFGHJKL, ShortcutNone),
		})
	}

	for _, key := range c.AutoConversionKeys {
		if _, ok := autoConversionKeyNames[key]; !ok {
			errs = append(errs, ValidationError{
				Field:   "conversion.auto_conversion_keys",
				Message: fmt.Sprintf("unknown trigger key: %q", key),
			})
		}
	}

	if c.MaxHistorySize < 0 {
		errs = append(errs, ValidationError{
			Field:   "conversion.max_history_size",
			Message: "max history size cannot be negative",
		})
	}

	return errs
}

func validateRequest(r *RequestConfig) ValidationErrors {
	var errs ValidationErrors

	if r.CandidatePageSize < 0 || r.CandidatePageSize > 100 {
		errs = append(errs, *RangeError("request.candidate_page_size", 0, 100))
	}

	switch r.SpaceOnAlphanumeric {
	case "", SpaceOrConvertKeepingComposition, SpaceOrConvertCommittingComposition, SpaceCommit:
	default:
		errs = append(errs, ValidationError{
			Field:   "request.space_on_alphanumeric",
			Message: fmt.Sprintf("invalid value: %q", r.SpaceOnAlphanumeric),
		})
	}

	return errs
}

func validateStore(s *StoreConfig) ValidationErrors {
	var errs ValidationErrors

	if s.Enabled && s.Path == "" {
		errs = append(errs, *RequiredFieldError("store.path"))
	}
	if s.BusyTimeoutMs < 0 {
		errs = append(errs, ValidationError{
			Field:   "store.busy_timeout_ms",
			Message: "busy timeout cannot be negative",
		})
	}

	return errs
}

func validateMetrics(m *MetricsConfig) ValidationErrors {
	var errs ValidationErrors

	if m.Enabled {
		if m.Addr == "" {
			errs = append(errs, *RequiredFieldError("metrics.addr"))
		} else if _, _, err := net.SplitHostPort(m.Addr); err != nil {
			errs = append(errs, ValidationError{
				Field:   "metrics.addr",
				Message: fmt.Sprintf("invalid listen address: %v", err),
			})
		}
	}

	return errs
}

func validateTracing(t *TracingConfig) ValidationErrors {
	var errs ValidationErrors

	if t.SampleRatio < 0 || t.SampleRatio > 1 {
		errs = append(errs, *RangeError("tracing.sample_ratio", 0, 1))
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
	case "stdout", "stderr", "discard":
	case "file", "both":
		if l.FilePath == "" {
			errs = append(errs, ValidationError{
				Field:   "logging.file_path",
				Message: "file path is required when output is 'file'",
			})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "logging.output",
			Message: fmt.Sprintf("invalid log output: %q", l.Output),
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

	return errs
}

// RequiredFieldError creates a validation error for a required field.
func RequiredFieldError(field string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: "required field is missing",
	}
}

// RangeError creates a validation error for an out-of-range value.
func RangeError(field string, min, max any) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("value must be between %v and %v", min, max),
	}
}

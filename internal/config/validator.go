package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/Iron-Ham/dagrun/internal/logging"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "executor.max_concurrent")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels, lower-cased for
// config file use.
func ValidLogLevels() []string {
	levels := logging.ValidLevels()
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = strings.ToLower(l)
	}
	return out
}

// ValidPhases returns the list of valid phase names
func ValidPhases() []string {
	return []string{"plan", "implement", "review", "sweep"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if c.Executor.MaxConcurrent < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_concurrent",
			Value:   c.Executor.MaxConcurrent,
			Message: "must be zero (auto) or positive",
		})
	}
	if c.Executor.MaxAttempts < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_attempts",
			Value:   c.Executor.MaxAttempts,
			Message: "must be zero (unbounded) or positive",
		})
	}
	if c.Executor.RetryBackoffMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "executor.retry_backoff_ms",
			Value:   c.Executor.RetryBackoffMs,
			Message: "must not be negative",
		})
	}
	if c.Executor.PollIntervalMs < 1 {
		errors = append(errors, ValidationError{
			Field:   "executor.poll_interval_ms",
			Value:   c.Executor.PollIntervalMs,
			Message: "must be at least 1",
		})
	}
	if c.Executor.StallThreshold < 1 {
		errors = append(errors, ValidationError{
			Field:   "executor.stall_threshold",
			Value:   c.Executor.StallThreshold,
			Message: "must be at least 1",
		})
	}
	if c.Executor.MaxDeadlockRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "executor.max_deadlock_retries",
			Value:   c.Executor.MaxDeadlockRetries,
			Message: "must be at least 1",
		})
	}
	for _, phase := range c.Executor.Phases {
		if !slices.Contains(ValidPhases(), phase) {
			errors = append(errors, ValidationError{
				Field:   "executor.phases",
				Value:   phase,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPhases(), ", ")),
			})
		}
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		errors = append(errors, ValidationError{
			Field:   "paths.work_dir",
			Value:   c.Paths.WorkDir,
			Message: "must not be empty",
		})
	}

	return errors
}

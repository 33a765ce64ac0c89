package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "retry.max_attempts")
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

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidDiagramKinds returns the list of valid diagram kind names
func ValidDiagramKinds() []string {
	return []string{"architecture", "sequence", "data_flow", "er", "state"}
}

// Validate checks the Config for invalid values and returns all validation
// errors found. A missing backend API key is intentionally not an error here:
// it is checked at run submission so that commands that never invoke the
// backend (e.g. version) still work.
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateBackend()...)
	errors = append(errors, c.validateJira()...)
	errors = append(errors, c.validateDiagrams()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateServer()...)
	errors = append(errors, c.validateLogging()...)

	return errors
}

func (c *Config) validateBackend() []ValidationError {
	var errors []ValidationError

	if c.Backend.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "backend.base_url",
			Value:   c.Backend.BaseURL,
			Message: "must not be empty",
		})
	} else if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		errors = append(errors, ValidationError{
			Field:   "backend.base_url",
			Value:   c.Backend.BaseURL,
			Message: "must include protocol (http:// or https://)",
		})
	}
	if c.Backend.MaxTokens <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.max_tokens",
			Value:   c.Backend.MaxTokens,
			Message: "must be positive",
		})
	}
	if c.Backend.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "backend.timeout_seconds",
			Value:   c.Backend.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateJira() []ValidationError {
	var errors []ValidationError

	// Jira settings are optional as a group, but when a server is given it
	// must carry a protocol so the client can build request URLs.
	if c.Jira.Server != "" && !strings.HasPrefix(c.Jira.Server, "http://") && !strings.HasPrefix(c.Jira.Server, "https://") {
		errors = append(errors, ValidationError{
			Field:   "jira.server",
			Value:   c.Jira.Server,
			Message: "must include protocol (http:// or https://)",
		})
	}
	if c.Jira.TimeoutSeconds <= 0 {
		errors = append(errors, ValidationError{
			Field:   "jira.timeout_seconds",
			Value:   c.Jira.TimeoutSeconds,
			Message: "must be positive",
		})
	}

	return errors
}

func (c *Config) validateDiagrams() []ValidationError {
	var errors []ValidationError

	valid := ValidDiagramKinds()
	for _, kind := range c.Diagrams.Kinds {
		if !slices.Contains(valid, kind) {
			errors = append(errors, ValidationError{
				Field:   "diagrams.kinds",
				Value:   kind,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
			})
		}
	}

	return errors
}

func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxAttempts < 1 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_attempts",
			Value:   c.Retry.MaxAttempts,
			Message: "must be at least 1",
		})
	}
	if c.Retry.BackoffBaseMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff_base_ms",
			Value:   c.Retry.BackoffBaseMs,
			Message: "must not be negative",
		})
	}
	if c.Retry.BackoffCapMs < c.Retry.BackoffBaseMs {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff_cap_ms",
			Value:   c.Retry.BackoffCapMs,
			Message: "must be at least backoff_base_ms",
		})
	}

	return errors
}

func (c *Config) validateServer() []ValidationError {
	var errors []ValidationError

	if c.Server.MaxConcurrentRuns < 1 {
		errors = append(errors, ValidationError{
			Field:   "server.max_concurrent_runs",
			Value:   c.Server.MaxConcurrentRuns,
			Message: "must be at least 1",
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}

	return errors
}

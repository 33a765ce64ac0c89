// Package errors provides centralized error definitions and error handling
// utilities for the jira-gen codebase. It defines the pipeline error taxonomy,
// error constructors with context wrapping, and error classification helpers.
//
// # Error Types
//
// The taxonomy maps directly to how the pipeline reacts to a failure:
//
//   - TransportError: the reasoning backend was unreachable, timed out, was
//     rate-limited, or returned a malformed body. Retryable by the stage runner.
//   - ValidationError: stage output could not be parsed into the required
//     structure. Never retried; fails the stage and halts later stages.
//   - ConfigurationError: a required credential or setting is missing.
//     Surfaced before any stage runs.
//   - SyncError: a single backlog item failed to sync to the remote tracker.
//     Recorded per item; never fails the run.
//
// # Usage
//
// Creating errors:
//
//	err := errors.NewTransportError("backend request failed", cause).WithStatusCode(429)
//	err := errors.NewValidationError("missing required field").WithField("stakeholders").WithStage("business_analysis")
//
// Checking errors:
//
//	var verr *errors.ValidationError
//	if errors.As(err, &verr) { ... }
//
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Re-export standard library functions for convenience.
// This allows callers to import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for common conditions.
var (
	// ErrRunNotFound indicates the requested run id is not in the store.
	ErrRunNotFound = errors.New("run not found")
	// ErrRateLimited indicates the backend rejected a request for rate reasons.
	ErrRateLimited = errors.New("rate limited")
	// ErrTimeout indicates an operation exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")
	// ErrSyncSkipped indicates remote sync was skipped due to absent config.
	// This is informational, not a failure.
	ErrSyncSkipped = errors.New("remote sync skipped")
)

// -----------------------------------------------------------------------------
// Base Error Implementation
// -----------------------------------------------------------------------------

// baseError provides common functionality for all error types.
type baseError struct {
	message   string
	cause     error
	retryable bool
}

// Error returns the error message.
func (e *baseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Unwrap returns the underlying error.
func (e *baseError) Unwrap() error {
	return e.cause
}

// Is checks if this error matches the target.
func (e *baseError) Is(target error) bool {
	if e.cause != nil {
		return errors.Is(e.cause, target)
	}
	return false
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// -----------------------------------------------------------------------------
// TransportError
// -----------------------------------------------------------------------------

// TransportError represents a failure to communicate with the reasoning
// backend: unreachable host, timeout, rate limit, or a malformed response
// body. All of these are treated uniformly as retryable.
//
// Example:
//
//	err := errors.NewTransportError("completion request failed", cause).WithStatusCode(503)
type TransportError struct {
	baseError
	StatusCode int
	Attempt    int
}

// NewTransportError creates a new TransportError.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{
		baseError: baseError{
			message:   message,
			cause:     cause,
			retryable: true,
		},
	}
}

// WithStatusCode records the HTTP status that triggered the error.
func (e *TransportError) WithStatusCode(code int) *TransportError {
	e.StatusCode = code
	return e
}

// WithAttempt records which attempt produced the error.
func (e *TransportError) WithAttempt(n int) *TransportError {
	e.Attempt = n
	return e
}

// Error returns the formatted error message.
func (e *TransportError) Error() string {
	var parts []string
	if e.StatusCode != 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Attempt != 0 {
		parts = append(parts, fmt.Sprintf("attempt=%d", e.Attempt))
	}

	prefix := "transport error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("transport error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *TransportError) Is(target error) bool {
	if _, ok := target.(*TransportError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// ValidationError
// -----------------------------------------------------------------------------

// ValidationError represents stage output that could not be parsed into the
// required structure. Validation failures are never retried: re-invoking the
// backend with identical input rarely fixes a structural mismatch.
//
// Example:
//
//	err := errors.NewValidationError("missing required field").
//		WithField("functional_requirements").
//		WithStage("business_analysis")
type ValidationError struct {
	baseError
	Field string
	Stage string
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:   message,
			retryable: false,
		},
	}
}

// WithField adds the offending field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithStage adds the producing stage to the error context.
func (e *ValidationError) WithStage(stage string) *ValidationError {
	e.Stage = stage
	return e
}

// WithCause adds a cause to the error.
func (e *ValidationError) WithCause(cause error) *ValidationError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *ValidationError) Error() string {
	var parts []string
	if e.Stage != "" {
		parts = append(parts, fmt.Sprintf("stage=%s", e.Stage))
	}
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}

	prefix := "validation error"
	if len(parts) > 0 {
		prefix = fmt.Sprintf("validation error [%s]", strings.Join(parts, ", "))
	}

	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *ValidationError) Is(target error) bool {
	if _, ok := target.(*ValidationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// ConfigurationError
// -----------------------------------------------------------------------------

// ConfigurationError represents a missing or invalid configuration value.
// The orchestrator surfaces these before any stage runs.
//
// Example:
//
//	err := errors.NewConfigurationError("backend API key is required").WithKey("backend.api_key")
type ConfigurationError struct {
	baseError
	Key string
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{
		baseError: baseError{
			message:   message,
			retryable: false,
		},
	}
}

// WithKey adds the configuration key to the error context.
func (e *ConfigurationError) WithKey(key string) *ConfigurationError {
	e.Key = key
	return e
}

// Error returns the formatted error message.
func (e *ConfigurationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("configuration error [key=%s]: %s", e.Key, e.message)
	}
	return fmt.Sprintf("configuration error: %s", e.message)
}

// Is checks if this error matches the target.
func (e *ConfigurationError) Is(target error) bool {
	if _, ok := target.(*ConfigurationError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// SyncError
// -----------------------------------------------------------------------------

// SyncError represents a failure to create a single backlog item in the
// remote tracker. Sync errors are recorded per item and never fail the run;
// sibling items continue to sync.
type SyncError struct {
	baseError
	ItemTitle string
	Transient bool
}

// NewSyncError creates a new SyncError.
func NewSyncError(message string, cause error) *SyncError {
	return &SyncError{
		baseError: baseError{
			message: message,
			cause:   cause,
		},
	}
}

// WithItem adds the backlog item title to the error context.
func (e *SyncError) WithItem(title string) *SyncError {
	e.ItemTitle = title
	return e
}

// WithTransient marks the error as transient (retryable within the sync loop).
func (e *SyncError) WithTransient(transient bool) *SyncError {
	e.Transient = transient
	e.retryable = transient
	return e
}

// Error returns the formatted error message.
func (e *SyncError) Error() string {
	prefix := "sync error"
	if e.ItemTitle != "" {
		prefix = fmt.Sprintf("sync error [item=%q]", e.ItemTitle)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// Is checks if this error matches the target.
func (e *SyncError) Is(target error) bool {
	if _, ok := target.(*SyncError); ok {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// TimeoutError
// -----------------------------------------------------------------------------

// TimeoutError represents an operation that exceeded its deadline.
//
// Example:
//
//	err := errors.NewTimeoutError("waiting for backend completion", 60*time.Second)
type TimeoutError struct {
	baseError
	Operation string
	Duration  time.Duration
}

// NewTimeoutError creates a new TimeoutError.
func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{
		baseError: baseError{
			message:   operation,
			retryable: true, // Timeouts are generally retryable
		},
		Operation: operation,
		Duration:  duration,
	}
}

// WithCause adds a cause to the error.
func (e *TimeoutError) WithCause(cause error) *TimeoutError {
	e.cause = cause
	return e
}

// Error returns the formatted error message.
func (e *TimeoutError) Error() string {
	base := fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", base, e.cause)
	}
	return base
}

// Is checks if this error matches the target.
func (e *TimeoutError) Is(target error) bool {
	if _, ok := target.(*TimeoutError); ok {
		return true
	}
	if errors.Is(target, ErrTimeout) {
		return true
	}
	return e.baseError.Is(target)
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// retryable is implemented by errors that know whether a retry may help.
type retryable interface {
	IsRetryable() bool
}

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry. This checks for:
//   - Errors implementing IsRetryable() returning true
//   - Errors wrapping ErrTimeout or ErrRateLimited
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}

	return errors.Is(err, ErrTimeout) || errors.Is(err, ErrRateLimited)
}

// IsValidation returns true if the error is a ValidationError anywhere in
// its chain.
func IsValidation(err error) bool {
	var verr *ValidationError
	return errors.As(err, &verr)
}

// IsConfiguration returns true if the error is a ConfigurationError anywhere
// in its chain.
func IsConfiguration(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}

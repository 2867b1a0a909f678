// Package errors provides centralized error definitions and error handling utilities
// for ratco. It defines the sentinel errors of the run lifecycle, typed errors that
// carry the offending value, and classification helpers used by the CLI to decide
// what to show the user and which exit code to return.
//
// # Error Types
//
// Domain-specific errors represent failures of a specific subsystem:
//   - ArgumentError: a required command-line argument is missing or malformed
//   - RoleError: the composer or a checkpoint named an unknown role kind
//   - CheckpointError: a checkpoint location is invalid or its content is corrupt
//   - BudgetError: a non-positive investment or a charge that would overdraw
//
// ValidationError represents invalid input or configuration state.
//
// # Usage
//
//	err := errors.NewCheckpointError("location does not end with \"team\"", errors.ErrInvalidCheckpointPath).
//		WithLocation("/tmp/project")
//
//	if errors.Is(err, errors.ErrInvalidCheckpointPath) { ... }
//
//	var cpErr *errors.CheckpointError
//	if errors.As(err, &cpErr) { fmt.Println(cpErr.Location) }
//
// # Error Classification
//
//   - Retryable: transient errors that may succeed on retry
//   - UserFacing: errors safe to display to users (vs internal errors)
//   - Severity: Debug, Info, Warning, Error, Critical
package errors

import (
	"errors"
	"fmt"
	"strings"
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

// Severity represents the severity level of an error.
type Severity int

const (
	// SeverityDebug is for errors that are useful for debugging but not critical.
	SeverityDebug Severity = iota
	// SeverityInfo is for informational errors that don't indicate a problem.
	SeverityInfo
	// SeverityWarning is for errors that might indicate a problem but aren't critical.
	SeverityWarning
	// SeverityError is for errors that indicate a real problem.
	SeverityError
	// SeverityCritical is for errors that require immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity level.
func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Sentinel Errors
// -----------------------------------------------------------------------------

// Pre-run sentinel errors. All of them abort before the first round.
var (
	// ErrMissingIdea indicates that no idea text was supplied.
	ErrMissingIdea = New("missing required idea")
	// ErrUnknownRoleKind indicates a role kind absent from the registry.
	ErrUnknownRoleKind = New("unknown role kind")
	// ErrEmptyRoster indicates that a run was started without any roles.
	ErrEmptyRoster = New("roster is empty")
	// ErrInvalidAmount indicates a zero or negative monetary amount.
	ErrInvalidAmount = New("invalid amount")
)

// Checkpoint sentinel errors.
var (
	// ErrInvalidCheckpointPath indicates a location that is absent or does not
	// follow the checkpoint naming convention.
	ErrInvalidCheckpointPath = New("invalid checkpoint path")
	// ErrCorruptCheckpoint indicates stored content that cannot be reconstructed.
	ErrCorruptCheckpoint = New("corrupt checkpoint")
	// ErrCheckpointSave indicates that a checkpoint could not be written.
	ErrCheckpointSave = New("checkpoint save failed")
)

// Run-time sentinel errors.
var (
	// ErrBudgetExceeded indicates a charge that would overdraw the ledger.
	ErrBudgetExceeded = New("budget exceeded")
	// ErrTurnBlocked indicates that a role's required upstream output is missing.
	ErrTurnBlocked = New("turn blocked on missing upstream output")
	// ErrInvalidInput indicates that input validation failed.
	ErrInvalidInput = New("invalid input")
)

// -----------------------------------------------------------------------------
// Base Error Interface
// -----------------------------------------------------------------------------

// RatcoError is the base interface for all typed ratco errors.
type RatcoError interface {
	error

	// Unwrap returns the underlying error, if any.
	Unwrap() error

	// Severity returns the severity level of this error.
	Severity() Severity

	// IsRetryable returns true if the error is transient and the operation
	// may succeed on retry.
	IsRetryable() bool

	// IsUserFacing returns true if the error message is safe to display
	// to end users.
	IsUserFacing() bool
}

// baseError provides common functionality for all error types.
type baseError struct {
	message    string
	cause      error
	severity   Severity
	retryable  bool
	userFacing bool
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

// Severity returns the error severity.
func (e *baseError) Severity() Severity {
	return e.severity
}

// IsRetryable returns whether the error is retryable.
func (e *baseError) IsRetryable() bool {
	return e.retryable
}

// IsUserFacing returns whether the error is safe to show users.
func (e *baseError) IsUserFacing() bool {
	return e.userFacing
}

// format renders "<prefix> [k=v, ...]: message: cause".
func (e *baseError) format(prefix string, parts []string) string {
	if len(parts) > 0 {
		prefix = fmt.Sprintf("%s [%s]", prefix, strings.Join(parts, ", "))
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", prefix, e.message, e.cause)
	}
	return fmt.Sprintf("%s: %s", prefix, e.message)
}

// -----------------------------------------------------------------------------
// Domain-Specific Errors
// -----------------------------------------------------------------------------

// ArgumentError represents a missing or malformed command-line argument.
//
// Example:
//
//	err := errors.NewArgumentError("IDEA", errors.ErrMissingIdea)
//	fmt.Println(err) // "argument error [argument=IDEA]: missing required argument: missing required idea"
type ArgumentError struct {
	baseError
	Argument string
}

// NewArgumentError creates a new ArgumentError for the named argument.
func NewArgumentError(argument string, cause error) *ArgumentError {
	return &ArgumentError{
		baseError: baseError{
			message:    "missing required argument",
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
		Argument: argument,
	}
}

// Error returns the formatted error message.
func (e *ArgumentError) Error() string {
	var parts []string
	if e.Argument != "" {
		parts = append(parts, fmt.Sprintf("argument=%s", e.Argument))
	}
	return e.format("argument error", parts)
}

// RoleError represents an unknown or malformed role kind.
type RoleError struct {
	baseError
	Kind string
}

// NewRoleError creates a RoleError wrapping ErrUnknownRoleKind.
func NewRoleError(kind string) *RoleError {
	return &RoleError{
		baseError: baseError{
			message:    "role kind is not registered",
			cause:      ErrUnknownRoleKind,
			severity:   SeverityError,
			userFacing: true,
		},
		Kind: kind,
	}
}

// Error returns the formatted error message.
func (e *RoleError) Error() string {
	return e.format("role error", []string{fmt.Sprintf("kind=%q", e.Kind)})
}

// CheckpointError represents a checkpoint save or recovery failure. The
// cause is one of the checkpoint sentinels, optionally joined with the
// underlying I/O or decode error.
//
// Example:
//
//	err := errors.NewCheckpointError("location does not exist", errors.ErrInvalidCheckpointPath).
//		WithLocation("/tmp/missing_team")
type CheckpointError struct {
	baseError
	Location string
}

// NewCheckpointError creates a new CheckpointError.
func NewCheckpointError(message string, cause error) *CheckpointError {
	return &CheckpointError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityError,
			userFacing: true,
		},
	}
}

// WithLocation adds the checkpoint location to the error context.
func (e *CheckpointError) WithLocation(location string) *CheckpointError {
	e.Location = location
	return e
}

// WithRetryable sets whether the error is retryable.
func (e *CheckpointError) WithRetryable(r bool) *CheckpointError {
	e.retryable = r
	return e
}

// Error returns the formatted error message.
func (e *CheckpointError) Error() string {
	var parts []string
	if e.Location != "" {
		parts = append(parts, fmt.Sprintf("location=%s", e.Location))
	}
	return e.format("checkpoint error", parts)
}

// BudgetError represents an invalid investment or an overdrawing charge.
//
// Example:
//
//	err := errors.NewBudgetError("charge would overdraw", errors.ErrBudgetExceeded).
//		WithAmounts(0.01, 5, 5)
type BudgetError struct {
	baseError
	Amount   float64
	Invested float64
	Spent    float64
}

// NewBudgetError creates a new BudgetError.
func NewBudgetError(message string, cause error) *BudgetError {
	return &BudgetError{
		baseError: baseError{
			message:    message,
			cause:      cause,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithAmounts records the requested amount and the ledger totals at the time
// of the failure.
func (e *BudgetError) WithAmounts(amount, invested, spent float64) *BudgetError {
	e.Amount = amount
	e.Invested = invested
	e.Spent = spent
	return e
}

// Error returns the formatted error message.
func (e *BudgetError) Error() string {
	parts := []string{
		fmt.Sprintf("amount=%.4f", e.Amount),
		fmt.Sprintf("invested=%.4f", e.Invested),
		fmt.Sprintf("spent=%.4f", e.Spent),
	}
	return e.format("budget error", parts)
}

// -----------------------------------------------------------------------------
// Semantic Errors
// -----------------------------------------------------------------------------

// ValidationError represents invalid input or state.
//
// Example:
//
//	err := errors.NewValidationError("must be >= -1").WithField("max_auto_summarize_code").WithValue(-3)
type ValidationError struct {
	baseError
	Field string
	Value any
}

// NewValidationError creates a new ValidationError.
func NewValidationError(message string) *ValidationError {
	return &ValidationError{
		baseError: baseError{
			message:    message,
			severity:   SeverityWarning,
			userFacing: true,
		},
	}
}

// WithField adds a field name to the error context.
func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

// WithValue adds the invalid value to the error context.
func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
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
	if e.Field != "" {
		parts = append(parts, fmt.Sprintf("field=%s", e.Field))
	}
	if e.Value != nil {
		parts = append(parts, fmt.Sprintf("value=%v", e.Value))
	}
	return e.format("validation error", parts)
}

// Is reports ErrInvalidInput as a match so callers can check for any
// validation failure without knowing the concrete type.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// -----------------------------------------------------------------------------
// Error Classification Helpers
// -----------------------------------------------------------------------------

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re RatcoError
	if As(err, &re) {
		return re.IsRetryable()
	}
	return false
}

// IsUserFacing returns true if the error message is safe to display to end users.
func IsUserFacing(err error) bool {
	if err == nil {
		return false
	}
	var re RatcoError
	if As(err, &re) {
		return re.IsUserFacing()
	}
	return false
}

// IsPreRun returns true if the error belongs to the pre-run validation class:
// it was raised before any round started and nothing was mutated.
func IsPreRun(err error) bool {
	if err == nil {
		return false
	}
	for _, target := range []error{
		ErrMissingIdea,
		ErrUnknownRoleKind,
		ErrEmptyRoster,
		ErrInvalidAmount,
		ErrInvalidCheckpointPath,
		ErrCorruptCheckpoint,
		ErrInvalidInput,
	} {
		if Is(err, target) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Convenience Constructors
// -----------------------------------------------------------------------------

// Wrap wraps an error with additional context message.
//
// Example:
//
//	err := errors.Wrap(baseErr, "failed to recover team")
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with a formatted context message.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

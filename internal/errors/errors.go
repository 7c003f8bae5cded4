// Package errors provides centralized error definitions and error handling
// utilities. It defines domain-specific errors for the session monitor, the
// plan subsystem, and the workflow controller, plus semantic error types and
// classification helpers.
//
// Creating errors:
//
//	err := errors.NewSessionError("capture failed", cause).WithSessionID("web-1")
//	err := errors.NewNotFoundError("task", "1.2")
//
// Checking errors:
//
//	if errors.Is(err, errors.ErrSessionGone) { ... }
//	var planErr *errors.PlanError
//	if errors.As(err, &planErr) { ... }
//	if errors.IsRetryable(err) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Re-export standard library functions for convenience so callers can
// import only this package for all error handling.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for common conditions.
var (
	// ErrSessionGone indicates the terminal provider no longer knows the
	// session. This is expected steady-state churn, not a fault.
	ErrSessionGone = errors.New("session no longer exists")

	// ErrProviderUnavailable indicates the terminal provider could not be
	// reached at startup. This is the only fatal-class monitor error.
	ErrProviderUnavailable = errors.New("terminal provider unavailable")

	// ErrTaskNotFound indicates a plan update referenced an unknown task id.
	ErrTaskNotFound = errors.New("task not found in plan")

	// ErrDependencyCycle indicates the plan's dependency graph contains a
	// cycle. Cyclic plans are rejected at parse time.
	ErrDependencyCycle = errors.New("dependency cycle in plan")

	// ErrWatcherClosed indicates an operation was attempted on a closed
	// plan watcher.
	ErrWatcherClosed = errors.New("plan watcher is closed")

	// ErrUnresolvedConflict indicates a local write was attempted while an
	// external-edit conflict is awaiting a decision.
	ErrUnresolvedConflict = errors.New("unresolved plan conflict")
)

// SessionError represents an error from the session monitor subsystem.
type SessionError struct {
	Message   string
	SessionID string
	Cause     error
	retryable bool
}

// NewSessionError creates a session error wrapping an optional cause.
func NewSessionError(message string, cause error) *SessionError {
	return &SessionError{Message: message, Cause: cause, retryable: true}
}

// WithSessionID attaches the session id for context.
func (e *SessionError) WithSessionID(id string) *SessionError {
	e.SessionID = id
	return e
}

// WithRetryable overrides the default retryable classification.
func (e *SessionError) WithRetryable(r bool) *SessionError {
	e.retryable = r
	return e
}

func (e *SessionError) Error() string {
	msg := "session error: " + e.Message
	if e.SessionID != "" {
		msg += fmt.Sprintf(" (session: %s)", e.SessionID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *SessionError) Unwrap() error { return e.Cause }

// IsRetryable reports whether the error is transient.
func (e *SessionError) IsRetryable() bool { return e.retryable }

// PlanError represents an error from the plan parser, updater, or watcher.
type PlanError struct {
	Message string
	Path    string
	Line    int
	Cause   error
}

// NewPlanError creates a plan error wrapping an optional cause.
func NewPlanError(message string, cause error) *PlanError {
	return &PlanError{Message: message, Cause: cause}
}

// WithPath attaches the plan document path for context.
func (e *PlanError) WithPath(path string) *PlanError {
	e.Path = path
	return e
}

// WithLine attaches the 1-based document line for context.
func (e *PlanError) WithLine(line int) *PlanError {
	e.Line = line
	return e
}

func (e *PlanError) Error() string {
	msg := "plan error: " + e.Message
	if e.Path != "" {
		msg += fmt.Sprintf(" (%s", e.Path)
		if e.Line > 0 {
			msg += fmt.Sprintf(":%d", e.Line)
		}
		msg += ")"
	} else if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PlanError) Unwrap() error { return e.Cause }

// WorkflowError represents an automation dispatch or stage inference error.
type WorkflowError struct {
	Message string
	Stage   string
	Command string
	Cause   error
}

// NewWorkflowError creates a workflow error wrapping an optional cause.
func NewWorkflowError(message string, cause error) *WorkflowError {
	return &WorkflowError{Message: message, Cause: cause}
}

// WithStage attaches the workflow stage for context.
func (e *WorkflowError) WithStage(stage string) *WorkflowError {
	e.Stage = stage
	return e
}

// WithCommand attaches the automation command for context.
func (e *WorkflowError) WithCommand(cmd string) *WorkflowError {
	e.Command = cmd
	return e
}

func (e *WorkflowError) Error() string {
	msg := "workflow error: " + e.Message
	if e.Stage != "" {
		msg += fmt.Sprintf(" (stage: %s)", e.Stage)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *WorkflowError) Unwrap() error { return e.Cause }

// NotFoundError indicates a resource lookup failed.
type NotFoundError struct {
	ResourceType string
	ResourceID   string
	Cause        error
}

// NewNotFoundError creates a not-found error for a typed resource.
func NewNotFoundError(resourceType, resourceID string) *NotFoundError {
	return &NotFoundError{ResourceType: resourceType, ResourceID: resourceID}
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("%s not found: %s", e.ResourceType, e.ResourceID)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *NotFoundError) Unwrap() error { return e.Cause }

// ValidationError indicates invalid input, configuration, or state.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return "validation failed: " + e.Message
}

// retryable is implemented by errors that carry their own transience
// classification.
type retryable interface {
	IsRetryable() bool
}

// IsRetryable reports whether err (or any error in its chain) is transient
// and may succeed on retry. Session-gone churn is never retryable: the
// session is simply removed from tracking.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSessionGone) || errors.Is(err, ErrProviderUnavailable) {
		return false
	}
	var r retryable
	if errors.As(err, &r) {
		return r.IsRetryable()
	}
	return false
}

// IsFatal reports whether err should abort startup rather than degrade.
// Per the error model, provider unavailability is the only fatal class.
func IsFatal(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

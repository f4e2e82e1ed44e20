package domain

import (
	"errors"
	"fmt"
)

// SimErrorCode categorizes engine failures. Nothing in the engine is fatal:
// every failure degrades to "no state change" plus a recorded error.
type SimErrorCode string

const (
	// ErrCodeInvalidTransition marks a control command issued against a state
	// machine in an incompatible state. Rejected at the boundary, no mutation.
	ErrCodeInvalidTransition SimErrorCode = "INVALID_TRANSITION"

	// ErrCodeResourceContention marks a scheduling or maintenance request that
	// could not obtain a required resource or idle window.
	ErrCodeResourceContention SimErrorCode = "RESOURCE_CONTENTION"

	// ErrCodeServiceFailure marks an external service call that rejected or
	// timed out. Prior state is preserved and the call is safe to retry.
	ErrCodeServiceFailure SimErrorCode = "SERVICE_FAILURE"

	// ErrCodeAuthFailure marks wrong credentials at an approval gate.
	ErrCodeAuthFailure SimErrorCode = "AUTH_FAILURE"
)

// SimError is a structured engine error with a machine-readable code.
type SimError struct {
	Code    SimErrorCode
	Message string
	Subject string // affected entity: batch number, component, recommendation ID
	Err     error
}

// Error implements the error interface.
func (e *SimError) Error() string {
	if e.Subject != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Subject)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause.
func (e *SimError) Unwrap() error {
	return e.Err
}

// NewInvalidTransition builds an invalid-transition error for a rejected
// control command.
func NewInvalidTransition(command string, state BatchState) *SimError {
	return &SimError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("command %q not allowed in state %q", command, state),
	}
}

// IsCode reports whether err is a SimError with the given code.
func IsCode(err error, code SimErrorCode) bool {
	var se *SimError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

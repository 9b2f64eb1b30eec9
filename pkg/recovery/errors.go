package recovery

import (
	"errors"
	"fmt"
)

// ErrUnknownFailureClass indicates no strategy is registered for the
// failure class.
var ErrUnknownFailureClass = errors.New("recovery: unknown failure class")

// RecoverableError wraps an operation failure whose resolution is a
// component restart: the caller should tear down and rebuild the owning
// component, then try again.
type RecoverableError struct {
	Class string
	Err   error
}

// Error implements the error interface.
func (e *RecoverableError) Error() string {
	return fmt.Sprintf("recovery: %s needs restart: %v", e.Class, e.Err)
}

// Unwrap returns the underlying operation error.
func (e *RecoverableError) Unwrap() error {
	return e.Err
}

// AbortError wraps an operation failure that recovery cannot resolve.
// The pipeline should stop.
type AbortError struct {
	Class string
	Err   error
}

// Error implements the error interface.
func (e *AbortError) Error() string {
	return fmt.Sprintf("recovery: %s is not recoverable: %v", e.Class, e.Err)
}

// Unwrap returns the underlying operation error.
func (e *AbortError) Unwrap() error {
	return e.Err
}

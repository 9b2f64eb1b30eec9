package audioio

import (
	"errors"
	"fmt"
)

// Sentinel errors for common error conditions.
var (
	// ErrInitFailed is returned when the audio subsystem could not be
	// initialized after all retries. Fatal for this component.
	ErrInitFailed = errors.New("audioio: subsystem initialization failed")

	// ErrNoInputDevice is returned when neither the configured input
	// device nor a fallback is available.
	ErrNoInputDevice = errors.New("audioio: no usable input device")

	// ErrNoOutputDevice is returned when neither the configured output
	// device nor a fallback is available.
	ErrNoOutputDevice = errors.New("audioio: no usable output device")

	// ErrNotRecording is returned when a read is attempted with no
	// active capture stream.
	ErrNotRecording = errors.New("audioio: not recording")

	// ErrClosed is returned when the manager has been closed.
	ErrClosed = errors.New("audioio: manager closed")
)

// DeviceError reports a problem with a specific device index.
type DeviceError struct {
	Index int
	Op    string
	Err   error
}

// Error implements the error interface.
func (e *DeviceError) Error() string {
	return fmt.Sprintf("audioio: device %d: %s: %v", e.Index, e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *DeviceError) Unwrap() error {
	return e.Err
}

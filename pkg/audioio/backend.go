package audioio

import (
	"context"
)

// CaptureCallback receives captured PCM16 samples from the hardware
// thread. A non-nil err flags a bad frame (device status error); samples
// are then empty. The callback must never block.
type CaptureCallback func(samples []int16, err error)

// CaptureStream is an open hardware capture stream.
type CaptureStream interface {
	// Stop halts capture. After Stop returns, no further callbacks are
	// delivered. Safe to call more than once.
	Stop() error
}

// CaptureBackend adapts a platform capture library.
type CaptureBackend interface {
	// Init prepares the backend (opens the platform audio context).
	// It may be called again after a failure.
	Init(ctx context.Context) error

	// OpenCapture opens a callback-driven capture stream on the given
	// device index (DeviceDefault for the system default).
	OpenCapture(cfg Config, device int, cb CaptureCallback) (CaptureStream, error)

	// Name returns the backend name (e.g. "malgo", "mock").
	Name() string

	// Close releases backend resources.
	Close() error
}

// PlaybackStream is an open hardware playback stream.
type PlaybackStream interface {
	// Write queues PCM16 samples for playback. It may block while the
	// output buffer is full.
	Write(ctx context.Context, samples []int16) error

	// Drain blocks until all queued audio has been played.
	Drain(ctx context.Context) error

	// Close stops playback and releases the stream. Queued audio that
	// has not been drained is discarded.
	Close() error
}

// PlaybackBackend adapts a platform playback library.
type PlaybackBackend interface {
	// Init prepares the backend. It may be called again after a failure.
	Init(ctx context.Context) error

	// OpenPlayback opens a playback stream on the given device index.
	// Backends that cannot address devices play to the system default.
	OpenPlayback(cfg Config, device int) (PlaybackStream, error)

	// Name returns the backend name (e.g. "oto", "mock").
	Name() string

	// Close releases backend resources.
	Close() error
}

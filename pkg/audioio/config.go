package audioio

import (
	"fmt"
	"time"
)

// DeviceDefault selects the host's default device for a direction.
const DeviceDefault = -1

// Config holds audio configuration for the Manager.
// It is immutable once a pipeline run starts.
type Config struct {
	// SampleRate is the audio sample rate in Hz.
	// Default: 16000 (required by the speech scoring model).
	SampleRate int

	// Channels is the number of audio channels. Default: 1 (mono).
	Channels int

	// ChunkSize is the fixed number of samples per captured chunk.
	// The value is dictated by the speech scoring model (512 at 16 kHz).
	ChunkSize int

	// BitDepth is the sample bit depth. Only 16 is supported.
	BitDepth int

	// InputDevice and OutputDevice are device indices as reported by
	// DeviceManager, or DeviceDefault for the system default.
	InputDevice  int
	OutputDevice int

	// QueueSize is the capacity of the bounded capture queue, in chunks.
	// When full, the newest frame is dropped.
	QueueSize int

	// MaxInitRetries is the number of times audio subsystem
	// initialization is retried before giving up for good.
	MaxInitRetries int

	// InitRetryDelay is the delay before the first init retry. The delay
	// grows by InitBackoffFactor on each subsequent attempt.
	InitRetryDelay    time.Duration
	InitBackoffFactor float64

	// LeadInSilence is the duration of silence written before playback
	// audio to suppress clicks from the output device engaging.
	LeadInSilence time.Duration

	// InputWarmupChunks is the number of captured chunks discarded after
	// the input stream opens, letting the microphone settle.
	InputWarmupChunks int

	// HealthCheckInterval bounds how stale the last successful capture
	// may be before the stream is considered unhealthy.
	HealthCheckInterval time.Duration

	// MaxConsecutiveErrors bounds callback status errors before the
	// stream is considered unhealthy.
	MaxConsecutiveErrors int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		Channels:             1,
		ChunkSize:            512,
		BitDepth:             16,
		InputDevice:          DeviceDefault,
		OutputDevice:         DeviceDefault,
		QueueSize:            64,
		MaxInitRetries:       3,
		InitRetryDelay:       500 * time.Millisecond,
		InitBackoffFactor:    2.0,
		LeadInSilence:        200 * time.Millisecond,
		InputWarmupChunks:    3,
		HealthCheckInterval:  5 * time.Second,
		MaxConsecutiveErrors: 10,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audioio: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audioio: channels must be positive, got %d", c.Channels)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("audioio: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.BitDepth != 16 {
		return fmt.Errorf("audioio: only 16-bit audio is supported, got %d", c.BitDepth)
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("audioio: queue_size must be positive, got %d", c.QueueSize)
	}
	if c.MaxInitRetries < 0 {
		return fmt.Errorf("audioio: max_init_retries must not be negative, got %d", c.MaxInitRetries)
	}
	if c.InitBackoffFactor < 1 {
		return fmt.Errorf("audioio: init_backoff_factor must be >= 1, got %g", c.InitBackoffFactor)
	}
	if c.MaxConsecutiveErrors <= 0 {
		return fmt.Errorf("audioio: max_consecutive_errors must be positive, got %d", c.MaxConsecutiveErrors)
	}
	return nil
}

// ChunkDuration returns the play time of one capture chunk.
func (c *Config) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	frames := c.ChunkSize / max(c.Channels, 1)
	return time.Duration(frames) * time.Second / time.Duration(c.SampleRate)
}

package pipeline

import (
	"fmt"
	"time"
)

// Config holds orchestrator-level tunables. Per-component parameters
// live with their components (audioio.Config, vad.Config,
// wakeword.Config).
type Config struct {
	// WakeWordEnabled gates listening behind a wake word. When false,
	// or when the wake word component is degraded, the pipeline goes
	// straight to speech listening.
	WakeWordEnabled bool

	// AutoRestart resumes listening after the error cooldown. When
	// false the pipeline halts cleanly instead.
	AutoRestart bool

	// ConfirmationBeep plays a short cue when the wake word is heard.
	ConfirmationBeep bool

	// ReadTimeout bounds each wait on the capture queue so the loop
	// stays responsive to Stop.
	ReadTimeout time.Duration

	// ListenTimeout bounds LISTENING_SPEECH. Expiry forces the error
	// state. Zero disables the deadline.
	ListenTimeout time.Duration

	// ProcessingTimeout bounds PROCESSING (transcription plus agent).
	ProcessingTimeout time.Duration

	// ErrorCooldown is the pause in the error state before restarting
	// or halting.
	ErrorCooldown time.Duration

	// ShutdownTimeout bounds graceful Stop before cleanup is forced.
	ShutdownTimeout time.Duration

	// BeepFrequency and BeepDuration shape the confirmation cue.
	BeepFrequency float64
	BeepDuration  time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		WakeWordEnabled:   true,
		AutoRestart:       true,
		ConfirmationBeep:  true,
		ReadTimeout:       100 * time.Millisecond,
		ListenTimeout:     45 * time.Second,
		ProcessingTimeout: 15 * time.Second,
		ErrorCooldown:     2 * time.Second,
		ShutdownTimeout:   5 * time.Second,
		BeepFrequency:     880,
		BeepDuration:      120 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("pipeline: read_timeout must be positive, got %v", c.ReadTimeout)
	}
	if c.ListenTimeout < 0 {
		return fmt.Errorf("pipeline: listen_timeout must not be negative, got %v", c.ListenTimeout)
	}
	if c.ProcessingTimeout <= 0 {
		return fmt.Errorf("pipeline: processing_timeout must be positive, got %v", c.ProcessingTimeout)
	}
	if c.ErrorCooldown < 0 {
		return fmt.Errorf("pipeline: error_cooldown must not be negative, got %v", c.ErrorCooldown)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("pipeline: shutdown_timeout must be positive, got %v", c.ShutdownTimeout)
	}
	if c.ConfirmationBeep && (c.BeepFrequency <= 0 || c.BeepDuration <= 0) {
		return fmt.Errorf("pipeline: beep parameters must be positive when the beep is enabled")
	}
	return nil
}

// WithWakeWord returns a copy with wake-word gating set.
func (c Config) WithWakeWord(enabled bool) Config {
	c.WakeWordEnabled = enabled
	return c
}

// WithAutoRestart returns a copy with auto-restart set.
func (c Config) WithAutoRestart(enabled bool) Config {
	c.AutoRestart = enabled
	return c
}

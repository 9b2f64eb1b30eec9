package wakeword

import (
	"fmt"
	"time"
)

// Config holds detection parameters shared by all registered models.
type Config struct {
	// Sensitivity tunes how lenient matching is: 0 is strict, 1 accepts
	// anything. The detection threshold is 1 - Sensitivity.
	Sensitivity float64

	// Cooldown is the window after a detection during which no further
	// detections are reported, across every model in the set.
	Cooldown time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Sensitivity: 0.5,
		Cooldown:    2 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Sensitivity < 0 || c.Sensitivity > 1 {
		return fmt.Errorf("wakeword: sensitivity must be in [0,1], got %g", c.Sensitivity)
	}
	if c.Cooldown < 0 {
		return fmt.Errorf("wakeword: cooldown must not be negative, got %v", c.Cooldown)
	}
	return nil
}

// Threshold returns the score a model must exceed to count as a match.
func (c *Config) Threshold() float64 {
	return 1 - c.Sensitivity
}

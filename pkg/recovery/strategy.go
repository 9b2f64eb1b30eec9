package recovery

import (
	"fmt"
	"time"
)

// Action is what the recovery manager decides to do about a failure.
type Action int

const (
	// ActionRetry re-invokes the failed operation after a backoff delay.
	ActionRetry Action = iota

	// ActionRestart signals that the owning component should be torn
	// down and rebuilt.
	ActionRestart

	// ActionFallback gives up on the operation, marks the failure class
	// degraded, and lets the pipeline continue without it.
	ActionFallback

	// ActionAbort propagates a non-recoverable error.
	ActionAbort
)

// String returns the action name.
func (a Action) String() string {
	switch a {
	case ActionRetry:
		return "retry"
	case ActionRestart:
		return "restart"
	case ActionFallback:
		return "fallback"
	case ActionAbort:
		return "abort"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Strategy is the recovery policy for one failure class. The mutable
// counters belong to the Manager and are reset whenever an operation
// succeeds.
type Strategy struct {
	// MaxRetries is how many times the operation is re-invoked before
	// the fallback action applies.
	MaxRetries int

	// InitialDelay is the backoff before the first retry. The delay
	// grows by BackoffFactor per attempt, capped at MaxDelay.
	InitialDelay  time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration

	// FallbackAction is taken once retries are exhausted. ActionRetry
	// is not a valid fallback.
	FallbackAction Action

	retryCount   int
	currentDelay time.Duration
}

// Validate checks the strategy parameters.
func (s *Strategy) Validate() error {
	if s.MaxRetries < 0 {
		return fmt.Errorf("recovery: max_retries must not be negative, got %d", s.MaxRetries)
	}
	if s.InitialDelay < 0 {
		return fmt.Errorf("recovery: initial_delay must not be negative, got %v", s.InitialDelay)
	}
	if s.BackoffFactor < 1 {
		return fmt.Errorf("recovery: backoff_factor must be >= 1, got %g", s.BackoffFactor)
	}
	if s.MaxDelay < s.InitialDelay {
		return fmt.Errorf("recovery: max_delay %v is under initial_delay %v", s.MaxDelay, s.InitialDelay)
	}
	if s.FallbackAction == ActionRetry {
		return fmt.Errorf("recovery: fallback_action cannot be retry")
	}
	return nil
}

// reset returns the counters to their rest state after a success.
func (s *Strategy) reset() {
	s.retryCount = 0
	s.currentDelay = 0
}

// nextDelay advances and returns the backoff delay for the upcoming
// retry.
func (s *Strategy) nextDelay() time.Duration {
	if s.currentDelay == 0 {
		s.currentDelay = s.InitialDelay
	} else {
		s.currentDelay = time.Duration(float64(s.currentDelay) * s.BackoffFactor)
	}
	if s.currentDelay > s.MaxDelay {
		s.currentDelay = s.MaxDelay
	}
	return s.currentDelay
}

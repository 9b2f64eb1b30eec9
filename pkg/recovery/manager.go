package recovery

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// Failure classes with default strategies. Callers may register
// additional classes.
const (
	ClassAudioInit          = "audio_init"
	ClassAudioStream        = "audio_stream"
	ClassWakeWord           = "wake_word"
	ClassVAD                = "vad"
	ClassSTT                = "stt"
	ClassTTS                = "tts"
	ClassAgent              = "agent"
	ClassProviderConnection = "provider_connection"
)

// Observer is notified when a component enters or leaves degraded mode.
type Observer func(component string, entering bool)

// Manager holds per-class recovery strategies and the set of components
// currently running degraded.
type Manager struct {
	logger *slog.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error

	mu         sync.Mutex
	strategies map[string]*Strategy
	degraded   map[string]struct{}
	observer   Observer
}

// NewManager creates a Manager preloaded with default strategies for
// the standard failure classes.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		logger:     logger.With("component", "recovery"),
		sleep:      sleepCtx,
		strategies: make(map[string]*Strategy),
		degraded:   make(map[string]struct{}),
	}
	for class, s := range defaultStrategies() {
		m.strategies[class] = s
	}
	return m
}

func defaultStrategies() map[string]*Strategy {
	return map[string]*Strategy{
		ClassAudioInit: {
			MaxRetries:     3,
			InitialDelay:   500 * time.Millisecond,
			BackoffFactor:  2.0,
			MaxDelay:       5 * time.Second,
			FallbackAction: ActionAbort,
		},
		ClassAudioStream: {
			MaxRetries:     3,
			InitialDelay:   250 * time.Millisecond,
			BackoffFactor:  2.0,
			MaxDelay:       2 * time.Second,
			FallbackAction: ActionRestart,
		},
		ClassWakeWord: {
			MaxRetries:     2,
			InitialDelay:   500 * time.Millisecond,
			BackoffFactor:  2.0,
			MaxDelay:       2 * time.Second,
			FallbackAction: ActionFallback,
		},
		ClassVAD: {
			MaxRetries:     2,
			InitialDelay:   500 * time.Millisecond,
			BackoffFactor:  2.0,
			MaxDelay:       2 * time.Second,
			FallbackAction: ActionFallback,
		},
		ClassSTT: {
			MaxRetries:     2,
			InitialDelay:   time.Second,
			BackoffFactor:  2.0,
			MaxDelay:       5 * time.Second,
			FallbackAction: ActionRestart,
		},
		ClassTTS: {
			MaxRetries:     2,
			InitialDelay:   time.Second,
			BackoffFactor:  2.0,
			MaxDelay:       5 * time.Second,
			FallbackAction: ActionFallback,
		},
		ClassAgent: {
			MaxRetries:     2,
			InitialDelay:   time.Second,
			BackoffFactor:  2.0,
			MaxDelay:       10 * time.Second,
			FallbackAction: ActionFallback,
		},
		ClassProviderConnection: {
			MaxRetries:     5,
			InitialDelay:   time.Second,
			BackoffFactor:  2.0,
			MaxDelay:       30 * time.Second,
			FallbackAction: ActionRestart,
		},
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Register installs or replaces the strategy for a failure class.
func (m *Manager) Register(class string, s Strategy) error {
	if err := s.Validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s.reset()
	m.strategies[class] = &s
	return nil
}

// SetObserver installs the degraded-mode observer. Pass nil to remove.
func (m *Manager) SetObserver(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// AttemptRecovery retries op with the class's backoff schedule. It
// returns ActionRetry with a nil error when a retry succeeded. When
// retries are exhausted the strategy's fallback action applies:
// ActionFallback marks the class degraded and returns a nil error,
// ActionRestart returns a RecoverableError, ActionAbort an AbortError.
func (m *Manager) AttemptRecovery(ctx context.Context, class string, op func(context.Context) error) (Action, error) {
	m.mu.Lock()
	s, ok := m.strategies[class]
	m.mu.Unlock()
	if !ok {
		return ActionAbort, &AbortError{Class: class, Err: ErrUnknownFailureClass}
	}

	var lastErr error
	for {
		m.mu.Lock()
		s.retryCount++
		exhausted := s.retryCount > s.MaxRetries
		var delay time.Duration
		if !exhausted {
			delay = s.nextDelay()
		}
		attempt := s.retryCount
		m.mu.Unlock()

		if exhausted {
			break
		}

		m.logger.Warn("retrying after failure",
			"class", class,
			"attempt", attempt,
			"max_retries", s.MaxRetries,
			"delay", delay,
		)
		if err := m.sleep(ctx, delay); err != nil {
			return ActionAbort, &AbortError{Class: class, Err: err}
		}

		err := op(ctx)
		if err == nil {
			m.mu.Lock()
			s.reset()
			m.mu.Unlock()
			m.logger.Info("recovered", "class", class, "attempt", attempt)
			return ActionRetry, nil
		}
		lastErr = err
	}

	m.mu.Lock()
	action := s.FallbackAction
	s.reset()
	m.mu.Unlock()

	switch action {
	case ActionFallback:
		m.logger.Warn("retries exhausted, degrading", "class", class, "error", lastErr)
		m.EnterDegradedMode(class)
		return ActionFallback, nil
	case ActionRestart:
		m.logger.Warn("retries exhausted, restart required", "class", class, "error", lastErr)
		return ActionRestart, &RecoverableError{Class: class, Err: lastErr}
	default:
		m.logger.Error("retries exhausted, aborting", "class", class, "error", lastErr)
		return ActionAbort, &AbortError{Class: class, Err: lastErr}
	}
}

// WithRecovery runs op once and, on failure, hands it to
// AttemptRecovery. The fallback value is returned when the outcome is
// ActionFallback; restart and abort outcomes surface as errors.
func WithRecovery[T any](ctx context.Context, m *Manager, class string, op func(context.Context) (T, error), fallback T) (T, error) {
	result, err := op(ctx)
	if err == nil {
		return result, nil
	}

	wrapped := func(ctx context.Context) error {
		var opErr error
		result, opErr = op(ctx)
		return opErr
	}

	action, recErr := m.AttemptRecovery(ctx, class, wrapped)
	switch action {
	case ActionRetry:
		return result, nil
	case ActionFallback:
		return fallback, nil
	default:
		var zero T
		return zero, recErr
	}
}

// EnterDegradedMode marks a component degraded. Re-entering an already
// degraded component is a no-op with no duplicate notification.
func (m *Manager) EnterDegradedMode(component string) {
	m.mu.Lock()
	if _, present := m.degraded[component]; present {
		m.mu.Unlock()
		return
	}
	m.degraded[component] = struct{}{}
	observer := m.observer
	m.mu.Unlock()

	m.logger.Warn("entering degraded mode", "degraded_component", component)
	if observer != nil {
		observer(component, true)
	}
}

// ExitDegradedMode clears a component's degraded flag. Exiting an
// already clear component is a no-op.
func (m *Manager) ExitDegradedMode(component string) {
	m.mu.Lock()
	if _, present := m.degraded[component]; !present {
		m.mu.Unlock()
		return
	}
	delete(m.degraded, component)
	observer := m.observer
	m.mu.Unlock()

	m.logger.Info("leaving degraded mode", "degraded_component", component)
	if observer != nil {
		observer(component, false)
	}
}

// IsDegraded reports whether a component is currently degraded.
func (m *Manager) IsDegraded(component string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, present := m.degraded[component]
	return present
}

// DegradedComponents returns the sorted degraded set.
func (m *Manager) DegradedComponents() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.degraded))
	for c := range m.degraded {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

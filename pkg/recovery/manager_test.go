package recovery

import (
	"context"
	"errors"
	"testing"
	"time"
)

// newTestManager returns a manager whose sleeps are recorded instead of
// slept.
func newTestManager(t *testing.T) (*Manager, *[]time.Duration) {
	t.Helper()
	m := NewManager(nil)
	var slept []time.Duration
	m.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return m, &slept
}

func TestExhaustionWithFallbackDegradesOnce(t *testing.T) {
	m, slept := newTestManager(t)
	if err := m.Register("tts", Strategy{
		MaxRetries:     2,
		InitialDelay:   100 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       5 * time.Second,
		FallbackAction: ActionFallback,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	notifications := 0
	m.SetObserver(func(component string, entering bool) {
		if component == "tts" && entering {
			notifications++
		}
	})

	attempts := 0
	action, err := m.AttemptRecovery(context.Background(), "tts", func(context.Context) error {
		attempts++
		return errors.New("synthesis failed")
	})

	if action != ActionFallback {
		t.Errorf("expected fallback action, got %v", action)
	}
	if err != nil {
		t.Errorf("fallback outcome must not be an error, got %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected exactly 2 retry attempts, got %d", attempts)
	}
	if len(*slept) != 2 {
		t.Fatalf("expected 2 backoff sleeps, got %d", len(*slept))
	}
	if (*slept)[0] != 100*time.Millisecond || (*slept)[1] != 200*time.Millisecond {
		t.Errorf("expected growing backoff [100ms 200ms], got %v", *slept)
	}
	if !m.IsDegraded("tts") {
		t.Error("expected tts in the degraded set")
	}
	if notifications != 1 {
		t.Errorf("expected exactly one degraded notification, got %d", notifications)
	}
}

func TestRecoverySuccessResetsCounters(t *testing.T) {
	m, slept := newTestManager(t)
	if err := m.Register("stt", Strategy{
		MaxRetries:     3,
		InitialDelay:   100 * time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		FallbackAction: ActionRestart,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Fails twice, then recovers.
	failures := 2
	op := func(context.Context) error {
		if failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	}

	action, err := m.AttemptRecovery(context.Background(), "stt", op)
	if action != ActionRetry || err != nil {
		t.Fatalf("expected successful retry, got (%v, %v)", action, err)
	}

	// Counters were reset: a fresh failure starts from the initial
	// delay again.
	*slept = nil
	failures = 1
	if action, err := m.AttemptRecovery(context.Background(), "stt", op); action != ActionRetry || err != nil {
		t.Fatalf("expected successful retry, got (%v, %v)", action, err)
	}
	if len(*slept) == 0 || (*slept)[0] != 100*time.Millisecond {
		t.Errorf("expected backoff to restart at 100ms, got %v", *slept)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	m, slept := newTestManager(t)
	if err := m.Register("provider_connection", Strategy{
		MaxRetries:     5,
		InitialDelay:   time.Second,
		BackoffFactor:  3.0,
		MaxDelay:       4 * time.Second,
		FallbackAction: ActionAbort,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	m.AttemptRecovery(context.Background(), "provider_connection", func(context.Context) error {
		return errors.New("refused")
	})

	want := []time.Duration{time.Second, 3 * time.Second, 4 * time.Second, 4 * time.Second, 4 * time.Second}
	if len(*slept) != len(want) {
		t.Fatalf("expected %d sleeps, got %d", len(want), len(*slept))
	}
	for i, d := range want {
		if (*slept)[i] != d {
			t.Errorf("sleep %d: expected %v, got %v", i, d, (*slept)[i])
		}
	}
}

func TestRestartOutcomeIsRecoverable(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Register("audio_stream", Strategy{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		FallbackAction: ActionRestart,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	streamErr := errors.New("stream died")
	action, err := m.AttemptRecovery(context.Background(), "audio_stream", func(context.Context) error {
		return streamErr
	})

	if action != ActionRestart {
		t.Errorf("expected restart action, got %v", action)
	}
	var recErr *RecoverableError
	if !errors.As(err, &recErr) {
		t.Fatalf("expected RecoverableError, got %T", err)
	}
	if !errors.Is(err, streamErr) {
		t.Error("expected the operation error to be wrapped")
	}
	if m.IsDegraded("audio_stream") {
		t.Error("restart must not enter degraded mode")
	}
}

func TestAbortOutcome(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Register("audio_init", Strategy{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		FallbackAction: ActionAbort,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	action, err := m.AttemptRecovery(context.Background(), "audio_init", func(context.Context) error {
		return errors.New("no devices")
	})
	if action != ActionAbort {
		t.Errorf("expected abort action, got %v", action)
	}
	var abortErr *AbortError
	if !errors.As(err, &abortErr) {
		t.Errorf("expected AbortError, got %T", err)
	}
}

func TestUnknownFailureClassAborts(t *testing.T) {
	m, _ := newTestManager(t)
	action, err := m.AttemptRecovery(context.Background(), "no_such_class", func(context.Context) error {
		return nil
	})
	if action != ActionAbort {
		t.Errorf("expected abort, got %v", action)
	}
	if !errors.Is(err, ErrUnknownFailureClass) {
		t.Errorf("expected ErrUnknownFailureClass, got %v", err)
	}
}

func TestCancellationStopsRetrying(t *testing.T) {
	m := NewManager(nil)
	if err := m.Register("agent", Strategy{
		MaxRetries:     10,
		InitialDelay:   10 * time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       time.Minute,
		FallbackAction: ActionFallback,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	action, err := m.AttemptRecovery(ctx, "agent", func(context.Context) error {
		return errors.New("down")
	})
	if action != ActionAbort {
		t.Errorf("expected abort on cancellation, got %v", action)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestWithRecoveryReturnsFallbackValue(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Register("tts", Strategy{
		MaxRetries:     1,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		FallbackAction: ActionFallback,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := WithRecovery(context.Background(), m, "tts", func(context.Context) ([]byte, error) {
		return nil, errors.New("synthesis failed")
	}, []byte("beep"))
	if err != nil {
		t.Fatalf("expected fallback value, got error %v", err)
	}
	if string(got) != "beep" {
		t.Errorf("expected fallback value, got %q", got)
	}
}

func TestWithRecoveryReturnsResultOnRetrySuccess(t *testing.T) {
	m, _ := newTestManager(t)
	if err := m.Register("stt", Strategy{
		MaxRetries:     2,
		InitialDelay:   time.Millisecond,
		BackoffFactor:  2.0,
		MaxDelay:       time.Second,
		FallbackAction: ActionRestart,
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	calls := 0
	got, err := WithRecovery(context.Background(), m, "stt", func(context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", errors.New("transient")
		}
		return "hello world", nil
	}, "")
	if err != nil {
		t.Fatalf("WithRecovery: %v", err)
	}
	if got != "hello world" {
		t.Errorf("expected retried result, got %q", got)
	}
}

func TestDegradedModeRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)

	var events []bool
	m.SetObserver(func(component string, entering bool) {
		if component == "wake_word" {
			events = append(events, entering)
		}
	})

	m.EnterDegradedMode("wake_word")
	m.EnterDegradedMode("wake_word") // no-op
	if len(events) != 1 || !events[0] {
		t.Fatalf("expected one enter notification, got %v", events)
	}
	if !m.IsDegraded("wake_word") {
		t.Error("expected wake_word degraded")
	}

	m.ExitDegradedMode("wake_word")
	m.ExitDegradedMode("wake_word") // no-op
	if len(events) != 2 || events[1] {
		t.Fatalf("expected one exit notification, got %v", events)
	}
	if m.IsDegraded("wake_word") {
		t.Error("expected wake_word clear")
	}
}

func TestDegradedComponentsSorted(t *testing.T) {
	m, _ := newTestManager(t)
	m.EnterDegradedMode("wake_word")
	m.EnterDegradedMode("tts")

	got := m.DegradedComponents()
	if len(got) != 2 || got[0] != "tts" || got[1] != "wake_word" {
		t.Errorf("expected sorted [tts wake_word], got %v", got)
	}
}

func TestRegisterRejectsInvalidStrategy(t *testing.T) {
	m, _ := newTestManager(t)
	err := m.Register("bad", Strategy{
		MaxRetries:     1,
		InitialDelay:   time.Second,
		BackoffFactor:  2.0,
		MaxDelay:       5 * time.Second,
		FallbackAction: ActionRetry,
	})
	if err == nil {
		t.Error("expected retry to be rejected as a fallback action")
	}
}

package wakeword

import (
	"context"
	"testing"
	"time"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// stubScorer returns a fixed score and records calls.
type stubScorer struct {
	name   string
	score  float64
	err    error
	calls  int
	resets int
}

func (s *stubScorer) Name() string { return s.name }
func (s *stubScorer) Score([]int16) (float64, error) {
	s.calls++
	return s.score, s.err
}
func (s *stubScorer) Reset() { s.resets++ }

// fakeClock advances only when told to.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newClockedDetector(t *testing.T, cfg Config, scorers ...Scorer) (*Detector, *fakeClock) {
	t.Helper()
	d, err := NewDetector(cfg, scorers, nil)
	if err != nil {
		t.Fatalf("NewDetector: %v", err)
	}
	clock := &fakeClock{t: time.Unix(1000, 0)}
	d.now = clock.now
	return d, clock
}

func testChunk() audioio.Chunk {
	return audioio.Chunk{Samples: make([]int16, 512), SampleRate: 16000, Channels: 1}
}

func TestNewDetectorRequiresModels(t *testing.T) {
	if _, err := NewDetector(DefaultConfig(), nil, nil); err != ErrNoModels {
		t.Errorf("expected ErrNoModels, got %v", err)
	}
}

func TestThresholdFromSensitivity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.3
	if got := cfg.Threshold(); got != 0.7 {
		t.Errorf("expected threshold 0.7, got %g", got)
	}
}

func TestProcessAudioMatchesAboveThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5 // threshold 0.5

	d, _ := newClockedDetector(t, cfg, &stubScorer{name: "hey_luma", score: 0.8})
	model, ok := d.ProcessAudio(testChunk())
	if !ok || model != "hey_luma" {
		t.Errorf("expected match on hey_luma, got (%q, %v)", model, ok)
	}

	d2, _ := newClockedDetector(t, cfg, &stubScorer{name: "hey_luma", score: 0.4})
	if _, ok := d2.ProcessAudio(testChunk()); ok {
		t.Error("expected no match below threshold")
	}
}

func TestFirstRegisteredModelWinsTies(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5

	primary := &stubScorer{name: "hey_luma", score: 0.9}
	persona := &stubScorer{name: "hey_nova", score: 0.9}
	d, _ := newClockedDetector(t, cfg, primary, persona)

	model, ok := d.ProcessAudio(testChunk())
	if !ok || model != "hey_luma" {
		t.Errorf("expected primary model to win, got (%q, %v)", model, ok)
	}
	if persona.calls != 0 {
		t.Error("scoring must stop at the first match")
	}
}

func TestCooldownSuppressesSecondDetection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5
	cfg.Cooldown = 2 * time.Second

	scorer := &stubScorer{name: "hey_luma", score: 0.9}
	d, clock := newClockedDetector(t, cfg, scorer)

	// Two matches 0.5s apart yield one detection.
	if _, ok := d.ProcessAudio(testChunk()); !ok {
		t.Fatal("expected first detection")
	}
	clock.advance(500 * time.Millisecond)
	callsBefore := scorer.calls
	if _, ok := d.ProcessAudio(testChunk()); ok {
		t.Error("expected cooldown to suppress the second detection")
	}
	if scorer.calls != callsBefore {
		t.Error("no scoring may happen during cooldown")
	}

	// 2.5s after the first, detection works again.
	clock.advance(2 * time.Second)
	if _, ok := d.ProcessAudio(testChunk()); !ok {
		t.Error("expected detection after cooldown expired")
	}
	if got := d.Detections(); got != 2 {
		t.Errorf("expected 2 detections total, got %d", got)
	}
}

func TestFailingModelIsSkipped(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5

	broken := &stubScorer{name: "hey_luma", score: 0.9, err: context.DeadlineExceeded}
	backup := &stubScorer{name: "hey_nova", score: 0.9}
	d, _ := newClockedDetector(t, cfg, broken, backup)

	model, ok := d.ProcessAudio(testChunk())
	if !ok || model != "hey_nova" {
		t.Errorf("expected fallthrough to the next model, got (%q, %v)", model, ok)
	}
}

func TestListenDispatchesCallback(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5
	cfg.Cooldown = time.Hour // one detection only

	d, _ := newClockedDetector(t, cfg, &stubScorer{name: "hey_luma", score: 0.9})

	in := make(chan audioio.Chunk, 3)
	for i := 0; i < 3; i++ {
		in <- testChunk()
	}
	close(in)

	woke := make(chan string, 1)
	d.Listen(context.Background(), in, func(model string) {
		woke <- model
	})

	select {
	case model := <-woke:
		if model != "hey_luma" {
			t.Errorf("expected hey_luma, got %q", model)
		}
	case <-time.After(time.Second):
		t.Fatal("wake callback never fired")
	}
}

func TestListenStopsOnCancel(t *testing.T) {
	d, _ := newClockedDetector(t, DefaultConfig(), &stubScorer{name: "hey_luma"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		d.Listen(ctx, make(chan audioio.Chunk), nil)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen did not return after cancellation")
	}
}

func TestResetPreservesCooldownWhenAsked(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Sensitivity = 0.5
	cfg.Cooldown = 2 * time.Second

	scorer := &stubScorer{name: "hey_luma", score: 0.9}
	d, clock := newClockedDetector(t, cfg, scorer)

	if _, ok := d.ProcessAudio(testChunk()); !ok {
		t.Fatal("expected detection")
	}

	d.Reset(true)
	if scorer.resets != 1 {
		t.Errorf("expected model reset, got %d", scorer.resets)
	}
	clock.advance(500 * time.Millisecond)
	if _, ok := d.ProcessAudio(testChunk()); ok {
		t.Error("preserved cooldown must still suppress detection")
	}

	d.Reset(false)
	if _, ok := d.ProcessAudio(testChunk()); !ok {
		t.Error("full reset must clear the cooldown")
	}
}

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBufferDuration is the playback ring buffer size. Small enough for
// responsive interruption, large enough to avoid glitches.
const otoBufferDuration = 100 * time.Millisecond

// OtoBackend plays audio through the system mixer via oto. The library
// always addresses the default output device; device indices are
// validated by DeviceManager but not used for routing.
type OtoBackend struct {
	logger *slog.Logger

	mu      sync.Mutex
	ctx     *oto.Context
	ctxRate int
}

// NewOtoBackend creates an uninitialized oto backend.
func NewOtoBackend(logger *slog.Logger) *OtoBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &OtoBackend{logger: logger}
}

// Init is a no-op: the oto context can only be created once per process
// and needs the stream sample rate, so it is opened lazily on the first
// OpenPlayback call.
func (b *OtoBackend) Init(_ context.Context) error {
	return nil
}

// Name returns "oto".
func (b *OtoBackend) Name() string {
	return "oto"
}

// Close releases the backend. The underlying oto context cannot be torn
// down; open streams are expected to be closed by their owners.
func (b *OtoBackend) Close() error {
	return nil
}

// OpenPlayback opens a playback stream at cfg.SampleRate.
func (b *OtoBackend) OpenPlayback(cfg Config, _ int) (PlaybackStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		opts := &oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   otoBufferDuration,
		}
		ctx, ready, err := oto.NewContext(opts)
		if err != nil {
			return nil, fmt.Errorf("audioio: init oto context: %w", err)
		}
		<-ready
		b.ctx = ctx
		b.ctxRate = cfg.SampleRate
		b.logger.Info("playback context initialized",
			"backend", b.Name(),
			"sample_rate", cfg.SampleRate,
		)
	}

	if cfg.SampleRate != b.ctxRate {
		return nil, fmt.Errorf("audioio: playback context is fixed at %d Hz, got %d", b.ctxRate, cfg.SampleRate)
	}

	s := &otoStream{rate: cfg.SampleRate, channels: cfg.Channels}
	s.cond = sync.NewCond(&s.mu)
	s.player = b.ctx.NewPlayer(s)
	s.player.Play()
	return s, nil
}

// otoStream buffers PCM16 audio and feeds it to the oto player, which
// pulls through Read on its own goroutine.
type otoStream struct {
	player   *oto.Player
	rate     int
	channels int

	mu     sync.Mutex
	cond   *sync.Cond
	buf    []byte
	closed bool
}

// Write queues samples for playback.
func (s *otoStream) Write(ctx context.Context, samples []int16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.buf = append(s.buf, SamplesToBytes(samples)...)
	s.cond.Signal()
	return nil
}

// Read implements io.Reader for the oto player. When the queue is empty
// it returns silence so the device keeps running without clicks.
func (s *otoStream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buf) == 0 {
		for i := range p {
			p[i] = 0
		}
		return len(p), nil
	}

	n := copy(p, s.buf)
	s.buf = s.buf[n:]
	if len(s.buf) == 0 {
		s.cond.Broadcast()
	}
	return n, nil
}

// Drain blocks until all queued audio has been handed to the device,
// then waits out the device buffer.
func (s *otoStream) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.mu.Lock()
		for len(s.buf) > 0 && !s.closed {
			s.cond.Wait()
		}
		s.mu.Unlock()
		close(done)
	}()

	select {
	case <-ctx.Done():
		// Wake the waiter so the goroutine exits.
		s.mu.Lock()
		s.cond.Broadcast()
		s.mu.Unlock()
		return ctx.Err()
	case <-done:
	}

	// The oto ring buffer may still hold up to otoBufferDuration of
	// audio after our queue empties.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(otoBufferDuration):
		return nil
	}
}

// Close stops playback and discards queued audio.
func (s *otoStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.buf = nil
	s.cond.Broadcast()
	s.mu.Unlock()

	return s.player.Close()
}

var _ PlaybackBackend = (*OtoBackend)(nil)

package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
)

// Manager owns exactly one active capture stream and one active
// playback stream, bridging the hardware's push-based capture callback
// into a pull-based interface over a bounded queue.
type Manager struct {
	cfg      Config
	devices  *DeviceManager
	capture  CaptureBackend
	playback PlaybackBackend
	logger   *slog.Logger

	mu        sync.Mutex
	recording bool
	stream    CaptureStream
	queue     chan Chunk
	recDone   chan struct{}
	closed    bool

	// playMu serializes playback: one active output stream at a time.
	playMu sync.Mutex

	warmupLeft  atomic.Int32
	consecErrs  atomic.Int32
	captured    atomic.Int64
	dropped     atomic.Int64
	lastCapture atomic.Int64 // unix nanos of last queued chunk
}

// ManagerStats is a snapshot of capture statistics.
type ManagerStats struct {
	ChunksCaptured    int64 `json:"chunks_captured"`
	ChunksDropped     int64 `json:"chunks_dropped"`
	ConsecutiveErrors int   `json:"consecutive_errors"`
	Recording         bool  `json:"recording"`
}

// NewManager creates a Manager. Call Init before starting streams.
func NewManager(cfg Config, devices *DeviceManager, capture CaptureBackend, playback PlaybackBackend, logger *slog.Logger) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:      cfg,
		devices:  devices,
		capture:  capture,
		playback: playback,
		logger:   logger.With("component", "audioio"),
	}, nil
}

// Config returns the manager's audio configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// Init opens the audio subsystem, retrying with exponential backoff up
// to MaxInitRetries times. Exhausting all retries is fatal for this
// component: the returned error wraps ErrInitFailed.
func (m *Manager) Init(ctx context.Context) error {
	backoff := retry.WithMaxRetries(
		uint64(m.cfg.MaxInitRetries),
		factorBackoff(m.cfg.InitRetryDelay, m.cfg.InitBackoffFactor),
	)

	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := m.capture.Init(ctx); err != nil {
			m.logger.Warn("audio subsystem init failed",
				"attempt", attempt,
				"backend", m.capture.Name(),
				"error", err,
			)
			return retry.RetryableError(err)
		}
		if err := m.playback.Init(ctx); err != nil {
			m.logger.Warn("audio subsystem init failed",
				"attempt", attempt,
				"backend", m.playback.Name(),
				"error", err,
			)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w after %d attempts: %v", ErrInitFailed, attempt, err)
	}

	m.logger.Info("audio subsystem ready",
		"capture", m.capture.Name(),
		"playback", m.playback.Name(),
		"sample_rate", m.cfg.SampleRate,
		"chunk_size", m.cfg.ChunkSize,
	)
	return nil
}

// factorBackoff grows the delay by factor on each attempt.
func factorBackoff(initial time.Duration, factor float64) retry.Backoff {
	delay := initial
	return retry.BackoffFunc(func() (time.Duration, bool) {
		d := delay
		delay = time.Duration(float64(delay) * factor)
		return d, false
	})
}

// StartRecording validates the input device (falling back to the host
// default if the configured one is unusable), clears any stale queued
// audio, and opens a callback-driven capture stream. The first
// InputWarmupChunks chunks are discarded so the microphone can settle.
// Calling StartRecording while already recording is a no-op.
func (m *Manager) StartRecording(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if m.recording {
		m.logger.Warn("start_recording called while already recording")
		return nil
	}

	device := m.cfg.InputDevice
	if !m.devices.ValidateDevice(device, Input, m.cfg.SampleRate) {
		fallback, ok := m.devices.FallbackDevice(Input)
		if !ok {
			return ErrNoInputDevice
		}
		m.logger.Warn("input device unusable, using fallback",
			"configured", device,
			"fallback", fallback,
		)
		device = fallback
	}

	// A fresh queue discards anything captured before this call.
	queue := make(chan Chunk, m.cfg.QueueSize)
	m.queue = queue
	m.recDone = make(chan struct{})
	m.warmupLeft.Store(int32(m.cfg.InputWarmupChunks))
	m.consecErrs.Store(0)
	m.lastCapture.Store(time.Now().UnixNano())

	stream, err := m.capture.OpenCapture(m.cfg, device, func(samples []int16, cbErr error) {
		m.onCapture(queue, samples, cbErr)
	})
	if err != nil {
		return &DeviceError{Index: device, Op: "open capture", Err: err}
	}

	m.stream = stream
	m.recording = true

	m.logger.Info("recording started",
		"device", device,
		"warmup_chunks", m.cfg.InputWarmupChunks,
	)
	return nil
}

// onCapture runs on the hardware callback thread. It must never block:
// when the queue is full the frame is dropped and counted.
func (m *Manager) onCapture(queue chan Chunk, samples []int16, cbErr error) {
	if cbErr != nil {
		n := m.consecErrs.Add(1)
		if int(n) == m.cfg.MaxConsecutiveErrors {
			m.logger.Error("capture error threshold reached",
				"consecutive_errors", n,
				"error", cbErr,
			)
		}
		return
	}
	m.consecErrs.Store(0)

	if m.warmupLeft.Load() > 0 {
		m.warmupLeft.Add(-1)
		return
	}

	chunk := Chunk{
		Samples:    samples,
		SampleRate: m.cfg.SampleRate,
		Channels:   m.cfg.Channels,
	}
	select {
	case queue <- chunk:
		m.captured.Add(1)
		m.lastCapture.Store(time.Now().UnixNano())
	default:
		m.dropped.Add(1)
	}
}

// StopRecording closes the capture stream. Safe to call when not
// recording.
func (m *Manager) StopRecording() error {
	m.mu.Lock()
	if !m.recording {
		m.mu.Unlock()
		return nil
	}
	stream := m.stream
	done := m.recDone
	m.recording = false
	m.stream = nil
	m.mu.Unlock()

	err := stream.Stop()
	close(done)

	m.logger.Info("recording stopped",
		"captured", m.captured.Load(),
		"dropped", m.dropped.Load(),
	)
	return err
}

// ReadAudio pulls one chunk from the capture queue, waiting up to
// timeout. Returns ok=false on timeout, cancellation, or when recording
// has stopped and the queue is drained. Timeouts are not errors.
func (m *Manager) ReadAudio(ctx context.Context, timeout time.Duration) (Chunk, bool) {
	m.mu.Lock()
	queue, done := m.queue, m.recDone
	m.mu.Unlock()

	if queue == nil {
		return Chunk{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case c := <-queue:
		return c, true
	case <-done:
		// Drain whatever was queued before the stop.
		select {
		case c := <-queue:
			return c, true
		default:
			return Chunk{}, false
		}
	case <-ctx.Done():
		return Chunk{}, false
	case <-timer.C:
		return Chunk{}, false
	}
}

// ReadStream returns a channel of captured chunks in capture order.
// The channel closes when recording stops or ctx is cancelled; the
// sequence is finite and not restartable. A new recording session
// requires a new ReadStream call.
func (m *Manager) ReadStream(ctx context.Context) <-chan Chunk {
	m.mu.Lock()
	queue, done := m.queue, m.recDone
	m.mu.Unlock()

	out := make(chan Chunk)
	go func() {
		defer close(out)
		if queue == nil {
			return
		}
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				// Drain the remainder, then end the stream.
				for {
					select {
					case c := <-queue:
						select {
						case out <- c:
						case <-ctx.Done():
							return
						}
					default:
						return
					}
				}
			case c := <-queue:
				// A dequeued chunk is committed: delivery must not
				// race the stop signal or audio at the tail of a
				// recording is lost.
				select {
				case out <- c:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// PlayAudio plays a PCM16 buffer recorded at the given sample rate,
// resampling to the device rate if needed. It blocks until playback
// completes.
func (m *Manager) PlayAudio(ctx context.Context, pcm []byte, sampleRate int) error {
	in := make(chan Chunk, 1)
	var c Chunk
	c.FromBytes(pcm, sampleRate, m.cfg.Channels)
	in <- c
	close(in)
	return m.PlayStream(ctx, in, nil)
}

// PlayStream opens an output stream, writes a burst of lead-in silence
// to suppress device-engage clicks, then plays chunks as they arrive.
// If amplitude is non-nil it receives the normalized RMS (0..1) of each
// chunk before it is written, and zero once playback finishes or fails.
func (m *Manager) PlayStream(ctx context.Context, in <-chan Chunk, amplitude func(float64)) error {
	m.playMu.Lock()
	defer m.playMu.Unlock()

	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}

	device := m.cfg.OutputDevice
	if !m.devices.ValidateDevice(device, Output, m.cfg.SampleRate) {
		fallback, ok := m.devices.FallbackDevice(Output)
		if !ok {
			return ErrNoOutputDevice
		}
		m.logger.Warn("output device unusable, using fallback",
			"configured", device,
			"fallback", fallback,
		)
		device = fallback
	}

	stream, err := m.playback.OpenPlayback(m.cfg, device)
	if err != nil {
		return &DeviceError{Index: device, Op: "open playback", Err: err}
	}
	defer stream.Close()

	if amplitude != nil {
		defer amplitude(0)
	}

	leadFrames := int(float64(m.cfg.SampleRate) * m.cfg.LeadInSilence.Seconds())
	if leadFrames > 0 {
		silence := make([]int16, leadFrames*m.cfg.Channels)
		if err := stream.Write(ctx, silence); err != nil {
			return fmt.Errorf("audioio: write lead-in: %w", err)
		}
	}

	for chunk := range in {
		samples := chunk.Samples
		if chunk.SampleRate != 0 && chunk.SampleRate != m.cfg.SampleRate {
			samples = Resample(samples, chunk.SampleRate, m.cfg.SampleRate)
		}
		if amplitude != nil {
			amplitude(chunk.RMS() / 32768.0)
		}
		if err := stream.Write(ctx, samples); err != nil {
			return fmt.Errorf("audioio: write playback: %w", err)
		}
	}

	return stream.Drain(ctx)
}

// CheckHealth reports stream health: healthy iff not recording, or the
// last successful capture is fresh and the consecutive error count is
// under the limit.
func (m *Manager) CheckHealth() bool {
	m.mu.Lock()
	recording := m.recording
	m.mu.Unlock()

	if !recording {
		return true
	}

	last := time.Unix(0, m.lastCapture.Load())
	if time.Since(last) >= m.cfg.HealthCheckInterval {
		return false
	}
	return int(m.consecErrs.Load()) < m.cfg.MaxConsecutiveErrors
}

// Stats returns a snapshot of capture statistics.
func (m *Manager) Stats() ManagerStats {
	m.mu.Lock()
	recording := m.recording
	m.mu.Unlock()

	return ManagerStats{
		ChunksCaptured:    m.captured.Load(),
		ChunksDropped:     m.dropped.Load(),
		ConsecutiveErrors: int(m.consecErrs.Load()),
		Recording:         recording,
	}
}

// Close stops any active recording and releases both backends. The
// manager cannot be reused after Close.
func (m *Manager) Close() error {
	m.StopRecording()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	cerr := m.capture.Close()
	perr := m.playback.Close()
	if cerr != nil {
		return cerr
	}
	return perr
}

package audioio

import (
	"context"
	"sync"
	"sync/atomic"
)

// MockBackend implements CaptureBackend, PlaybackBackend, and Enumerator
// in memory for tests and CI machines without audio hardware.
//
// Captured audio is pushed by the test through Push/PushError, standing
// in for the hardware callback thread. Played audio is recorded and can
// be inspected.
type MockBackend struct {
	// InitErr, if set, is returned by Init until InitFailures reaches
	// zero. Used to exercise init retry.
	InitErr      error
	InitFailures int32

	mu       sync.Mutex
	devices  map[Direction][]Device
	capture  *mockCaptureStream
	played   [][]int16
	playOpen bool

	initCalls atomic.Int32
}

// NewMockBackend creates a mock backend with one default device in each
// direction.
func NewMockBackend() *MockBackend {
	return &MockBackend{
		devices: map[Direction][]Device{
			Input: {
				{Index: 0, Name: "Mock Microphone", InputChannels: 1, DefaultSampleRate: 16000, Default: true},
			},
			Output: {
				{Index: 0, Name: "Mock Speaker", OutputChannels: 2, DefaultSampleRate: 48000, Default: true},
			},
		},
	}
}

// SetDevices replaces the enumeration result for a direction.
func (b *MockBackend) SetDevices(dir Direction, devices []Device) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.devices[dir] = devices
}

// Devices returns the configured device list.
func (b *MockBackend) Devices(dir Direction) ([]Device, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.devices[dir], nil
}

// Init counts calls and fails while InitFailures is positive.
func (b *MockBackend) Init(_ context.Context) error {
	b.initCalls.Add(1)
	if b.InitErr != nil && atomic.AddInt32(&b.InitFailures, -1) >= 0 {
		return b.InitErr
	}
	return nil
}

// InitCalls returns how many times Init was invoked.
func (b *MockBackend) InitCalls() int {
	return int(b.initCalls.Load())
}

// Name returns "mock".
func (b *MockBackend) Name() string {
	return "mock"
}

// Close is a no-op.
func (b *MockBackend) Close() error {
	return nil
}

// OpenCapture opens a mock capture stream fed through Push.
func (b *MockBackend) OpenCapture(_ Config, _ int, cb CaptureCallback) (CaptureStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &mockCaptureStream{cb: cb}
	b.capture = s
	return s, nil
}

// Push delivers samples to the open capture stream as if captured by
// hardware. Returns false if no stream is open.
func (b *MockBackend) Push(samples []int16) bool {
	b.mu.Lock()
	s := b.capture
	b.mu.Unlock()
	if s == nil {
		return false
	}
	return s.deliver(samples, nil)
}

// PushError delivers a flagged frame (device status error).
func (b *MockBackend) PushError(err error) bool {
	b.mu.Lock()
	s := b.capture
	b.mu.Unlock()
	if s == nil {
		return false
	}
	return s.deliver(nil, err)
}

// OpenPlayback opens a mock playback stream that records written audio.
func (b *MockBackend) OpenPlayback(_ Config, _ int) (PlaybackStream, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.playOpen = true
	return &mockPlaybackStream{backend: b}, nil
}

// Played returns all sample slices written to playback streams, in
// order.
func (b *MockBackend) Played() [][]int16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([][]int16, len(b.played))
	copy(out, b.played)
	return out
}

// PlaybackOpen reports whether a playback stream is currently open.
func (b *MockBackend) PlaybackOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.playOpen
}

type mockCaptureStream struct {
	mu      sync.Mutex
	cb      CaptureCallback
	stopped bool
}

func (s *mockCaptureStream) deliver(samples []int16, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return false
	}
	s.cb(samples, err)
	return true
}

func (s *mockCaptureStream) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	return nil
}

type mockPlaybackStream struct {
	backend *MockBackend
	closed  bool
}

func (s *mockPlaybackStream) Write(ctx context.Context, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cp := make([]int16, len(samples))
	copy(cp, samples)

	s.backend.mu.Lock()
	s.backend.played = append(s.backend.played, cp)
	s.backend.mu.Unlock()
	return nil
}

func (s *mockPlaybackStream) Drain(ctx context.Context) error {
	return ctx.Err()
}

func (s *mockPlaybackStream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true

	s.backend.mu.Lock()
	s.backend.playOpen = false
	s.backend.mu.Unlock()
	return nil
}

// Interface checks.
var (
	_ CaptureBackend  = (*MockBackend)(nil)
	_ PlaybackBackend = (*MockBackend)(nil)
	_ Enumerator      = (*MockBackend)(nil)
)

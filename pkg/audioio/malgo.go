package audioio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoBackend provides device enumeration and audio capture through
// miniaudio. One backend owns one malgo context; streams share it.
type MalgoBackend struct {
	logger *slog.Logger

	mu  sync.Mutex
	ctx *malgo.AllocatedContext
}

// NewMalgoBackend creates an uninitialized malgo backend. Call Init
// (directly or through Manager initialization) before use.
func NewMalgoBackend(logger *slog.Logger) *MalgoBackend {
	if logger == nil {
		logger = slog.Default()
	}
	return &MalgoBackend{logger: logger}
}

// Init opens the miniaudio context. Idempotent.
func (b *MalgoBackend) Init(_ context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx != nil {
		return nil
	}

	cfg := malgo.ContextConfig{}
	cfg.ThreadPriority = malgo.ThreadPriorityRealtime

	ctx, err := malgo.InitContext(nil, cfg, nil)
	if err != nil {
		return fmt.Errorf("audioio: init malgo context: %w", err)
	}
	b.ctx = ctx

	b.logger.Info("audio context initialized", "backend", b.Name())
	return nil
}

// Name returns "malgo".
func (b *MalgoBackend) Name() string {
	return "malgo"
}

// Close releases the miniaudio context.
func (b *MalgoBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.ctx == nil {
		return nil
	}
	err := b.ctx.Uninit()
	b.ctx.Free()
	b.ctx = nil
	return err
}

// Devices enumerates host devices for the given direction. The context
// is queried on every call so hot-plug changes are visible.
func (b *MalgoBackend) Devices(dir Direction) ([]Device, error) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	if ctx == nil {
		return nil, ErrInitFailed
	}

	kind := malgo.Capture
	if dir == Output {
		kind = malgo.Playback
	}

	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, fmt.Errorf("audioio: enumerate %s devices: %w", dir, err)
	}

	devices := make([]Device, 0, len(infos))
	for i, info := range infos {
		d := Device{
			Index:   i,
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		}
		// miniaudio only enumerates devices usable in the queried
		// direction, and reports format details lazily; a listed
		// device is guaranteed at least one channel that way.
		if dir == Input {
			d.InputChannels = 1
		} else {
			d.OutputChannels = 1
		}
		devices = append(devices, d)
	}
	return devices, nil
}

// deviceID resolves a device index against a fresh enumeration.
// Returns nil (system default) for DeviceDefault.
func (b *MalgoBackend) deviceID(dir Direction, index int) (*malgo.DeviceID, error) {
	if index == DeviceDefault {
		return nil, nil
	}

	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		return nil, ErrInitFailed
	}

	kind := malgo.Capture
	if dir == Output {
		kind = malgo.Playback
	}
	infos, err := ctx.Devices(kind)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(infos) {
		return nil, &DeviceError{Index: index, Op: "resolve", Err: ErrNoInputDevice}
	}
	id := infos[index].ID
	return &id, nil
}

// OpenCapture opens a callback-driven capture stream. Captured frames
// are re-blocked so the callback always receives exactly cfg.ChunkSize
// samples.
func (b *MalgoBackend) OpenCapture(cfg Config, device int, cb CaptureCallback) (CaptureStream, error) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()
	if ctx == nil {
		return nil, ErrInitFailed
	}

	id, err := b.deviceID(Input, device)
	if err != nil {
		return nil, err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = uint32(cfg.Channels)
	deviceConfig.SampleRate = uint32(cfg.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(cfg.ChunkSize / max(cfg.Channels, 1))
	if id != nil {
		deviceConfig.Capture.DeviceID = id.Pointer()
	}

	stream := &malgoCaptureStream{
		cb:        cb,
		chunkSize: cfg.ChunkSize,
	}

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			stream.onData(input)
		},
		Stop: func() {
			stream.onStop()
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		return nil, fmt.Errorf("audioio: open capture device: %w", err)
	}
	stream.device = dev

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("audioio: start capture device: %w", err)
	}

	b.logger.Info("capture stream opened",
		"backend", b.Name(),
		"device", device,
		"sample_rate", cfg.SampleRate,
		"chunk_size", cfg.ChunkSize,
	)
	return stream, nil
}

// malgoCaptureStream re-blocks hardware periods into fixed-size chunks.
type malgoCaptureStream struct {
	device    *malgo.Device
	cb        CaptureCallback
	chunkSize int

	mu      sync.Mutex
	pending []int16
	stopped bool
}

func (s *malgoCaptureStream) onData(input []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	s.pending = append(s.pending, BytesToSamples(input)...)
	for len(s.pending) >= s.chunkSize {
		chunk := make([]int16, s.chunkSize)
		copy(chunk, s.pending[:s.chunkSize])
		s.pending = s.pending[s.chunkSize:]
		s.cb(chunk, nil)
	}
}

func (s *malgoCaptureStream) onStop() {
	s.mu.Lock()
	stopped := s.stopped
	s.mu.Unlock()
	if !stopped {
		// The device stopped without Stop being called: hot-unplug or
		// a backend fault. Surface it as a flagged frame.
		s.cb(nil, fmt.Errorf("audioio: capture device stopped unexpectedly"))
	}
}

// Stop halts capture. No callbacks are delivered after Stop returns.
func (s *malgoCaptureStream) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.pending = nil
	s.mu.Unlock()

	if s.device != nil {
		s.device.Uninit()
		s.device = nil
	}
	return nil
}

// Interface checks.
var (
	_ CaptureBackend = (*MalgoBackend)(nil)
	_ Enumerator     = (*MalgoBackend)(nil)
)

package audioio

import (
	"log/slog"
)

// Direction selects the capture or playback side of a device.
type Direction int

const (
	// Input selects capture devices (microphones).
	Input Direction = iota
	// Output selects playback devices (speakers).
	Output
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Input {
		return "input"
	}
	return "output"
}

// Device describes one host audio device. Descriptors are read-only and
// refreshed on demand; they are never cached across hardware changes.
type Device struct {
	// Index is the device's position in the most recent enumeration.
	Index int

	// Name is the human-readable device name.
	Name string

	// InputChannels and OutputChannels are the channel counts the device
	// exposes in each direction. At least one is nonzero.
	InputChannels  int
	OutputChannels int

	// DefaultSampleRate is the device's preferred rate, or 0 if the
	// host does not report one.
	DefaultSampleRate int

	// Default reports whether the host considers this the default
	// device for its direction.
	Default bool
}

// Enumerator lists host audio devices. Implementations query the
// hardware on every call so hot-plug changes are always visible.
type Enumerator interface {
	// Devices returns the devices available in the given direction.
	Devices(dir Direction) ([]Device, error)
}

// DeviceManager enumerates and validates hardware audio devices and
// supplies fallback device selection.
type DeviceManager struct {
	enum   Enumerator
	logger *slog.Logger
}

// NewDeviceManager creates a DeviceManager over the given enumerator.
func NewDeviceManager(enum Enumerator, logger *slog.Logger) *DeviceManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceManager{enum: enum, logger: logger}
}

// ListDevices enumerates host audio devices for the given direction.
// It never returns an error: if the audio subsystem is unavailable the
// result is an empty slice.
func (m *DeviceManager) ListDevices(dir Direction) []Device {
	devices, err := m.enum.Devices(dir)
	if err != nil {
		m.logger.Warn("device enumeration failed",
			"direction", dir.String(),
			"error", err,
		)
		return nil
	}
	return devices
}

// ValidateDevice reports whether the given device index can be used in
// the given direction at the given sample rate. DeviceDefault always
// validates: the caller accepts whatever the system default is.
func (m *DeviceManager) ValidateDevice(index int, dir Direction, sampleRate int) bool {
	if index == DeviceDefault {
		return true
	}
	if index < 0 {
		return false
	}

	for _, d := range m.ListDevices(dir) {
		if d.Index != index {
			continue
		}
		if dir == Input && d.InputChannels < 1 {
			return false
		}
		if dir == Output && d.OutputChannels < 1 {
			return false
		}
		return true
	}

	m.logger.Warn("configured device not found",
		"index", index,
		"direction", dir.String(),
		"sample_rate", sampleRate,
	)
	return false
}

// FallbackDevice returns the index of the host's default device for the
// given direction, or DeviceDefault if no default exists but devices are
// present, or -1 semantics via ok=false when the direction has no
// devices at all.
func (m *DeviceManager) FallbackDevice(dir Direction) (int, bool) {
	devices := m.ListDevices(dir)
	if len(devices) == 0 {
		return 0, false
	}
	for _, d := range devices {
		if d.Default {
			return d.Index, true
		}
	}
	// No marked default; the first enumerated device is the best guess.
	return devices[0].Index, true
}

// IsDeviceAvailable is a cheap liveness probe used by health monitoring
// to detect hot-unplug. DeviceDefault is available whenever any device
// exists in either direction.
func (m *DeviceManager) IsDeviceAvailable(index int) bool {
	if index == DeviceDefault {
		return len(m.ListDevices(Input)) > 0 || len(m.ListDevices(Output)) > 0
	}
	for _, dir := range []Direction{Input, Output} {
		for _, d := range m.ListDevices(dir) {
			if d.Index == index {
				return true
			}
		}
	}
	return false
}

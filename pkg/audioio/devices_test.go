package audioio

import (
	"errors"
	"testing"
)

// failingEnumerator simulates an unavailable audio subsystem.
type failingEnumerator struct{}

func (failingEnumerator) Devices(Direction) ([]Device, error) {
	return nil, errors.New("subsystem unavailable")
}

func TestListDevicesNeverErrors(t *testing.T) {
	dm := NewDeviceManager(failingEnumerator{}, nil)

	devices := dm.ListDevices(Input)
	if len(devices) != 0 {
		t.Errorf("expected empty device list, got %d devices", len(devices))
	}
}

func TestValidateDevice(t *testing.T) {
	backend := NewMockBackend()
	backend.SetDevices(Input, []Device{
		{Index: 0, Name: "USB Mic", InputChannels: 1, Default: true},
		{Index: 1, Name: "HDMI", InputChannels: 0},
	})
	dm := NewDeviceManager(backend, nil)

	tests := []struct {
		name  string
		index int
		dir   Direction
		want  bool
	}{
		{"default always validates", DeviceDefault, Input, true},
		{"existing input device", 0, Input, true},
		{"device without input channels", 1, Input, false},
		{"missing device", 7, Input, false},
		{"negative index", -5, Input, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := dm.ValidateDevice(tt.index, tt.dir, 16000); got != tt.want {
				t.Errorf("ValidateDevice(%d) = %v, want %v", tt.index, got, tt.want)
			}
		})
	}
}

func TestFallbackDevice(t *testing.T) {
	backend := NewMockBackend()
	backend.SetDevices(Input, []Device{
		{Index: 0, Name: "A", InputChannels: 1},
		{Index: 1, Name: "B", InputChannels: 1, Default: true},
	})
	dm := NewDeviceManager(backend, nil)

	index, ok := dm.FallbackDevice(Input)
	if !ok {
		t.Fatal("expected a fallback device")
	}
	if index != 1 {
		t.Errorf("expected host default (1), got %d", index)
	}

	backend.SetDevices(Input, nil)
	if _, ok := dm.FallbackDevice(Input); ok {
		t.Error("expected no fallback with no devices")
	}
}

func TestFallbackDeviceWithoutMarkedDefault(t *testing.T) {
	backend := NewMockBackend()
	backend.SetDevices(Output, []Device{
		{Index: 0, Name: "A", OutputChannels: 2},
		{Index: 1, Name: "B", OutputChannels: 2},
	})
	dm := NewDeviceManager(backend, nil)

	index, ok := dm.FallbackDevice(Output)
	if !ok || index != 0 {
		t.Errorf("expected first device as fallback, got %d (ok=%v)", index, ok)
	}
}

func TestIsDeviceAvailable(t *testing.T) {
	backend := NewMockBackend()
	dm := NewDeviceManager(backend, nil)

	if !dm.IsDeviceAvailable(DeviceDefault) {
		t.Error("default device should be available")
	}
	if !dm.IsDeviceAvailable(0) {
		t.Error("device 0 should be available")
	}
	if dm.IsDeviceAvailable(9) {
		t.Error("device 9 should not be available")
	}

	// Hot-unplug: enumeration is refreshed on every call.
	backend.SetDevices(Input, nil)
	backend.SetDevices(Output, nil)
	if dm.IsDeviceAvailable(0) {
		t.Error("device 0 should be gone after unplug")
	}
	if dm.IsDeviceAvailable(DeviceDefault) {
		t.Error("default should be unavailable with no devices")
	}
}

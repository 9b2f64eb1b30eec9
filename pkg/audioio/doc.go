// Package audioio provides audio device management, capture, and playback
// for the voice pipeline.
//
// The package splits hardware concerns into three layers:
//
//   - DeviceManager enumerates and validates host audio devices, and picks
//     fallback devices when a configured device is missing or unplugged.
//   - CaptureBackend / PlaybackBackend are thin adapters over the platform
//     audio libraries (miniaudio via malgo for capture, oto for playback)
//     plus mock implementations for CI and tests.
//   - Manager owns exactly one active capture stream and one active playback
//     stream, bridges the hardware's push-style capture callback into a
//     pull-based bounded queue, and tracks stream health.
//
// The capture callback runs on a dedicated OS thread. It never blocks:
// when the bounded queue is full the newest frame is dropped and counted,
// so backpressure shows up in stats rather than in the hardware layer.
package audioio

package vad

import (
	"fmt"
	"time"
)

// Config holds detection thresholds and timing parameters.
// It is immutable once a pipeline run starts.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the capture
	// configuration.
	SampleRate int

	// ChunkSize is the fixed number of samples per chunk. Must match
	// the scorer's required sample count when the scorer has one.
	ChunkSize int

	// SpeechThreshold is the per-chunk speech probability above which a
	// chunk counts as speech.
	SpeechThreshold float64

	// SilenceThreshold is how long silence must persist during speech
	// before end of speech can fire.
	SilenceThreshold time.Duration

	// MinSpeechDuration is the floor under which a segment is discarded
	// as noise rather than reported.
	MinSpeechDuration time.Duration

	// MinRecordingDuration keeps the detector listening through silence
	// gaps until this much time has elapsed since speech started, so
	// short utterances are not truncated.
	MinRecordingDuration time.Duration

	// MaxSpeechDuration force-ends a segment regardless of silence
	// status. Safety valve against a stream that never goes quiet.
	MaxSpeechDuration time.Duration

	// PreRoll is how much audio before speech onset DetectSegment
	// replays so segments are not front-truncated.
	PreRoll time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		SampleRate:           16000,
		ChunkSize:            512,
		SpeechThreshold:      0.5,
		SilenceThreshold:     1800 * time.Millisecond,
		MinSpeechDuration:    300 * time.Millisecond,
		MinRecordingDuration: 2500 * time.Millisecond,
		MaxSpeechDuration:    30 * time.Second,
		PreRoll:              300 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("vad: sample_rate must be positive, got %d", c.SampleRate)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("vad: chunk_size must be positive, got %d", c.ChunkSize)
	}
	if c.SpeechThreshold < 0 || c.SpeechThreshold > 1 {
		return fmt.Errorf("vad: speech_threshold must be in [0,1], got %g", c.SpeechThreshold)
	}
	if c.SilenceThreshold <= 0 {
		return fmt.Errorf("vad: silence_threshold must be positive, got %v", c.SilenceThreshold)
	}
	if c.MinSpeechDuration < 0 {
		return fmt.Errorf("vad: min_speech_duration must not be negative, got %v", c.MinSpeechDuration)
	}
	if c.MinRecordingDuration < 0 {
		return fmt.Errorf("vad: min_recording_duration must not be negative, got %v", c.MinRecordingDuration)
	}
	if c.MaxSpeechDuration <= 0 {
		return fmt.Errorf("vad: max_speech_duration must be positive, got %v", c.MaxSpeechDuration)
	}
	if c.PreRoll < 0 {
		return fmt.Errorf("vad: pre_roll must not be negative, got %v", c.PreRoll)
	}
	return nil
}

// ChunkDuration returns the play time of one chunk.
func (c *Config) ChunkDuration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.ChunkSize) * time.Second / time.Duration(c.SampleRate)
}

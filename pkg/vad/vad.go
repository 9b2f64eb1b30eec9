package vad

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// SpeechState is the detector's classification of the stream.
type SpeechState int

const (
	// StateSilence means no speech is in progress.
	StateSilence SpeechState = iota

	// StateSpeaking means a speech segment is in progress.
	StateSpeaking

	// StateEndOfSpeech is a one-shot pulse: the segment just ended. The
	// next ProcessAudio call always returns StateSilence.
	StateEndOfSpeech
)

// String returns the state name.
func (s SpeechState) String() string {
	switch s {
	case StateSilence:
		return "silence"
	case StateSpeaking:
		return "speaking"
	case StateEndOfSpeech:
		return "end_of_speech"
	default:
		return fmt.Sprintf("SpeechState(%d)", int(s))
	}
}

// Detector finds utterance boundaries in a chunk stream.
//
// It owns its scorer: construct one detector per pipeline, no shared
// model state. Methods are safe for concurrent use, though chunks are
// expected from a single goroutine.
type Detector struct {
	cfg      Config
	scorer   Scorer
	fallback Scorer
	logger   *slog.Logger

	// onSpeechEnd receives the total segment duration, measured from
	// speech onset to the detection instant (trailing silence included).
	onSpeechEnd func(time.Duration)

	mu          sync.Mutex
	state       SpeechState
	clock       time.Duration // total audio consumed since last reset
	speechStart time.Duration
	lastSpeech  time.Duration
	degraded    bool
}

// NewDetector creates a Detector. The chunk size is checked against the
// scorer's requirement here so a mismatch is a construction error, not
// a runtime fault.
func NewDetector(cfg Config, scorer Scorer, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if scorer == nil {
		return nil, ErrNoScorer
	}
	if req := scorer.RequiredSamples(); req != 0 && req != cfg.ChunkSize {
		return nil, fmt.Errorf("%w: scorer requires %d samples, configured %d",
			ErrChunkSize, req, cfg.ChunkSize)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:      cfg,
		scorer:   scorer,
		fallback: EnergyScorer{},
		logger:   logger.With("component", "vad"),
	}, nil
}

// OnSpeechEnd sets the callback fired when a segment ends. The callback
// runs on the ProcessAudio caller's goroutine.
func (d *Detector) OnSpeechEnd(fn func(total time.Duration)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSpeechEnd = fn
}

// State returns the current speech state.
func (d *Detector) State() SpeechState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Degraded reports whether the detector has fallen back to energy
// scoring. The switch is permanent for the detector's lifetime.
func (d *Detector) Degraded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.degraded
}

// ProcessAudio advances the state machine by one chunk and returns the
// resulting state. Time is the audio's own: each chunk advances the
// internal clock by its play duration.
func (d *Detector) ProcessAudio(chunk audioio.Chunk) SpeechState {
	state, ended, total := d.advance(chunk)
	if ended {
		if fn := d.speechEndCallback(); fn != nil {
			fn(total)
		}
	}
	return state
}

// advance runs one step under the lock. The end-of-speech callback is
// fired by the caller after the lock is released.
func (d *Detector) advance(chunk audioio.Chunk) (state SpeechState, ended bool, total time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	chunkDur := chunk.Duration()
	if chunkDur == 0 {
		chunkDur = d.cfg.ChunkDuration()
	}
	d.clock += chunkDur
	now := d.clock

	// End of speech is a pulse, not a resting state: the call after it
	// always lands back in silence, whatever the chunk holds.
	if d.state == StateEndOfSpeech {
		d.state = StateSilence
		d.speechStart = 0
		d.lastSpeech = 0
		return d.state, false, 0
	}

	prob := d.score(chunk.Samples)
	isSpeech := prob > d.cfg.SpeechThreshold

	switch d.state {
	case StateSilence:
		if isSpeech {
			d.state = StateSpeaking
			d.speechStart = now - chunkDur
			d.lastSpeech = now
			d.logger.Debug("speech started", "probability", prob)
		}

	case StateSpeaking:
		elapsed := now - d.speechStart

		if elapsed >= d.cfg.MaxSpeechDuration {
			d.logger.Warn("speech segment hit max duration", "total", elapsed)
			d.state = StateEndOfSpeech
			return d.state, true, elapsed
		}

		if isSpeech {
			d.lastSpeech = now
			break
		}

		silence := now - d.lastSpeech
		if silence < d.cfg.SilenceThreshold {
			break
		}
		// The voiced span excludes the silence we just waited through;
		// elapsed would always pass the floor once SilenceThreshold
		// exceeds it.
		if voiced := d.lastSpeech - d.speechStart; voiced < d.cfg.MinSpeechDuration {
			// Too short to be speech at all. Discard as noise.
			d.logger.Debug("segment discarded as noise", "voiced", voiced)
			d.state = StateSilence
			d.speechStart = 0
			d.lastSpeech = 0
			break
		}
		if elapsed < d.cfg.MinRecordingDuration {
			// Keep listening through the gap so short utterances are
			// not truncated.
			break
		}
		d.logger.Info("speech ended", "total", elapsed)
		d.state = StateEndOfSpeech
		return d.state, true, elapsed
	}

	return d.state, false, 0
}

// speechEndCallback returns the registered callback under the lock.
func (d *Detector) speechEndCallback() func(time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.onSpeechEnd
}

// score runs the active scorer, switching permanently to the energy
// fallback on the first model failure.
func (d *Detector) score(samples []int16) float64 {
	if !d.degraded {
		prob, err := d.scorer.Score(samples)
		if err == nil {
			return prob
		}
		d.degraded = true
		d.logger.Warn("model scorer failed, switching to energy scoring", "error", err)
	}
	prob, _ := d.fallback.Score(samples)
	return prob
}

// Reset clears timers, state, and any model-side running state. The
// degraded flag survives: a failed model is not retried.
func (d *Detector) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.state = StateSilence
	d.clock = 0
	d.speechStart = 0
	d.lastSpeech = 0
	if !d.degraded {
		d.scorer.Reset()
	}
	d.fallback.Reset()
}

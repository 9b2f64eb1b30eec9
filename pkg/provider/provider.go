// Package provider abstracts the realtime speech service the pipeline
// talks to for transcription and synthesis.
package provider

import (
	"context"
	"errors"
	"fmt"
)

// Errors returned by provider implementations.
var (
	ErrNotConnected = errors.New("provider: not connected")
	ErrClosed       = errors.New("provider: closed")
	ErrSpeakBusy    = errors.New("provider: synthesis already in progress")
)

// EventKind identifies what a provider event carries.
type EventKind int

const (
	// EventSpeechStarted: the service's own turn detection heard speech
	// begin.
	EventSpeechStarted EventKind = iota

	// EventSpeechStopped: the service heard speech end.
	EventSpeechStopped

	// EventTranscript: a completed transcription of committed audio.
	EventTranscript

	// EventAudioDelta: a chunk of synthesized PCM16 audio.
	EventAudioDelta

	// EventAudioDone: the current synthesized response is complete.
	EventAudioDone

	// EventResponseDone: the full response turn is complete.
	EventResponseDone

	// EventError: the service reported an error.
	EventError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventSpeechStarted:
		return "speech_started"
	case EventSpeechStopped:
		return "speech_stopped"
	case EventTranscript:
		return "transcript"
	case EventAudioDelta:
		return "audio_delta"
	case EventAudioDone:
		return "audio_done"
	case EventResponseDone:
		return "response_done"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is one message from the speech service.
type Event struct {
	Kind       EventKind
	Transcript string
	Audio      []byte
	Err        error
}

// Provider is the contract the pipeline depends on for speech-to-text
// and text-to-speech.
type Provider interface {
	// EnsureConnected makes sure a live connection exists, dialing or
	// re-dialing as needed. Safe to call repeatedly.
	EnsureConnected(ctx context.Context) error

	// SendAudio appends PCM16 audio to the service's input buffer.
	SendAudio(ctx context.Context, pcm []byte) error

	// CommitAudio closes the input buffer and asks for transcription.
	CommitAudio(ctx context.Context) error

	// ClearAudioBuffer discards any uncommitted input audio.
	ClearAudioBuffer(ctx context.Context) error

	// ProcessEvents returns the service's event stream. The channel is
	// closed when the connection drops or the provider is closed.
	ProcessEvents(ctx context.Context) <-chan Event

	// Speak synthesizes text and streams back PCM16 audio. The channel
	// is closed when synthesis completes or fails.
	Speak(ctx context.Context, text string) (<-chan []byte, error)

	// Close tears the connection down. The provider cannot be reused.
	Close() error
}

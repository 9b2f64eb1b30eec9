package pipeline

import "fmt"

// State is a phase of the voice pipeline.
type State int

const (
	// StateIdle: pipeline constructed or halted, not processing audio.
	StateIdle State = iota

	// StateListeningWake: waiting for a wake word.
	StateListeningWake

	// StateWakeDetected: wake word heard, preparing to listen.
	StateWakeDetected

	// StateListeningSpeech: streaming user speech until end of speech.
	StateListeningSpeech

	// StateProcessing: transcribing and consulting the agent.
	StateProcessing

	// StateSpeaking: playing the agent's reply.
	StateSpeaking

	// StateError: recovering from a failure before resuming.
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListeningWake:
		return "listening_wake"
	case StateWakeDetected:
		return "wake_detected"
	case StateListeningSpeech:
		return "listening_speech"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateError:
		return "error"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Event drives a state transition. Each state handler returns the event
// that decides where the pipeline goes next.
type Event int

const (
	// EventStart: the pipeline was started.
	EventStart Event = iota

	// EventWakeDetected: a wake word matched, or gating is skipped.
	EventWakeDetected

	// EventWakeHandled: wake side effects done, ready to listen.
	EventWakeHandled

	// EventEndOfSpeech: the user finished speaking.
	EventEndOfSpeech

	// EventReplyReady: the agent produced text to speak.
	EventReplyReady

	// EventTurnRestart: the turn ended with nothing to say.
	EventTurnRestart

	// EventPlaybackDone: reply playback finished, successfully or not.
	EventPlaybackDone

	// EventFailure: the handler hit an unrecoverable problem.
	EventFailure

	// EventRecovered: the error cooldown elapsed, resuming.
	EventRecovered

	// EventHalted: the error cooldown elapsed with auto-restart off.
	EventHalted
)

// String returns the event name.
func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventWakeDetected:
		return "wake_detected"
	case EventWakeHandled:
		return "wake_handled"
	case EventEndOfSpeech:
		return "end_of_speech"
	case EventReplyReady:
		return "reply_ready"
	case EventTurnRestart:
		return "turn_restart"
	case EventPlaybackDone:
		return "playback_done"
	case EventFailure:
		return "failure"
	case EventRecovered:
		return "recovered"
	case EventHalted:
		return "halted"
	default:
		return fmt.Sprintf("Event(%d)", int(e))
	}
}

// TransitionError reports an event that has no transition from the
// current state. This is a programming error: the table below is the
// complete legal behavior.
type TransitionError struct {
	From  State
	Event Event
}

// Error implements the error interface.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("pipeline: no transition from %s on %s", e.From, e.Event)
}

// transitions is the full state machine, written out literally so the
// legal moves can be read in one place.
func transitions() map[State]map[Event]State {
	return map[State]map[Event]State{
		StateIdle: {
			EventStart: StateListeningWake,
		},
		StateListeningWake: {
			EventWakeDetected: StateWakeDetected,
			EventFailure:      StateError,
		},
		StateWakeDetected: {
			EventWakeHandled: StateListeningSpeech,
			EventFailure:     StateError,
		},
		StateListeningSpeech: {
			EventEndOfSpeech: StateProcessing,
			EventFailure:     StateError,
		},
		StateProcessing: {
			EventReplyReady:  StateSpeaking,
			EventTurnRestart: StateListeningWake,
			EventFailure:     StateError,
		},
		StateSpeaking: {
			EventPlaybackDone: StateListeningWake,
			EventFailure:      StateError,
		},
		StateError: {
			EventRecovered: StateListeningWake,
			EventHalted:    StateIdle,
		},
	}
}

// validateTransitions checks the table is closed over known states.
func validateTransitions(table map[State]map[Event]State) error {
	known := map[State]bool{
		StateIdle: true, StateListeningWake: true, StateWakeDetected: true,
		StateListeningSpeech: true, StateProcessing: true,
		StateSpeaking: true, StateError: true,
	}
	for from, events := range table {
		if !known[from] {
			return fmt.Errorf("pipeline: transition table has unknown state %v", from)
		}
		if len(events) == 0 {
			return fmt.Errorf("pipeline: state %s has no outgoing transitions", from)
		}
		for _, to := range events {
			if !known[to] {
				return fmt.Errorf("pipeline: transition from %s targets unknown state %v", from, to)
			}
		}
	}
	for s := range known {
		if _, present := table[s]; !present {
			return fmt.Errorf("pipeline: state %s missing from transition table", s)
		}
	}
	return nil
}

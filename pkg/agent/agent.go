// Package agent abstracts the assistant brain the pipeline hands
// transcripts to.
package agent

import (
	"context"
	"sync"
)

// Response is the agent's reply to a transcript. Text may be empty when
// the agent chose not to say anything.
type Response struct {
	Text string
}

// Agent is the contract between the voice pipeline and the assistant.
type Agent interface {
	// Respond processes a user transcript and returns the reply.
	Respond(ctx context.Context, transcript string) (*Response, error)

	// SetListeningState tells the agent whether the pipeline is
	// actively listening, so it can adjust presence cues.
	SetListeningState(listening bool)
}

// Mock is an in-memory Agent for tests. Zero value echoes transcripts
// back.
type Mock struct {
	RespondFunc func(ctx context.Context, transcript string) (*Response, error)

	mu          sync.Mutex
	transcripts []string
	listening   []bool
}

// Respond records the transcript, delegating to RespondFunc when set.
func (m *Mock) Respond(ctx context.Context, transcript string) (*Response, error) {
	m.mu.Lock()
	m.transcripts = append(m.transcripts, transcript)
	m.mu.Unlock()

	if m.RespondFunc != nil {
		return m.RespondFunc(ctx, transcript)
	}
	return &Response{Text: transcript}, nil
}

// SetListeningState records the state change.
func (m *Mock) SetListeningState(listening bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = append(m.listening, listening)
}

// Transcripts returns every transcript passed to Respond.
func (m *Mock) Transcripts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.transcripts))
	copy(out, m.transcripts)
	return out
}

// ListeningStates returns the recorded listening transitions.
func (m *Mock) ListeningStates() []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]bool, len(m.listening))
	copy(out, m.listening)
	return out
}

var _ Agent = (*Mock)(nil)

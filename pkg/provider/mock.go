package provider

import (
	"context"
	"sync"
)

// Mock is an in-memory Provider for tests. Zero value is usable: all
// operations succeed and record their calls. Set the function fields to
// override behavior.
type Mock struct {
	ConnectFunc func(ctx context.Context) error
	SpeakFunc   func(ctx context.Context, text string) ([][]byte, error)

	mu        sync.Mutex
	sentAudio [][]byte
	commits   int
	clears    int
	spoken    []string
	events    chan Event
	closed    bool
}

// NewMock creates a Mock with a buffered event stream.
func NewMock() *Mock {
	return &Mock{events: make(chan Event, 64)}
}

// QueueEvent scripts an event for ProcessEvents consumers.
func (m *Mock) QueueEvent(e Event) {
	m.events <- e
}

// EnsureConnected records the call, delegating to ConnectFunc when set.
func (m *Mock) EnsureConnected(ctx context.Context) error {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	return nil
}

// SendAudio records the audio.
func (m *Mock) SendAudio(_ context.Context, pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	cp := make([]byte, len(pcm))
	copy(cp, pcm)
	m.sentAudio = append(m.sentAudio, cp)
	return nil
}

// CommitAudio records the commit.
func (m *Mock) CommitAudio(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.commits++
	return nil
}

// ClearAudioBuffer records the clear.
func (m *Mock) ClearAudioBuffer(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.clears++
	return nil
}

// ProcessEvents returns the scripted event stream.
func (m *Mock) ProcessEvents(context.Context) <-chan Event {
	return m.events
}

// Speak records the text and streams the scripted audio, or a single
// silent chunk when SpeakFunc is unset.
func (m *Mock) Speak(ctx context.Context, text string) (<-chan []byte, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	m.spoken = append(m.spoken, text)
	m.mu.Unlock()

	var chunks [][]byte
	if m.SpeakFunc != nil {
		var err error
		chunks, err = m.SpeakFunc(ctx, text)
		if err != nil {
			return nil, err
		}
	} else {
		chunks = [][]byte{make([]byte, 1024)}
	}

	out := make(chan []byte, len(chunks))
	for _, c := range chunks {
		out <- c
	}
	close(out)
	return out, nil
}

// Close closes the event stream.
func (m *Mock) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	close(m.events)
	return nil
}

// SentAudio returns every buffer passed to SendAudio.
func (m *Mock) SentAudio() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sentAudio))
	copy(out, m.sentAudio)
	return out
}

// Commits returns how many times CommitAudio was called.
func (m *Mock) Commits() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.commits
}

// Clears returns how many times ClearAudioBuffer was called.
func (m *Mock) Clears() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.clears
}

// Spoken returns every text passed to Speak.
func (m *Mock) Spoken() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.spoken))
	copy(out, m.spoken)
	return out
}

var _ Provider = (*Mock)(nil)

package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// RealtimeConfig configures the websocket speech service client.
type RealtimeConfig struct {
	// URL is the websocket endpoint.
	URL string

	// APIKey authenticates the connection.
	APIKey string

	// Model selects the realtime model.
	Model string

	// Voice selects the synthesis voice.
	Voice string

	// Instructions prime the service's responses.
	Instructions string

	// HandshakeTimeout bounds the websocket dial.
	HandshakeTimeout time.Duration

	// ReadTimeout bounds how long the connection may go without any
	// inbound message before the read loop gives up.
	ReadTimeout time.Duration

	// KeepAliveInterval is how often pings are sent.
	KeepAliveInterval time.Duration

	// IdleTimeout forces a reconnect when the connection has been
	// unused this long. Realtime sessions go stale server-side.
	IdleTimeout time.Duration
}

// DefaultRealtimeConfig returns a RealtimeConfig with sensible
// defaults. The API key must still be supplied.
func DefaultRealtimeConfig() RealtimeConfig {
	return RealtimeConfig{
		URL:               "wss://api.openai.com/v1/realtime",
		Model:             "gpt-4o-realtime-preview-2024-12-17",
		Voice:             "alloy",
		HandshakeTimeout:  10 * time.Second,
		ReadTimeout:       120 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		IdleTimeout:       10 * time.Minute,
	}
}

// Realtime talks to a realtime speech service over a websocket,
// streaming PCM16 both ways as base64 payloads.
type Realtime struct {
	cfg    RealtimeConfig
	logger *slog.Logger

	// wsMu serializes websocket writes.
	wsMu sync.Mutex

	mu           sync.Mutex
	conn         *websocket.Conn
	connected    bool
	closed       bool
	lastActivity time.Time
	events       chan Event
	speakCh      chan []byte
}

// NewRealtime creates a client. No connection is made until
// EnsureConnected.
func NewRealtime(cfg RealtimeConfig, logger *slog.Logger) *Realtime {
	if logger == nil {
		logger = slog.Default()
	}
	return &Realtime{
		cfg:    cfg,
		logger: logger.With("component", "provider"),
	}
}

// EnsureConnected dials the service if there is no live connection, or
// re-dials when the existing one has been idle past IdleTimeout.
func (r *Realtime) EnsureConnected(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return ErrClosed
	}
	if r.connected && time.Since(r.lastActivity) < r.cfg.IdleTimeout {
		return nil
	}
	if r.conn != nil {
		r.logger.Info("reconnecting stale session", "idle", time.Since(r.lastActivity))
		r.conn.Close()
		r.conn = nil
		r.connected = false
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	header.Set("OpenAI-Beta", "realtime=v1")

	dialer := websocket.Dialer{HandshakeTimeout: r.cfg.HandshakeTimeout}
	url := fmt.Sprintf("%s?model=%s", r.cfg.URL, r.cfg.Model)

	conn, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return fmt.Errorf("provider: dial %s: %w", r.cfg.URL, err)
	}

	conn.SetPingHandler(func(appData string) error {
		r.wsMu.Lock()
		defer r.wsMu.Unlock()
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(5*time.Second))
	})
	conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))

	r.conn = conn
	r.connected = true
	r.lastActivity = time.Now()
	r.events = make(chan Event, 64)

	go r.readLoop(conn, r.events)
	go r.keepAlive(conn)

	if err := r.configureSession(conn); err != nil {
		return err
	}

	r.logger.Info("connected", "url", r.cfg.URL, "model", r.cfg.Model)
	return nil
}

// configureSession sends the session setup message over a connection
// the caller already owns. Turn detection is disabled: end of speech
// is decided locally.
func (r *Realtime) configureSession(conn *websocket.Conn) error {
	return r.writeJSON(conn, map[string]any{
		"type": "session.update",
		"session": map[string]any{
			"modalities":          []string{"text", "audio"},
			"instructions":        r.cfg.Instructions,
			"voice":               r.cfg.Voice,
			"input_audio_format":  "pcm16",
			"output_audio_format": "pcm16",
			"input_audio_transcription": map[string]any{
				"model": "whisper-1",
			},
			"turn_detection": nil,
		},
	})
}

// keepAlive pings until the connection dies.
func (r *Realtime) keepAlive(conn *websocket.Conn) {
	ticker := time.NewTicker(r.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for range ticker.C {
		r.mu.Lock()
		stale := r.closed || r.conn != conn
		r.mu.Unlock()
		if stale {
			return
		}

		r.wsMu.Lock()
		err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second))
		r.wsMu.Unlock()
		if err != nil {
			return
		}
	}
}

// SendAudio appends PCM16 audio to the service's input buffer.
func (r *Realtime) SendAudio(ctx context.Context, pcm []byte) error {
	if err := r.checkConnected(); err != nil {
		return err
	}
	return r.sendJSON(map[string]any{
		"type":  "input_audio_buffer.append",
		"audio": base64.StdEncoding.EncodeToString(pcm),
	})
}

// CommitAudio commits the input buffer, triggering transcription.
func (r *Realtime) CommitAudio(ctx context.Context) error {
	if err := r.checkConnected(); err != nil {
		return err
	}
	return r.sendJSON(map[string]any{"type": "input_audio_buffer.commit"})
}

// ClearAudioBuffer discards uncommitted input audio.
func (r *Realtime) ClearAudioBuffer(ctx context.Context) error {
	if err := r.checkConnected(); err != nil {
		return err
	}
	return r.sendJSON(map[string]any{"type": "input_audio_buffer.clear"})
}

// ProcessEvents returns the event stream for the current connection.
// Closed when the connection drops.
func (r *Realtime) ProcessEvents(ctx context.Context) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.events == nil {
		ch := make(chan Event)
		close(ch)
		return ch
	}
	return r.events
}

// Speak asks the service to synthesize text. Audio deltas are routed to
// the returned channel instead of the event stream until synthesis
// completes. One synthesis at a time.
func (r *Realtime) Speak(ctx context.Context, text string) (<-chan []byte, error) {
	if err := r.checkConnected(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.speakCh != nil {
		r.mu.Unlock()
		return nil, ErrSpeakBusy
	}
	ch := make(chan []byte, 64)
	r.speakCh = ch
	r.mu.Unlock()

	err := r.sendJSON(map[string]any{
		"type": "response.create",
		"response": map[string]any{
			"modalities":   []string{"text", "audio"},
			"instructions": "Say exactly the following, nothing else: " + text,
		},
	})
	if err != nil {
		r.mu.Lock()
		r.speakCh = nil
		r.mu.Unlock()
		close(ch)
		return nil, err
	}
	return ch, nil
}

// Close tears down the connection for good.
func (r *Realtime) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	r.connected = false
	if r.conn != nil {
		r.conn.Close()
		r.conn = nil
	}
	return nil
}

func (r *Realtime) checkConnected() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	if !r.connected {
		return ErrNotConnected
	}
	return nil
}

// sendJSON writes one message over the current connection. r.mu is
// held only to snapshot the connection, never across the write.
func (r *Realtime) sendJSON(msg map[string]any) error {
	r.mu.Lock()
	conn := r.conn
	r.lastActivity = time.Now()
	r.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	return r.writeJSON(conn, msg)
}

// writeJSON tags the message with a fresh event id and writes it.
func (r *Realtime) writeJSON(conn *websocket.Conn, msg map[string]any) error {
	msg["event_id"] = uuid.NewString()

	r.wsMu.Lock()
	defer r.wsMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(msg)
}

// serverMsg is the subset of inbound message fields the client reads.
type serverMsg struct {
	Type       string `json:"type"`
	Transcript string `json:"transcript"`
	Delta      string `json:"delta"`
	Error      struct {
		Message string `json:"message"`
	} `json:"error"`
}

// readLoop turns inbound messages into events until the connection
// drops.
func (r *Realtime) readLoop(conn *websocket.Conn, events chan Event) {
	defer close(events)

	for {
		conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
		_, raw, err := conn.ReadMessage()
		if err != nil {
			r.mu.Lock()
			wasClosed := r.closed
			if r.conn == conn {
				r.connected = false
			}
			speak := r.speakCh
			r.speakCh = nil
			r.mu.Unlock()

			if speak != nil {
				close(speak)
			}
			if !wasClosed {
				r.logger.Warn("connection lost", "error", err)
				events <- Event{Kind: EventError, Err: err}
			}
			return
		}

		r.mu.Lock()
		r.lastActivity = time.Now()
		r.mu.Unlock()

		var msg serverMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		r.dispatch(msg, events)
	}
}

func (r *Realtime) dispatch(msg serverMsg, events chan Event) {
	switch msg.Type {
	case "input_audio_buffer.speech_started":
		events <- Event{Kind: EventSpeechStarted}

	case "input_audio_buffer.speech_stopped":
		events <- Event{Kind: EventSpeechStopped}

	case "conversation.item.input_audio_transcription.completed":
		events <- Event{Kind: EventTranscript, Transcript: msg.Transcript}

	case "response.audio.delta":
		audio, err := base64.StdEncoding.DecodeString(msg.Delta)
		if err != nil {
			r.logger.Warn("bad audio delta", "error", err)
			return
		}
		r.mu.Lock()
		speak := r.speakCh
		r.mu.Unlock()
		if speak != nil {
			speak <- audio
			return
		}
		events <- Event{Kind: EventAudioDelta, Audio: audio}

	case "response.audio.done":
		r.mu.Lock()
		speak := r.speakCh
		r.speakCh = nil
		r.mu.Unlock()
		if speak != nil {
			close(speak)
			return
		}
		events <- Event{Kind: EventAudioDone}

	case "response.done":
		events <- Event{Kind: EventResponseDone}

	case "error":
		events <- Event{Kind: EventError, Err: fmt.Errorf("provider: service error: %s", msg.Error.Message)}
	}
}

var _ Provider = (*Realtime)(nil)

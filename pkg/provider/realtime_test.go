package provider

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// fakeService is an in-process websocket speech service.
type fakeService struct {
	srv      *httptest.Server
	inbound  chan map[string]any
	outbound chan map[string]any
}

func newFakeService(t *testing.T) *fakeService {
	t.Helper()
	f := &fakeService{
		inbound:  make(chan map[string]any, 64),
		outbound: make(chan map[string]any, 64),
	}

	upgrader := websocket.Upgrader{}
	f.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go func() {
			for msg := range f.outbound {
				if err := conn.WriteJSON(msg); err != nil {
					return
				}
			}
		}()

		for {
			var msg map[string]any
			if err := conn.ReadJSON(&msg); err != nil {
				return
			}
			f.inbound <- msg
		}
	}))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeService) url() string {
	return "ws" + strings.TrimPrefix(f.srv.URL, "http")
}

// recv waits for the next client message of the given type, skipping
// others.
func (f *fakeService) recv(t *testing.T, msgType string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-f.inbound:
			if msg["type"] == msgType {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", msgType)
		}
	}
}

func newTestRealtime(t *testing.T, f *fakeService) *Realtime {
	t.Helper()
	cfg := DefaultRealtimeConfig()
	cfg.URL = f.url()
	cfg.APIKey = "test-key"
	r := NewRealtime(cfg, nil)
	t.Cleanup(func() { r.Close() })

	if err := r.EnsureConnected(context.Background()); err != nil {
		t.Fatalf("EnsureConnected: %v", err)
	}
	return r
}

func TestConnectConfiguresSession(t *testing.T) {
	f := newFakeService(t)
	r := newTestRealtime(t, f)

	msg := f.recv(t, "session.update")
	if msg["event_id"] == "" || msg["event_id"] == nil {
		t.Error("expected an event_id on outbound messages")
	}
	session, ok := msg["session"].(map[string]any)
	if !ok {
		t.Fatal("expected a session payload")
	}
	if session["input_audio_format"] != "pcm16" {
		t.Errorf("expected pcm16 input, got %v", session["input_audio_format"])
	}
	if td, present := session["turn_detection"]; !present || td != nil {
		t.Error("expected turn detection disabled")
	}

	// Idempotent while the connection is live.
	if err := r.EnsureConnected(context.Background()); err != nil {
		t.Errorf("repeat EnsureConnected: %v", err)
	}
}

func TestSendCommitClear(t *testing.T) {
	f := newFakeService(t)
	r := newTestRealtime(t, f)

	pcm := []byte{1, 2, 3, 4}
	if err := r.SendAudio(context.Background(), pcm); err != nil {
		t.Fatalf("SendAudio: %v", err)
	}
	msg := f.recv(t, "input_audio_buffer.append")
	if msg["audio"] != base64.StdEncoding.EncodeToString(pcm) {
		t.Errorf("expected base64 audio payload, got %v", msg["audio"])
	}

	if err := r.CommitAudio(context.Background()); err != nil {
		t.Fatalf("CommitAudio: %v", err)
	}
	f.recv(t, "input_audio_buffer.commit")

	if err := r.ClearAudioBuffer(context.Background()); err != nil {
		t.Fatalf("ClearAudioBuffer: %v", err)
	}
	f.recv(t, "input_audio_buffer.clear")
}

func TestTranscriptEvent(t *testing.T) {
	f := newFakeService(t)
	r := newTestRealtime(t, f)

	events := r.ProcessEvents(context.Background())
	f.outbound <- map[string]any{
		"type":       "conversation.item.input_audio_transcription.completed",
		"transcript": "turn on the lights",
	}

	select {
	case e := <-events:
		if e.Kind != EventTranscript {
			t.Fatalf("expected transcript event, got %v", e.Kind)
		}
		if e.Transcript != "turn on the lights" {
			t.Errorf("unexpected transcript %q", e.Transcript)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

func TestSpeakStreamsAudio(t *testing.T) {
	f := newFakeService(t)
	r := newTestRealtime(t, f)

	audio, err := r.Speak(context.Background(), "hello there")
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}
	f.recv(t, "response.create")

	// A second Speak while the first is in flight is refused.
	if _, err := r.Speak(context.Background(), "again"); err != ErrSpeakBusy {
		t.Errorf("expected ErrSpeakBusy, got %v", err)
	}

	chunk := []byte{10, 20, 30}
	f.outbound <- map[string]any{
		"type":  "response.audio.delta",
		"delta": base64.StdEncoding.EncodeToString(chunk),
	}
	f.outbound <- map[string]any{"type": "response.audio.done"}

	var got [][]byte
	for c := range audio {
		got = append(got, c)
	}
	if len(got) != 1 || string(got[0]) != string(chunk) {
		t.Errorf("expected one decoded chunk, got %v", got)
	}

	// Synthesis finished: Speak is available again.
	if _, err := r.Speak(context.Background(), "next"); err != nil {
		t.Errorf("expected Speak available after done, got %v", err)
	}
}

func TestOperationsRequireConnection(t *testing.T) {
	cfg := DefaultRealtimeConfig()
	cfg.URL = "ws://localhost:1"
	r := NewRealtime(cfg, nil)

	if err := r.SendAudio(context.Background(), nil); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
	if _, err := r.Speak(context.Background(), "x"); err != ErrNotConnected {
		t.Errorf("expected ErrNotConnected, got %v", err)
	}
}

func TestClosedClientRefusesConnect(t *testing.T) {
	f := newFakeService(t)
	r := newTestRealtime(t, f)

	if err := r.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := r.EnsureConnected(context.Background()); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestConnectCompletesPromptly(t *testing.T) {
	f := newFakeService(t)
	cfg := DefaultRealtimeConfig()
	cfg.URL = f.url()
	cfg.APIKey = "test-key"
	r := NewRealtime(cfg, nil)
	t.Cleanup(func() { r.Close() })

	done := make(chan error, 1)
	go func() { done <- r.EnsureConnected(context.Background()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("EnsureConnected: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("EnsureConnected did not return")
	}
}

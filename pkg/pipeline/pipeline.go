// Package pipeline sequences the voice front end: wake-word gating,
// speech capture, transcription, the agent, and reply playback.
//
// The orchestrator is a single cooperative loop over an explicit state
// machine. Each state has one handler that does exactly the work needed
// to produce the next event; the transition table in state.go is the
// complete set of legal moves. Audio capture runs on its own hardware
// thread inside audioio and reaches the loop only through the bounded
// chunk queue.
package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/luma-robotics/go-luma/pkg/agent"
	"github.com/luma-robotics/go-luma/pkg/audioio"
	"github.com/luma-robotics/go-luma/pkg/provider"
	"github.com/luma-robotics/go-luma/pkg/recovery"
	"github.com/luma-robotics/go-luma/pkg/vad"
	"github.com/luma-robotics/go-luma/pkg/wakeword"
)

// Errors returned by the pipeline.
var (
	ErrAlreadyStarted = errors.New("pipeline: already started")
	ErrNotStarted     = errors.New("pipeline: not started")
	ErrMissingDep     = errors.New("pipeline: missing dependency")
)

// replySampleRate is the PCM16 rate the speech service synthesizes at.
const replySampleRate = 24000

// Pipeline is the voice front end orchestrator.
type Pipeline struct {
	cfg      Config
	audio    *audioio.Manager
	detector *vad.Detector
	wake     *wakeword.Detector // nil disables wake gating
	recov    *recovery.Manager
	prov     provider.Provider
	ag       agent.Agent
	logger   *slog.Logger
	metrics  *MetricsCollector
	table    map[State]map[Event]State

	mu      sync.Mutex
	state   State
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
	reply   string
}

// New wires the pipeline together. wake may be nil to run without wake
// gating; everything else is required.
func New(cfg Config, audio *audioio.Manager, detector *vad.Detector, wake *wakeword.Detector, recov *recovery.Manager, prov provider.Provider, ag agent.Agent, logger *slog.Logger) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if audio == nil || detector == nil || recov == nil || prov == nil || ag == nil {
		return nil, ErrMissingDep
	}
	table := transitions()
	if err := validateTransitions(table); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		cfg:      cfg,
		audio:    audio,
		detector: detector,
		wake:     wake,
		recov:    recov,
		prov:     prov,
		ag:       ag,
		logger:   logger.With("component", "pipeline"),
		metrics:  NewMetricsCollector(),
		table:    table,
	}, nil
}

// State returns the current pipeline state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Metrics returns the latency collector.
func (p *Pipeline) Metrics() *MetricsCollector {
	return p.metrics
}

// Start initializes audio and launches the state loop. It returns once
// the loop is running; use Stop to shut down.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	p.mu.Unlock()

	if err := p.audio.Init(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())

	p.mu.Lock()
	p.running = true
	p.cancel = cancel
	p.done = make(chan struct{})
	p.state = StateIdle
	p.mu.Unlock()

	if err := p.apply(EventStart); err != nil {
		cancel()
		p.mu.Lock()
		p.running = false
		p.mu.Unlock()
		return err
	}

	go p.run(runCtx)
	return nil
}

// Stop cancels the loop and tears everything down. Cleanup is
// guaranteed: if the loop does not exit within ShutdownTimeout the
// resources are released forcibly.
func (p *Pipeline) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return ErrNotStarted
	}
	cancel := p.cancel
	done := p.done
	p.mu.Unlock()

	cancel()

	select {
	case <-done:
	case <-time.After(p.cfg.ShutdownTimeout):
		p.logger.Error("graceful shutdown timed out, forcing resource release")
		p.cleanup()
	}

	p.mu.Lock()
	p.running = false
	p.state = StateIdle
	p.mu.Unlock()
	return nil
}

// run is the cooperative state loop. One transition at a time, no
// concurrent handlers.
func (p *Pipeline) run(ctx context.Context) {
	defer close(p.done)
	defer p.cleanup()

	for {
		if ctx.Err() != nil {
			return
		}

		p.mu.Lock()
		state := p.state
		p.mu.Unlock()
		if state == StateIdle {
			p.logger.Info("pipeline halted")
			return
		}

		event := p.dispatch(ctx, state)
		if ctx.Err() != nil {
			return
		}
		if err := p.apply(event); err != nil {
			// A transition violation is a programming error. Halt
			// rather than guess.
			p.logger.Error("illegal state transition", "error", err)
			return
		}
	}
}

// cleanup releases everything the loop may hold. Safe to call twice.
func (p *Pipeline) cleanup() {
	p.audio.StopRecording()
	if err := p.prov.Close(); err != nil {
		p.logger.Warn("provider close failed", "error", err)
	}
	p.ag.SetListeningState(false)
	p.logger.Info("pipeline stopped")
}

// apply moves the state machine by one event.
func (p *Pipeline) apply(event Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	next, ok := p.table[p.state][event]
	if !ok {
		return &TransitionError{From: p.state, Event: event}
	}
	p.logger.Debug("state transition", "from", p.state, "event", event, "to", next)
	p.state = next
	return nil
}

// dispatch runs the handler for a state.
func (p *Pipeline) dispatch(ctx context.Context, state State) Event {
	switch state {
	case StateListeningWake:
		return p.handleListeningWake(ctx)
	case StateWakeDetected:
		return p.handleWakeDetected(ctx)
	case StateListeningSpeech:
		return p.handleListeningSpeech(ctx)
	case StateProcessing:
		return p.handleProcessing(ctx)
	case StateSpeaking:
		return p.handleSpeaking(ctx)
	case StateError:
		return p.handleError(ctx)
	default:
		return EventFailure
	}
}

// wakeGatingActive reports whether chunks must pass wake-word scoring
// before the pipeline listens for speech.
func (p *Pipeline) wakeGatingActive() bool {
	if p.wake == nil || !p.cfg.WakeWordEnabled {
		return false
	}
	return !p.recov.IsDegraded(recovery.ClassWakeWord)
}

// handleListeningWake waits for a wake word, or passes straight through
// when gating is off.
func (p *Pipeline) handleListeningWake(ctx context.Context) Event {
	if !p.ensureRecording(ctx) {
		return EventFailure
	}
	if !p.wakeGatingActive() {
		return EventWakeDetected
	}

	for {
		if ctx.Err() != nil {
			return EventFailure
		}
		chunk, ok := p.audio.ReadAudio(ctx, p.cfg.ReadTimeout)
		if !ok {
			if !p.audio.CheckHealth() && !p.restartStream(ctx) {
				return EventFailure
			}
			continue
		}
		if model, matched := p.wake.ProcessAudio(chunk); matched {
			p.logger.Info("wake word matched", "model", model)
			return EventWakeDetected
		}
	}
}

// handleWakeDetected notifies the agent and plays the confirmation cue.
func (p *Pipeline) handleWakeDetected(ctx context.Context) Event {
	p.ag.SetListeningState(true)

	if p.cfg.ConfirmationBeep {
		rate := p.audio.Config().SampleRate
		pcm := confirmationBeep(p.cfg.BeepFrequency, p.cfg.BeepDuration, rate)
		if err := p.audio.PlayAudio(ctx, pcm, rate); err != nil {
			p.logger.Warn("confirmation beep failed", "error", err)
		}
	}

	if p.wake != nil {
		// Keep the cooldown so the cue cannot re-trigger the wake word.
		p.wake.Reset(true)
	}
	return EventWakeHandled
}

// handleListeningSpeech streams speech to the provider until the
// detector reports end of speech.
func (p *Pipeline) handleListeningSpeech(ctx context.Context) Event {
	if !p.ensureRecording(ctx) {
		return EventFailure
	}
	p.detector.Reset()

	if err := p.prov.EnsureConnected(ctx); err != nil {
		p.logger.Warn("provider connect failed", "error", err)
		if _, rerr := p.recov.AttemptRecovery(ctx, recovery.ClassProviderConnection, p.prov.EnsureConnected); rerr != nil {
			return EventFailure
		}
	}
	if err := p.prov.ClearAudioBuffer(ctx); err != nil {
		p.logger.Warn("clear audio buffer failed", "error", err)
	}

	var deadline time.Time
	if p.cfg.ListenTimeout > 0 {
		deadline = time.Now().Add(p.cfg.ListenTimeout)
	}

	sendErrs := 0
	for {
		if ctx.Err() != nil {
			return EventFailure
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			p.logger.Warn("listening timed out with no end of speech")
			return EventFailure
		}

		chunk, ok := p.audio.ReadAudio(ctx, p.cfg.ReadTimeout)
		if !ok {
			if !p.audio.CheckHealth() && !p.restartStream(ctx) {
				return EventFailure
			}
			continue
		}
		p.metrics.IncrementAudioIn()

		if err := p.prov.SendAudio(ctx, chunk.Bytes()); err != nil {
			sendErrs++
			if sendErrs >= 3 {
				p.logger.Warn("giving up on audio streaming", "error", err)
				return EventFailure
			}
			continue
		}
		sendErrs = 0

		state := p.detector.ProcessAudio(chunk)
		if p.detector.Degraded() {
			p.recov.EnterDegradedMode(recovery.ClassVAD)
		}
		if state == vad.StateEndOfSpeech {
			p.metrics.MarkSpeechEnd()
			// Release the input stream before the next state claims
			// resources.
			p.audio.StopRecording()
			return EventEndOfSpeech
		}
	}
}

// handleProcessing commits the audio, waits for the transcript, and
// asks the agent for a reply.
func (p *Pipeline) handleProcessing(ctx context.Context) Event {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ProcessingTimeout)
	defer cancel()

	if err := p.prov.CommitAudio(ctx); err != nil {
		p.logger.Warn("commit failed", "error", err)
		if _, rerr := p.recov.AttemptRecovery(ctx, recovery.ClassSTT, p.prov.CommitAudio); rerr != nil {
			return EventFailure
		}
	}

	transcript, ok := p.awaitTranscript(ctx)
	if !ok {
		return EventFailure
	}
	p.metrics.MarkTranscript()

	if strings.TrimSpace(transcript) == "" {
		p.logger.Info("empty transcript, restarting turn")
		return EventTurnRestart
	}
	p.logger.Info("transcript", "text", transcript)

	resp, err := recovery.WithRecovery(ctx, p.recov, recovery.ClassAgent,
		func(ctx context.Context) (*agent.Response, error) {
			return p.ag.Respond(ctx, transcript)
		}, &agent.Response{})
	if err != nil {
		p.logger.Warn("agent failed", "error", err)
		return EventFailure
	}
	if resp == nil || strings.TrimSpace(resp.Text) == "" {
		p.logger.Info("agent had nothing to say, restarting turn")
		return EventTurnRestart
	}

	p.mu.Lock()
	p.reply = resp.Text
	p.mu.Unlock()
	return EventReplyReady
}

// awaitTranscript drains provider events until a transcript arrives.
func (p *Pipeline) awaitTranscript(ctx context.Context) (string, bool) {
	events := p.prov.ProcessEvents(ctx)
	for {
		select {
		case e, ok := <-events:
			if !ok {
				p.logger.Warn("provider event stream closed")
				return "", false
			}
			switch e.Kind {
			case provider.EventTranscript:
				return e.Transcript, true
			case provider.EventError:
				p.logger.Warn("provider error", "error", e.Err)
				return "", false
			}
		case <-ctx.Done():
			p.logger.Warn("timed out waiting for transcript")
			return "", false
		}
	}
}

// handleSpeaking synthesizes the reply and plays it. Playback errors do
// not escalate: the turn ends either way.
func (p *Pipeline) handleSpeaking(ctx context.Context) Event {
	defer p.ag.SetListeningState(false)

	p.mu.Lock()
	reply := p.reply
	p.reply = ""
	p.mu.Unlock()

	speech, err := recovery.WithRecovery(ctx, p.recov, recovery.ClassTTS,
		func(ctx context.Context) (<-chan []byte, error) {
			return p.prov.Speak(ctx, reply)
		}, nil)
	if err != nil || speech == nil {
		if err != nil {
			p.logger.Warn("synthesis failed, skipping reply", "error", err)
		}
		p.metrics.MarkResponseDone()
		return EventPlaybackDone
	}

	playCtx, stopFeed := context.WithCancel(ctx)
	in := make(chan audioio.Chunk, 8)
	go func() {
		defer close(in)
		for pcm := range speech {
			p.metrics.MarkFirstAudio()
			p.metrics.IncrementAudioOut()
			var c audioio.Chunk
			c.FromBytes(pcm, replySampleRate, 1)
			select {
			case in <- c:
			case <-playCtx.Done():
				for range speech {
				}
				return
			}
		}
	}()

	if err := p.audio.PlayStream(playCtx, in, nil); err != nil {
		p.logger.Warn("reply playback failed", "error", err)
	}
	stopFeed()

	p.metrics.MarkResponseDone()
	m := p.metrics.Current()
	p.logger.Info("turn complete", "latency", m.FormatLatency())
	return EventPlaybackDone
}

// handleError pauses for the cooldown, then resumes or halts.
func (p *Pipeline) handleError(ctx context.Context) Event {
	p.logger.Warn("pipeline in error state", "cooldown", p.cfg.ErrorCooldown)

	timer := time.NewTimer(p.cfg.ErrorCooldown)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
		return EventHalted
	}

	if p.cfg.AutoRestart {
		p.logger.Info("resuming after error")
		return EventRecovered
	}
	return EventHalted
}

// ensureRecording opens the capture stream, retrying through the
// recovery manager on failure.
func (p *Pipeline) ensureRecording(ctx context.Context) bool {
	err := p.audio.StartRecording(ctx)
	if err == nil {
		return true
	}
	p.logger.Warn("start recording failed", "error", err)
	_, rerr := p.recov.AttemptRecovery(ctx, recovery.ClassAudioStream, p.audio.StartRecording)
	return rerr == nil
}

// restartStream reopens an unhealthy capture stream.
func (p *Pipeline) restartStream(ctx context.Context) bool {
	p.logger.Warn("capture stream unhealthy, reopening")
	p.audio.StopRecording()
	_, err := p.recov.AttemptRecovery(ctx, recovery.ClassAudioStream, p.audio.StartRecording)
	return err == nil
}

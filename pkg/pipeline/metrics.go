package pipeline

import (
	"sync"
	"time"
)

// Metrics tracks latency for one conversation turn. All durations are
// measured from the moment end of speech was detected.
type Metrics struct {
	SpeechEndTime    time.Time // end of speech detected
	TranscriptTime   time.Time // transcription completed
	FirstAudioTime   time.Time // first reply audio chunk arrived
	ResponseDoneTime time.Time // reply fully played

	TranscriptLatency time.Duration
	FirstAudioLatency time.Duration
	TotalLatency      time.Duration

	AudioChunksIn  int
	AudioChunksOut int
}

// FormatLatency returns a one-line latency summary.
func (m *Metrics) FormatLatency() string {
	return formatDuration(m.TranscriptLatency) + " STT | " +
		formatDuration(m.FirstAudioLatency) + " TTS | " +
		formatDuration(m.TotalLatency) + " TOTAL"
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return "---ms"
	}
	return d.Round(time.Millisecond).String()
}

// metricsHistory bounds how many turns Average covers.
const metricsHistory = 100

// MetricsCollector accumulates per-turn latency. Goroutine-safe.
type MetricsCollector struct {
	mu      sync.Mutex
	current Metrics
	history []Metrics
}

// NewMetricsCollector creates an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{history: make([]Metrics, 0, metricsHistory)}
}

// MarkSpeechEnd starts a new turn. All latencies are measured from this
// point.
func (m *MetricsCollector) MarkSpeechEnd() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = Metrics{SpeechEndTime: time.Now()}
}

// MarkTranscript records transcription completion.
func (m *MetricsCollector) MarkTranscript() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.TranscriptTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TranscriptLatency = m.current.TranscriptTime.Sub(m.current.SpeechEndTime)
	}
}

// MarkFirstAudio records the first reply audio chunk. Later calls in
// the same turn are ignored.
func (m *MetricsCollector) MarkFirstAudio() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.current.FirstAudioTime.IsZero() {
		return
	}
	m.current.FirstAudioTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.FirstAudioLatency = m.current.FirstAudioTime.Sub(m.current.SpeechEndTime)
	}
}

// MarkResponseDone closes the turn and archives it.
func (m *MetricsCollector) MarkResponseDone() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.ResponseDoneTime = time.Now()
	if !m.current.SpeechEndTime.IsZero() {
		m.current.TotalLatency = m.current.ResponseDoneTime.Sub(m.current.SpeechEndTime)
	}
	m.history = append(m.history, m.current)
	if len(m.history) > metricsHistory {
		m.history = m.history[1:]
	}
}

// IncrementAudioIn counts a captured chunk for this turn.
func (m *MetricsCollector) IncrementAudioIn() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksIn++
}

// IncrementAudioOut counts a played chunk for this turn.
func (m *MetricsCollector) IncrementAudioOut() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.AudioChunksOut++
}

// Current returns the in-progress turn's metrics.
func (m *MetricsCollector) Current() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Average returns mean latencies over the archived turns.
func (m *MetricsCollector) Average() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.history) == 0 {
		return Metrics{}
	}
	var avg Metrics
	for _, h := range m.history {
		avg.TranscriptLatency += h.TranscriptLatency
		avg.FirstAudioLatency += h.FirstAudioLatency
		avg.TotalLatency += h.TotalLatency
	}
	n := time.Duration(len(m.history))
	avg.TranscriptLatency /= n
	avg.FirstAudioLatency /= n
	avg.TotalLatency /= n
	return avg
}

// Turns returns how many completed turns have been archived.
func (m *MetricsCollector) Turns() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.history)
}

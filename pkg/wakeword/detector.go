package wakeword

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// ErrNoModels indicates a Detector was constructed without scorers.
var ErrNoModels = errors.New("wakeword: at least one model is required")

// Detector checks chunks against a set of wake-word models.
//
// Models are evaluated in registration order and the first match wins.
// After any match the whole set goes quiet for the configured cooldown.
type Detector struct {
	cfg     Config
	scorers []Scorer
	logger  *slog.Logger

	now func() time.Time

	mu            sync.Mutex
	lastDetection time.Time
	detections    int64
}

// NewDetector creates a Detector over the given models. The primary
// model goes first: on ties, earlier registration wins.
func NewDetector(cfg Config, scorers []Scorer, logger *slog.Logger) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(scorers) == 0 {
		return nil, ErrNoModels
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		cfg:     cfg,
		scorers: scorers,
		logger:  logger.With("component", "wakeword"),
		now:     time.Now,
	}, nil
}

// Models returns the registered model names in order.
func (d *Detector) Models() []string {
	names := make([]string, len(d.scorers))
	for i, s := range d.scorers {
		names[i] = s.Name()
	}
	return names
}

// Detections returns how many detections have been reported.
func (d *Detector) Detections() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.detections
}

// ProcessAudio scores a chunk against the active models and returns the
// matched model name. During the cooldown window no scoring happens and
// no match is reported.
func (d *Detector) ProcessAudio(chunk audioio.Chunk) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if !d.lastDetection.IsZero() && now.Sub(d.lastDetection) < d.cfg.Cooldown {
		return "", false
	}

	threshold := d.cfg.Threshold()
	for _, s := range d.scorers {
		score, err := s.Score(chunk.Samples)
		if err != nil {
			d.logger.Warn("model scoring failed", "model", s.Name(), "error", err)
			continue
		}
		if score > threshold {
			d.lastDetection = now
			d.detections++
			d.logger.Info("wake word detected",
				"model", s.Name(),
				"score", score,
				"threshold", threshold,
			)
			return s.Name(), true
		}
	}
	return "", false
}

// Listen drives ProcessAudio over a live chunk stream and invokes
// onWake with the matched model name. The callback is dispatched on its
// own goroutine so it cannot stall scoring. Listen returns when the
// stream closes or ctx is cancelled.
func (d *Detector) Listen(ctx context.Context, in <-chan audioio.Chunk, onWake func(model string)) {
	for {
		select {
		case chunk, ok := <-in:
			if !ok {
				return
			}
			if model, matched := d.ProcessAudio(chunk); matched && onWake != nil {
				go onWake(model)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Reset clears every model's running state. With preserveCooldown the
// last-detection timestamp survives, so a wake word that just fired
// cannot immediately re-trigger from playback echo.
func (d *Detector) Reset(preserveCooldown bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range d.scorers {
		s.Reset()
	}
	if !preserveCooldown {
		d.lastDetection = time.Time{}
	}
}

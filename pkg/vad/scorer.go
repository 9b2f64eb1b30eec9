package vad

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/luma-robotics/go-luma/internal/httpc"
	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// Scorer produces a speech probability in [0,1] for a chunk of samples.
type Scorer interface {
	// Score returns the probability that samples contain speech.
	Score(samples []int16) (float64, error)

	// RequiredSamples returns the exact sample count Score accepts, or
	// 0 when any size is acceptable.
	RequiredSamples() int

	// Reset clears any running state the scorer keeps between chunks.
	Reset()
}

// energyDivisor maps RMS amplitude to probability: min(1, rms/1400).
const energyDivisor = 1400.0

// EnergyScorer scores speech by RMS energy. It has no model state,
// accepts any chunk size, and never fails, which makes it the fallback
// when model scoring is unavailable.
type EnergyScorer struct{}

// Score returns min(1, rms/1400).
func (EnergyScorer) Score(samples []int16) (float64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	var sum float64
	for _, s := range samples {
		f := float64(s)
		sum += f * f
	}
	rms := math.Sqrt(sum / float64(len(samples)))
	return math.Min(1, rms/energyDivisor), nil
}

// RequiredSamples returns 0: any chunk size is acceptable.
func (EnergyScorer) RequiredSamples() int { return 0 }

// Reset is a no-op.
func (EnergyScorer) Reset() {}

// ModelScorer scores speech through an HTTP model sidecar. The sidecar
// accepts base64 PCM16 and returns a probability.
type ModelScorer struct {
	endpoint string
	required int
	client   *http.Client
}

// NewModelScorer creates a scorer backed by the sidecar at endpoint.
// requiredSamples is the exact chunk size the model accepts (512 for
// the standard 16 kHz model).
func NewModelScorer(endpoint string, requiredSamples int) *ModelScorer {
	return &ModelScorer{
		endpoint: endpoint,
		required: requiredSamples,
		client:   httpc.NewClient(2 * time.Second),
	}
}

type scoreRequest struct {
	Audio      string `json:"audio"`
	SampleRate int    `json:"sample_rate,omitempty"`
}

type scoreResponse struct {
	Probability float64 `json:"probability"`
}

// Score posts the chunk to the sidecar and returns its probability.
func (s *ModelScorer) Score(samples []int16) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		Audio: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
	})
	if err != nil {
		return 0, fmt.Errorf("vad: encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("vad: build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("vad: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("vad: score request: status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("vad: decode score response: %w", err)
	}
	if out.Probability < 0 || out.Probability > 1 {
		return 0, fmt.Errorf("vad: score out of range: %g", out.Probability)
	}
	return out.Probability, nil
}

// RequiredSamples returns the model's fixed chunk size.
func (s *ModelScorer) RequiredSamples() int { return s.required }

// Reset posts a reset to the sidecar so its recurrent state is cleared.
// Failures here are ignored: the next Score carries its own error.
func (s *ModelScorer) Reset() {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.endpoint+"/reset", nil)
	if err != nil {
		return
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var (
	_ Scorer = EnergyScorer{}
	_ Scorer = (*ModelScorer)(nil)
)

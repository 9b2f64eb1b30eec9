package wakeword

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/luma-robotics/go-luma/internal/httpc"
	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// Scorer scores a chunk against one wake-word model.
type Scorer interface {
	// Name identifies the model, e.g. "hey_luma".
	Name() string

	// Score returns the model's confidence in [0,1] that the chunk
	// completes the wake phrase.
	Score(samples []int16) (float64, error)

	// Reset clears the model's running state (wake-word models keep a
	// rolling audio context between chunks).
	Reset()
}

// ModelScorer scores through an HTTP model sidecar, one model per
// endpoint path.
type ModelScorer struct {
	name     string
	endpoint string
	client   *http.Client
}

// NewModelScorer creates a scorer for the named model served at
// endpoint.
func NewModelScorer(name, endpoint string) *ModelScorer {
	return &ModelScorer{
		name:     name,
		endpoint: endpoint,
		client:   httpc.NewClient(2 * time.Second),
	}
}

// Name returns the model name.
func (s *ModelScorer) Name() string { return s.name }

type scoreRequest struct {
	Model string `json:"model"`
	Audio string `json:"audio"`
}

type scoreResponse struct {
	Score float64 `json:"score"`
}

// Score posts the chunk to the sidecar and returns the model's
// confidence.
func (s *ModelScorer) Score(samples []int16) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		Model: s.name,
		Audio: base64.StdEncoding.EncodeToString(audioio.SamplesToBytes(samples)),
	})
	if err != nil {
		return 0, fmt.Errorf("wakeword: encode score request: %w", err)
	}

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("wakeword: build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("wakeword: score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return 0, fmt.Errorf("wakeword: score request: status %d", resp.StatusCode)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("wakeword: decode score response: %w", err)
	}
	return out.Score, nil
}

// Reset posts a reset for this model so its rolling audio context is
// cleared. Failures are ignored.
func (s *ModelScorer) Reset() {
	body, err := json.Marshal(scoreRequest{Model: s.name})
	if err != nil {
		return
	}
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, s.endpoint+"/reset", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

var _ Scorer = (*ModelScorer)(nil)

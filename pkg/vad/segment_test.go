package vad

import (
	"context"
	"testing"
	"time"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

func sendChunks(in chan<- audioio.Chunk, cfg Config, amplitudes []int16) {
	for _, a := range amplitudes {
		in <- makeChunk(cfg, a)
	}
}

func TestDetectSegmentReplaysPreRoll(t *testing.T) {
	cfg := testDetectorConfig()
	cfg.PreRoll = 300 * time.Millisecond // 9 chunks at 32ms
	d := newTestDetector(t, cfg)

	// 20 quiet chunks tagged 1..20, then speech, then silence.
	var seq []int16
	for i := int16(1); i <= 20; i++ {
		seq = append(seq, i)
	}
	for i := 0; i < 40; i++ {
		seq = append(seq, 5000)
	}
	for i := 0; i < 93; i++ {
		seq = append(seq, 0)
	}

	in := make(chan audioio.Chunk, len(seq))
	sendChunks(in, cfg, seq)
	close(in)
	out := d.DetectSegment(context.Background(), in)

	var got []int16
	for c := range out {
		got = append(got, c.Samples[0])
	}

	if len(got) == 0 {
		t.Fatal("expected a segment")
	}

	// The last 9 quiet chunks are replayed ahead of the first speech
	// chunk; earlier quiet audio is gone.
	for i := 0; i < 9; i++ {
		want := int16(12 + i)
		if got[i] != want {
			t.Errorf("pre-roll chunk %d: expected tag %d, got %d", i, want, got[i])
		}
	}
	if got[9] != 5000 {
		t.Errorf("expected first speech chunk after pre-roll, got %d", got[9])
	}

	// The segment ends in trailing silence, not mid-speech.
	if got[len(got)-1] != 0 {
		t.Errorf("expected segment to end in silence, got %d", got[len(got)-1])
	}
}

func TestDetectSegmentEndsWhenInputCloses(t *testing.T) {
	cfg := testDetectorConfig()
	d := newTestDetector(t, cfg)

	in := make(chan audioio.Chunk)
	out := d.DetectSegment(context.Background(), in)
	close(in)

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected no chunks from an empty input")
		}
	case <-time.After(time.Second):
		t.Fatal("segment channel did not close")
	}
}

func TestDetectSegmentHonorsCancellation(t *testing.T) {
	cfg := testDetectorConfig()
	d := newTestDetector(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan audioio.Chunk)
	out := d.DetectSegment(ctx, in)
	cancel()

	select {
	case _, ok := <-out:
		if ok {
			t.Error("expected no chunks after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("segment channel did not close after cancellation")
	}
}

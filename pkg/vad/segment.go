package vad

import (
	"context"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// DetectSegment consumes chunks from in until one full speech segment
// has been observed and returns the segment as a finite channel. A
// rolling pre-roll window is replayed once speech starts so the segment
// is not front-truncated, then live chunks are yielded until end of
// speech.
//
// The returned channel is closed at end of speech, when in closes, or
// when ctx is cancelled. It cannot be restarted: call DetectSegment
// again for the next segment.
func (d *Detector) DetectSegment(ctx context.Context, in <-chan audioio.Chunk) <-chan audioio.Chunk {
	out := make(chan audioio.Chunk)

	preRollChunks := 0
	if cd := d.cfg.ChunkDuration(); cd > 0 {
		preRollChunks = int(d.cfg.PreRoll / cd)
	}

	go func() {
		defer close(out)

		var preRoll []audioio.Chunk
		speaking := false

		emit := func(c audioio.Chunk) bool {
			select {
			case out <- c:
				return true
			case <-ctx.Done():
				return false
			}
		}

		for {
			var chunk audioio.Chunk
			var ok bool
			select {
			case chunk, ok = <-in:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}

			state := d.ProcessAudio(chunk)

			if !speaking {
				preRoll = append(preRoll, chunk)
				if len(preRoll) > preRollChunks+1 {
					preRoll = preRoll[1:]
				}
				if state != StateSpeaking {
					continue
				}
				speaking = true
				for _, buffered := range preRoll {
					if !emit(buffered) {
						return
					}
				}
				preRoll = nil
				continue
			}

			if !emit(chunk) {
				return
			}
			if state == StateEndOfSpeech {
				return
			}
		}
	}()

	return out
}

package pipeline

import (
	"math"
	"time"

	"github.com/luma-robotics/go-luma/pkg/audioio"
)

// beepAmplitude keeps the cue well under full scale.
const beepAmplitude = 0.2

// confirmationBeep generates a short sine cue with a linear fade-out so
// it does not click.
func confirmationBeep(freq float64, dur time.Duration, sampleRate int) []byte {
	n := int(float64(sampleRate) * dur.Seconds())
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / float64(sampleRate)
		fade := 1.0 - float64(i)/float64(n)
		v := beepAmplitude * fade * math.Sin(2*math.Pi*freq*t)
		samples[i] = int16(v * math.MaxInt16)
	}
	return audioio.SamplesToBytes(samples)
}

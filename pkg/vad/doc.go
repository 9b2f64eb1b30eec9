// Package vad classifies captured audio as speech or silence and finds
// utterance boundaries.
//
// The Detector is a small state machine fed one chunk at a time through
// ProcessAudio. All timing is derived from the audio itself (samples at
// the configured sample rate), never the wall clock, so a given input
// stream always produces the same state sequence.
//
// Scoring is pluggable through the Scorer interface. The primary scorer
// is typically a model served over HTTP (ModelScorer); if it fails the
// detector switches permanently to energy-based scoring (EnergyScorer)
// and reports itself degraded.
package vad

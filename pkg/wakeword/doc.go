// Package wakeword gates the voice pipeline behind one or more wake
// phrases.
//
// A Detector holds named scorers in registration order and checks each
// chunk against all of them. Detections are rate-limited by a cooldown
// window shared across the whole model set, so a single utterance never
// produces a double trigger even when two models both match it.
package wakeword

package vad

import (
	"byteai/callagent/internal/audio"
)

// Detector is a per-call energy gate over decoded telephony frames. It counts
// consecutive frames whose RMS clears the threshold and reports speech onset
// once the run reaches MinFrames; any quiet frame resets the run. With 20ms
// frames and MinFrames=3 the detection latency is ~60ms.
//
// The detector only runs while the agent holds the floor; while the caller
// holds it, onset detection is driven by recognizer interims instead, which
// avoids false triggers from line noise during silence.
type Detector struct {
	threshold float64
	minFrames int

	consec int
}

// Config carries the tunables. Threshold and frame count are call-quality
// dependent, so they come from configuration rather than constants.
type Config struct {
	Threshold float64 // RMS over linear PCM16 samples
	MinFrames int     // consecutive frames required for onset
}

func New(cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 1000
	}
	if cfg.MinFrames <= 0 {
		cfg.MinFrames = 3
	}
	return &Detector{threshold: cfg.Threshold, minFrames: cfg.MinFrames}
}

// Process measures one mu-law frame and reports whether this frame completes
// a speech onset. The counter resets after an onset fires, so a sustained
// utterance produces exactly one onset until Reset or a quiet frame restarts
// the cycle.
func (d *Detector) Process(frame []byte) bool {
	rms := audio.RMS(audio.DecodeMulaw(frame))
	if rms < d.threshold {
		d.consec = 0
		return false
	}
	d.consec++
	if d.consec >= d.minFrames {
		d.consec = 0
		return true
	}
	return false
}

// Reset clears the consecutive-frame counter. Called when the agent takes the
// floor so energy from before the turn cannot count toward a barge-in.
func (d *Detector) Reset() {
	d.consec = 0
}

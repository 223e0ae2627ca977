// Package attribution decides which participant an audio frame belongs to.
//
// The media layer delivers a hinted active-speaker id with each frame. The
// hint is only trusted when the frame actually carries speech energy: a quiet
// frame never erases the last known active speaker.
package attribution

import (
	"errors"
	"math"
	"sync/atomic"
)

// EnergyThreshold is the RMS level, in the int16 sample domain, above which a
// frame counts as active speech for speaker assignment.
const EnergyThreshold = 500.0

// ErrShortFrame reports a buffer too small to hold a single 16-bit sample.
var ErrShortFrame = errors.New("attribution: frame shorter than one sample")

// RMS computes the root-mean-square energy of 16 kHz 16-bit LE mono PCM.
// A trailing odd byte is ignored.
func RMS(frame []byte) (float64, error) {
	if len(frame) < 2 {
		return 0, ErrShortFrame
	}
	samples := len(frame) / 2
	var sumSquares float64
	for i := 0; i < samples; i++ {
		s := int16(uint16(frame[2*i]) | uint16(frame[2*i+1])<<8)
		sumSquares += float64(s) * float64(s)
	}
	return math.Sqrt(sumSquares / float64(samples)), nil
}

// Tracker holds the sticky current-speaker id for one audio source. It is
// written only from the audio-ingestion path; readers take a snapshot.
type Tracker struct {
	current atomic.Value // string
}

func NewTracker() *Tracker {
	t := &Tracker{}
	t.current.Store("")
	return t
}

// Current returns the last attributed speaker id, or "" before any frame
// carried enough energy.
func (t *Tracker) Current() string {
	return t.current.Load().(string)
}

// Observe applies one frame. The hinted id takes over only when the frame's
// energy reaches EnergyThreshold. If the energy cannot be computed the hint
// is accepted as-is (fail-open), and the error is returned so the caller can
// log it at debug level.
func (t *Tracker) Observe(hintedID string, frame []byte) error {
	if hintedID == "" {
		return nil
	}
	rms, err := RMS(frame)
	if err != nil {
		t.current.Store(hintedID)
		return err
	}
	if rms >= EnergyThreshold {
		t.current.Store(hintedID)
	}
	return nil
}

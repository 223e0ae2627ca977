package recognition

import (
	"sync"
	"time"
)

// MinInterimInterval is the minimum spacing between published interim
// captions for one speaker.
const MinInterimInterval = 500 * time.Millisecond

// Throttle rate-limits interim events per speaker. One Throttle is owned by
// one Manager and dies with the call, so the last-sent table cannot grow
// across calls.
//
// Allow uses compare-and-swap on the per-key timestamp: two near-simultaneous
// events for the same speaker cannot both pass the gate.
type Throttle struct {
	min  time.Duration
	base time.Time
	now  func() time.Duration // monotonic since base
	last sync.Map             // key -> int64 elapsed
}

func NewThrottle(min time.Duration) *Throttle {
	t := &Throttle{min: min, base: time.Now()}
	t.now = func() time.Duration { return time.Since(t.base) }
	return t
}

// Allow reports whether an interim event for key may be published now, and
// if so records the send time.
func (t *Throttle) Allow(key string) bool {
	now := int64(t.now())
	for {
		v, loaded := t.last.LoadOrStore(key, now)
		if !loaded {
			return true
		}
		if now-v.(int64) < int64(t.min) {
			return false
		}
		if t.last.CompareAndSwap(key, v, now) {
			return true
		}
		// lost the race to another event; re-evaluate against its timestamp
	}
}

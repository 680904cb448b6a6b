package monitoring

import (
	"sync"
	"time"
)

// Throttle limits how often a repeating diagnostic is emitted. Events that
// arrive within Interval of the last emitted one are counted and reported
// with the next emission.
type Throttle struct {
	Interval time.Duration

	mu         sync.Mutex
	last       time.Time
	suppressed int
	now        func() time.Time
}

// NewThrottle returns a throttle that emits at most once per interval.
func NewThrottle(interval time.Duration) *Throttle {
	return &Throttle{Interval: interval, now: time.Now}
}

// Allow reports whether the caller should emit now, and how many events
// were swallowed since the previous emission.
func (t *Throttle) Allow() (ok bool, suppressed int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := time.Now()
	if t.now != nil {
		now = t.now()
	}
	if !t.last.IsZero() && now.Sub(t.last) < t.Interval {
		t.suppressed++
		return false, 0
	}
	suppressed = t.suppressed
	t.suppressed = 0
	t.last = now
	return true, suppressed
}

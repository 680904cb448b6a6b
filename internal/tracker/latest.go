package tracker

import (
	"sync"
	"time"

	"github.com/banshee-data/headtrack/internal/pose"
)

// latest holds the most recent sample written by a receive goroutine.
type latest struct {
	mu      sync.Mutex
	p       pose.Pose
	at      time.Time
	samples uint64
}

func (l *latest) store(p pose.Pose, at time.Time) {
	l.mu.Lock()
	l.p = p
	l.at = at
	l.samples++
	l.mu.Unlock()
}

func (l *latest) load() pose.Pose {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.p
}

// Stats describes what a tracker has received.
type Stats struct {
	Samples uint64
	Last    time.Time
}

func (l *latest) stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Stats{Samples: l.samples, Last: l.at}
}

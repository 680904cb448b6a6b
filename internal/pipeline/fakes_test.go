package pipeline

import (
	"fmt"
	"sync"

	"github.com/banshee-data/headtrack/internal/pose"
)

// scriptTracker replays a list of samples, repeating the last one.
type scriptTracker struct {
	mu        sync.Mutex
	samples   []pose.Pose
	idx       int
	ownCenter bool
	centers   int
}

func (s *scriptTracker) Data() pose.Pose {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.samples) == 0 {
		return pose.Pose{}
	}
	p := s.samples[s.idx]
	if s.idx < len(s.samples)-1 {
		s.idx++
	}
	return p
}

func (s *scriptTracker) Center() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.centers++
	return s.ownCenter
}

// push appends a sample and makes it the next one returned.
func (s *scriptTracker) push(p pose.Pose) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples = append(s.samples, p)
	s.idx = len(s.samples) - 1
}

type recordingProtocol struct {
	mu    sync.Mutex
	poses []pose.Pose
}

func (r *recordingProtocol) Pose(p pose.Pose) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.poses = append(r.poses, p)
}

func (r *recordingProtocol) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.poses)
}

func (r *recordingProtocol) last() pose.Pose {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.poses) == 0 {
		return pose.Pose{}
	}
	return r.poses[len(r.poses)-1]
}

type funcFilter struct {
	fn      func(pose.Pose) pose.Pose
	centers int
}

func (f *funcFilter) Filter(in pose.Pose) pose.Pose { return f.fn(in) }
func (f *funcFilter) Center()                       { f.centers++ }

type recordingLogger struct {
	mu    sync.Mutex
	calls []string
}

func (l *recordingLogger) add(s string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, s)
}

func (l *recordingLogger) Write(label string)    { l.add("write:" + label) }
func (l *recordingLogger) WriteDt()              { l.add("dt") }
func (l *recordingLogger) ResetDt()              { l.add("reset") }
func (l *recordingLogger) WritePose(p pose.Pose) { l.add(fmt.Sprintf("pose:%v", [6]float64(p))) }
func (l *recordingLogger) NextLine()             { l.add("next") }

package pipeline

import (
	"fmt"
	"reflect"

	"github.com/banshee-data/headtrack/internal/pose"
)

// Tracker produces raw head pose samples.
type Tracker interface {
	// Data returns the most recent sample.
	Data() pose.Pose
	// Center is called when centering is requested. It returns true when
	// the device re-zeroes itself, in which case the pipeline does not
	// capture its own center reference.
	Center() bool
}

// Filter smooths the centered pose.
type Filter interface {
	Filter(in pose.Pose) pose.Pose
	// Center resets internal state after a centering event.
	Center()
}

// Protocol receives the final pose every cycle.
type Protocol interface {
	Pose(p pose.Pose)
}

// Stage identifies a point in the cycle where events run.
type Stage int

const (
	StageRaw Stage = iota
	StageBeforeFilter
	StageBeforeMapping
	StageFinished
)

func (s Stage) String() string {
	switch s {
	case StageRaw:
		return "raw"
	case StageBeforeFilter:
		return "before-filter"
	case StageBeforeMapping:
		return "before-mapping"
	case StageFinished:
		return "finished"
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// EventHandler runs extensions at fixed stages of each cycle. Handlers may
// adjust the pose in place.
type EventHandler interface {
	RunEvents(stage Stage, p *pose.Pose)
}

// EventFunc adapts a function to EventHandler.
type EventFunc func(stage Stage, p *pose.Pose)

func (f EventFunc) RunEvents(stage Stage, p *pose.Pose) { f(stage, p) }

// TrackLogger records one row per cycle: the cycle interval followed by
// the raw, corrected, filtered and mapped poses.
type TrackLogger interface {
	// Write appends a header label.
	Write(label string)
	// WriteDt appends the time since the last ResetDt.
	WriteDt()
	ResetDt()
	WritePose(p pose.Pose)
	// NextLine terminates the current row.
	NextLine()
}

// Libraries bundles the plugins used by a session. Filter may be nil.
type Libraries struct {
	Tracker  Tracker
	Filter   Filter
	Protocol Protocol
}

type nopEvents struct{}

func (nopEvents) RunEvents(Stage, *pose.Pose) {}

type nopLogger struct{}

func (nopLogger) Write(string)        {}
func (nopLogger) WriteDt()            {}
func (nopLogger) ResetDt()            {}
func (nopLogger) WritePose(pose.Pose) {}
func (nopLogger) NextLine()           {}

type nopProtocol struct{}

func (nopProtocol) Pose(pose.Pose) {}

// isNilInterface checks if an interface value is nil or contains a nil pointer.
// This handles the Go interface nil pitfall where interface{} != nil but the underlying value is nil.
func isNilInterface(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}

package tracker

import (
	"math"
	"time"

	"github.com/banshee-data/headtrack/internal/pose"
)

// Synthetic produces a slow Lissajous head motion for exercising the
// pipeline without hardware.
type Synthetic struct {
	// Amplitude per axis; rotations in degrees, translations in cm.
	Amplitude pose.Pose
	// Period of the yaw sweep. Other axes run at fixed ratios of it.
	Period time.Duration

	start time.Time
	now   func() time.Time
}

var syntheticRatios = pose.Pose{1.3, 0.7, 0.5, 1, 1.7, 2.3}

// NewSynthetic returns a generator with moderate defaults.
func NewSynthetic(now func() time.Time) *Synthetic {
	if now == nil {
		now = time.Now
	}
	return &Synthetic{
		Amplitude: pose.Pose{5, 3, 4, 60, 25, 10},
		Period:    8 * time.Second,
		start:     now(),
		now:       now,
	}
}

// Data samples the motion at the current time.
func (s *Synthetic) Data() pose.Pose {
	t := s.now().Sub(s.start).Seconds()
	w := 2 * math.Pi / s.Period.Seconds()
	var p pose.Pose
	for i := range p {
		p[i] = s.Amplitude[i] * math.Sin(w*syntheticRatios[i]*t)
	}
	return p
}

// Center restarts the motion from its neutral phase.
func (s *Synthetic) Center() bool {
	s.start = s.now()
	return true
}

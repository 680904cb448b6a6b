// Package filter provides pose smoothing plugins.
package filter

import (
	"fmt"

	"github.com/banshee-data/headtrack/internal/pose"
)

// EMA applies exponential moving average smoothing per axis. Rotation
// axes follow the shortest angular path so a yaw crossing ±180 does not
// swing through zero.
type EMA struct {
	translationAlpha float64
	rotationAlpha    float64

	state  pose.Pose
	primed bool
}

// NewEMA returns a filter with the given smoothing factors in (0, 1].
// Higher is more responsive; 1 disables smoothing for that group.
func NewEMA(translationAlpha, rotationAlpha float64) (*EMA, error) {
	for _, a := range []float64{translationAlpha, rotationAlpha} {
		if !(a > 0 && a <= 1) {
			return nil, fmt.Errorf("smoothing factor %v must be in (0, 1]", a)
		}
	}
	return &EMA{translationAlpha: translationAlpha, rotationAlpha: rotationAlpha}, nil
}

// Filter returns the smoothed pose.
func (f *EMA) Filter(in pose.Pose) pose.Pose {
	if !f.primed {
		f.state = in
		f.primed = true
		return in
	}
	for i := range in {
		axis := pose.Axis(i)
		if !axis.IsRotation() {
			f.state[i] += f.translationAlpha * (in[i] - f.state[i])
			continue
		}
		diff := wrap180(in[i] - f.state[i])
		f.state[i] = wrap180(f.state[i] + f.rotationAlpha*diff)
	}
	return f.state
}

// Center drops the history so the next sample passes through unchanged.
func (f *EMA) Center() {
	f.primed = false
}

func wrap180(x float64) float64 {
	for x > 180 {
		x -= 360
	}
	for x < -180 {
		x += 360
	}
	return x
}

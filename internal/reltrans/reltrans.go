// Package reltrans implements relative translation compensation: the
// simulated head-pivot translation derived from the current orientation,
// optionally limited to the "looking away" zone and eased in and out with a
// one-pole low-pass filter.
package reltrans

import (
	"fmt"
	"math"
	"time"

	"github.com/banshee-data/headtrack/internal/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mode selects when compensation applies.
type Mode int

const (
	// Disabled passes poses through untouched.
	Disabled Mode = iota
	// Always compensates at every orientation.
	Always
	// NonCenter compensates only when looking away from the screen.
	NonCenter
)

func (m Mode) String() string {
	switch m {
	case Disabled:
		return "disabled"
	case Always:
		return "always"
	case NonCenter:
		return "non_center"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "disabled", "":
		return Disabled, nil
	case "always":
		return Always, nil
	case "non_center":
		return NonCenter, nil
	}
	return Disabled, fmt.Errorf("unknown reltrans mode %q", s)
}

const (
	// Rest zone for NonCenter mode, in degrees.
	zoneYaw   = 50
	zonePitch = 40

	// Low-pass time constant, seconds.
	rc = 0.1
	// Interpolation stops once the residual drops below this.
	stopResidual = 0.05
)

// Compensator carries the zone and interpolation state between cycles.
// It is not safe for concurrent use; the pipeline worker owns it.
type Compensator struct {
	interpPos     r3.Vec
	interpStart   time.Time
	interpolating bool
	inZone        bool

	now func() time.Time
}

// Option configures a Compensator.
type Option func(*Compensator)

// WithClock replaces time.Now as the interpolation time source.
func WithClock(now func() time.Time) Option {
	return func(c *Compensator) { c.now = now }
}

// New returns a compensator that is out of zone and not interpolating.
func New(opts ...Option) *Compensator {
	c := &Compensator{now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

// InZone reports whether the last update was inside the compensation zone.
func (c *Compensator) InZone() bool { return c.inZone }

// Interpolating reports whether the output is still easing toward the
// rotated translation.
func (c *Compensator) Interpolating() bool { return c.interpolating }

// Rotate applies R to a translation given in pipeline axes. Pipeline TY is
// the rotation's yaw axis, so channels are reassigned as (Z, -X, -Y) going
// in and (Z', -Y', -X') coming out; the sign flips correct handedness. A
// channel marked in disable keeps its input value.
func Rotate(R pose.Rmat, in r3.Vec, disable [3]bool) r3.Vec {
	ret := R.MulVec(r3.Vec{X: in.Z, Y: -in.X, Z: -in.Y})

	out := r3.Vec{X: -ret.Y, Y: -ret.Z, Z: ret.X}
	if disable[pose.TX] {
		out.X = in.X
	}
	if disable[pose.TY] {
		out.Y = in.Y
	}
	if disable[pose.TZ] {
		out.Z = in.Z
	}
	return out
}

// ApplyNeck returns the translation produced by pivoting around a neck
// located nz centimetres behind the head. A neutral orientation yields
// zero.
func ApplyNeck(p pose.Pose, enable bool, nz float64) r3.Vec {
	if !enable || nz == 0 {
		return r3.Vec{}
	}
	R := pose.EulerDegToRmat(p.Rotation())
	neck := Rotate(R, r3.Vec{Z: nz}, [3]bool{})
	neck.Z -= nz
	return neck
}

// ApplyPipeline returns p with its translation compensated for the current
// orientation according to mode. disable marks translation channels that
// must not be compensated (TX..TZ) and source angles that are ignored when
// building the rotation (Yaw..Roll). Rotation channels pass through.
func (c *Compensator) ApplyPipeline(mode Mode, p pose.Pose, disable pose.Mask) pose.Pose {
	if mode == Disabled {
		c.interpolating = false
		c.inZone = false
		return p
	}

	rel := p.Translation()

	inZone := true
	if mode == NonCenter {
		yawInZone := math.Abs(p[pose.Yaw]) < zoneYaw
		pitchInZone := math.Abs(p[pose.Pitch]) < zonePitch
		inZone = !(yawInZone && pitchInZone)
	}

	if !c.interpolating && c.inZone != inZone {
		c.interpolating = true
		c.interpStart = c.now()
	}
	c.inZone = inZone

	if c.inZone {
		angles := p.Rotation()
		if disable[pose.Yaw] {
			angles.X = 0
		}
		if disable[pose.Pitch] {
			angles.Y = 0
		}
		if disable[pose.Roll] {
			angles.Z = 0
		}
		rel = Rotate(pose.EulerDegToRmat(angles), rel, disable.Translation3())
	}

	if c.interpolating {
		now := c.now()
		dt := now.Sub(c.interpStart).Seconds()
		c.interpStart = now

		alpha := dt / (dt + rc)
		c.interpPos = r3.Add(r3.Scale(1-alpha, c.interpPos), r3.Scale(alpha, rel))

		delta := r3.Sub(rel, c.interpPos)
		rel = c.interpPos

		if residual(delta) < stopResidual {
			c.interpolating = false
		}
	} else {
		c.interpPos = rel
	}

	return p.WithTranslation(rel)
}

// residual measures how far the eased output still is from its target.
// Only the X component is counted, three times over, so Y and Z
// differences never hold interpolation open.
func residual(d r3.Vec) float64 {
	return math.Abs(d.X) + math.Abs(d.X) + math.Abs(d.X)
}

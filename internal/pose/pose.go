// Package pose defines the six-channel head pose exchanged between the
// tracker, the transformation pipeline and the output protocol, together
// with the rotation-matrix helpers used for centering and translation
// compensation.
package pose

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Axis indexes a channel of a Pose.
type Axis int

const (
	TX Axis = iota
	TY
	TZ
	Yaw
	Pitch
	Roll
)

// NumAxes is the number of channels in a Pose.
const NumAxes = 6

var axisNames = [NumAxes]string{"TX", "TY", "TZ", "Yaw", "Pitch", "Roll"}

func (a Axis) String() string {
	if a < 0 || int(a) >= NumAxes {
		return fmt.Sprintf("Axis(%d)", int(a))
	}
	return axisNames[a]
}

// IsRotation reports whether the axis holds an angle in degrees.
func (a Axis) IsRotation() bool {
	return a >= Yaw && a <= Roll
}

// Pose is a 6-DOF sample: translation in centimetres followed by yaw,
// pitch and roll in degrees.
type Pose [NumAxes]float64

// Mask marks channels of a Pose, typically the ones that are disabled.
type Mask [NumAxes]bool

// Translation returns TX, TY, TZ as a vector.
func (p Pose) Translation() r3.Vec {
	return r3.Vec{X: p[TX], Y: p[TY], Z: p[TZ]}
}

// Rotation returns yaw, pitch and roll as X, Y and Z of a vector.
func (p Pose) Rotation() r3.Vec {
	return r3.Vec{X: p[Yaw], Y: p[Pitch], Z: p[Roll]}
}

// WithTranslation returns a copy of p with the translation replaced.
func (p Pose) WithTranslation(v r3.Vec) Pose {
	p[TX], p[TY], p[TZ] = v.X, v.Y, v.Z
	return p
}

// WithRotation returns a copy of p with yaw, pitch and roll replaced.
func (p Pose) WithRotation(v r3.Vec) Pose {
	p[Yaw], p[Pitch], p[Roll] = v.X, v.Y, v.Z
	return p
}

// IsFinite reports whether every channel is neither NaN nor ±Inf.
func (p Pose) IsFinite() bool {
	for _, v := range p {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// IsZero reports whether every channel is exactly zero.
func (p Pose) IsZero() bool {
	for _, v := range p {
		if v != 0 {
			return false
		}
	}
	return true
}

func (p Pose) String() string {
	return fmt.Sprintf("[tx=%.2f ty=%.2f tz=%.2f yaw=%.2f pitch=%.2f roll=%.2f]",
		p[TX], p[TY], p[TZ], p[Yaw], p[Pitch], p[Roll])
}

// Translation3 returns the first three entries of the mask, the layout
// expected by translation helpers.
func (m Mask) Translation3() [3]bool {
	return [3]bool{m[TX], m[TY], m[TZ]}
}

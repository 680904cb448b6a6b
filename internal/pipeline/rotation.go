package pipeline

import (
	"github.com/banshee-data/headtrack/internal/pose"
	"gonum.org/v1/gonum/spatial/r3"
)

// The scaled rotation context shrinks angles by this factor before building
// its matrix and grows them again on the way out, keeping the composed
// rotation far from gimbal lock.
const scaledRotationFactor = 16

// rotationState is the current orientation and the reference captured at
// the last centering. The scaled and real contexts differ only in mult.
type rotationState struct {
	mult     float64
	rotation pose.Rmat
	center   pose.Rmat
}

func newRotationState(mult float64) rotationState {
	return rotationState{mult: mult, rotation: pose.Eye(), center: pose.Eye()}
}

// update rebuilds the current rotation from yaw, pitch and roll in radians.
func (s *rotationState) update(rad r3.Vec) {
	s.rotation = pose.EulerToRmat(r3.Scale(s.mult, rad))
}

func (s *rotationState) captureCenter() { s.center = s.rotation.T() }

func (s *rotationState) resetCenter() { s.center = pose.Eye() }

// centeredDeg returns the current orientation relative to the center
// reference as yaw, pitch and roll in degrees.
func (s *rotationState) centeredDeg() r3.Vec {
	e := pose.RmatToEuler(s.rotation.Mul(s.center))
	return r3.Scale(pose.Rad2Deg/s.mult, e)
}

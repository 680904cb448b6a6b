package pose

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// Deg2Rad converts degrees to radians.
	Deg2Rad = math.Pi / 180
	// Rad2Deg converts radians to degrees.
	Rad2Deg = 180 / math.Pi
)

// Rmat is a 3x3 rotation matrix. Every operation builds a new backing
// matrix, so a value is never observed half-written. The zero value is the
// identity.
type Rmat struct {
	m *mat.Dense
}

// Eye returns the identity rotation.
func Eye() Rmat {
	return Rmat{m: mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	})}
}

func (r Rmat) dense() *mat.Dense {
	if r.m == nil {
		return Eye().m
	}
	return r.m
}

// EulerToRmat builds a rotation matrix from yaw (X), pitch (Y) and roll (Z)
// in radians. The convention is R = Rz(-yaw) * Ry(-pitch) * Rx(-roll).
func EulerToRmat(e r3.Vec) Rmat {
	h, p, b := -e.X, -e.Y, -e.Z

	c1, s1 := math.Cos(h), math.Sin(h)
	c2, s2 := math.Cos(p), math.Sin(p)
	c3, s3 := math.Cos(b), math.Sin(b)

	return Rmat{m: mat.NewDense(3, 3, []float64{
		// z
		c1 * c2,
		c1*s3*s2 - c3*s1,
		s3*s1 + c3*c1*s2,
		// y
		c2 * s1,
		c3*c1 + s3*s1*s2,
		c3*s1*s2 - c1*s3,
		// x
		-s2,
		c2 * s3,
		c3 * c2,
	})}
}

// RmatToEuler is the inverse of EulerToRmat, returning yaw, pitch and roll
// in radians.
func RmatToEuler(r Rmat) r3.Vec {
	d := r.dense()
	return r3.Vec{
		X: math.Atan2(-d.At(1, 0), d.At(0, 0)),
		Y: math.Asin(clampUnit(d.At(2, 0))),
		Z: math.Atan2(-d.At(2, 1), d.At(2, 2)),
	}
}

// asin is undefined just past ±1, which rounding can produce.
func clampUnit(x float64) float64 {
	return math.Max(-1, math.Min(1, x))
}

// At returns the element at row i, column j.
func (r Rmat) At(i, j int) float64 {
	return r.dense().At(i, j)
}

// T returns the transpose, which for a rotation is its inverse.
func (r Rmat) T() Rmat {
	return Rmat{m: mat.DenseCopyOf(r.dense().T())}
}

// Mul returns r * o.
func (r Rmat) Mul(o Rmat) Rmat {
	var out mat.Dense
	out.Mul(r.dense(), o.dense())
	return Rmat{m: &out}
}

// MulVec returns r * v.
func (r Rmat) MulVec(v r3.Vec) r3.Vec {
	x := mat.NewVecDense(3, []float64{v.X, v.Y, v.Z})
	var out mat.VecDense
	out.MulVec(r.dense(), x)
	return r3.Vec{X: out.AtVec(0), Y: out.AtVec(1), Z: out.AtVec(2)}
}

// EulerDegToRmat is EulerToRmat for angles given in degrees.
func EulerDegToRmat(e r3.Vec) Rmat {
	return EulerToRmat(r3.Scale(Deg2Rad, e))
}

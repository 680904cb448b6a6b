// Package mapping holds the per-axis output mapping applied by the
// pipeline: which input channel feeds each output, inversion, a custom zero
// offset and the response curves. Curve shapes are supplied by callers;
// only simple curves live here.
package mapping

import (
	"github.com/banshee-data/headtrack/internal/pose"
)

// SourceDisabled is the Source value of an output axis fed by no input.
const SourceDisabled = pose.NumAxes

// Curve maps an input value to an output value.
type Curve interface {
	Value(x float64) float64
}

// ActivityCurve is implemented by curves that display whether they are the
// one currently in use.
type ActivityCurve interface {
	Curve
	SetTrackingActive(active bool)
}

// Axis is the mapping of one output channel.
type Axis struct {
	// Source is the input channel index, or SourceDisabled.
	Source int
	Invert bool
	// Zero is added to the final output, after inversion is applied to it.
	Zero float64
	// AltEnabled selects Alt for negative inputs.
	AltEnabled bool
	Main       Curve
	Alt        Curve
}

// Disabled reports whether the axis takes no input.
func (a *Axis) Disabled() bool {
	return a.Source == SourceDisabled
}

// Table holds the mapping for all six output channels. The pipeline treats
// it as read-only for the lifetime of a session.
type Table [pose.NumAxes]Axis

// DefaultTable maps every channel to itself through the identity curve.
func DefaultTable() *Table {
	var t Table
	for i := range t {
		t[i] = Axis{Source: i, Main: Identity{}, Alt: Identity{}}
	}
	return &t
}

// Map evaluates the curve for axis at x, picking the alternate curve for
// negative values when enabled. A nil curve is the identity.
func (t *Table) Map(x float64, axis pose.Axis) float64 {
	a := &t[axis]
	alt := x < 0 && a.AltEnabled

	setActive(a.Main, !alt)
	setActive(a.Alt, alt)

	c := a.Main
	if alt {
		c = a.Alt
	}
	if c == nil {
		return x
	}
	return c.Value(x)
}

// Deactivate clears the in-use indicator on every curve.
func (t *Table) Deactivate() {
	for i := range t {
		setActive(t[i].Main, false)
		setActive(t[i].Alt, false)
	}
}

func setActive(c Curve, active bool) {
	if ac, ok := c.(ActivityCurve); ok {
		ac.SetTrackingActive(active)
	}
}

// Identity returns its input.
type Identity struct{}

func (Identity) Value(x float64) float64 { return x }

// Linear multiplies by Gain and clamps the result to ±Limit. A zero Limit
// disables clamping.
type Linear struct {
	Gain  float64
	Limit float64
}

func (l Linear) Value(x float64) float64 {
	y := x * l.Gain
	if l.Limit > 0 {
		if y > l.Limit {
			return l.Limit
		}
		if y < -l.Limit {
			return -l.Limit
		}
	}
	return y
}

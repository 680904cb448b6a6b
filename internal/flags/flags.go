// Package flags holds the lock-free control bits shared between the
// pipeline worker and callers on other goroutines (hotkeys, admin routes).
package flags

import (
	"strings"
	"sync/atomic"
)

// Flag is one bit, or a set of bits, in a Register.
type Flag uint32

const (
	// Center requests a one-shot centering on the next cycle.
	Center Flag = 1 << iota
	// EnabledHotkey is driven by the hold-to-enable hotkey.
	EnabledHotkey
	// EnabledSource is driven by the enable toggle.
	EnabledSource
	// Zero forces the output pose to zero while set.
	Zero
)

func (f Flag) String() string {
	var parts []string
	for _, n := range []struct {
		f    Flag
		name string
	}{
		{Center, "center"},
		{EnabledHotkey, "enabled-hotkey"},
		{EnabledSource, "enabled-source"},
		{Zero, "zero"},
	} {
		if f&n.f != 0 {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// Register packs the control flags into a single atomic word. Updates
// retry a compare-and-swap until they win, so concurrent writers of
// different flags never lose each other's bits.
type Register struct {
	b atomic.Uint32
}

// NewRegister returns a register with center, source-enabled and
// hotkey-enabled set and zero cleared.
func NewRegister() *Register {
	r := &Register{}
	r.Set(Center, true)
	r.Set(EnabledSource, true)
	r.Set(EnabledHotkey, true)
	r.Set(Zero, false)
	return r
}

// Set sets or clears flag.
func (r *Register) Set(flag Flag, val bool) {
	var v uint32
	if val {
		v = 1
	}
	for {
		old := r.b.Load()
		if r.b.CompareAndSwap(old, (old&^uint32(flag))|(uint32(flag)*v)) {
			return
		}
	}
}

// Negate flips flag.
func (r *Register) Negate(flag Flag) {
	for {
		old := r.b.Load()
		if r.b.CompareAndSwap(old, old^uint32(flag)) {
			return
		}
	}
}

// Get reports whether flag is set.
func (r *Register) Get(flag Flag) bool {
	return r.b.Load()&uint32(flag) != 0
}

// Snapshot returns every flag from one atomic load.
func (r *Register) Snapshot() Flag {
	return Flag(r.b.Load())
}

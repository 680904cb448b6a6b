// Package pipeline runs the per-tick head pose transformation: it pulls a
// raw sample from the tracker, remaps and clamps it, applies centering,
// the filter, the response curves and relative translation compensation,
// and hands the result to the output protocol once every 4 ms.
//
// A single worker goroutine owns all cycle state. Other goroutines interact
// only through the control flags (center, zero, enable) and the published
// (mapped, raw) snapshot.
package pipeline

// Package calibration converts device orientation samples into the offset a
// session uses as its zero reference.
//
// Every function operates on values owned by the caller, so nothing here
// locks. A session keeps its own State and replaces it with the result of
// Update or Reset.
package calibration

import "math"

// Sample is a raw three-axis rotation reading from the device. Units and
// ranges are whatever the device reports; nothing is normalized here.
type Sample struct {
	X float64
	Y float64
	Z float64
}

// State is the calibration offset of one session.
type State struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Update captures s as the new zero reference. The previous state does not
// contribute, so applying the same sample twice yields the same state.
// Non-finite axes become 0.
func Update(_ State, s Sample) State {
	return State{
		X: finite(s.X),
		Y: finite(s.Y),
		Z: finite(s.Z),
	}
}

// Reset returns the zero offset.
func Reset() State {
	return State{}
}

// IsZero reports whether st is the reset state.
func (st State) IsZero() bool {
	return st == State{}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

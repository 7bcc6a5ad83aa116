// Package gyro decompresses entropy coded gyroscope blocks.
//
// A block carries delta triples that are integrated into a running 3-axis
// fixed-point State. Large per-sample jumps are coded as a chain of
// saturated triples (any component of magnitude SaturatedDelta) closed by a
// non-saturated one, so only the last triple of a chain finishes a sample.
package gyro

// SaturatedDelta is the delta magnitude that marks a triple as a partial update.
const SaturatedDelta = 127

// State is the integrated fixed-point angular state of the three axes.
// It is carried from block to block and must never be reset mid-stream.
type State [3]int32

// Apply adds delta, scaled by 1<<quantShift, to every axis of s.
//
// The update is unconditional. The boolean reports whether the returned
// state is a finished sample; it is false when any component of delta is
// saturated, in which case the next triple continues the same sample.
func Apply(s State, delta [3]int32, quantShift uint8) (State, bool) {
	done := true
	for i, d := range delta {
		s[i] += d << quantShift
		if d == SaturatedDelta || d == -SaturatedDelta {
			done = false
		}
	}
	return s, done
}

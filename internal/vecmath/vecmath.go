// Package vecmath holds the vector math shared by the matcher and the storage backends.
package vecmath

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Euclidean computes the L2 distance between two vectors in float64.
// Returns +Inf when the lengths differ so that malformed rows never look close.
func Euclidean(a, b []float32) float64 {
	if len(a) != len(b) {
		return math.Inf(1)
	}
	return floats.Distance(widen(a), widen(b), 2)
}

// widen converts a float32 vector to float64 without losing precision.
func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

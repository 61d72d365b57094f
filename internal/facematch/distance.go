package facematch

import (
	"fmt"

	"github.com/kozaktomas/face-login/internal/vecmath"
)

// Distance returns the Euclidean (L2) distance between two descriptors.
// Both descriptors must have the same length.
func Distance(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	return vecmath.Euclidean(a, b), nil
}

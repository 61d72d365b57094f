package facematch

import (
	"fmt"
	"math"

	"github.com/kozaktomas/face-login/internal/constants"
)

// Validate checks that a descriptor has the fixed length and only finite values.
func Validate(d Descriptor) error {
	if len(d) != constants.DescriptorDim {
		return fmt.Errorf("%w: got %d values, want %d", ErrInvalidVector, len(d), constants.DescriptorDim)
	}
	for i, v := range d {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return fmt.Errorf("%w: value %d is not a finite number", ErrInvalidVector, i)
		}
	}
	return nil
}

// ParseDescriptor converts decoded JSON numbers into a validated descriptor.
// Values outside the float32 range are rejected because they would be stored as infinities.
func ParseDescriptor(values []float64) (Descriptor, error) {
	if len(values) != constants.DescriptorDim {
		return nil, fmt.Errorf("%w: got %d values, want %d", ErrInvalidVector, len(values), constants.DescriptorDim)
	}
	d := make(Descriptor, len(values))
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) || math.Abs(v) > math.MaxFloat32 {
			return nil, fmt.Errorf("%w: value %d is not a finite number", ErrInvalidVector, i)
		}
		d[i] = float32(v)
	}
	return d, nil
}

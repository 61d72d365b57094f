package facematch

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/kozaktomas/face-login/internal/constants"
)

// unitVector returns a descriptor with 1 at position i and zeros elsewhere.
func unitVector(i int) Descriptor {
	d := make(Descriptor, constants.DescriptorDim)
	d[i] = 1
	return d
}

// descriptorOf pads the given leading values with zeros to the descriptor length.
func descriptorOf(values ...float32) Descriptor {
	d := make(Descriptor, constants.DescriptorDim)
	copy(d, values)
	return d
}

func randomDescriptor(r *rand.Rand) Descriptor {
	d := make(Descriptor, constants.DescriptorDim)
	for i := range d {
		d[i] = float32(r.NormFloat64() * 0.1)
	}
	return d
}

func TestDistance_Reflexive(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for range 20 {
		v := randomDescriptor(r)
		got, err := Distance(v, v)
		if err != nil {
			t.Fatalf("Distance() error = %v", err)
		}
		if got != 0 {
			t.Errorf("Distance(v, v) = %v, want 0", got)
		}
	}
}

func TestDistance_SymmetricAndNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(2))
	for range 50 {
		a, b := randomDescriptor(r), randomDescriptor(r)
		ab, err := Distance(a, b)
		if err != nil {
			t.Fatalf("Distance() error = %v", err)
		}
		ba, _ := Distance(b, a)
		if ab != ba {
			t.Errorf("Distance(a, b) = %v, Distance(b, a) = %v", ab, ba)
		}
		if ab < 0 {
			t.Errorf("Distance(a, b) = %v, want >= 0", ab)
		}
	}
}

func TestDistance_KnownValues(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
		want float64
	}{
		{"orthogonal units", unitVector(0), unitVector(1), math.Sqrt2},
		{"3-4-5", descriptorOf(3, 0), descriptorOf(0, 4), 5},
		{"half step", descriptorOf(0.5), descriptorOf(0), 0.5},
		{"empty", Descriptor{}, Descriptor{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Distance(tt.a, tt.b)
			if err != nil {
				t.Fatalf("Distance() error = %v", err)
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Distance() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDistance_LengthMismatch(t *testing.T) {
	_, err := Distance(make(Descriptor, 128), make(Descriptor, 127))
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}

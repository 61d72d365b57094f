package vecmath

import (
	"math"
	"testing"
)

func TestEuclidean(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical", []float32{0.1, 0.2, 0.3}, []float32{0.1, 0.2, 0.3}, 0},
		{"3-4-5", []float32{0, 0}, []float32{3, 4}, 5},
		{"unit axes", []float32{1, 0}, []float32{0, 1}, math.Sqrt2},
		{"length mismatch", []float32{1, 2}, []float32{1}, math.Inf(1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Euclidean(tt.a, tt.b)
			if math.IsInf(tt.want, 1) {
				if !math.IsInf(got, 1) {
					t.Errorf("Euclidean() = %v, want +Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Euclidean() = %v, want %v", got, tt.want)
			}
		})
	}
}

package temporal

import (
	"math"
	"testing"
)

func TestComputeShortTimeRMS(t *testing.T) {
	energy := NewEnergy(4, 2, 16000)

	signal := make([]float64, 16)
	for i := range signal {
		signal[i] = 0.5
	}

	rms := energy.ComputeShortTimeRMS(signal)
	if len(rms) == 0 {
		t.Fatal("expected frames for a signal longer than the frame size")
	}
	for i, v := range rms {
		if math.Abs(v-0.5) > 1e-9 {
			t.Errorf("frame %d: constant 0.5 signal should have RMS 0.5, got %f", i, v)
		}
	}

	if got := energy.ComputeShortTimeRMS(make([]float64, 2)); len(got) != 0 {
		t.Errorf("signal shorter than frame size should yield no frames, got %d", len(got))
	}
}

func TestVariationCoefficient(t *testing.T) {
	energy := NewEnergy(4, 2, 16000)

	tests := []struct {
		name     string
		energies []float64
		want     float64
	}{
		// Population std of {1,2,3,4} is sqrt(1.25), mean 2.5
		{"uneven energies", []float64{1, 2, 3, 4}, math.Sqrt(1.25) / 2.5},
		{"constant energies", []float64{2, 2, 2, 2}, 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := energy.VariationCoefficient(tt.energies)
			if math.Abs(got-tt.want) > 1e-6 {
				t.Errorf("VariationCoefficient(%v) = %f, want %f", tt.energies, got, tt.want)
			}
		})
	}
}

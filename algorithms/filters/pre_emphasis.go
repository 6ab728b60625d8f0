package filters

import (
	"fmt"
)

// PreEmphasis implements a first-order pre-emphasis filter:
//
//	y[n] = x[n] - α*x[n-1]
//
// Pre-emphasis flattens the natural spectral roll-off of speech before
// short-time analysis, which stabilizes the cepstral statistics the
// detector relies on. α = 0.97 is the standard speech value.
//
// Reference: L.R. Rabiner, R.W. Schafer, "Digital Processing of Speech
// Signals", Prentice-Hall, 1978, Chapter 4.
type PreEmphasis struct {
	coefficient float64
}

// NewPreEmphasis creates a pre-emphasis filter with the given coefficient.
// Coefficient must be in (0, 1); typical speech values are 0.95-0.97.
func NewPreEmphasis(coefficient float64) (*PreEmphasis, error) {
	if coefficient <= 0.0 || coefficient >= 1.0 {
		return nil, fmt.Errorf("pre-emphasis coefficient must be in (0, 1): %f", coefficient)
	}
	return &PreEmphasis{coefficient: coefficient}, nil
}

// NewPreEmphasisDefault creates a pre-emphasis filter with the standard
// speech coefficient (0.97)
func NewPreEmphasisDefault() *PreEmphasis {
	return &PreEmphasis{coefficient: 0.97}
}

// Apply filters the signal and returns a new slice
func (pe *PreEmphasis) Apply(signal []float64) []float64 {
	if len(signal) == 0 {
		return []float64{}
	}

	filtered := make([]float64, len(signal))
	filtered[0] = signal[0]
	for i := 1; i < len(signal); i++ {
		filtered[i] = signal[i] - pe.coefficient*signal[i-1]
	}

	return filtered
}

// Coefficient returns the filter coefficient α
func (pe *PreEmphasis) Coefficient() float64 {
	return pe.coefficient
}

package spectral

import (
	"math"
)

// SpectralFlatness computes spectral flatness (Wiener entropy).
// Low flatness means tonal, smooth spectra - the over-smoothness that AI
// voice generators tend to produce - while natural speech carries more
// noise-like roughness.
type SpectralFlatness struct {
	minThreshold float64 // Minimum value to avoid log(0)
}

// NewSpectralFlatness creates a new spectral flatness calculator
func NewSpectralFlatness() *SpectralFlatness {
	return &SpectralFlatness{
		minThreshold: 1e-10,
	}
}

// Compute calculates spectral flatness for a single magnitude spectrum.
// Returns ratio of geometric mean to arithmetic mean (0-1 range).
func (sf *SpectralFlatness) Compute(magnitudeSpectrum []float64) float64 {
	if len(magnitudeSpectrum) == 0 {
		return 0.0
	}

	// Geometric mean in log domain for numerical stability
	logSum := 0.0
	validCount := 0

	for _, magnitude := range magnitudeSpectrum {
		if magnitude > sf.minThreshold {
			logSum += math.Log(magnitude)
			validCount++
		}
	}

	if validCount == 0 {
		return 0.0
	}

	geometricMean := math.Exp(logSum / float64(validCount))

	arithmeticMean := 0.0
	for _, magnitude := range magnitudeSpectrum {
		arithmeticMean += magnitude
	}
	arithmeticMean /= float64(len(magnitudeSpectrum))

	if arithmeticMean <= sf.minThreshold {
		return 0.0
	}

	flatness := geometricMean / arithmeticMean

	// Ensure result is in valid range [0, 1]
	if flatness > 1.0 {
		flatness = 1.0
	}

	return flatness
}

// ComputeFrames processes multiple frames efficiently
func (sf *SpectralFlatness) ComputeFrames(spectrogram [][]float64) []float64 {
	if len(spectrogram) == 0 {
		return []float64{}
	}

	flatness := make([]float64, len(spectrogram))

	for t, magnitudeSpectrum := range spectrogram {
		flatness[t] = sf.Compute(magnitudeSpectrum)
	}

	return flatness
}

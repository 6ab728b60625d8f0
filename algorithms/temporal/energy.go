package temporal

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Energy computes frame-based energy statistics. Natural speech carries
// micro-fluctuations in loudness that generators tend to flatten, so the
// spread of short-time energy is part of the forensic evidence.
type Energy struct {
	frameSize  int
	hopSize    int
	sampleRate int
}

// NewEnergy creates a new energy calculator
func NewEnergy(frameSize, hopSize, sampleRate int) *Energy {
	return &Energy{
		frameSize:  frameSize,
		hopSize:    hopSize,
		sampleRate: sampleRate,
	}
}

// ComputeShortTimeRMS calculates RMS energy for overlapping frames
func (e *Energy) ComputeShortTimeRMS(signal []float64) []float64 {
	if len(signal) < e.frameSize || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * e.hopSize
		endIdx := startIdx + e.frameSize

		if endIdx > len(signal) {
			break
		}

		sumSquares := 0.0
		for j := startIdx; j < endIdx; j++ {
			sumSquares += signal[j] * signal[j]
		}
		energies[i] = math.Sqrt(sumSquares / float64(e.frameSize))
	}

	return energies
}

// ComputeFrameEnergies calculates summed squared energy per frame
// (not RMS), matching the frame energy used for the variation coefficient
func (e *Energy) ComputeFrameEnergies(signal []float64) []float64 {
	if len(signal) < e.frameSize || e.hopSize <= 0 || e.frameSize <= 0 {
		return []float64{}
	}

	numFrames := (len(signal)-e.frameSize)/e.hopSize + 1
	energies := make([]float64, numFrames)

	for i := range numFrames {
		startIdx := i * e.hopSize
		endIdx := startIdx + e.frameSize

		if endIdx > len(signal) {
			break
		}

		sum := 0.0
		for j := startIdx; j < endIdx; j++ {
			sum += signal[j] * signal[j]
		}
		energies[i] = sum
	}

	return energies
}

// VariationCoefficient returns std/mean of the given frame energies.
// A small epsilon keeps the ratio finite on near-silent input.
func (e *Energy) VariationCoefficient(energies []float64) float64 {
	if len(energies) == 0 {
		return 0.0
	}

	mean := stat.Mean(energies, nil)
	std := stat.PopStdDev(energies, nil)

	return std / (mean + 1e-8)
}

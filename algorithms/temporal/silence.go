package temporal

import (
	"math"
)

// SilenceTrimmer locates the non-silent span of a clip using an energy
// threshold relative to the clip's own peak frame energy, so quiet but
// valid recordings survive trimming intact.
type SilenceTrimmer struct {
	frameSize int
	hopSize   int
	topDB     float64 // Frames more than topDB below the peak frame count as silence
}

// NewSilenceTrimmer creates a trimmer with the given analysis frame geometry
func NewSilenceTrimmer(frameSize, hopSize int, topDB float64) *SilenceTrimmer {
	return &SilenceTrimmer{
		frameSize: frameSize,
		hopSize:   hopSize,
		topDB:     topDB,
	}
}

// TrimBounds returns [start, end) sample indices of the non-silent span.
// Returns (0, 0) when every frame is silent.
func (st *SilenceTrimmer) TrimBounds(signal []float64) (int, int) {
	if len(signal) == 0 {
		return 0, 0
	}

	if len(signal) < st.frameSize {
		// Too short for frame analysis; keep as-is
		return 0, len(signal)
	}

	energy := NewEnergy(st.frameSize, st.hopSize, 0)
	rms := energy.ComputeShortTimeRMS(signal)
	if len(rms) == 0 {
		return 0, len(signal)
	}

	peak := 0.0
	for _, v := range rms {
		if v > peak {
			peak = v
		}
	}
	if peak == 0 {
		return 0, 0
	}

	// Threshold relative to the clip's own peak, not an absolute constant
	threshold := peak * dbToAmplitude(-st.topDB)

	firstFrame := -1
	lastFrame := -1
	for i, v := range rms {
		if v >= threshold {
			if firstFrame == -1 {
				firstFrame = i
			}
			lastFrame = i
		}
	}

	if firstFrame == -1 {
		return 0, 0
	}

	start := firstFrame * st.hopSize
	end := lastFrame*st.hopSize + st.frameSize
	if end > len(signal) {
		end = len(signal)
	}

	return start, end
}

// dbToAmplitude converts a dB value to a linear amplitude ratio
func dbToAmplitude(db float64) float64 {
	return math.Pow(10.0, db/20.0)
}

package tonal

import (
	"math"

	"github.com/sonaguard/sonaguard/algorithms/spectral"
	"github.com/sonaguard/sonaguard/algorithms/windowing"
)

// PitchTrackerParams contains parameters for frame-based pitch tracking
type PitchTrackerParams struct {
	SampleRate int     `json:"sample_rate"`
	WindowSize int     `json:"window_size"`
	HopSize    int     `json:"hop_size"`
	MinFreq    float64 `json:"min_freq"` // Lowest admissible F0 (Hz)
	MaxFreq    float64 `json:"max_freq"` // Highest admissible F0 (Hz)

	// VoicingThreshold is the minimum normalized autocorrelation peak for a
	// frame to count as voiced. Unvoiced frames are excluded from pitch
	// statistics, not treated as zero.
	VoicingThreshold float64 `json:"voicing_threshold"`
}

// DefaultPitchTrackerParams returns parameters tuned for 16 kHz speech
func DefaultPitchTrackerParams(sampleRate int) PitchTrackerParams {
	return PitchTrackerParams{
		SampleRate:       sampleRate,
		WindowSize:       2048,
		HopSize:          512,
		MinFreq:          50.0,
		MaxFreq:          500.0,
		VoicingThreshold: 0.30,
	}
}

// PitchFrame is the pitch estimate for a single analysis frame
type PitchFrame struct {
	Frequency float64 `json:"frequency"` // F0 estimate in Hz (0 when unvoiced)
	Voicing   float64 `json:"voicing"`   // Normalized autocorrelation peak (0-1)
	Voiced    bool    `json:"voiced"`
}

// PitchTracker estimates the fundamental frequency track of a voice clip
// using FFT-accelerated autocorrelation with parabolic peak refinement.
//
// References:
//   - Rabiner, L.R. (1977). "On the use of autocorrelation analysis for
//     pitch detection"
//   - Boersma, P. (1993). "Accurate short-term analysis of the fundamental
//     frequency"
//
// Synthetic voices produce overly smooth, low-variance pitch contours, so
// the statistics of this track carry strong forensic signal.
type PitchTracker struct {
	params PitchTrackerParams
	fft    *spectral.FFT
	window *windowing.Hann
}

// NewPitchTracker creates a pitch tracker with default parameters
func NewPitchTracker(sampleRate int) *PitchTracker {
	return NewPitchTrackerWithParams(DefaultPitchTrackerParams(sampleRate))
}

// NewPitchTrackerWithParams creates a pitch tracker with custom parameters
func NewPitchTrackerWithParams(params PitchTrackerParams) *PitchTracker {
	if params.WindowSize <= 0 {
		params.WindowSize = 2048
	}
	if params.HopSize <= 0 {
		params.HopSize = params.WindowSize / 4
	}
	if params.MinFreq <= 0 {
		params.MinFreq = 50.0
	}
	if params.MaxFreq <= params.MinFreq {
		params.MaxFreq = 500.0
	}
	if params.VoicingThreshold <= 0 {
		params.VoicingThreshold = 0.30
	}

	return &PitchTracker{
		params: params,
		fft:    spectral.NewFFT(),
		window: windowing.NewHann(params.WindowSize, true),
	}
}

// Track computes the frame-by-frame pitch estimates for a signal
func (pt *PitchTracker) Track(signal []float64) []PitchFrame {
	if len(signal) < pt.params.WindowSize {
		return []PitchFrame{}
	}

	numFrames := (len(signal)-pt.params.WindowSize)/pt.params.HopSize + 1
	frames := make([]PitchFrame, numFrames)

	frameBuffer := make([]float64, pt.params.WindowSize)

	for i := range numFrames {
		startIdx := i * pt.params.HopSize
		copy(frameBuffer, signal[startIdx:startIdx+pt.params.WindowSize])

		frames[i] = pt.analyzeFrame(frameBuffer)
	}

	return frames
}

// VoicedFrequencies returns only the F0 values of voiced frames
func (pt *PitchTracker) VoicedFrequencies(frames []PitchFrame) []float64 {
	var freqs []float64
	for _, f := range frames {
		if f.Voiced {
			freqs = append(freqs, f.Frequency)
		}
	}
	return freqs
}

// analyzeFrame estimates pitch for a single frame.
// The frame buffer is windowed in place.
func (pt *PitchTracker) analyzeFrame(frame []float64) PitchFrame {
	// Remove DC so silence doesn't correlate as a low frequency
	mean := 0.0
	for _, s := range frame {
		mean += s
	}
	mean /= float64(len(frame))
	for i := range frame {
		frame[i] -= mean
	}

	if err := pt.window.ApplyInPlace(frame); err != nil {
		return PitchFrame{}
	}

	autocorr := pt.autocorrelation(frame)
	if len(autocorr) == 0 || autocorr[0] <= 1e-12 {
		return PitchFrame{}
	}

	// Lag bounds from the admissible F0 range
	minLag := int(float64(pt.params.SampleRate) / pt.params.MaxFreq)
	maxLag := int(float64(pt.params.SampleRate) / pt.params.MinFreq)
	if maxLag >= len(autocorr) {
		maxLag = len(autocorr) - 1
	}
	if minLag < 2 || minLag >= maxLag {
		return PitchFrame{}
	}

	// Find the strongest normalized peak inside the lag range
	bestLag := -1
	bestValue := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		value := autocorr[lag] / autocorr[0]
		if value > bestValue && autocorr[lag] > autocorr[lag-1] && autocorr[lag] >= autocorr[lag+1] {
			bestValue = value
			bestLag = lag
		}
	}

	if bestLag < 0 || bestValue < pt.params.VoicingThreshold {
		return PitchFrame{Voicing: bestValue}
	}

	// Parabolic interpolation around the peak for sub-sample lag accuracy
	refinedLag := float64(bestLag)
	if bestLag > 0 && bestLag < len(autocorr)-1 {
		alpha := autocorr[bestLag-1]
		beta := autocorr[bestLag]
		gamma := autocorr[bestLag+1]
		denom := alpha - 2*beta + gamma
		if math.Abs(denom) > 1e-12 {
			refinedLag += 0.5 * (alpha - gamma) / denom
		}
	}

	frequency := float64(pt.params.SampleRate) / refinedLag
	if frequency < pt.params.MinFreq || frequency > pt.params.MaxFreq {
		return PitchFrame{Voicing: bestValue}
	}

	return PitchFrame{
		Frequency: frequency,
		Voicing:   bestValue,
		Voiced:    true,
	}
}

// autocorrelation computes the autocorrelation of a frame via FFT
// (Wiener-Khinchin), zero-padded to avoid circular wrap-around
func (pt *PitchTracker) autocorrelation(frame []float64) []float64 {
	n := len(frame)
	padded := make([]float64, 2*n)
	copy(padded, frame)

	spectrum := pt.fft.Compute(padded)
	for i, c := range spectrum {
		re := real(c)
		im := imag(c)
		spectrum[i] = complex(re*re+im*im, 0)
	}

	autocorr := pt.fft.ComputeInverseReal(spectrum)
	if len(autocorr) > n {
		autocorr = autocorr[:n]
	}

	return autocorr
}

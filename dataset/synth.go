// Package dataset produces labeled training data for the voice classifier:
// synthetic feature vectors drawn from per-class distributions grounded in
// audio forensics research, and feature vectors extracted from labeled
// audio directories.
package dataset

import (
	"math/rand"

	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
)

// Labels of the binary classification task
const (
	LabelAI    = 0
	LabelHuman = 1
)

// featureRange is a uniform sampling interval for one feature
type featureRange struct {
	low, high float64
}

// aiRanges describes typical AI-generated voices: low pitch variance,
// spectrally over-smooth, minimal energy variation, uniform timbre.
// Ordered per the forensic feature schema.
var aiRanges = [forensics.NumFeatures]featureRange{
	{-50, -20},     // mfcc_mean
	{5, 15},        // mfcc_std
	{25, 100},      // mfcc_var
	{20, 50},       // mfcc_max
	{-100, -60},    // mfcc_min
	{100, 250},     // pitch_mean
	{5, 25},        // pitch_std
	{25, 400},      // pitch_variance
	{20, 100},      // pitch_range
	{0.01, 0.08},   // spectral_flatness_mean
	{0.01, 0.05},   // spectral_flatness_std
	{1000, 3000},   // spectral_centroid_mean
	{100, 400},     // spectral_centroid_std
	{2000, 5000},   // spectral_rolloff_mean
	{800, 1500},    // spectral_bandwidth_mean
	{0.05, 0.15},   // rms_mean
	{0.01, 0.04},   // rms_std
	{0.0001, 0.002}, // rms_variance
	{0.05, 0.15},   // zcr_mean
	{0.005, 0.02},  // zcr_std
	{0.1, 0.4},     // energy_variation
	{1.0, 10.0},    // audio_duration
}

// humanRanges describes natural speech: high pitch variance, spectral
// roughness, fluctuating energy, diverse timbre
var humanRanges = [forensics.NumFeatures]featureRange{
	{-60, -10},    // mfcc_mean
	{15, 35},      // mfcc_std
	{100, 300},    // mfcc_var
	{30, 80},      // mfcc_max
	{-120, -50},   // mfcc_min
	{80, 300},     // pitch_mean
	{25, 60},      // pitch_std
	{500, 3000},   // pitch_variance
	{100, 400},    // pitch_range
	{0.1, 0.4},    // spectral_flatness_mean
	{0.05, 0.15},  // spectral_flatness_std
	{1500, 4000},  // spectral_centroid_mean
	{300, 800},    // spectral_centroid_std
	{3000, 7000},  // spectral_rolloff_mean
	{1200, 2500},  // spectral_bandwidth_mean
	{0.08, 0.20},  // rms_mean
	{0.04, 0.10},  // rms_std
	{0.002, 0.01}, // rms_variance
	{0.08, 0.20},  // zcr_mean
	{0.02, 0.06},  // zcr_std
	{0.5, 2.0},    // energy_variation
	{1.0, 10.0},   // audio_duration
}

// SynthOptions configures synthetic dataset generation
type SynthOptions struct {
	NumAI    int   `json:"num_ai"`
	NumHuman int   `json:"num_human"`
	Seed     int64 `json:"seed"`
}

// DefaultSynthOptions matches the size of the reference training corpus
func DefaultSynthOptions() SynthOptions {
	return SynthOptions{
		NumAI:    1000,
		NumHuman: 1000,
		Seed:     42,
	}
}

// Synthesize generates a shuffled labeled dataset in feature space.
// Deterministic for a fixed seed.
func Synthesize(opts SynthOptions) ([][]float64, []int) {
	if opts.NumAI <= 0 {
		opts.NumAI = DefaultSynthOptions().NumAI
	}
	if opts.NumHuman <= 0 {
		opts.NumHuman = DefaultSynthOptions().NumHuman
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	total := opts.NumAI + opts.NumHuman

	samples := make([][]float64, 0, total)
	labels := make([]int, 0, total)

	for range opts.NumAI {
		samples = append(samples, drawSample(rng, &aiRanges))
		labels = append(labels, LabelAI)
	}
	for range opts.NumHuman {
		samples = append(samples, drawSample(rng, &humanRanges))
		labels = append(labels, LabelHuman)
	}

	rng.Shuffle(total, func(i, j int) {
		samples[i], samples[j] = samples[j], samples[i]
		labels[i], labels[j] = labels[j], labels[i]
	})

	logging.Info("Synthetic dataset generated", logging.Fields{
		"ai_samples":    opts.NumAI,
		"human_samples": opts.NumHuman,
		"num_features":  forensics.NumFeatures,
	})

	return samples, labels
}

func drawSample(rng *rand.Rand, ranges *[forensics.NumFeatures]featureRange) []float64 {
	sample := make([]float64, forensics.NumFeatures)
	for i, r := range ranges {
		sample[i] = r.low + rng.Float64()*(r.high-r.low)
	}
	return sample
}

package forensics

import (
	"fmt"
	"math"

	"github.com/sonaguard/sonaguard/algorithms/filters"
	"github.com/sonaguard/sonaguard/algorithms/spectral"
	"github.com/sonaguard/sonaguard/algorithms/stats"
	"github.com/sonaguard/sonaguard/algorithms/temporal"
	"github.com/sonaguard/sonaguard/algorithms/tonal"
	"github.com/sonaguard/sonaguard/algorithms/windowing"
	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/logging"
	"github.com/sonaguard/sonaguard/transcode"
)

// ExtractorConfig holds the short-time analysis geometry. Frame size and hop
// are fixed so statistics stay comparable across clips of different lengths,
// and must match the geometry the deployed model was trained with.
type ExtractorConfig struct {
	SampleRate       int     `json:"sample_rate"`
	FrameSize        int     `json:"frame_size"`
	HopSize          int     `json:"hop_size"`
	NumMFCC          int     `json:"num_mfcc"`
	RolloffThreshold float64 `json:"rolloff_threshold"`
	PreEmphasis      float64 `json:"pre_emphasis"`
}

// DefaultExtractorConfig returns the analysis configuration the shipped
// models are trained against
func DefaultExtractorConfig() *ExtractorConfig {
	return &ExtractorConfig{
		SampleRate:       16000,
		FrameSize:        2048,
		HopSize:          512,
		NumMFCC:          13,
		RolloffThreshold: 0.85,
		PreEmphasis:      0.97,
	}
}

// Extractor derives the ordered forensic feature vector from a canonical
// waveform. Extraction is a pure function of the input samples: identical
// audio always yields identical features, on both the training and the
// serving path.
type Extractor struct {
	config *ExtractorConfig

	preEmphasis *filters.PreEmphasis
	window      *windowing.Hann
	stft        *spectral.STFT
	mfcc        *spectral.MFCC
	flatness    *spectral.SpectralFlatness
	centroid    *spectral.SpectralCentroid
	rolloff     *spectral.SpectralRolloff
	bandwidth   *spectral.SpectralBandwidth
	zcr         *spectral.ZeroCrossingRate
	energy      *temporal.Energy
	pitch       *tonal.PitchTracker
}

// NewExtractor creates a feature extractor
func NewExtractor(config *ExtractorConfig) (*Extractor, error) {
	if config == nil {
		config = DefaultExtractorConfig()
	}

	preEmphasis, err := filters.NewPreEmphasis(config.PreEmphasis)
	if err != nil {
		return nil, fmt.Errorf("invalid pre-emphasis coefficient: %w", err)
	}

	mfcc := spectral.NewMFCC(config.SampleRate, config.NumMFCC)
	if err := mfcc.Initialize(config.FrameSize); err != nil {
		return nil, fmt.Errorf("failed to initialize MFCC: %w", err)
	}

	pitchParams := tonal.DefaultPitchTrackerParams(config.SampleRate)
	pitchParams.WindowSize = config.FrameSize
	pitchParams.HopSize = config.HopSize

	return &Extractor{
		config:      config,
		preEmphasis: preEmphasis,
		window:      windowing.NewHann(config.FrameSize, false),
		stft:        spectral.NewSTFT(),
		mfcc:        mfcc,
		flatness:    spectral.NewSpectralFlatness(),
		centroid:    spectral.NewSpectralCentroid(config.SampleRate),
		rolloff:     spectral.NewSpectralRolloff(config.SampleRate),
		bandwidth:   spectral.NewSpectralBandwidth(config.SampleRate),
		zcr:         spectral.NewZeroCrossingRateWithParams(config.SampleRate, config.FrameSize, config.HopSize),
		energy:      temporal.NewEnergy(config.FrameSize, config.HopSize, config.SampleRate),
		pitch:       tonal.NewPitchTrackerWithParams(pitchParams),
	}, nil
}

// Extract computes the ordered feature vector for a canonical waveform.
// Sub-signals that come up empty (for example, no voiced frames) contribute
// zero-valued statistics rather than NaN; any non-finite value in the final
// vector is rejected as FEATURE_DEGENERATE.
func (e *Extractor) Extract(audio *transcode.AudioData) (FeatureVector, error) {
	if audio == nil || len(audio.PCM) == 0 {
		return nil, sgerr.New(sgerr.CodeFeatureDegenerate, "no audio samples to extract from")
	}
	if len(audio.PCM) < e.config.FrameSize {
		return nil, sgerr.Newf(sgerr.CodeFeatureDegenerate,
			"clip has %d samples, need at least %d for frame analysis",
			len(audio.PCM), e.config.FrameSize)
	}

	logger := logging.WithFields(logging.Fields{
		"component": "feature_extractor",
		"samples":   len(audio.PCM),
		"duration":  audio.Duration.Seconds(),
	})

	signal := audio.PCM

	// The spectral path analyzes the pre-emphasized signal; pitch, energy
	// and ZCR use the raw signal because pre-emphasis attenuates the
	// fundamental.
	emphasized := e.preEmphasis.Apply(signal)

	stftResult, err := e.stft.ComputeWithWindow(emphasized, e.config.FrameSize, e.config.HopSize, e.config.SampleRate, e.window)
	if err != nil {
		return nil, sgerr.Wrap(sgerr.CodeFeatureDegenerate, "spectral analysis failed", err)
	}

	mfccFrames, err := e.mfcc.ComputeFrames(stftResult.Magnitude)
	if err != nil {
		return nil, sgerr.Wrap(sgerr.CodeFeatureDegenerate, "cepstral analysis failed", err)
	}
	mfccStats := stats.SummarizeMatrix(mfccFrames)

	flatnessStats := stats.Summarize(e.flatness.ComputeFrames(stftResult.Magnitude))
	centroids := e.centroid.ComputeFrames(stftResult.Magnitude)
	centroidStats := stats.Summarize(centroids)
	rolloffStats := stats.Summarize(e.rolloff.ComputeFrames(stftResult.Magnitude, e.config.RolloffThreshold))
	bandwidthStats := stats.Summarize(e.bandwidth.ComputeFrames(stftResult.Magnitude, centroids))

	pitchFrames := e.pitch.Track(signal)
	pitchStats := stats.Summarize(e.pitch.VoicedFrequencies(pitchFrames))

	rmsStats := stats.Summarize(e.energy.ComputeShortTimeRMS(signal))
	zcrStats := stats.Summarize(e.zcr.ComputeFramesNormalized(signal))

	frameEnergies := e.energy.ComputeFrameEnergies(signal)
	energyVariation := e.energy.VariationCoefficient(frameEnergies)

	vector := FeatureVector{
		mfccStats.Mean,
		mfccStats.Std,
		mfccStats.Variance,
		mfccStats.Max,
		mfccStats.Min,
		pitchStats.Mean,
		pitchStats.Std,
		pitchStats.Variance,
		pitchStats.Range,
		flatnessStats.Mean,
		flatnessStats.Std,
		centroidStats.Mean,
		centroidStats.Std,
		rolloffStats.Mean,
		bandwidthStats.Mean,
		rmsStats.Mean,
		rmsStats.Std,
		rmsStats.Variance,
		zcrStats.Mean,
		zcrStats.Std,
		energyVariation,
		audio.Duration.Seconds(),
	}

	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, sgerr.Newf(sgerr.CodeFeatureDegenerate,
				"feature %q is not finite", featureNames[i])
		}
	}

	logger.Debug("Feature vector extracted", logging.Fields{
		"num_features":  len(vector),
		"voiced_frames": len(e.pitch.VoicedFrequencies(pitchFrames)),
		"stft_frames":   stftResult.TimeFrames,
	})

	return vector, nil
}

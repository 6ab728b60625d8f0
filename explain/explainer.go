// Package explain translates raw forensic measurements into qualitative
// descriptors a non-expert can read. It is rule-based on purpose: the
// levels must be traceable back to specific feature values, which a
// learned model could not guarantee.
package explain

import (
	"github.com/sonaguard/sonaguard/classifier"
	"github.com/sonaguard/sonaguard/forensics"
)

// Closed vocabularies. Levels never fall outside these sets.
const (
	LevelLow    = "low"
	LevelMedium = "medium"
	LevelHigh   = "high"

	LevelAbsent  = "absent"
	LevelMinimal = "minimal"
	LevelPresent = "present"
)

// Explanation holds one qualitative level per analysis axis
type Explanation struct {
	PitchVariance      string `json:"pitch_variance"`      // low | medium | high
	SpectralSmoothness string `json:"spectral_smoothness"` // low | medium | high
	MicroVariations    string `json:"micro_variations"`    // absent | minimal | present
}

// axisRule buckets a derived score into three levels by two cutoffs
type axisRule struct {
	score  func(fv forensics.FeatureVector) float64
	low    float64
	high   float64
	levels [3]string
}

// Explainer buckets selected features against calibrated cutoffs. The
// cutoffs come from the deployed model's training distribution, so the
// qualitative levels describe the clip relative to the data the classifier
// actually saw.
type Explainer struct {
	rules map[string]axisRule
}

// NewExplainer builds the rule table from a calibration
func NewExplainer(cal classifier.Calibration) *Explainer {
	get := func(name string) func(fv forensics.FeatureVector) float64 {
		idx, _ := forensics.FeatureIndex(name)
		return func(fv forensics.FeatureVector) float64 { return fv[idx] }
	}

	energyScore := get("energy_variation")
	zcrStdScore := get("zcr_std")

	return &Explainer{
		rules: map[string]axisRule{
			"pitch_variance": {
				score:  get("pitch_variance"),
				low:    cal.PitchVarianceLow,
				high:   cal.PitchVarianceHigh,
				levels: [3]string{LevelLow, LevelMedium, LevelHigh},
			},
			// Smoothness is the inverse of flatness, so the level order flips
			"spectral_smoothness": {
				score:  get("spectral_flatness_mean"),
				low:    cal.FlatnessLow,
				high:   cal.FlatnessHigh,
				levels: [3]string{LevelHigh, LevelMedium, LevelLow},
			},
			"micro_variations": {
				score: func(fv forensics.FeatureVector) float64 {
					return energyScore(fv) + 10.0*zcrStdScore(fv)
				},
				low:    cal.MicroLow,
				high:   cal.MicroHigh,
				levels: [3]string{LevelAbsent, LevelMinimal, LevelPresent},
			},
		},
	}
}

// Explain buckets the vector's key features into qualitative levels
func (e *Explainer) Explain(fv forensics.FeatureVector) Explanation {
	return Explanation{
		PitchVariance:      e.level("pitch_variance", fv),
		SpectralSmoothness: e.level("spectral_smoothness", fv),
		MicroVariations:    e.level("micro_variations", fv),
	}
}

func (e *Explainer) level(axis string, fv forensics.FeatureVector) string {
	rule := e.rules[axis]
	v := rule.score(fv)
	switch {
	case v < rule.low:
		return rule.levels[0]
	case v < rule.high:
		return rule.levels[1]
	default:
		return rule.levels[2]
	}
}

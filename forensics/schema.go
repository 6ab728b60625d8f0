package forensics

import (
	"fmt"
)

// Version tags the feature schema. A trained model artifact records the
// version and ordered names it was fitted against; serving refuses any
// artifact whose contract differs, because a silently reordered vector
// corrupts every prediction without raising an error.
const Version = "forensic-v1"

// NumFeatures is the dimensionality of the feature vector
const NumFeatures = 22

// featureNames is the canonical feature ordering. Position is meaning:
// the classifier and explainer both address features by these indices.
var featureNames = [NumFeatures]string{
	"mfcc_mean",
	"mfcc_std",
	"mfcc_var",
	"mfcc_max",
	"mfcc_min",
	"pitch_mean",
	"pitch_std",
	"pitch_variance",
	"pitch_range",
	"spectral_flatness_mean",
	"spectral_flatness_std",
	"spectral_centroid_mean",
	"spectral_centroid_std",
	"spectral_rolloff_mean",
	"spectral_bandwidth_mean",
	"rms_mean",
	"rms_std",
	"rms_variance",
	"zcr_mean",
	"zcr_std",
	"energy_variation",
	"audio_duration",
}

var nameToIndex map[string]int

func init() {
	nameToIndex = make(map[string]int, NumFeatures)
	for i, name := range featureNames {
		nameToIndex[name] = i
	}
}

// FeatureNames returns a copy of the canonical ordered feature names
func FeatureNames() []string {
	names := make([]string, NumFeatures)
	copy(names, featureNames[:])
	return names
}

// FeatureIndex returns the position of a named feature in the vector
func FeatureIndex(name string) (int, bool) {
	idx, ok := nameToIndex[name]
	return idx, ok
}

// ValidateSchema checks a recorded (version, names) contract against the
// running schema and reports the first discrepancy.
func ValidateSchema(version string, names []string) error {
	if version != Version {
		return fmt.Errorf("feature version %q does not match running version %q", version, Version)
	}
	if len(names) != NumFeatures {
		return fmt.Errorf("feature count %d does not match running count %d", len(names), NumFeatures)
	}
	for i, name := range names {
		if name != featureNames[i] {
			return fmt.Errorf("feature at position %d is %q, running schema expects %q", i, name, featureNames[i])
		}
	}
	return nil
}

// FeatureVector is an ordered 22-dimensional forensic measurement of a clip.
// Positions follow FeatureNames.
type FeatureVector []float64

// Get returns the named feature's value
func (fv FeatureVector) Get(name string) (float64, bool) {
	idx, ok := nameToIndex[name]
	if !ok || idx >= len(fv) {
		return 0, false
	}
	return fv[idx], true
}

// Map returns the vector as name → value pairs
func (fv FeatureVector) Map() map[string]float64 {
	m := make(map[string]float64, len(fv))
	for i, v := range fv {
		if i < NumFeatures {
			m[featureNames[i]] = v
		}
	}
	return m
}

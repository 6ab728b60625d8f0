package classifier

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"sort"
	"time"

	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
)

// Class labels. Position 0 of every probability pair is AI_GENERATED,
// position 1 is HUMAN.
const (
	LabelAIGenerated = "AI_GENERATED"
	LabelHuman       = "HUMAN"
)

// artifactVersion tags the on-disk model format
const artifactVersion = "1"

// Prediction is the classifier's verdict on one feature vector
type Prediction struct {
	Label         string     `json:"prediction"`
	Confidence    float64    `json:"confidence"`
	Probabilities [2]float64 `json:"probabilities"` // [AI_GENERATED, HUMAN]
}

// Scaler standardizes features to zero mean and unit variance using the
// statistics of the training split. Serving must apply the exact same
// transform or the forest's split thresholds lose their meaning.
type Scaler struct {
	Means []float64 `json:"means"`
	Stds  []float64 `json:"stds"`
}

// FitScaler computes per-feature standardization statistics
func FitScaler(samples [][]float64) *Scaler {
	if len(samples) == 0 {
		return &Scaler{}
	}

	numFeatures := len(samples[0])
	means := make([]float64, numFeatures)
	stds := make([]float64, numFeatures)

	for _, row := range samples {
		for f, v := range row {
			means[f] += v
		}
	}
	n := float64(len(samples))
	for f := range means {
		means[f] /= n
	}
	for _, row := range samples {
		for f, v := range row {
			d := v - means[f]
			stds[f] += d * d
		}
	}
	for f := range stds {
		stds[f] = math.Sqrt(stds[f] / n)
	}

	return &Scaler{Means: means, Stds: stds}
}

// Transform standardizes one sample. Constant features pass through
// centered but unscaled.
func (s *Scaler) Transform(x []float64) []float64 {
	out := make([]float64, len(x))
	for f, v := range x {
		d := v - s.Means[f]
		if s.Stds[f] > 0 {
			d /= s.Stds[f]
		}
		out[f] = d
	}
	return out
}

// Calibration holds the explainer's bucket cutoffs, derived from the
// training distribution's quantiles rather than fixed literals so the
// qualitative levels track whatever data the deployed model saw.
type Calibration struct {
	PitchVarianceLow  float64 `json:"pitch_variance_low"`
	PitchVarianceHigh float64 `json:"pitch_variance_high"`
	FlatnessLow       float64 `json:"flatness_low"`
	FlatnessHigh      float64 `json:"flatness_high"`
	MicroLow          float64 `json:"micro_low"`
	MicroHigh         float64 `json:"micro_high"`
}

// DefaultCalibration returns the historical fixed cutoffs, used only when
// a model artifact predates calibration
func DefaultCalibration() Calibration {
	return Calibration{
		PitchVarianceLow:  500.0,
		PitchVarianceHigh: 2000.0,
		FlatnessLow:       0.1,
		FlatnessHigh:      0.3,
		MicroLow:          0.5,
		MicroHigh:         1.5,
	}
}

// Model is the immutable trained classifier artifact: the forest, the
// feature contract it was fitted against, the scaler, the explainer
// calibration and the held-out evaluation. Built once offline, loaded once
// per process, never mutated during serving.
type Model struct {
	ArtifactVersion string      `json:"artifact_version"`
	FeatureVersion  string      `json:"feature_version"`
	FeatureNames    []string    `json:"feature_names"`
	Scaler          *Scaler     `json:"scaler"`
	Forest          *Forest     `json:"forest"`
	Calibration     Calibration `json:"calibration"`
	HeldOutAccuracy float64     `json:"held_out_accuracy"`
	NumSamples      int         `json:"num_samples"`
	TrainedAt       time.Time   `json:"trained_at"`
}

// Validate checks the artifact's feature contract against the running
// schema. A mismatch is fatal: a reordered vector silently corrupts every
// prediction, so serving must refuse to start.
func (m *Model) Validate() error {
	if m == nil {
		return sgerr.New(sgerr.CodeModelUnavailable, "no model loaded")
	}
	if m.Forest == nil || len(m.Forest.Trees) == 0 {
		return sgerr.New(sgerr.CodeModelUnavailable, "model artifact has no trained forest")
	}
	if m.Scaler == nil || len(m.Scaler.Means) != forensics.NumFeatures {
		return sgerr.New(sgerr.CodeModelContractMismatch, "model artifact has no matching feature scaler")
	}
	if err := forensics.ValidateSchema(m.FeatureVersion, m.FeatureNames); err != nil {
		return sgerr.Wrap(sgerr.CodeModelContractMismatch, "model feature contract mismatch", err)
	}
	if m.Forest.NumFeatures != forensics.NumFeatures {
		return sgerr.Newf(sgerr.CodeModelContractMismatch,
			"forest expects %d features, running schema has %d", m.Forest.NumFeatures, forensics.NumFeatures)
	}
	return nil
}

// Predict classifies one feature vector
func (m *Model) Predict(features forensics.FeatureVector) (*Prediction, error) {
	if m == nil {
		return nil, sgerr.New(sgerr.CodeModelUnavailable, "no model loaded")
	}
	if len(features) != forensics.NumFeatures {
		return nil, sgerr.Newf(sgerr.CodeModelContractMismatch,
			"feature vector has %d dimensions, model expects %d", len(features), forensics.NumFeatures)
	}

	scaled := m.Scaler.Transform(features)
	probs, err := m.Forest.PredictProbs(scaled)
	if err != nil {
		return nil, sgerr.Wrap(sgerr.CodeInternal, "forest prediction failed", err)
	}

	prediction := &Prediction{Probabilities: probs}
	if probs[1] > probs[0] {
		prediction.Label = LabelHuman
		prediction.Confidence = probs[1]
	} else {
		prediction.Label = LabelAIGenerated
		prediction.Confidence = probs[0]
	}

	return prediction, nil
}

// FeatureImportance ranks feature names by the forest's normalized
// impurity decrease, most important first
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// ImportanceRanking returns features sorted by importance, descending
func (m *Model) ImportanceRanking() []FeatureImportance {
	if m == nil || m.Forest == nil {
		return nil
	}

	names := forensics.FeatureNames()
	ranking := make([]FeatureImportance, 0, len(m.Forest.Importance))
	for f, imp := range m.Forest.Importance {
		if f < len(names) {
			ranking = append(ranking, FeatureImportance{Name: names[f], Importance: imp})
		}
	}
	sort.Slice(ranking, func(i, j int) bool { return ranking[i].Importance > ranking[j].Importance })
	return ranking
}

// Save writes the artifact as JSON
func (m *Model) Save(path string) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write model artifact: %w", err)
	}
	return nil
}

// Load reads and validates a model artifact. A missing or unreadable file
// is MODEL_UNAVAILABLE; a readable artifact trained against a different
// feature contract is MODEL_CONTRACT_MISMATCH.
func Load(path string) (*Model, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, sgerr.Wrap(sgerr.CodeModelUnavailable, "failed to read model artifact", err)
	}

	var model Model
	if err := json.Unmarshal(data, &model); err != nil {
		return nil, sgerr.Wrap(sgerr.CodeModelUnavailable, "failed to parse model artifact", err)
	}

	if err := model.Validate(); err != nil {
		return nil, err
	}

	logging.Info("Model artifact loaded", logging.Fields{
		"path":              path,
		"feature_version":   model.FeatureVersion,
		"num_trees":         len(model.Forest.Trees),
		"held_out_accuracy": model.HeldOutAccuracy,
		"trained_at":        model.TrainedAt,
	})

	return &model, nil
}

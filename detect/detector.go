// Package detect assembles the audio-to-decision pipeline: decode to a
// canonical waveform, extract the forensic feature vector, classify it and
// explain the same measurements the classifier saw.
package detect

import (
	"context"

	"github.com/sonaguard/sonaguard/classifier"
	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/explain"
	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
	"github.com/sonaguard/sonaguard/transcode"
)

// Probabilities is the class distribution of one verdict
type Probabilities struct {
	AIGenerated float64 `json:"ai_generated"`
	Human       float64 `json:"human"`
}

// DetectionResult is the complete verdict on one clip: the classifier's
// label and confidence plus the qualitative explanation derived from the
// same feature vector
type DetectionResult struct {
	Prediction    string              `json:"prediction"`
	Confidence    float64             `json:"confidence"`
	Probabilities Probabilities       `json:"probabilities"`
	Explanation   explain.Explanation `json:"explanation"`
	Insights      []string            `json:"insights"`
	AudioDuration float64             `json:"audio_duration"`
}

// Detector runs the pipeline. It holds only immutable components, so a
// single instance is safe for concurrent use.
type Detector struct {
	decoder   *transcode.Decoder
	extractor *forensics.Extractor
	model     *classifier.Model
	explainer *explain.Explainer
}

// NewDetector builds a detector around a validated model with default
// decoding and extraction configuration
func NewDetector(model *classifier.Model) (*Detector, error) {
	extractor, err := forensics.NewExtractor(nil)
	if err != nil {
		return nil, err
	}
	return NewDetectorWithComponents(transcode.NewDecoder(nil), extractor, model)
}

// NewDetectorWithComponents builds a detector from explicit pipeline
// components. The model is validated against the running feature schema;
// a contract mismatch is refused here, not at first prediction.
func NewDetectorWithComponents(decoder *transcode.Decoder, extractor *forensics.Extractor, model *classifier.Model) (*Detector, error) {
	if err := model.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		decoder:   decoder,
		extractor: extractor,
		model:     model,
		explainer: explain.NewExplainer(model.Calibration),
	}, nil
}

// Detect runs the full pipeline on raw audio bytes. The same clip always
// produces the same result; the model is never mutated.
func (d *Detector) Detect(ctx context.Context, data []byte) (*DetectionResult, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "detector",
		"data_size": len(data),
	})

	audio, err := d.decoder.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sgerr.Wrap(sgerr.CodeInternal, "detection canceled", err)
	}

	features, err := d.extractor.Extract(audio)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, sgerr.Wrap(sgerr.CodeInternal, "detection canceled", err)
	}

	prediction, err := d.model.Predict(features)
	if err != nil {
		return nil, err
	}

	result := &DetectionResult{
		Prediction: prediction.Label,
		Confidence: prediction.Confidence,
		Probabilities: Probabilities{
			AIGenerated: prediction.Probabilities[0],
			Human:       prediction.Probabilities[1],
		},
		Explanation:   d.explainer.Explain(features),
		Insights:      d.explainer.Insights(features),
		AudioDuration: audio.Duration.Seconds(),
	}

	logger.Info("Detection complete", logging.Fields{
		"prediction": result.Prediction,
		"confidence": result.Confidence,
		"duration":   result.AudioDuration,
	})

	return result, nil
}

// ExtractFeatures exposes the serving extraction path for callers that
// need the raw vector, such as the dataset loader and diagnostics
func (d *Detector) ExtractFeatures(data []byte) (forensics.FeatureVector, error) {
	audio, err := d.decoder.DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return d.extractor.Extract(audio)
}

// Model returns the loaded classifier artifact
func (d *Detector) Model() *classifier.Model {
	return d.model
}

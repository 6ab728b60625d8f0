package forensics

import (
	"math"
	"testing"
	"time"

	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/transcode"
)

func makeAudio(freq float64, durationSec float64, amplitude float64) *transcode.AudioData {
	sampleRate := 16000
	n := int(durationSec * float64(sampleRate))
	pcm := make([]float64, n)
	for i := range pcm {
		pcm[i] = amplitude * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
	}
	return &transcode.AudioData{
		PCM:        pcm,
		SampleRate: sampleRate,
		Duration:   time.Duration(n) * time.Second / time.Duration(sampleRate),
	}
}

func TestExtractProducesFullVector(t *testing.T) {
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	vector, err := extractor.Extract(makeAudio(200, 2.0, 0.8))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(vector) != NumFeatures {
		t.Fatalf("expected %d features, got %d", NumFeatures, len(vector))
	}
	for i, v := range vector {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("feature %q is not finite: %v", featureNames[i], v)
		}
	}
}

func TestExtractDeterministic(t *testing.T) {
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	audio := makeAudio(150, 1.5, 0.6)
	first, err := extractor.Extract(audio)
	if err != nil {
		t.Fatalf("first Extract failed: %v", err)
	}
	second, err := extractor.Extract(audio)
	if err != nil {
		t.Fatalf("second Extract failed: %v", err)
	}

	for i := range first {
		if first[i] != second[i] {
			t.Errorf("feature %q differs between runs: %v vs %v", featureNames[i], first[i], second[i])
		}
	}
}

func TestExtractPitchOfPureTone(t *testing.T) {
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	vector, err := extractor.Extract(makeAudio(200, 2.0, 0.8))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	pitchMean, ok := vector.Get("pitch_mean")
	if !ok {
		t.Fatal("pitch_mean missing from schema")
	}
	if math.Abs(pitchMean-200) > 10 {
		t.Errorf("expected pitch near 200 Hz for a 200 Hz tone, got %f", pitchMean)
	}

	// A perfectly periodic tone has an essentially flat pitch track
	pitchStd, _ := vector.Get("pitch_std")
	if pitchStd > 5 {
		t.Errorf("expected near-zero pitch spread for a pure tone, got %f", pitchStd)
	}
}

func TestExtractDurationFeature(t *testing.T) {
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	audio := makeAudio(180, 3.0, 0.7)
	vector, err := extractor.Extract(audio)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	duration, _ := vector.Get("audio_duration")
	if math.Abs(duration-audio.Duration.Seconds()) > 1e-9 {
		t.Errorf("audio_duration %f does not match waveform duration %f", duration, audio.Duration.Seconds())
	}
}

func TestExtractRejectsTinyClip(t *testing.T) {
	extractor, err := NewExtractor(nil)
	if err != nil {
		t.Fatalf("NewExtractor failed: %v", err)
	}

	tests := []struct {
		name  string
		audio *transcode.AudioData
	}{
		{"nil audio", nil},
		{"empty PCM", &transcode.AudioData{SampleRate: 16000}},
		{"below frame size", makeAudio(200, 0.05, 0.5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := extractor.Extract(tt.audio)
			if err == nil {
				t.Fatal("expected error")
			}
			if !sgerr.IsCode(err, sgerr.CodeFeatureDegenerate) {
				t.Errorf("expected FEATURE_DEGENERATE, got %v", err)
			}
		})
	}
}

func TestFeatureSchema(t *testing.T) {
	names := FeatureNames()
	if len(names) != NumFeatures {
		t.Fatalf("expected %d names, got %d", NumFeatures, len(names))
	}

	// Spot-check positions that the classifier contract depends on
	positions := map[string]int{
		"mfcc_mean":      0,
		"pitch_variance": 7,
		"zcr_std":        19,
		"audio_duration": 21,
	}
	for name, want := range positions {
		got, ok := FeatureIndex(name)
		if !ok {
			t.Errorf("feature %q missing from schema", name)
			continue
		}
		if got != want {
			t.Errorf("feature %q at position %d, expected %d", name, got, want)
		}
	}

	if _, ok := FeatureIndex("no_such_feature"); ok {
		t.Error("unknown feature name resolved to an index")
	}
}

func TestValidateSchema(t *testing.T) {
	if err := ValidateSchema(Version, FeatureNames()); err != nil {
		t.Errorf("running schema failed its own validation: %v", err)
	}

	if err := ValidateSchema("forensic-v0", FeatureNames()); err == nil {
		t.Error("expected version mismatch to fail validation")
	}

	short := FeatureNames()[:NumFeatures-1]
	if err := ValidateSchema(Version, short); err == nil {
		t.Error("expected truncated schema to fail validation")
	}

	swapped := FeatureNames()
	swapped[0], swapped[1] = swapped[1], swapped[0]
	if err := ValidateSchema(Version, swapped); err == nil {
		t.Error("expected reordered schema to fail validation")
	}
}

func TestFeatureVectorMap(t *testing.T) {
	vector := make(FeatureVector, NumFeatures)
	for i := range vector {
		vector[i] = float64(i)
	}

	m := vector.Map()
	if len(m) != NumFeatures {
		t.Fatalf("expected %d entries, got %d", NumFeatures, len(m))
	}
	if m["mfcc_mean"] != 0 || m["audio_duration"] != 21 {
		t.Errorf("map values out of order: %v", m)
	}
}

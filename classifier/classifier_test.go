package classifier

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/sonaguard/sonaguard/dataset"
	sgerr "github.com/sonaguard/sonaguard/errors"
	"github.com/sonaguard/sonaguard/forensics"
)

func trainTestModel(t *testing.T) (*Model, *TrainReport, [][]float64, []int) {
	t.Helper()

	samples, labels := dataset.Synthesize(dataset.SynthOptions{NumAI: 200, NumHuman: 200, Seed: 7})

	opts := DefaultTrainOptions()
	opts.Forest.NumTrees = 30

	model, report, err := Train(samples, labels, opts)
	if err != nil {
		t.Fatalf("Train failed: %v", err)
	}
	return model, report, samples, labels
}

func TestTrainSeparatesClasses(t *testing.T) {
	_, report, _, _ := trainTestModel(t)

	// The synthetic class distributions barely overlap, so held-out
	// accuracy must be far above chance
	if report.TestAccuracy < 0.9 {
		t.Errorf("expected held-out accuracy above 0.9, got %f", report.TestAccuracy)
	}
	if report.TrainSamples == 0 || report.TestSamples == 0 {
		t.Errorf("split produced empty partition: train=%d test=%d", report.TrainSamples, report.TestSamples)
	}
}

func TestPredictProbabilities(t *testing.T) {
	model, _, samples, _ := trainTestModel(t)

	for _, sample := range samples[:20] {
		prediction, err := model.Predict(sample)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}

		sum := prediction.Probabilities[0] + prediction.Probabilities[1]
		if math.Abs(sum-1.0) > 1e-9 {
			t.Errorf("probabilities sum to %f, expected 1", sum)
		}

		expected := math.Max(prediction.Probabilities[0], prediction.Probabilities[1])
		if prediction.Confidence != expected {
			t.Errorf("confidence %f is not the max probability %f", prediction.Confidence, expected)
		}

		if prediction.Label != LabelAIGenerated && prediction.Label != LabelHuman {
			t.Errorf("unexpected label %q", prediction.Label)
		}
	}
}

func TestTrainDeterministic(t *testing.T) {
	samples, labels := dataset.Synthesize(dataset.SynthOptions{NumAI: 100, NumHuman: 100, Seed: 3})

	opts := DefaultTrainOptions()
	opts.Forest.NumTrees = 10

	first, _, err := Train(samples, labels, opts)
	if err != nil {
		t.Fatalf("first Train failed: %v", err)
	}
	second, _, err := Train(samples, labels, opts)
	if err != nil {
		t.Fatalf("second Train failed: %v", err)
	}

	for i, sample := range samples[:50] {
		p1, _ := first.Predict(sample)
		p2, _ := second.Predict(sample)
		if p1.Probabilities != p2.Probabilities {
			t.Fatalf("sample %d: probabilities differ between identical training runs", i)
		}
	}
}

func TestPredictRejectsWrongDimensionality(t *testing.T) {
	model, _, _, _ := trainTestModel(t)

	_, err := model.Predict(make(forensics.FeatureVector, forensics.NumFeatures-1))
	if err == nil {
		t.Fatal("expected error for short vector")
	}
	if !sgerr.IsCode(err, sgerr.CodeModelContractMismatch) {
		t.Errorf("expected MODEL_CONTRACT_MISMATCH, got %v", err)
	}
}

func TestFeatureOrderSensitivity(t *testing.T) {
	model, _, samples, labels := trainTestModel(t)

	// Swapping two vector positions against an unmodified model must flip
	// some predictions, which is why the load-time contract check exists.
	// The synthetic classes are cleanly separated and saturate every tree,
	// so the swap is exercised on blends of opposite-class samples near the
	// decision boundary, using the features the forest leans on most.
	ranking := model.ImportanceRanking()

	var aiSamples, humanSamples [][]float64
	for i, sample := range samples {
		if labels[i] == dataset.LabelAI {
			aiSamples = append(aiSamples, sample)
		} else {
			humanSamples = append(humanSamples, sample)
		}
	}

	numPairs := min(len(aiSamples), len(humanSamples), 50)
	changed := 0
	for p := 0; p < numPairs; p++ {
		boundary := leastCertainBlend(t, model, aiSamples[p], humanSamples[p])

		original, err := model.Predict(boundary)
		if err != nil {
			t.Fatalf("Predict failed: %v", err)
		}

		for k := 1; k <= 3; k++ {
			firstIdx, _ := forensics.FeatureIndex(ranking[0].Name)
			secondIdx, _ := forensics.FeatureIndex(ranking[k].Name)

			swapped := make(forensics.FeatureVector, len(boundary))
			copy(swapped, boundary)
			swapped[firstIdx], swapped[secondIdx] = swapped[secondIdx], swapped[firstIdx]

			reordered, err := model.Predict(swapped)
			if err != nil {
				t.Fatalf("Predict on swapped vector failed: %v", err)
			}
			if reordered.Label != original.Label {
				changed++
			}
		}
	}

	if changed == 0 {
		t.Error("swapping feature positions changed no predictions; ordering contract would be unenforceable")
	}
}

// leastCertainBlend interpolates between an AI and a human sample and
// returns the blend the forest is least certain about.
func leastCertainBlend(t *testing.T, model *Model, ai, human []float64) forensics.FeatureVector {
	t.Helper()

	var best forensics.FeatureVector
	bestMargin := math.Inf(1)
	for step := 0; step <= 20; step++ {
		frac := float64(step) / 20

		blend := make(forensics.FeatureVector, len(ai))
		for i := range blend {
			blend[i] = (1-frac)*ai[i] + frac*human[i]
		}

		prediction, err := model.Predict(blend)
		if err != nil {
			t.Fatalf("Predict on blended vector failed: %v", err)
		}

		margin := math.Abs(prediction.Probabilities[1] - prediction.Probabilities[0])
		if margin < bestMargin {
			bestMargin = margin
			best = blend
		}
	}
	return best
}

func TestModelSaveLoadRoundTrip(t *testing.T) {
	model, _, samples, _ := trainTestModel(t)

	path := filepath.Join(t.TempDir(), "model.json")
	if err := model.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	for i, sample := range samples[:20] {
		p1, _ := model.Predict(sample)
		p2, _ := loaded.Predict(sample)
		if p1.Probabilities != p2.Probabilities {
			t.Fatalf("sample %d: loaded model predicts differently", i)
		}
	}

	if loaded.HeldOutAccuracy != model.HeldOutAccuracy {
		t.Errorf("held-out accuracy not preserved: %f vs %f", loaded.HeldOutAccuracy, model.HeldOutAccuracy)
	}
}

func TestLoadMissingArtifact(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}
	if !sgerr.IsCode(err, sgerr.CodeModelUnavailable) {
		t.Errorf("expected MODEL_UNAVAILABLE, got %v", err)
	}
}

func TestLoadRefusesContractMismatch(t *testing.T) {
	model, _, _, _ := trainTestModel(t)

	tests := []struct {
		name   string
		mutate func(m *Model)
	}{
		{"wrong version", func(m *Model) { m.FeatureVersion = "forensic-v0" }},
		{"reordered names", func(m *Model) {
			m.FeatureNames[0], m.FeatureNames[1] = m.FeatureNames[1], m.FeatureNames[0]
		}},
		{"truncated names", func(m *Model) { m.FeatureNames = m.FeatureNames[:10] }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			broken := *model
			broken.FeatureNames = append([]string{}, model.FeatureNames...)
			broken.FeatureVersion = model.FeatureVersion
			tt.mutate(&broken)

			path := filepath.Join(t.TempDir(), "model.json")
			if err := broken.Save(path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}

			_, err := Load(path)
			if err == nil {
				t.Fatal("expected load to refuse mismatched contract")
			}
			if !sgerr.IsCode(err, sgerr.CodeModelContractMismatch) {
				t.Errorf("expected MODEL_CONTRACT_MISMATCH, got %v", err)
			}
		})
	}
}

func TestImportanceRanking(t *testing.T) {
	model, _, _, _ := trainTestModel(t)

	ranking := model.ImportanceRanking()
	if len(ranking) != forensics.NumFeatures {
		t.Fatalf("expected %d entries, got %d", forensics.NumFeatures, len(ranking))
	}

	total := 0.0
	for i, entry := range ranking {
		total += entry.Importance
		if i > 0 && entry.Importance > ranking[i-1].Importance {
			t.Error("ranking is not sorted by descending importance")
			break
		}
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Errorf("importance sums to %f, expected 1", total)
	}
}

func TestScaler(t *testing.T) {
	samples := [][]float64{
		{1, 10, 5},
		{3, 10, 15},
		{5, 10, 25},
	}

	scaler := FitScaler(samples)

	out := scaler.Transform([]float64{3, 10, 15})
	for f, v := range out {
		if math.Abs(v) > 1e-9 {
			t.Errorf("mean sample should transform to zero at feature %d, got %v", f, v)
		}
	}

	// Constant features must not divide by zero
	out = scaler.Transform([]float64{1, 12, 5})
	if math.IsNaN(out[1]) || math.IsInf(out[1], 0) {
		t.Errorf("constant feature produced non-finite value: %v", out[1])
	}
}

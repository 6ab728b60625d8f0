package classifier

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/sonaguard/sonaguard/forensics"
	"github.com/sonaguard/sonaguard/logging"
)

// TrainOptions configures the offline training procedure
type TrainOptions struct {
	Forest       ForestConfig `json:"forest"`
	TestFraction float64      `json:"test_fraction"` // Held-out share, default 0.2
	Seed         int64        `json:"seed"`
}

// DefaultTrainOptions returns the standard training configuration
func DefaultTrainOptions() TrainOptions {
	return TrainOptions{
		Forest:       DefaultForestConfig(),
		TestFraction: 0.2,
		Seed:         42,
	}
}

// TrainReport summarizes a training run
type TrainReport struct {
	TrainSamples    int                 `json:"train_samples"`
	TestSamples     int                 `json:"test_samples"`
	TrainAccuracy   float64             `json:"train_accuracy"`
	TestAccuracy    float64             `json:"test_accuracy"`
	ConfusionMatrix [2][2]int           `json:"confusion_matrix"` // [actual][predicted]
	Importance      []FeatureImportance `json:"importance"`
}

// Train fits a model to labeled feature vectors and evaluates it on a
// stratified held-out split. The returned artifact records the running
// feature contract, the scaler, the forest and the explainer calibration
// derived from the training distribution.
func Train(samples [][]float64, labels []int, opts TrainOptions) (*Model, *TrainReport, error) {
	if len(samples) != len(labels) {
		return nil, nil, fmt.Errorf("sample count %d does not match label count %d", len(samples), len(labels))
	}
	if len(samples) < 10 {
		return nil, nil, fmt.Errorf("need at least 10 samples to train, got %d", len(samples))
	}
	for i, row := range samples {
		if len(row) != forensics.NumFeatures {
			return nil, nil, fmt.Errorf("sample %d has %d features, schema has %d", i, len(row), forensics.NumFeatures)
		}
	}

	if opts.TestFraction <= 0 || opts.TestFraction >= 1 {
		opts.TestFraction = 0.2
	}

	logger := logging.WithFields(logging.Fields{
		"component":     "trainer",
		"samples":       len(samples),
		"test_fraction": opts.TestFraction,
	})
	logger.Info("Starting training run")

	trainIdx, testIdx := stratifiedSplit(labels, opts.TestFraction, opts.Seed)

	trainX := make([][]float64, len(trainIdx))
	trainY := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		trainX[i] = samples[idx]
		trainY[i] = labels[idx]
	}

	scaler := FitScaler(trainX)
	scaledTrain := make([][]float64, len(trainX))
	for i, row := range trainX {
		scaledTrain[i] = scaler.Transform(row)
	}

	forest, err := TrainForest(scaledTrain, trainY, opts.Forest)
	if err != nil {
		return nil, nil, fmt.Errorf("forest training failed: %w", err)
	}

	model := &Model{
		ArtifactVersion: artifactVersion,
		FeatureVersion:  forensics.Version,
		FeatureNames:    forensics.FeatureNames(),
		Scaler:          scaler,
		Forest:          forest,
		Calibration:     calibrateFromDistribution(trainX),
		NumSamples:      len(samples),
		TrainedAt:       time.Now().UTC(),
	}

	report := &TrainReport{
		TrainSamples: len(trainIdx),
		TestSamples:  len(testIdx),
		Importance:   model.ImportanceRanking(),
	}

	report.TrainAccuracy = evaluate(model, samples, labels, trainIdx, nil)
	report.TestAccuracy = evaluate(model, samples, labels, testIdx, &report.ConfusionMatrix)
	model.HeldOutAccuracy = report.TestAccuracy

	logger.Info("Training run complete", logging.Fields{
		"train_accuracy": report.TrainAccuracy,
		"test_accuracy":  report.TestAccuracy,
		"num_trees":      len(forest.Trees),
	})

	return model, report, nil
}

// stratifiedSplit partitions sample indices into train and test sets,
// preserving the class balance. Deterministic for a fixed seed.
func stratifiedSplit(labels []int, testFraction float64, seed int64) (train, test []int) {
	var byClass [2][]int
	for i, label := range labels {
		byClass[label] = append(byClass[label], i)
	}

	rng := rand.New(rand.NewSource(seed))
	for _, indices := range byClass {
		rng.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})

		nTest := int(float64(len(indices)) * testFraction)
		test = append(test, indices[:nTest]...)
		train = append(train, indices[nTest:]...)
	}

	sort.Ints(train)
	sort.Ints(test)
	return train, test
}

// evaluate computes accuracy over the given indices, optionally filling a
// confusion matrix indexed [actual][predicted]
func evaluate(model *Model, samples [][]float64, labels []int, indices []int, confusion *[2][2]int) float64 {
	if len(indices) == 0 {
		return 0
	}

	correct := 0
	for _, idx := range indices {
		prediction, err := model.Predict(samples[idx])
		if err != nil {
			continue
		}
		predicted := 0
		if prediction.Label == LabelHuman {
			predicted = 1
		}
		if predicted == labels[idx] {
			correct++
		}
		if confusion != nil {
			confusion[labels[idx]][predicted]++
		}
	}
	return float64(correct) / float64(len(indices))
}

// calibrateFromDistribution derives the explainer's bucket cutoffs from
// the training set's feature quantiles. Tertiles split each axis into the
// three qualitative levels.
func calibrateFromDistribution(samples [][]float64) Calibration {
	pitchIdx, _ := forensics.FeatureIndex("pitch_variance")
	flatIdx, _ := forensics.FeatureIndex("spectral_flatness_mean")
	energyIdx, _ := forensics.FeatureIndex("energy_variation")
	zcrStdIdx, _ := forensics.FeatureIndex("zcr_std")

	pitch := make([]float64, len(samples))
	flatness := make([]float64, len(samples))
	micro := make([]float64, len(samples))
	for i, row := range samples {
		pitch[i] = row[pitchIdx]
		flatness[i] = row[flatIdx]
		micro[i] = row[energyIdx] + 10.0*row[zcrStdIdx]
	}

	return Calibration{
		PitchVarianceLow:  quantile(pitch, 1.0/3.0),
		PitchVarianceHigh: quantile(pitch, 2.0/3.0),
		FlatnessLow:       quantile(flatness, 1.0/3.0),
		FlatnessHigh:      quantile(flatness, 2.0/3.0),
		MicroLow:          quantile(micro, 1.0/3.0),
		MicroHigh:         quantile(micro, 2.0/3.0),
	}
}

func quantile(values []float64, p float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	return stat.Quantile(p, stat.Empirical, sorted, nil)
}

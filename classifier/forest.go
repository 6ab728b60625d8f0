package classifier

import (
	"fmt"
	"math"
	"math/rand"
)

// ForestConfig holds the random-forest hyperparameters
type ForestConfig struct {
	NumTrees          int   `json:"num_trees"`
	MaxDepth          int   `json:"max_depth"`
	MinSamplesSplit   int   `json:"min_samples_split"`
	MinSamplesLeaf    int   `json:"min_samples_leaf"`
	FeatureCandidates int   `json:"feature_candidates"` // 0 = sqrt(num features)
	Seed              int64 `json:"seed"`
}

// DefaultForestConfig returns the hyperparameters the shipped models use
func DefaultForestConfig() ForestConfig {
	return ForestConfig{
		NumTrees:        200,
		MaxDepth:        20,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Seed:            42,
	}
}

// Forest is a bagged ensemble of decision trees. Class probabilities are
// the average of the trees' leaf distributions, which makes the ensemble
// robust to feature scale differences and gives impurity-based feature
// importance for free.
type Forest struct {
	Config      ForestConfig    `json:"config"`
	NumFeatures int             `json:"num_features"`
	Trees       []*decisionTree `json:"trees"`

	// Importance is normalized mean impurity decrease per feature position
	Importance []float64 `json:"feature_importance"`
}

// TrainForest fits a bagged forest to the labeled samples. Labels must be
// 0 or 1 and both classes must be present. Training is deterministic for a
// fixed seed: each tree gets its own seeded source for bootstrap sampling
// and per-split feature subsampling.
func TrainForest(samples [][]float64, labels []int, config ForestConfig) (*Forest, error) {
	if len(samples) == 0 {
		return nil, fmt.Errorf("empty training set")
	}
	if len(samples) != len(labels) {
		return nil, fmt.Errorf("sample count %d does not match label count %d", len(samples), len(labels))
	}

	numFeatures := len(samples[0])
	var classCounts [2]int
	for i, row := range samples {
		if len(row) != numFeatures {
			return nil, fmt.Errorf("sample %d has %d features, expected %d", i, len(row), numFeatures)
		}
		if labels[i] != 0 && labels[i] != 1 {
			return nil, fmt.Errorf("label %d at sample %d is not binary", labels[i], i)
		}
		classCounts[labels[i]]++
	}
	if classCounts[0] == 0 || classCounts[1] == 0 {
		return nil, fmt.Errorf("training set must contain both classes (got %d/%d)", classCounts[0], classCounts[1])
	}

	if config.NumTrees <= 0 {
		config.NumTrees = DefaultForestConfig().NumTrees
	}
	if config.MaxDepth <= 0 {
		config.MaxDepth = DefaultForestConfig().MaxDepth
	}
	if config.MinSamplesSplit < 2 {
		config.MinSamplesSplit = 2
	}
	if config.MinSamplesLeaf < 1 {
		config.MinSamplesLeaf = 1
	}
	if config.FeatureCandidates <= 0 || config.FeatureCandidates > numFeatures {
		config.FeatureCandidates = int(math.Sqrt(float64(numFeatures)))
		if config.FeatureCandidates < 1 {
			config.FeatureCandidates = 1
		}
	}

	forest := &Forest{
		Config:      config,
		NumFeatures: numFeatures,
		Trees:       make([]*decisionTree, config.NumTrees),
		Importance:  make([]float64, numFeatures),
	}

	n := len(samples)
	for t := range config.NumTrees {
		rng := rand.New(rand.NewSource(config.Seed + int64(t)))

		bootstrap := make([]int, n)
		for i := range bootstrap {
			bootstrap[i] = rng.Intn(n)
		}

		builder := newTreeBuilder(numFeatures, config.MaxDepth, config.MinSamplesSplit,
			config.MinSamplesLeaf, config.FeatureCandidates, rng)
		forest.Trees[t] = builder.build(samples, labels, bootstrap)

		for f, imp := range builder.importance {
			forest.Importance[f] += imp
		}
	}

	// Normalize importance to sum to 1
	totalImportance := 0.0
	for _, imp := range forest.Importance {
		totalImportance += imp
	}
	if totalImportance > 0 {
		for f := range forest.Importance {
			forest.Importance[f] /= totalImportance
		}
	}

	return forest, nil
}

// PredictProbs returns the class probabilities for a single sample by
// averaging the leaf distributions across all trees
func (f *Forest) PredictProbs(x []float64) ([2]float64, error) {
	if len(f.Trees) == 0 {
		return [2]float64{}, fmt.Errorf("forest has no trees")
	}
	if len(x) != f.NumFeatures {
		return [2]float64{}, fmt.Errorf("sample has %d features, forest expects %d", len(x), f.NumFeatures)
	}

	var sum [2]float64
	for _, tree := range f.Trees {
		probs := tree.predict(x)
		sum[0] += probs[0]
		sum[1] += probs[1]
	}

	n := float64(len(f.Trees))
	return [2]float64{sum[0] / n, sum[1] / n}, nil
}

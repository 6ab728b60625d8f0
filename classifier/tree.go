package classifier

import (
	"math/rand"
	"sort"
)

// treeNode is one node of a decision tree in flattened form. Feature is -1
// for leaves; internal nodes route x[Feature] <= Threshold to Left.
type treeNode struct {
	Feature   int        `json:"feature"`
	Threshold float64    `json:"threshold"`
	Left      int        `json:"left"`
	Right     int        `json:"right"`
	Probs     [2]float64 `json:"probs"`
}

// decisionTree is a single CART classifier over the feature vector
type decisionTree struct {
	Nodes []treeNode `json:"nodes"`
}

// predict walks the tree and returns the leaf's class distribution
func (t *decisionTree) predict(x []float64) [2]float64 {
	idx := 0
	for {
		node := &t.Nodes[idx]
		if node.Feature < 0 {
			return node.Probs
		}
		if x[node.Feature] <= node.Threshold {
			idx = node.Left
		} else {
			idx = node.Right
		}
	}
}

// treeBuilder grows a CART tree by recursive Gini-impurity splitting.
// featureCandidates features are sampled per split, which decorrelates the
// trees of a bagged ensemble.
type treeBuilder struct {
	maxDepth          int
	minSamplesSplit   int
	minSamplesLeaf    int
	featureCandidates int
	numFeatures       int
	rng               *rand.Rand

	// Accumulated weighted impurity decrease per feature
	importance []float64
}

func newTreeBuilder(numFeatures, maxDepth, minSamplesSplit, minSamplesLeaf, featureCandidates int, rng *rand.Rand) *treeBuilder {
	return &treeBuilder{
		maxDepth:          maxDepth,
		minSamplesSplit:   minSamplesSplit,
		minSamplesLeaf:    minSamplesLeaf,
		featureCandidates: featureCandidates,
		numFeatures:       numFeatures,
		rng:               rng,
		importance:        make([]float64, numFeatures),
	}
}

// build grows a tree over the given sample indices
func (b *treeBuilder) build(samples [][]float64, labels []int, indices []int) *decisionTree {
	tree := &decisionTree{}
	b.grow(tree, samples, labels, indices, 0)
	return tree
}

// grow appends the subtree rooted at the given samples and returns its
// node index
func (b *treeBuilder) grow(tree *decisionTree, samples [][]float64, labels []int, indices []int, depth int) int {
	counts := countClasses(labels, indices)

	if depth >= b.maxDepth || len(indices) < b.minSamplesSplit || counts[0] == 0 || counts[1] == 0 {
		return b.appendLeaf(tree, counts)
	}

	feature, threshold, gain, ok := b.bestSplit(samples, labels, indices)
	if !ok {
		return b.appendLeaf(tree, counts)
	}

	var left, right []int
	for _, i := range indices {
		if samples[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) < b.minSamplesLeaf || len(right) < b.minSamplesLeaf {
		return b.appendLeaf(tree, counts)
	}

	b.importance[feature] += gain * float64(len(indices))

	nodeIdx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, treeNode{Feature: feature, Threshold: threshold})

	leftIdx := b.grow(tree, samples, labels, left, depth+1)
	rightIdx := b.grow(tree, samples, labels, right, depth+1)
	tree.Nodes[nodeIdx].Left = leftIdx
	tree.Nodes[nodeIdx].Right = rightIdx

	return nodeIdx
}

func (b *treeBuilder) appendLeaf(tree *decisionTree, counts [2]int) int {
	total := float64(counts[0] + counts[1])
	node := treeNode{Feature: -1}
	if total > 0 {
		node.Probs = [2]float64{float64(counts[0]) / total, float64(counts[1]) / total}
	}
	tree.Nodes = append(tree.Nodes, node)
	return len(tree.Nodes) - 1
}

// bestSplit evaluates midpoint thresholds on a random feature subset and
// returns the split with the largest Gini impurity decrease
func (b *treeBuilder) bestSplit(samples [][]float64, labels []int, indices []int) (int, float64, float64, bool) {
	parentGini := giniImpurity(countClasses(labels, indices))
	total := float64(len(indices))

	bestFeature := -1
	bestThreshold := 0.0
	bestGain := 0.0

	type valueLabel struct {
		value float64
		label int
	}
	pairs := make([]valueLabel, len(indices))

	for _, feature := range b.rng.Perm(b.numFeatures)[:b.featureCandidates] {
		for i, idx := range indices {
			pairs[i] = valueLabel{samples[idx][feature], labels[idx]}
		}
		sort.Slice(pairs, func(i, j int) bool { return pairs[i].value < pairs[j].value })

		var leftCounts [2]int
		rightCounts := countClasses(labels, indices)

		for i := 0; i < len(pairs)-1; i++ {
			leftCounts[pairs[i].label]++
			rightCounts[pairs[i].label]--

			if pairs[i].value == pairs[i+1].value {
				continue
			}

			nLeft := float64(i + 1)
			nRight := total - nLeft
			weighted := (nLeft*giniImpurity(leftCounts) + nRight*giniImpurity(rightCounts)) / total
			gain := parentGini - weighted

			if gain > bestGain {
				bestGain = gain
				bestFeature = feature
				bestThreshold = (pairs[i].value + pairs[i+1].value) / 2.0
			}
		}
	}

	if bestFeature < 0 || bestGain <= 0 {
		return 0, 0, 0, false
	}
	return bestFeature, bestThreshold, bestGain, true
}

func countClasses(labels []int, indices []int) [2]int {
	var counts [2]int
	for _, i := range indices {
		counts[labels[i]]++
	}
	return counts
}

// giniImpurity computes 1 - sum(p_i^2) for a two-class count
func giniImpurity(counts [2]int) float64 {
	total := float64(counts[0] + counts[1])
	if total == 0 {
		return 0
	}
	p0 := float64(counts[0]) / total
	p1 := float64(counts[1]) / total
	return 1.0 - p0*p0 - p1*p1
}

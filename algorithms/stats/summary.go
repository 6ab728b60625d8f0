package stats

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics each forensic feature group is
// reduced to. Empty inputs yield the zero Summary, which is the sentinel
// policy shared between training-time and serving-time extraction: a missing
// sub-signal (for example, no voiced frames) must produce identical values
// on both paths or the trained decision boundary becomes invalid.
type Summary struct {
	Mean     float64 `json:"mean"`
	Std      float64 `json:"std"`
	Variance float64 `json:"variance"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Range    float64 `json:"range"`
}

// Summarize computes descriptive statistics for a slice of values using gonum
func Summarize(values []float64) Summary {
	if len(values) == 0 {
		return Summary{}
	}

	mean := stat.Mean(values, nil)
	variance := stat.PopVariance(values, nil)

	minVal := values[0]
	maxVal := values[0]
	for _, v := range values {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
	}

	return Summary{
		Mean:     mean,
		Std:      math.Sqrt(variance),
		Variance: variance,
		Min:      minVal,
		Max:      maxVal,
		Range:    maxVal - minVal,
	}
}

// SummarizeMatrix flattens a frame matrix (time x coefficients) and
// summarizes all values together, matching how the timbre group pools
// cepstral coefficients across frames
func SummarizeMatrix(frames [][]float64) Summary {
	total := 0
	for _, row := range frames {
		total += len(row)
	}
	if total == 0 {
		return Summary{}
	}

	flat := make([]float64, 0, total)
	for _, row := range frames {
		flat = append(flat, row...)
	}

	return Summarize(flat)
}

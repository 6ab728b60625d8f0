package transcode

// Resample converts samples from one sample rate to another using linear
// interpolation. The mapping is fully deterministic: output index i reads
// source position i*fromRate/toRate, so identical input always produces
// identical output.
func Resample(samples []float64, fromRate, toRate int) []float64 {
	if fromRate == toRate || len(samples) == 0 {
		out := make([]float64, len(samples))
		copy(out, samples)
		return out
	}

	ratio := float64(fromRate) / float64(toRate)
	outLen := int(float64(len(samples)) / ratio)
	if outLen < 1 {
		outLen = 1
	}

	out := make([]float64, outLen)
	lastIdx := len(samples) - 1

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		if idx >= lastIdx {
			out[i] = samples[lastIdx]
			continue
		}
		frac := pos - float64(idx)
		out[i] = samples[idx]*(1.0-frac) + samples[idx+1]*frac
	}

	return out
}

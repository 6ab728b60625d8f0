package explain

import (
	"github.com/sonaguard/sonaguard/forensics"
)

// Insights renders detailed bullet-point observations about the clip's
// measurements. Unlike the level buckets these use fixed interpretive
// thresholds, because each sentence makes an absolute claim about the
// signal rather than a relative one.
func (e *Explainer) Insights(fv forensics.FeatureVector) []string {
	var insights []string

	value := func(name string) float64 {
		v, _ := fv.Get(name)
		return v
	}

	pitchVar := value("pitch_variance")
	switch {
	case pitchVar < 500:
		insights = append(insights, "Pitch shows minimal natural variation (typical of AI synthesis)")
	case pitchVar > 2000:
		insights = append(insights, "Pitch exhibits high natural variation (typical of human speech)")
	default:
		insights = append(insights, "Pitch variation is moderate")
	}

	flatness := value("spectral_flatness_mean")
	switch {
	case flatness < 0.1:
		insights = append(insights, "Spectral content is very smooth (common in AI-generated voices)")
	case flatness > 0.3:
		insights = append(insights, "Spectral content shows natural roughness (human characteristic)")
	default:
		insights = append(insights, "Spectral characteristics are balanced")
	}

	energyVar := value("energy_variation")
	switch {
	case energyVar < 0.3:
		insights = append(insights, "Energy levels are highly consistent (AI pattern)")
	case energyVar > 1.0:
		insights = append(insights, "Energy levels show natural fluctuation (human pattern)")
	}

	if value("zcr_std") < 0.01 {
		insights = append(insights, "Micro-level variations are minimal or absent")
	} else {
		insights = append(insights, "Micro-level variations are present")
	}

	mfccVar := value("mfcc_var")
	switch {
	case mfccVar < 50:
		insights = append(insights, "Voice timbre is highly uniform (AI indicator)")
	case mfccVar > 150:
		insights = append(insights, "Voice timbre shows natural diversity (human indicator)")
	}

	return insights
}

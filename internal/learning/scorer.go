package learning

import (
	"math"

	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

const (
	// minNormalizedPreference keeps a disliked dimension from zeroing confidence.
	minNormalizedPreference = 0.05

	// maxNormalizedPreference caps the preference multiplier.
	maxNormalizedPreference = 1.0
)

// Similarity scores two fingerprints in [0,1] as a weighted sum of
// size-bucket equality and Jaccard overlap of the language and framework sets.
func Similarity(a, b Fingerprint, w SimilarityWeights) float64 {
	size := 0.0
	if a.Size == b.Size {
		size = 1.0
	}
	score := w.Size*size + w.Language*jaccard(a.Languages, b.Languages) + w.Framework*jaccard(a.Frameworks, b.Frameworks)
	return clamp(score, 0, 1)
}

// jaccard returns |a∩b| / |a∪b|. Two empty sets are identical.
func jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}

	inter := 0
	union := len(set)
	seenB := make(map[string]bool, len(b))
	for _, v := range b {
		if seenB[v] {
			continue
		}
		seenB[v] = true
		if set[v] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

// UsageFactor grows linearly with evidence and saturates at 1.
func UsageFactor(usageCount, saturation int) float64 {
	if usageCount <= 0 || saturation <= 0 {
		return 0
	}
	return math.Min(float64(usageCount)/float64(saturation), 1.0)
}

// NormalizePreference maps a weight in [0.1, 2.0] to a multiplier in [0.05, 1].
func NormalizePreference(weight float64) float64 {
	return clamp(weight/storage.MaxPreferenceWeight, minNormalizedPreference, maxNormalizedPreference)
}

// Confidence combines success history, evidence volume, preference and
// context similarity into a score in [0,1].
func Confidence(p storage.Pattern, preferenceWeight, similarity float64, cfg Config) float64 {
	c := p.SuccessRate * UsageFactor(p.UsageCount, cfg.UsageSaturation) * NormalizePreference(preferenceWeight) * similarity
	return clamp(c, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package learning

import (
	"fmt"
	"time"
)

// SimilarityWeights weight the three fingerprint dimensions. They sum to 1.
type SimilarityWeights struct {
	Size      float64 `koanf:"size"`
	Language  float64 `koanf:"language"`
	Framework float64 `koanf:"framework"`
}

// Config holds every tunable of the engine and feedback processor.
type Config struct {
	// MinEvidence is the usage count a pattern needs before it can be used.
	MinEvidence int `koanf:"min_evidence"`

	// FallbackThreshold is the confidence below which the static entry wins.
	FallbackThreshold float64 `koanf:"fallback_threshold"`

	// UsageSaturation is the usage count at which the usage factor reaches 1.
	UsageSaturation int `koanf:"usage_saturation"`

	// Decay is the EMA factor applied to a pattern's previous success rate.
	Decay float64 `koanf:"decay"`

	// LearningRate scales the preference weight step.
	LearningRate float64 `koanf:"learning_rate"`

	// ExecutionNudge bounds how far execution time moves the learning weight.
	ExecutionNudge float64 `koanf:"execution_nudge"`

	// BaselineWindow is how many completed interactions form the execution baseline.
	BaselineWindow int `koanf:"baseline_window"`

	// LatencyBudget bounds the learned path of Recommend.
	LatencyBudget time.Duration `koanf:"latency_budget"`

	Weights SimilarityWeights `koanf:"weights"`

	// SmallMaxFiles and MediumMaxFiles are the inclusive upper bounds of
	// the small and medium size buckets.
	SmallMaxFiles  int `koanf:"small_max_files"`
	MediumMaxFiles int `koanf:"medium_max_files"`
}

// DefaultConfig returns the documented defaults.
func DefaultConfig() Config {
	return Config{
		MinEvidence:       3,
		FallbackThreshold: 0.5,
		UsageSaturation:   20,
		Decay:             0.95,
		LearningRate:      0.1,
		ExecutionNudge:    0.2,
		BaselineWindow:    50,
		LatencyBudget:     80 * time.Millisecond,
		Weights: SimilarityWeights{
			Size:      0.3,
			Language:  0.4,
			Framework: 0.3,
		},
		SmallMaxFiles:  20,
		MediumMaxFiles: 100,
	}
}

// Validate rejects values that would break the bounds the engine guarantees.
func (c Config) Validate() error {
	switch {
	case c.MinEvidence < 1:
		return fmt.Errorf("min_evidence must be at least 1, got %d", c.MinEvidence)
	case c.FallbackThreshold < 0 || c.FallbackThreshold > 1:
		return fmt.Errorf("fallback_threshold must be in [0,1], got %v", c.FallbackThreshold)
	case c.UsageSaturation < 1:
		return fmt.Errorf("usage_saturation must be at least 1, got %d", c.UsageSaturation)
	case c.Decay <= 0 || c.Decay >= 1:
		return fmt.Errorf("decay must be in (0,1), got %v", c.Decay)
	case c.LearningRate <= 0 || c.LearningRate > 1:
		return fmt.Errorf("learning_rate must be in (0,1], got %v", c.LearningRate)
	case c.ExecutionNudge < 0 || c.ExecutionNudge > 1:
		return fmt.Errorf("execution_nudge must be in [0,1], got %v", c.ExecutionNudge)
	case c.BaselineWindow < 0:
		return fmt.Errorf("baseline_window must not be negative, got %d", c.BaselineWindow)
	case c.LatencyBudget <= 0:
		return fmt.Errorf("latency_budget must be positive, got %s", c.LatencyBudget)
	case c.SmallMaxFiles < 0 || c.MediumMaxFiles < c.SmallMaxFiles:
		return fmt.Errorf("size buckets must satisfy 0 <= small_max_files <= medium_max_files")
	}

	w := c.Weights
	if w.Size < 0 || w.Language < 0 || w.Framework < 0 {
		return fmt.Errorf("similarity weights must not be negative")
	}
	if sum := w.Size + w.Language + w.Framework; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("similarity weights must sum to 1, got %v", sum)
	}
	return nil
}

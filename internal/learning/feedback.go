package learning

import (
	"context"
	"errors"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// Feedback is the outcome signal for one interaction.
type Feedback struct {
	InteractionID int64    `json:"interaction_id"`
	Success       bool     `json:"success"`
	Rating        *int     `json:"rating,omitempty"`
	ExecutionMs   *int64   `json:"execution_ms,omitempty"`
	ActualFlags   []string `json:"actual_flags,omitempty"`
}

// FeedbackResult reports the state written by a feedback call.
type FeedbackResult struct {
	InteractionID  int64              `json:"interaction_id"`
	LearningWeight float64            `json:"learning_weight"`
	Pattern        storage.Pattern    `json:"pattern"`
	Preference     storage.Preference `json:"preference"`
}

// FeedbackProcessor turns outcome signals into bounded learned-state updates.
type FeedbackProcessor struct {
	store storage.Storage
	cfg   Config
	options
}

// NewFeedbackProcessor builds a processor over a store.
func NewFeedbackProcessor(store storage.Storage, cfg Config, opts ...Option) (*FeedbackProcessor, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	return &FeedbackProcessor{
		store:   store,
		cfg:     cfg,
		options: applyOptions(opts, "feedback"),
	}, nil
}

// Submit applies feedback exactly once. The interaction outcome, the
// pattern update and the preference update commit together or not at all.
// Rejections match ErrInvalidFeedback; store failures match ErrStorageUnavailable.
func (f *FeedbackProcessor) Submit(ctx context.Context, fb Feedback) (FeedbackResult, error) {
	if err := validateFeedback(fb); err != nil {
		f.metrics.recordFeedback("invalid")
		return FeedbackResult{}, err
	}

	var res FeedbackResult
	err := f.store.Update(ctx, func(tx storage.Tx) error {
		in, err := tx.GetInteraction(fb.InteractionID)
		if errors.Is(err, storage.ErrNotFound) {
			return invalidFeedback(fb.InteractionID, ErrUnknownInteraction)
		}
		if err != nil {
			return err
		}
		if in.Outcome != nil {
			return invalidFeedback(fb.InteractionID, ErrDuplicateFeedback)
		}

		baseline, samples, err := tx.ExecutionBaseline(in.Category, f.cfg.BaselineWindow)
		if err != nil {
			return err
		}
		lw := LearningWeight(fb, baseline, samples, f.cfg.ExecutionNudge)

		now := f.now()
		err = tx.CompleteInteraction(in.ID, storage.Outcome{
			Success:     fb.Success,
			Rating:      fb.Rating,
			ExecutionMs: fb.ExecutionMs,
			ActualFlags: fb.ActualFlags,
			RecordedAt:  now,
		})
		if errors.Is(err, storage.ErrAlreadyRecorded) {
			return invalidFeedback(fb.InteractionID, ErrDuplicateFeedback)
		}
		if err != nil {
			return err
		}

		observed := (lw + 1) / 2
		pattern, err := tx.UpsertPattern(storage.PatternKey{
			Category:    in.Category,
			Fingerprint: in.ContextFingerprint,
		}, func(p *storage.Pattern) error {
			if p.UsageCount == 0 {
				p.SuccessRate = observed
			} else {
				p.SuccessRate = p.SuccessRate*f.cfg.Decay + observed*(1-f.cfg.Decay)
			}
			p.SuccessRate = clamp(p.SuccessRate, 0, 1)
			p.UsageCount++
			p.LastUsed = now
			if lw > 0 {
				p.Flags = learnedFlags(in, fb)
			}
			return nil
		})
		if err != nil {
			return err
		}

		dimension := in.Dimension
		if dimension == "" {
			dimension = "category:" + in.Category
		}
		pref, err := tx.UpsertPreference(storage.PreferenceKey{
			UserID:             in.UserID,
			ProjectFingerprint: in.ProjectFingerprint,
			Dimension:          dimension,
		}, func(p *storage.Preference) error {
			p.Weight = clamp(p.Weight+lw*f.cfg.LearningRate, storage.MinPreferenceWeight, storage.MaxPreferenceWeight)
			return nil
		})
		if err != nil {
			return err
		}

		res = FeedbackResult{
			InteractionID:  in.ID,
			LearningWeight: lw,
			Pattern:        pattern,
			Preference:     pref,
		}
		return nil
	})

	switch {
	case err == nil:
		f.metrics.recordFeedback("applied")
		f.log.Debug("feedback applied",
			zap.Int64("interaction_id", res.InteractionID),
			zap.Float64("learning_weight", res.LearningWeight),
			zap.Float64("success_rate", res.Pattern.SuccessRate),
			zap.Int("usage_count", res.Pattern.UsageCount),
			zap.Float64("weight", res.Preference.Weight))
		return res, nil
	case errors.Is(err, ErrInvalidFeedback):
		f.metrics.recordFeedback("invalid")
		f.log.Info("feedback rejected", zap.Int64("interaction_id", fb.InteractionID), zap.Error(err))
		return FeedbackResult{}, err
	default:
		f.metrics.recordFeedback("unavailable")
		f.log.Warn("feedback not applied", zap.Int64("interaction_id", fb.InteractionID), zap.Error(err))
		if !errors.Is(err, storage.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", storage.ErrUnavailable, err)
		}
		return FeedbackResult{}, err
	}
}

func validateFeedback(fb Feedback) error {
	if fb.InteractionID <= 0 {
		return invalidFeedback(fb.InteractionID, ErrUnknownInteraction)
	}
	if fb.Rating != nil && (*fb.Rating < 1 || *fb.Rating > 5) {
		return invalidFeedback(fb.InteractionID, fmt.Errorf("%w: got %d", ErrRatingOutOfRange, *fb.Rating))
	}
	if fb.ExecutionMs != nil && *fb.ExecutionMs < 0 {
		return invalidFeedback(fb.InteractionID, fmt.Errorf("execution time must not be negative: got %d", *fb.ExecutionMs))
	}
	return nil
}

// LearningWeight maps feedback signals to [-1, 1].
//
// Success gives ±1. A rating replaces it with (rating-3)/2. An execution
// time then shrinks the magnitude when slower than the baseline mean and
// grows it when faster, by at most nudge. A zero weight stays zero.
func LearningWeight(fb Feedback, baselineMs float64, baselineSamples int, nudge float64) float64 {
	w := -1.0
	if fb.Success {
		w = 1.0
	}
	if fb.Rating != nil {
		w = float64(*fb.Rating-3) / 2
	}

	if fb.ExecutionMs != nil && baselineSamples > 0 && baselineMs > 0 && w != 0 {
		speedup := clamp((baselineMs-float64(*fb.ExecutionMs))/baselineMs, -1, 1)
		mag := clamp(math.Abs(w)+speedup*nudge, 0, 1)
		w = math.Copysign(mag, w)
	}

	return clamp(w, -1, 1)
}

func learnedFlags(in *storage.Interaction, fb Feedback) []string {
	if len(fb.ActualFlags) > 0 {
		return append([]string(nil), fb.ActualFlags...)
	}
	return append([]string(nil), in.FlagsIssued...)
}

package learning

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// ReportConfig sets the analytics windows.
type ReportConfig struct {
	// CurrentWindow is the recent period being evaluated.
	CurrentWindow time.Duration `koanf:"current_window"`

	// BaselineWindow is the full look-back; the baseline is the part of it
	// older than CurrentWindow.
	BaselineWindow time.Duration `koanf:"baseline_window"`

	// TopPreferences limits how many preferences a report lists.
	TopPreferences int `koanf:"top_preferences"`
}

// DefaultReportConfig compares the last 7 days with the 23 days before.
func DefaultReportConfig() ReportConfig {
	return ReportConfig{
		CurrentWindow:  7 * 24 * time.Hour,
		BaselineWindow: 30 * 24 * time.Hour,
		TopPreferences: 5,
	}
}

// WindowStats aggregates one time window.
type WindowStats struct {
	Interactions         int     `json:"interactions"`
	WithFeedback         int     `json:"with_feedback"`
	SuccessRate          float64 `json:"success_rate"`
	MeanConfidence       float64 `json:"mean_confidence"`
	PersonalizedFraction float64 `json:"personalized_fraction"`
}

// Report compares a user's recent effectiveness with their baseline.
type Report struct {
	UserID      string    `json:"user_id"`
	GeneratedAt time.Time `json:"generated_at"`

	SuccessRateDelta     float64 `json:"success_rate_delta"`
	ConfidenceDelta      float64 `json:"confidence_delta"`
	PersonalizedFraction float64 `json:"personalized_fraction"`

	// HasBaseline is false when the baseline window holds no interactions;
	// deltas are then zero.
	HasBaseline bool `json:"has_baseline"`

	Current  WindowStats `json:"current"`
	Baseline WindowStats `json:"baseline"`

	TopPreferences []storage.Preference `json:"top_preferences,omitempty"`
}

// Analytics is the read-only reporting view over the store.
type Analytics struct {
	store storage.Storage
	cfg   ReportConfig
	options
}

// NewAnalytics builds an analytics view.
func NewAnalytics(store storage.Storage, cfg ReportConfig, opts ...Option) (*Analytics, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if cfg.CurrentWindow <= 0 || cfg.BaselineWindow <= cfg.CurrentWindow {
		return nil, fmt.Errorf("report windows must satisfy 0 < current (%s) < baseline (%s)", cfg.CurrentWindow, cfg.BaselineWindow)
	}
	return &Analytics{store: store, cfg: cfg, options: applyOptions(opts, "analytics")}, nil
}

// Report builds the personalization report for a user.
func (a *Analytics) Report(ctx context.Context, userID string) (Report, error) {
	now := a.now()
	split := now.Add(-a.cfg.CurrentWindow)

	list, err := a.store.ListInteractions(ctx, userID, now.Add(-a.cfg.BaselineWindow))
	if err != nil {
		return Report{}, fmt.Errorf("failed to load interactions: %w", err)
	}

	var current, baseline []storage.Interaction
	for _, in := range list {
		if in.Timestamp.Before(split) {
			baseline = append(baseline, in)
		} else {
			current = append(current, in)
		}
	}

	r := Report{
		UserID:      userID,
		GeneratedAt: now,
		Current:     windowStats(current),
		Baseline:    windowStats(baseline),
	}
	r.PersonalizedFraction = r.Current.PersonalizedFraction
	r.HasBaseline = r.Baseline.Interactions > 0
	if r.HasBaseline {
		r.SuccessRateDelta = r.Current.SuccessRate - r.Baseline.SuccessRate
		r.ConfidenceDelta = r.Current.MeanConfidence - r.Baseline.MeanConfidence
	}

	prefs, err := a.store.ListPreferences(ctx, userID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to load preferences: %w", err)
	}
	if n := a.cfg.TopPreferences; n > 0 && len(prefs) > n {
		prefs = prefs[:n]
	}
	r.TopPreferences = prefs

	return r, nil
}

func windowStats(list []storage.Interaction) WindowStats {
	var s WindowStats
	if len(list) == 0 {
		return s
	}

	var confSum float64
	var successes, personalized int
	for _, in := range list {
		s.Interactions++
		confSum += in.Confidence
		if in.Source != string(SourceStatic) {
			personalized++
		}
		if in.Outcome != nil {
			s.WithFeedback++
			if in.Outcome.Success {
				successes++
			}
		}
	}

	s.MeanConfidence = confSum / float64(s.Interactions)
	s.PersonalizedFraction = float64(personalized) / float64(s.Interactions)
	if s.WithFeedback > 0 {
		s.SuccessRate = float64(successes) / float64(s.WithFeedback)
	}
	return s
}

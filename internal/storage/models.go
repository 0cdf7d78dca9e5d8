/*
Package storage provides data models for the learning store.

Interactions are the raw record of every recommendation handed out,
patterns are the learned statistics per (category, context fingerprint)
and preferences are per-user weights for a recommendation dimension.
*/
package storage

import "time"

// Outcome is the feedback attached to an interaction. It is written once.
type Outcome struct {
	// Success is the implicit or reported success signal.
	Success bool `json:"success"`

	// Rating is the explicit 1-5 rating, nil when not given.
	Rating *int `json:"rating,omitempty"`

	// ExecutionMs is the observed execution time, nil when unknown.
	ExecutionMs *int64 `json:"execution_ms,omitempty"`

	// ActualFlags are the flags the user actually ran with, if they differ.
	ActualFlags []string `json:"actual_flags,omitempty"`

	// RecordedAt is when the feedback arrived.
	RecordedAt time.Time `json:"recorded_at"`
}

// Interaction is one recommendation issued to a user.
type Interaction struct {
	ID                 int64     `json:"id"`
	Timestamp          time.Time `json:"timestamp"`
	UserID             string    `json:"user_id"`
	ProjectFingerprint string    `json:"project_fingerprint"`
	Category           string    `json:"category"`
	ContextFingerprint string    `json:"context_fingerprint"`
	Dimension          string    `json:"dimension"`
	FlagsIssued        []string  `json:"flags_issued"`
	Source             string    `json:"source"`
	Confidence         float64   `json:"confidence"`

	// Outcome is nil until feedback is submitted.
	Outcome *Outcome `json:"outcome,omitempty"`
}

// PatternKey identifies a learned pattern.
type PatternKey struct {
	Category    string `json:"category"`
	Fingerprint string `json:"context_fingerprint"`
}

// Pattern holds learned statistics for a PatternKey.
type Pattern struct {
	PatternKey
	SuccessRate float64   `json:"success_rate"`
	UsageCount  int       `json:"usage_count"`
	LastUsed    time.Time `json:"last_used"`
	Flags       []string  `json:"flags,omitempty"`
}

// PreferenceKey identifies a user preference weight.
type PreferenceKey struct {
	UserID             string `json:"user_id"`
	ProjectFingerprint string `json:"project_fingerprint"`
	Dimension          string `json:"dimension"`
}

// DefaultPreferenceWeight is the neutral weight returned for unseen keys.
const DefaultPreferenceWeight = 1.0

// Preference is a per-user weight in [0.1, 2.0].
type Preference struct {
	PreferenceKey
	Weight    float64   `json:"weight"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`

	// Stored is false for the neutral default of a key never written.
	Stored bool `json:"-"`
}

// Stats summarizes table sizes for status reporting.
type Stats struct {
	Interactions    int `json:"interactions"`
	PendingFeedback int `json:"pending_feedback"`
	Patterns        int `json:"patterns"`
	Preferences     int `json:"preferences"`
}

// EvictionResult reports how many rows EvictStale removed.
type EvictionResult struct {
	Patterns     int64 `json:"patterns"`
	Interactions int64 `json:"interactions"`
}

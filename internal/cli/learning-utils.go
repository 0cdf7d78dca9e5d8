package cli

import (
	"context"
	"encoding/json"
	"time"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// learningStatus is the output of 'learning status'.
type learningStatus struct {
	Path     string        `json:"path"`
	Enabled  bool          `json:"enabled"`
	Stats    storage.Stats `json:"stats"`
	UserID   string        `json:"user_id"`
	Retained time.Duration `json:"retention_ns"`

	// Established patterns have reached min_evidence; candidates have not.
	Established int `json:"established_patterns"`
	Candidates  int `json:"candidate_patterns"`
}

// learningExport is the output of 'learning export'.
type learningExport struct {
	ExportedAt  time.Time            `json:"exported_at"`
	UserID      string               `json:"user_id"`
	Patterns    []storage.Pattern    `json:"patterns"`
	Preferences []storage.Preference `json:"preferences"`
}

func collectStatus(ctx context.Context, a *app.App) (learningStatus, error) {
	st := learningStatus{
		Path:     a.Store.Path(),
		Enabled:  a.StoreErr == nil,
		UserID:   a.UserID,
		Retained: a.Config.Retention.MaxAge,
	}
	if !st.Enabled {
		return st, nil
	}

	stats, err := a.Store.Stats(ctx)
	if err != nil {
		return st, err
	}
	st.Stats = stats

	patterns, err := a.Store.AllPatterns(ctx)
	if err != nil {
		return st, err
	}
	for _, p := range patterns {
		if p.UsageCount >= a.Config.Engine.MinEvidence {
			st.Established++
		} else {
			st.Candidates++
		}
	}
	return st, nil
}

func collectExport(ctx context.Context, a *app.App, now time.Time) (learningExport, error) {
	patterns, err := a.Store.AllPatterns(ctx)
	if err != nil {
		return learningExport{}, err
	}
	prefs, err := a.Store.ListPreferences(ctx, a.UserID)
	if err != nil {
		return learningExport{}, err
	}
	if patterns == nil {
		patterns = []storage.Pattern{}
	}
	if prefs == nil {
		prefs = []storage.Preference{}
	}
	return learningExport{
		ExportedAt:  now.UTC(),
		UserID:      a.UserID,
		Patterns:    patterns,
		Preferences: prefs,
	}, nil
}

// formatJSON pretty-prints JSON for export.
func formatJSON(data interface{}) (string, error) {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

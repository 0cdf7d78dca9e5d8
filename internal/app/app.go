/*
Package app wires the learning store, the rule table and the engine into
one value shared by the CLI, the MCP server and the HTTP API.

A learning store that cannot be opened is not fatal: the engine keeps
serving static recommendations and feedback reports ErrStorageUnavailable.
*/
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/config"
	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/project"
	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/search"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// AnonymousUser is used when no user id can be persisted.
const AnonymousUser = "anonymous"

// App holds every long-lived component of a process.
type App struct {
	Config    *config.Config
	Log       *zap.Logger
	Store     *storage.SQLiteStorage
	Rules     *rules.Table
	Engine    *learning.Engine
	Feedback  *learning.FeedbackProcessor
	Analytics *learning.Analytics
	Resolver  *search.Resolver
	Metrics   *learning.Metrics

	// UserID is the local user, used when a request names none.
	UserID string

	// RuleWarnings lists rule entries that were replaced or dropped on load.
	RuleWarnings []error

	// StoreErr is set when the learning store could not be opened.
	StoreErr error
}

// New builds an App from cfg. Only an invalid engine configuration fails:
// a broken rule file falls back to the built-in table and the learning
// store degrades to static recommendations.
func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	a := &App{Config: cfg, Log: log, Metrics: learning.NewMetrics()}

	a.Store = storage.NewStorageAt(cfg.Storage.Path, storage.Options{
		CacheTTL:    cfg.Storage.CacheTTL,
		CacheSize:   cfg.Storage.CacheSize,
		BusyRetries: cfg.Storage.BusyRetries,
		Logger:      log,
	})
	if err := a.Store.Init(); err != nil {
		a.StoreErr = err
		log.Warn("learning store unavailable, serving static rules only",
			zap.String("path", cfg.Storage.Path),
			zap.Error(err))
	}

	table, warnings, err := rules.Load(cfg.Rules.Path)
	if err != nil {
		log.Warn("failed to load rules, using built-in table",
			zap.String("path", cfg.Rules.Path),
			zap.Error(err))
	}
	a.Rules, a.RuleWarnings = table, warnings
	for _, w := range warnings {
		log.Warn("rule entry replaced", zap.Error(w))
	}

	opts := []learning.Option{learning.WithLogger(log), learning.WithMetrics(a.Metrics)}
	if a.Engine, err = learning.NewEngine(table, a.Store, cfg.Engine, opts...); err != nil {
		_ = a.Store.Close()
		return nil, err
	}
	if a.Feedback, err = learning.NewFeedbackProcessor(a.Store, cfg.Engine, opts...); err != nil {
		_ = a.Store.Close()
		return nil, err
	}
	if a.Analytics, err = learning.NewAnalytics(a.Store, cfg.Report, opts...); err != nil {
		_ = a.Store.Close()
		return nil, err
	}
	if a.Resolver, err = search.NewResolver(table, log); err != nil {
		_ = a.Store.Close()
		return nil, fmt.Errorf("failed to index rules: %w", err)
	}

	a.UserID = AnonymousUser
	if dir, err := config.Dir(); err == nil {
		if id, err := config.UserID(dir); err == nil {
			a.UserID = id
		} else {
			log.Warn("failed to persist user id", zap.Error(err))
		}
	}

	return a, nil
}

// Close releases the index and the database.
func (a *App) Close() error {
	return errors.Join(a.Resolver.Close(), a.Store.Close())
}

// RecommendInput is a recommendation request from any surface. Either
// Category or Text must be set; Context wins over Dir.
type RecommendInput struct {
	Text     string                   `json:"text,omitempty"`
	Category string                   `json:"category,omitempty"`
	Context  *learning.ProjectContext `json:"context,omitempty"`
	Dir      string                   `json:"dir,omitempty"`
	UserID   string                   `json:"user_id,omitempty"`

	// Explain attaches the ranked category matches for Text.
	Explain bool `json:"explain,omitempty"`
}

// explainLimit caps the category matches returned with Explain.
const explainLimit = 5

// RecommendResult is a recommendation plus the id to report feedback against.
// InteractionID is zero when the interaction could not be recorded.
type RecommendResult struct {
	learning.Recommendation
	InteractionID int64          `json:"interaction_id,omitempty"`
	Personas      []string       `json:"personas,omitempty"`
	Matches       []search.Match `json:"matches,omitempty"`
}

// Recommend resolves the category, collects the project context when
// needed, recommends and records the interaction.
func (a *App) Recommend(ctx context.Context, in RecommendInput) (RecommendResult, error) {
	category := in.Category
	if category == "" {
		c, err := a.Resolver.Resolve(in.Text)
		if err != nil {
			return RecommendResult{}, err
		}
		category = c
	}

	var pc learning.ProjectContext
	switch {
	case in.Context != nil:
		pc = *in.Context
	case in.Dir != "":
		collected, err := project.Collect(in.Dir)
		if err != nil {
			a.Log.Warn("failed to collect project context", zap.String("dir", in.Dir), zap.Error(err))
		} else {
			pc = collected
		}
	}

	req := learning.Request{
		Category: category,
		RawText:  in.Text,
		Context:  pc,
		UserID:   a.user(in.UserID),
	}
	rec, err := a.Engine.Recommend(ctx, req)
	if err != nil {
		return RecommendResult{}, err
	}

	res := RecommendResult{Recommendation: rec, Personas: rules.Personas(rec.Flags)}
	if in.Explain && in.Text != "" {
		matches, err := a.Resolver.Candidates(in.Text, explainLimit)
		if err != nil {
			a.Log.Warn("failed to rank category matches", zap.Error(err))
		}
		res.Matches = matches
	}
	if id, err := a.Engine.RecordRecommendation(ctx, req, rec); err == nil {
		res.InteractionID = id
	}
	return res, nil
}

// SubmitFeedback applies feedback for an earlier recommendation.
func (a *App) SubmitFeedback(ctx context.Context, fb learning.Feedback) (learning.FeedbackResult, error) {
	return a.Feedback.Submit(ctx, fb)
}

// Report builds the personalization report; an empty userID means the local user.
func (a *App) Report(ctx context.Context, userID string) (learning.Report, error) {
	return a.Analytics.Report(ctx, a.user(userID))
}

// Evict runs the retention policy with the configured max age.
func (a *App) Evict(ctx context.Context) (storage.EvictionResult, error) {
	res, err := a.Store.EvictStale(ctx, a.Config.Retention.MaxAge)
	if err != nil {
		return res, err
	}
	a.Metrics.RecordEviction(res.Patterns, res.Interactions)
	return res, nil
}

func (a *App) user(id string) string {
	if id != "" {
		return id
	}
	return a.UserID
}

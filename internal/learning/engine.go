/*
Package learning implements the adaptive recommendation engine.

Engine.Recommend fuses the static rule table with learned patterns, user
preference weights and project-context similarity. It never mutates learned
state and degrades to the static entry whenever the learned path is missing,
weak, slow or unavailable. FeedbackProcessor closes the loop by applying
bounded EMA and clamped-step updates in a single store transaction.
*/
package learning

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

// Source tells where a recommendation came from.
type Source string

const (
	SourceStatic       Source = "static"
	SourceLearned      Source = "learned"
	SourcePersonalized Source = "personalized"
)

// fallback reasons, also used as metric labels.
const (
	reasonNoPattern   = "no_pattern"
	reasonEvidence    = "insufficient_evidence"
	reasonConfidence  = "low_confidence"
	reasonUnavailable = "storage_unavailable"
	reasonTimeout     = "timeout"
)

// Request is the input to Recommend.
type Request struct {
	Category string         `json:"category"`
	RawText  string         `json:"raw_text,omitempty"`
	Context  ProjectContext `json:"context"`
	UserID   string         `json:"user_id"`
}

// Recommendation is the ranked, confidence-scored result of Recommend.
type Recommendation struct {
	Category   string   `json:"category"`
	Flags      []string `json:"flags"`
	Confidence float64  `json:"confidence"`
	Rationale  []string `json:"rationale"`
	Source     Source   `json:"source"`
	MCPServers []string `json:"mcp_servers,omitempty"`

	// ContextFingerprint is the fingerprint of the request context.
	ContextFingerprint string `json:"context_fingerprint"`

	// MatchedPattern is the fingerprint of the pattern used, empty for static.
	MatchedPattern string `json:"matched_pattern,omitempty"`
}

// Engine produces recommendations. Build one per process and share it.
type Engine struct {
	table *rules.Table
	store storage.Storage
	cfg   Config
	options
}

// NewEngine builds an engine over a rule table and a store.
func NewEngine(table *rules.Table, store storage.Storage, cfg Config, opts ...Option) (*Engine, error) {
	if table == nil {
		return nil, errors.New("rule table is required")
	}
	if store == nil {
		return nil, errors.New("store is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}

	return &Engine{
		table:   table,
		store:   store,
		cfg:     cfg,
		options: applyOptions(opts, "engine"),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Rules returns the static rule table.
func (e *Engine) Rules() *rules.Table { return e.table }

// Recommend returns the best recommendation for a request. The only error
// is ErrUnknownCategory; every storage or context failure degrades to the
// static entry.
func (e *Engine) Recommend(ctx context.Context, req Request) (Recommendation, error) {
	start := time.Now()

	entry, err := e.table.Lookup(req.Category)
	if err != nil {
		return Recommendation{}, err
	}

	fp := NewFingerprint(req.Context, e.cfg)
	rec := e.staticRecommendation(entry, fp, req.RawText)

	lctx, cancel := context.WithTimeout(ctx, e.cfg.LatencyBudget)
	defer cancel()

	learned, reason, err := e.learned(lctx, entry, fp, req)
	switch {
	case err != nil:
		reason = reasonUnavailable
		if lctx.Err() != nil {
			reason = reasonTimeout
		}
		e.log.Warn("learned path failed, using static rules",
			zap.String("category", entry.Category),
			zap.String("reason", reason),
			zap.Error(err))
	case learned == nil && lctx.Err() != nil:
		reason = reasonTimeout
	case learned != nil && lctx.Err() != nil:
		learned, reason = nil, reasonTimeout
	}

	if learned != nil {
		rec = *learned
	} else {
		rec.Rationale = append(rec.Rationale, fallbackRationale(reason))
		e.metrics.recordFallback(reason)
		e.log.Debug("static recommendation",
			zap.String("category", entry.Category),
			zap.String("fingerprint", rec.ContextFingerprint),
			zap.String("reason", reason))
	}

	e.metrics.recordRecommendation(rec.Source, time.Since(start).Seconds())
	return rec, nil
}

func (e *Engine) staticRecommendation(entry rules.Entry, fp Fingerprint, rawText string) Recommendation {
	return Recommendation{
		Category:           entry.Category,
		Flags:              append([]string(nil), entry.Flags...),
		Confidence:         entry.Confidence,
		Rationale:          []string{keywordRationale(entry, rawText)},
		Source:             SourceStatic,
		MCPServers:         append([]string(nil), entry.MCPServers...),
		ContextFingerprint: fp.String(),
	}
}

// candidate is an established pattern scored against the current request.
type candidate struct {
	pattern    storage.Pattern
	similarity float64
	confidence float64
}

// learned runs the read-only learned path. It returns nil and a reason when
// the static entry should be used.
func (e *Engine) learned(ctx context.Context, entry rules.Entry, fp Fingerprint, req Request) (*Recommendation, string, error) {
	patterns, err := e.store.ListPatterns(ctx, entry.Category)
	if err != nil {
		return nil, "", err
	}
	if len(patterns) == 0 {
		return nil, reasonNoPattern, nil
	}

	prefKey := storage.PreferenceKey{
		UserID:             req.UserID,
		ProjectFingerprint: projectKey(req.Context, fp),
		Dimension:          entry.Dimension(),
	}
	pref, err := e.store.GetPreference(ctx, prefKey)
	if err != nil {
		return nil, "", err
	}

	candidates := make([]candidate, 0, len(patterns))
	for _, p := range patterns {
		if p.UsageCount < e.cfg.MinEvidence {
			continue
		}
		pfp, err := ParseFingerprint(p.Fingerprint)
		if err != nil {
			e.log.Debug("skipping pattern with unreadable fingerprint",
				zap.String("category", p.Category),
				zap.String("fingerprint", p.Fingerprint))
			continue
		}
		sim := Similarity(fp, pfp, e.cfg.Weights)
		candidates = append(candidates, candidate{
			pattern:    p,
			similarity: sim,
			confidence: Confidence(p, pref.Weight, sim, e.cfg),
		})
	}
	if len(candidates) == 0 {
		return nil, reasonEvidence, nil
	}

	rankCandidates(candidates)
	best := candidates[0]
	if best.confidence < e.cfg.FallbackThreshold {
		return nil, reasonConfidence, nil
	}

	source := SourceLearned
	if pref.Weight != storage.DefaultPreferenceWeight {
		source = SourcePersonalized
	}

	rationale := []string{
		keywordRationale(entry, req.RawText),
		fmt.Sprintf("pattern match: %s (success %.2f over %d uses)",
			best.pattern.Fingerprint, best.pattern.SuccessRate, best.pattern.UsageCount),
		fmt.Sprintf("context similarity: %.2f", best.similarity),
	}
	if source == SourcePersonalized {
		rationale = append(rationale, fmt.Sprintf("preference: %s weight %.2f", prefKey.Dimension, pref.Weight))
	}

	return &Recommendation{
		Category:           entry.Category,
		Flags:              rules.Merge(entry.Flags, best.pattern.Flags),
		Confidence:         best.confidence,
		Rationale:          rationale,
		Source:             source,
		MCPServers:         append([]string(nil), entry.MCPServers...),
		ContextFingerprint: fp.String(),
		MatchedPattern:     best.pattern.Fingerprint,
	}, "", nil
}

// rankCandidates orders by confidence, then usage count, then recency.
// The fingerprint string breaks any remaining tie so ranking is deterministic.
func rankCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.confidence != b.confidence {
			return a.confidence > b.confidence
		}
		if a.pattern.UsageCount != b.pattern.UsageCount {
			return a.pattern.UsageCount > b.pattern.UsageCount
		}
		if !a.pattern.LastUsed.Equal(b.pattern.LastUsed) {
			return a.pattern.LastUsed.After(b.pattern.LastUsed)
		}
		return a.pattern.Fingerprint < b.pattern.Fingerprint
	})
}

// projectKey is the preference key component for a project.
func projectKey(pc ProjectContext, fp Fingerprint) string {
	if pc.Project != "" {
		return pc.Project
	}
	return fp.String()
}

func keywordRationale(entry rules.Entry, rawText string) string {
	if rawText == "" {
		return "keyword match: category " + entry.Category
	}
	return fmt.Sprintf("keyword match: category %s for %q", entry.Category, rawText)
}

func fallbackRationale(reason string) string {
	switch reason {
	case reasonNoPattern:
		return "static rules: no learned pattern yet"
	case reasonEvidence:
		return "static rules: learned patterns lack evidence"
	case reasonConfidence:
		return "static rules: learned confidence below threshold"
	case reasonTimeout:
		return "static rules: learned path exceeded latency budget"
	default:
		return "static rules: learning store unavailable"
	}
}

// InteractionInput describes a recommendation that was handed to a user.
type InteractionInput struct {
	Category    string
	FlagsIssued []string
	Context     ProjectContext
	UserID      string
	Source      Source
	Confidence  float64
}

// RecordInteraction stores an issued recommendation and returns its id.
// It does not read or write learned state.
func (e *Engine) RecordInteraction(ctx context.Context, in InteractionInput) (int64, error) {
	entry, err := e.table.Lookup(in.Category)
	if err != nil {
		return 0, err
	}

	fp := NewFingerprint(in.Context, e.cfg)
	source := in.Source
	if source == "" {
		source = SourceStatic
	}

	id, err := e.store.RecordInteraction(ctx, storage.Interaction{
		Timestamp:          e.now(),
		UserID:             in.UserID,
		ProjectFingerprint: projectKey(in.Context, fp),
		Category:           entry.Category,
		ContextFingerprint: fp.String(),
		Dimension:          entry.Dimension(),
		FlagsIssued:        in.FlagsIssued,
		Source:             string(source),
		Confidence:         in.Confidence,
	})
	if err != nil {
		e.log.Warn("failed to record interaction",
			zap.String("category", entry.Category),
			zap.Error(err))
		return 0, err
	}
	return id, nil
}

// RecordRecommendation records a Recommend result for the requesting user.
func (e *Engine) RecordRecommendation(ctx context.Context, req Request, rec Recommendation) (int64, error) {
	return e.RecordInteraction(ctx, InteractionInput{
		Category:    rec.Category,
		FlagsIssued: rec.Flags,
		Context:     req.Context,
		UserID:      req.UserID,
		Source:      rec.Source,
		Confidence:  rec.Confidence,
	})
}

package search

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
)

// ErrNoCategory is returned when no category keyword matches the text.
var ErrNoCategory = errors.New("no category matches request")

// priorityCategories win over general ones whenever they match at all.
var priorityCategories = []string{
	"analyze_security",
	"analyze_performance",
	"analyze_architecture",
	"implement_auth",
}

// Resolver maps raw request text to a category.
type Resolver struct {
	indexer *Indexer
	table   *rules.Table
}

// NewResolver indexes the table's categories.
func NewResolver(table *rules.Table, logger *zap.Logger) (*Resolver, error) {
	idx, err := NewIndexer(logger)
	if err != nil {
		return nil, err
	}
	if err := idx.IndexRules(table.Entries()); err != nil {
		_ = idx.Close()
		return nil, err
	}
	return &Resolver{indexer: idx, table: table}, nil
}

// Resolve returns the best category for text. An exact category name or
// alias is returned as-is.
func (r *Resolver) Resolve(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrNoCategory
	}
	if e, err := r.table.Lookup(text); err == nil {
		return e.Category, nil
	}

	matches, err := r.indexer.SearchBM25(text, 20)
	if err != nil {
		return "", fmt.Errorf("failed to resolve category: %w", err)
	}
	if len(matches) == 0 {
		return "", ErrNoCategory
	}

	for _, p := range priorityCategories {
		for _, m := range matches {
			if m.Category == p {
				return p, nil
			}
		}
	}
	return matches[0].Category, nil
}

// Candidates returns up to limit ranked category matches.
func (r *Resolver) Candidates(text string, limit int) ([]Match, error) {
	return r.indexer.SearchBM25(text, limit)
}

// Close releases the index.
func (r *Resolver) Close() error {
	return r.indexer.Close()
}

package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"go.uber.org/zap"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
)

// Indexer manages the keyword index over rule-table categories.
type Indexer struct {
	bleveIndex bleve.Index
	mu         sync.RWMutex
	log        *zap.Logger
}

// NewIndexer creates a new indexer with an in-memory Bleve index.
func NewIndexer(logger *zap.Logger) (*Indexer, error) {
	index, err := bleve.NewMemOnly(buildIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Indexer{
		bleveIndex: index,
		log:        logger.Named("search"),
	}, nil
}

// buildIndexMapping creates the Bleve index mapping.
func buildIndexMapping() mapping.IndexMapping {
	categoryMapping := bleve.NewDocumentMapping()

	// Keywords are stemmed so "vulnerabilities" matches "vulnerability".
	keywordsField := bleve.NewTextFieldMapping()
	keywordsField.Analyzer = en.AnalyzerName
	categoryMapping.AddFieldMappingsAt("keywords", keywordsField)

	// Category name: searchable, so "security" finds analyze_security.
	nameField := bleve.NewTextFieldMapping()
	nameField.Analyzer = en.AnalyzerName
	categoryMapping.AddFieldMappingsAt("name", nameField)

	// Category id: stored for retrieval only.
	idField := bleve.NewTextFieldMapping()
	idField.Index = false
	idField.IncludeInAll = false
	categoryMapping.AddFieldMappingsAt("category", idField)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.AddDocumentMapping("_default", categoryMapping)
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	return indexMapping
}

// IndexRules indexes every entry of a rule table, replacing earlier documents
// with the same category.
func (i *Indexer) IndexRules(entries []rules.Entry) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	batch := i.bleveIndex.NewBatch()
	for _, e := range entries {
		doc := map[string]interface{}{
			"category": e.Category,
			"name":     strings.ReplaceAll(e.Category, "_", " "),
			"keywords": strings.Join(e.Keywords, " "),
		}
		if err := batch.Index(e.Category, doc); err != nil {
			i.log.Warn("failed to index category", zap.String("category", e.Category), zap.Error(err))
		}
	}

	if err := i.bleveIndex.Batch(batch); err != nil {
		return fmt.Errorf("failed to batch index categories: %w", err)
	}
	return nil
}

// Count returns the number of indexed categories.
func (i *Indexer) Count() (uint64, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	docCount, err := i.bleveIndex.DocCount()
	if err != nil {
		return 0, fmt.Errorf("failed to get doc count: %w", err)
	}
	return docCount, nil
}

// Close closes the index and releases resources.
func (i *Indexer) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.bleveIndex != nil {
		return i.bleveIndex.Close()
	}
	return nil
}

// buildMatchQuery matches free text against keywords, weighting them above names.
func (i *Indexer) buildMatchQuery(text string) query.Query {
	keywords := bleve.NewMatchQuery(text)
	keywords.SetField("keywords")
	keywords.SetBoost(2.0)

	name := bleve.NewMatchQuery(text)
	name.SetField("name")

	return bleve.NewDisjunctionQuery(keywords, name)
}

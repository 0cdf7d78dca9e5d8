package search

import (
	"fmt"
	"sort"

	"github.com/blevesearch/bleve/v2"
)

// SearchBM25 returns the categories whose keywords best match text.
func (i *Indexer) SearchBM25(text string, limit int) ([]Match, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	searchRequest := bleve.NewSearchRequestOptions(i.buildMatchQuery(text), limit, 0, false)
	searchRequest.Fields = []string{"category"}

	results, err := i.bleveIndex.Search(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	return convertBleveResults(results), nil
}

// convertBleveResults converts hits and orders equal scores by category.
func convertBleveResults(results *bleve.SearchResult) []Match {
	matches := make([]Match, 0, len(results.Hits))
	for _, hit := range results.Hits {
		category, _ := hit.Fields["category"].(string)
		if category == "" {
			category = hit.ID
		}
		matches = append(matches, Match{Category: category, Score: hit.Score})
	}

	sort.SliceStable(matches, func(a, b int) bool {
		if matches[a].Score != matches[b].Score {
			return matches[a].Score > matches[b].Score
		}
		return matches[a].Category < matches[b].Category
	})
	return matches
}

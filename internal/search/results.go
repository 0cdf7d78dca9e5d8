/*
Package search resolves free-text requests to rule-table categories.

Category keywords are held in an in-memory Bleve index and ranked with
BM25. Resolution is optional: callers that already know the category skip it.
*/
package search

// Match is one category hit with its relevance score.
type Match struct {
	Category string  `json:"category"`
	Score    float64 `json:"score"`
}

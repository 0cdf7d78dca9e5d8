/*
Package benchmark measures recommendation latency for autoflags.

It issues N recommendations round-robin over every category of the rule
table, with a rotating set of project contexts, and reports the latency
distribution against the engine's latency budget.
*/
package benchmark

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Soochol/superclaude-auto-flags/internal/learning"
)

// Result contains the latency distribution of a run.
type Result struct {
	Runs         int            `json:"runs"`
	Min          time.Duration  `json:"min_ns"`
	Avg          time.Duration  `json:"avg_ns"`
	P95          time.Duration  `json:"p95_ns"`
	Max          time.Duration  `json:"max_ns"`
	Budget       time.Duration  `json:"budget_ns"`
	WithinBudget float64        `json:"within_budget"`
	BySource     map[string]int `json:"by_source"`
}

// sampleContexts rotate so both small and large fingerprints are exercised.
var sampleContexts = []learning.ProjectContext{
	{},
	{FileCount: 12, Languages: []string{"python"}, Frameworks: []string{"flask"}},
	{FileCount: 64, Languages: []string{"typescript", "javascript"}, Frameworks: []string{"react"}},
	{FileCount: 480, Languages: []string{"go"}},
}

// Run issues n recommendations through eng and measures each call.
func Run(ctx context.Context, eng *learning.Engine, n int) (*Result, error) {
	if eng == nil {
		return nil, errors.New("engine is required")
	}
	if n <= 0 {
		return nil, fmt.Errorf("run count must be positive, got %d", n)
	}

	categories := eng.Rules().Categories()
	if len(categories) == 0 {
		return nil, errors.New("rule table has no categories")
	}

	samples := make([]time.Duration, 0, n)
	bySource := make(map[string]int)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		req := learning.Request{
			Category: categories[i%len(categories)],
			Context:  sampleContexts[i%len(sampleContexts)],
			UserID:   "benchmark",
		}
		start := time.Now()
		rec, err := eng.Recommend(ctx, req)
		elapsed := time.Since(start)
		if err != nil {
			return nil, fmt.Errorf("recommend %s: %w", req.Category, err)
		}

		samples = append(samples, elapsed)
		bySource[string(rec.Source)]++
	}

	return summarize(samples, eng.Config().LatencyBudget, bySource), nil
}

func summarize(samples []time.Duration, budget time.Duration, bySource map[string]int) *Result {
	sorted := append([]time.Duration(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	var total time.Duration
	within := 0
	for _, d := range sorted {
		total += d
		if d <= budget {
			within++
		}
	}

	return &Result{
		Runs:         len(sorted),
		Min:          sorted[0],
		Avg:          total / time.Duration(len(sorted)),
		P95:          percentile(sorted, 0.95),
		Max:          sorted[len(sorted)-1],
		Budget:       budget,
		WithinBudget: float64(within) / float64(len(sorted)),
		BySource:     bySource,
	}
}

// percentile uses the nearest-rank method on sorted samples.
func percentile(sorted []time.Duration, p float64) time.Duration {
	rank := int(math.Ceil(p * float64(len(sorted))))
	if rank < 1 {
		rank = 1
	}
	return sorted[rank-1]
}

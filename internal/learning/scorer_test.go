package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Soochol/superclaude-auto-flags/internal/storage"
)

func TestSimilarity(t *testing.T) {
	w := DefaultConfig().Weights
	tests := []struct {
		name string
		a, b Fingerprint
		want float64
	}{
		{
			name: "identical",
			a:    Fingerprint{Size: SizeMedium, Languages: []string{"go"}, Frameworks: []string{"gin"}},
			b:    Fingerprint{Size: SizeMedium, Languages: []string{"go"}, Frameworks: []string{"gin"}},
			want: 1.0,
		},
		{
			name: "both empty sets",
			a:    Fingerprint{Size: SizeSmall},
			b:    Fingerprint{Size: SizeSmall},
			want: 1.0,
		},
		{
			name: "size differs only",
			a:    Fingerprint{Size: SizeSmall, Languages: []string{"go"}},
			b:    Fingerprint{Size: SizeLarge, Languages: []string{"go"}},
			want: 0.7,
		},
		{
			name: "half language overlap",
			a:    Fingerprint{Size: SizeLarge, Languages: []string{"go", "python"}},
			b:    Fingerprint{Size: SizeLarge, Languages: []string{"go", "rust"}, Frameworks: []string{"react"}},
			want: 0.3 + 0.4*(1.0/3.0) + 0,
		},
		{
			name: "nothing in common",
			a:    Fingerprint{Size: SizeSmall, Languages: []string{"go"}, Frameworks: []string{"gin"}},
			b:    Fingerprint{Size: SizeLarge, Languages: []string{"java"}, Frameworks: []string{"spring"}},
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b, w), 1e-9)
			assert.InDelta(t, tt.want, Similarity(tt.b, tt.a, w), 1e-9, "symmetric")
		})
	}
}

func TestUsageFactor(t *testing.T) {
	assert.Equal(t, 0.0, UsageFactor(0, 20))
	assert.InDelta(t, 0.5, UsageFactor(10, 20), 1e-9)
	assert.Equal(t, 1.0, UsageFactor(20, 20))
	assert.Equal(t, 1.0, UsageFactor(500, 20))
}

func TestNormalizePreference(t *testing.T) {
	assert.InDelta(t, 0.05, NormalizePreference(0.1), 1e-9)
	assert.InDelta(t, 0.5, NormalizePreference(1.0), 1e-9)
	assert.InDelta(t, 1.0, NormalizePreference(2.0), 1e-9)
	assert.InDelta(t, 0.05, NormalizePreference(0), 1e-9)
}

func TestConfidence_Bounded(t *testing.T) {
	cfg := DefaultConfig()
	p := storage.Pattern{SuccessRate: 1, UsageCount: 40}

	assert.InDelta(t, 1.0, Confidence(p, 2.0, 1.0, cfg), 1e-9)
	assert.InDelta(t, 0.5, Confidence(p, 1.0, 1.0, cfg), 1e-9)
	assert.Equal(t, 0.0, Confidence(storage.Pattern{}, 2.0, 1.0, cfg))
}

func TestRankCandidates_TieBreak(t *testing.T) {
	older := mustTime("2026-01-01T00:00:00Z")
	newer := mustTime("2026-02-01T00:00:00Z")

	cs := []candidate{
		{pattern: storage.Pattern{PatternKey: storage.PatternKey{Fingerprint: "a"}, UsageCount: 5, LastUsed: newer}, confidence: 0.7},
		{pattern: storage.Pattern{PatternKey: storage.PatternKey{Fingerprint: "b"}, UsageCount: 9, LastUsed: older}, confidence: 0.7},
		{pattern: storage.Pattern{PatternKey: storage.PatternKey{Fingerprint: "c"}, UsageCount: 9, LastUsed: newer}, confidence: 0.7},
		{pattern: storage.Pattern{PatternKey: storage.PatternKey{Fingerprint: "d"}, UsageCount: 3, LastUsed: older}, confidence: 0.9},
	}
	rankCandidates(cs)

	var order []string
	for _, c := range cs {
		order = append(order, c.pattern.Fingerprint)
	}
	assert.Equal(t, []string{"d", "c", "b", "a"}, order)
}

package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Soochol/superclaude-auto-flags/internal/rules"
)

func TestResolver_Resolve(t *testing.T) {
	r, err := NewResolver(rules.Builtin(), nil)
	require.NoError(t, err)
	defer r.Close()

	tests := []struct {
		text string
		want string
	}{
		{"find SQL injection vulnerabilities", "analyze_security"},
		{"security", "analyze_security"},
		{"implement_api", "implement_api"},
		{"add a new REST endpoint to the server", "implement_api"},
		{"refactor and cleanup the parser", "improve_quality"},
		{"review the security of this API endpoint", "analyze_security"},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := r.Resolve(tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolver_NoMatch(t *testing.T) {
	r, err := NewResolver(rules.Builtin(), nil)
	require.NoError(t, err)
	defer r.Close()

	_, err = r.Resolve("")
	assert.ErrorIs(t, err, ErrNoCategory)

	_, err = r.Resolve("zzqx wobble")
	assert.ErrorIs(t, err, ErrNoCategory)
}

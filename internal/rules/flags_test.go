package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"empty", "", nil},
		{"simple", "--think --uc", []string{"--think", "--uc"}},
		{"value absorbed", "--persona-security --focus security --validate", []string{"--persona-security", "--focus security", "--validate"}},
		{"leading junk dropped", "please --seq", []string{"--seq"}},
		{"multi-word value", "--scope src lib --c7", []string{"--scope src lib", "--c7"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseFlags(tt.in))
		})
	}
}

func TestMerge(t *testing.T) {
	tests := []struct {
		name    string
		static  []string
		learned []string
		want    []string
	}{
		{
			name:   "no learned flags",
			static: []string{"--persona-analyzer", "--think"},
			want:   []string{"--persona-analyzer", "--think"},
		},
		{
			name:    "learned value wins in place",
			static:  []string{"--persona-security", "--focus security", "--validate"},
			learned: []string{"--focus performance"},
			want:    []string{"--persona-security", "--focus performance", "--validate"},
		},
		{
			name:    "thinking levels conflict",
			static:  []string{"--persona-analyzer", "--think"},
			learned: []string{"--ultrathink", "--uc"},
			want:    []string{"--persona-analyzer", "--ultrathink", "--uc"},
		},
		{
			name:    "duplicates collapse",
			static:  []string{"--seq", "--seq"},
			learned: []string{"--seq"},
			want:    []string{"--seq"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Merge(tt.static, tt.learned))
		})
	}
}

func TestPersonas(t *testing.T) {
	got := Personas([]string{"--persona-security", "--think", "--persona-backend"})
	assert.Equal(t, []string{"security", "backend"}, got)
}

package learning

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFingerprint_SizeBuckets(t *testing.T) {
	cfg := DefaultConfig()
	tests := []struct {
		files int
		want  SizeBucket
	}{
		{0, SizeSmall},
		{20, SizeSmall},
		{21, SizeMedium},
		{100, SizeMedium},
		{101, SizeLarge},
		{5000, SizeLarge},
	}

	for _, tt := range tests {
		fp := NewFingerprint(ProjectContext{FileCount: tt.files}, cfg)
		assert.Equal(t, tt.want, fp.Size, "files=%d", tt.files)
	}
}

func TestFingerprint_NormalizedAndStable(t *testing.T) {
	cfg := DefaultConfig()
	a := NewFingerprint(ProjectContext{FileCount: 50, Languages: []string{"Python", "go", "python"}, Frameworks: []string{"Gin"}}, cfg)
	b := NewFingerprint(ProjectContext{FileCount: 60, Languages: []string{"go", "PYTHON"}, Frameworks: []string{" gin "}}, cfg)

	assert.Equal(t, "medium:go,python:gin", a.String())
	assert.Equal(t, a.String(), b.String())
}

func TestParseFingerprint(t *testing.T) {
	fp, err := ParseFingerprint("large:python:")
	require.NoError(t, err)
	assert.Equal(t, SizeLarge, fp.Size)
	assert.Equal(t, []string{"python"}, fp.Languages)
	assert.Nil(t, fp.Frameworks)
	assert.Equal(t, "large:python:", fp.String())

	_, err = ParseFingerprint("huge::")
	assert.Error(t, err)

	_, err = ParseFingerprint("small")
	assert.Error(t, err)
}

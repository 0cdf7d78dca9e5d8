package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAtomicWrite(t *testing.T) {
	tmpDir := t.TempDir()
	testPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	data := []byte("engine: {}\n")
	require.NoError(t, atomicWrite(testPath, data))

	readData, err := os.ReadFile(testPath)
	require.NoError(t, err)
	assert.Equal(t, data, readData)

	_, err = os.Stat(testPath + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file should be renamed away")
}

func TestSave_RoundTripAndBackup(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Engine.MinEvidence = 4
	require.NoError(t, Save(cfg, path))

	loaded, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)

	cfg.Engine.MinEvidence = 6
	require.NoError(t, Save(cfg, path))

	backup, err := os.ReadFile(path + ".bak")
	require.NoError(t, err)
	assert.Contains(t, string(backup), "min_evidence: 4")
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := Default()
	cfg.Logging.Format = "xml"

	err := Save(cfg, filepath.Join(t.TempDir(), "config.yaml"))
	var invalid *InvalidConfigError
	assert.ErrorAs(t, err, &invalid)
}

func TestUserID_StableAcrossCalls(t *testing.T) {
	dir := t.TempDir()

	first, err := UserID(dir)
	require.NoError(t, err)
	assert.Len(t, first, 36)

	second, err := UserID(dir)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "user_id"), []byte("garbage"), 0o644))
	third, err := UserID(dir)
	require.NoError(t, err)
	assert.NotEqual(t, first, third, "a corrupt id is replaced")
}

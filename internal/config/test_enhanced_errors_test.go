package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestEnhancedErrorMessages tests that error messages are helpful
func TestEnhancedErrorMessages(t *testing.T) {
	t.Run("config_not_found_has_hint", func(t *testing.T) {
		testPath := filepath.Join(t.TempDir(), "not-found.yaml")

		_, err := LoadFrom(testPath)
		if err == nil {
			t.Fatal("LoadFrom should error for missing file")
		}

		errMsg := err.Error()
		if !strings.Contains(errMsg, "💡") {
			t.Errorf("error should contain helpful hint, got: %v", err)
		}
		if !strings.Contains(errMsg, "config init") {
			t.Errorf("error should mention config init, got: %v", err)
		}
	})

	t.Run("permission_error_has_fix", func(t *testing.T) {
		if os.Geteuid() == 0 {
			t.Skip("root ignores file permissions")
		}
		testPath := filepath.Join(t.TempDir(), "readonly.yaml")
		os.WriteFile(testPath, []byte("engine: {}\n"), 0o000)
		defer os.Chmod(testPath, 0o644)

		_, err := LoadFrom(testPath)
		if err == nil {
			t.Fatal("LoadFrom should error for permission denied")
		}

		errMsg := err.Error()
		if !strings.Contains(errMsg, "permission denied") {
			t.Errorf("error should mention permission, got: %v", err)
		}
		if !strings.Contains(errMsg, "💡 Fix:") {
			t.Errorf("error should contain fix hint, got: %v", err)
		}
	})

	t.Run("invalid_yaml_mentions_backup", func(t *testing.T) {
		testPath := filepath.Join(t.TempDir(), "invalid.yaml")
		os.WriteFile(testPath, []byte("engine: [unclosed\n"), 0o644)

		_, err := LoadFrom(testPath)
		if err == nil {
			t.Fatal("LoadFrom should error for invalid YAML")
		}
		if !strings.Contains(err.Error(), ".bak") {
			t.Errorf("error should mention backup file, got: %v", err)
		}
	})
}

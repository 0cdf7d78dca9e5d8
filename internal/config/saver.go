package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// Save writes config with atomic write + backup
func Save(cfg *Config, path string) error {
	if err := cfg.Validate(); err != nil {
		return invalid(path, err, "Fix the value and try again")
	}

	// Check write permissions before attempting write
	if err := checkWritePermission(path); err != nil {
		return err
	}

	// 1. Backup existing config
	if err := backupConfig(path); err != nil {
		// Warn but continue (first run = no backup needed)
		fmt.Fprintf(os.Stderr, "Warning: failed to create backup: %v\n", err)
	}

	// 2. Marshal YAML
	data, err := Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// 3. Atomic write
	return atomicWrite(path, data)
}

// Marshal renders cfg as YAML with human-readable durations.
func Marshal(cfg *Config) ([]byte, error) {
	e := cfg.Engine
	doc := map[string]any{
		"storage": map[string]any{
			"path":         cfg.Storage.Path,
			"cache_ttl":    cfg.Storage.CacheTTL.String(),
			"cache_size":   cfg.Storage.CacheSize,
			"busy_retries": cfg.Storage.BusyRetries,
		},
		"engine": map[string]any{
			"min_evidence":       e.MinEvidence,
			"fallback_threshold": e.FallbackThreshold,
			"usage_saturation":   e.UsageSaturation,
			"decay":              e.Decay,
			"learning_rate":      e.LearningRate,
			"execution_nudge":    e.ExecutionNudge,
			"baseline_window":    e.BaselineWindow,
			"latency_budget":     e.LatencyBudget.String(),
			"weights": map[string]any{
				"size":      e.Weights.Size,
				"language":  e.Weights.Language,
				"framework": e.Weights.Framework,
			},
			"small_max_files":  e.SmallMaxFiles,
			"medium_max_files": e.MediumMaxFiles,
		},
		"rules":     map[string]any{"path": cfg.Rules.Path},
		"retention": map[string]any{"max_age": cfg.Retention.MaxAge.String()},
		"logging":   map[string]any{"level": cfg.Logging.Level, "format": cfg.Logging.Format},
		"http":      map[string]any{"host": cfg.HTTP.Host, "port": cfg.HTTP.Port},
		"report": map[string]any{
			"current_window":  cfg.Report.CurrentWindow.String(),
			"baseline_window": cfg.Report.BaselineWindow.String(),
			"top_preferences": cfg.Report.TopPreferences,
		},
	}
	return yaml.Marshal(doc)
}

func backupConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // First run, no backup needed
		}
		return err
	}

	return os.WriteFile(path+".bak", data, 0o644)
}

func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return err
	}

	return os.Rename(tmpPath, path)
}

// checkWritePermission verifies we can write to the config path
func checkWritePermission(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &PermissionError{
			Path:    dir,
			Op:      "write",
			Fix:     getWritePermissionFix(dir),
			Details: "Cannot create config directory",
		}
	}

	if err := checkDirectoryWritable(dir); err != nil {
		return &PermissionError{
			Path:    dir,
			Op:      "write",
			Fix:     getWritePermissionFix(dir),
			Details: "Cannot write to config directory",
		}
	}

	// If file exists, check if we can overwrite it
	if _, err := os.Stat(path); err == nil {
		if err := checkFileWritable(path); err != nil {
			return &PermissionError{
				Path:    path,
				Op:      "write",
				Fix:     getWritePermissionFix(path),
				Details: "Config file is read-only",
			}
		}
	}

	return nil
}

func checkDirectoryWritable(dir string) error {
	tmpFile := filepath.Join(dir, ".write-test-"+randomString(8))
	f, err := os.Create(tmpFile)
	if err != nil {
		return err
	}
	f.Close()
	os.Remove(tmpFile)
	return nil
}

func checkFileWritable(path string) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return err
	}
	f.Close()
	return nil
}

func getWritePermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Grant 'Write' permission", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod u+w %s", path)
	}
}

func randomString(n int) string {
	b := make([]byte, (n+1)/2)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"runtime"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// EnvPrefix marks environment overrides: AUTOFLAGS_ENGINE_MIN_EVIDENCE -> engine.min_evidence.
	EnvPrefix = "AUTOFLAGS_"

	maxConfigFileSize = 1024 * 1024 // 1MB
)

// Load reads the configuration from the default path. A missing file
// yields the defaults with environment overrides applied.
func Load() (*Config, error) {
	configPath, err := GetDefaultConfigPath()
	if err != nil {
		return nil, err
	}
	return load(configPath, false)
}

// LoadFrom reads the configuration from an explicit path, which must exist.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (AUTOFLAGS_ENGINE_DECAY, AUTOFLAGS_HTTP_PORT, ...)
//  2. The YAML file
//  3. Defaults
func LoadFrom(path string) (*Config, error) {
	return load(path, true)
}

func load(path string, mustExist bool) (*Config, error) {
	k := koanf.New(".")

	data, err := readConfigFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if mustExist {
			return nil, &ConfigNotFoundError{Path: path, Hint: hintInit}
		}
	case err != nil:
		return nil, err
	default:
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return nil, &InvalidConfigError{
				Path:    path,
				Message: fmt.Sprintf("YAML parse error: %v", err),
				Hint:    "Restore " + path + ".bak if available, or run 'autoflags config init --force'",
			}
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Unmarshal over the defaults so absent keys keep their default value.
	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("failed to decode config: %v", err),
			Hint:    "Check value types (durations look like 80ms or 2160h)",
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, invalid(path, err, hintReset)
	}

	return cfg, nil
}

// envKey maps AUTOFLAGS_SECTION_FIELD_NAME to section.field_name. The
// engine weights are the only nested block: AUTOFLAGS_ENGINE_WEIGHTS_SIZE
// maps to engine.weights.size.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}

	section, field := parts[0], parts[1]
	if rest, ok := strings.CutPrefix(field, "weights_"); ok {
		field = "weights." + rest
	}
	return section + "." + field
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsPermission(err) {
			return nil, &PermissionError{
				Path:    path,
				Op:      "read",
				Fix:     getReadPermissionFix(path),
				Details: getPermissionDetails(path),
			}
		}
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, &InvalidConfigError{
			Path:    path,
			Message: fmt.Sprintf("config file is %d bytes, limit is %d", info.Size(), maxConfigFileSize),
		}
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return data, nil
}

// getReadPermissionFix returns platform-specific fix command
func getReadPermissionFix(path string) string {
	switch runtime.GOOS {
	case "windows":
		return fmt.Sprintf("Right-click %s → Properties → Security → Edit permissions", path)
	default: // unix-like
		return fmt.Sprintf("Run: chmod 644 %s", path)
	}
}

// getPermissionDetails checks file ownership and permissions
func getPermissionDetails(path string) string {
	if runtime.GOOS == "windows" {
		return "" // Not applicable on Windows
	}

	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	return fmt.Sprintf("Current permissions: %04o", info.Mode().Perm())
}

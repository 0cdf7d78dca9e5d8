package config

import (
	"errors"
	"fmt"
	"strings"
)

// Fix hints shown with config errors. They name the autoflags command that
// gets the user back to a working ~/.autoflags/config.yaml.
const (
	hintInit  = "Run 'autoflags config init' to create ~/.autoflags/config.yaml"
	hintReset = "Run 'autoflags config init --force' to restore the defaults"
)

// PermissionError reports that autoflags cannot read or write its config.
type PermissionError struct {
	Path    string
	Op      string // "read" or "write"
	Fix     string // platform-specific command
	Details string
}

func (e *PermissionError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "permission denied: autoflags cannot %s %s\n", e.Op, e.Path)
	if e.Details != "" {
		b.WriteString(e.Details + "\n")
	}
	b.WriteString("💡 Fix: " + e.Fix)
	return b.String()
}

// ConfigNotFoundError is returned by LoadFrom for an explicit --config path
// that does not exist. Load never returns it; a missing default file means
// defaults.
type ConfigNotFoundError struct {
	Path string
	Hint string
}

func (e *ConfigNotFoundError) Error() string {
	hint := e.Hint
	if hint == "" {
		hint = hintInit
	}
	return fmt.Sprintf("autoflags config not found: %s\n\n💡 %s", e.Path, hint)
}

// InvalidConfigError reports a config file that parses badly or holds
// out-of-range values. Section names the failing top-level block
// (engine, storage, retention, logging, http, report) when known.
type InvalidConfigError struct {
	Path    string
	Section string
	Message string
	Hint    string
}

func (e *InvalidConfigError) Error() string {
	var b strings.Builder
	b.WriteString("invalid autoflags config: " + e.Path)
	if e.Section != "" {
		fmt.Fprintf(&b, " (section %q)", e.Section)
	}
	b.WriteString("\n")
	if e.Message != "" {
		b.WriteString(e.Message + "\n")
	}
	hint := e.Hint
	if hint == "" {
		hint = hintReset
	}
	b.WriteString("💡 " + hint)
	return b.String()
}

// SectionError tags a validation failure with its config section.
type SectionError struct {
	Section string
	Err     error
}

func (e *SectionError) Error() string { return e.Section + ": " + e.Err.Error() }

func (e *SectionError) Unwrap() error { return e.Err }

func sectionErrorf(section, format string, args ...any) error {
	return &SectionError{Section: section, Err: fmt.Errorf(format, args...)}
}

// invalid wraps a validation failure for path.
func invalid(path string, err error, hint string) *InvalidConfigError {
	e := &InvalidConfigError{Path: path, Message: err.Error(), Hint: hint}
	var se *SectionError
	if errors.As(err, &se) {
		e.Section = se.Section
	}
	return e
}

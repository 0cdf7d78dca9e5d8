/*
Package rules holds the static rule table: the read-only mapping from a
request category to its default flags, confidence and MCP servers.

The table is loaded once at process start from a YAML file. Each entry is
validated on its own; a broken entry falls back to the built-in default for
that category instead of failing the whole table.
*/
package rules

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is the static rule for one category.
type Entry struct {
	Category   string   `json:"category"`
	Keywords   []string `json:"keywords"`
	Flags      []string `json:"flags"`
	Confidence float64  `json:"confidence"`
	MCPServers []string `json:"mcp_servers,omitempty"`

	// DimensionName overrides the preference dimension derived from Flags.
	DimensionName string `json:"dimension,omitempty"`

	// Builtin is true when the entry came from the compiled-in defaults.
	Builtin bool `json:"builtin"`
}

// Dimension returns the preference dimension that dominates this category:
// the explicit dimension, else the first persona flag, else "category:<name>".
func (e Entry) Dimension() string {
	if e.DimensionName != "" {
		return e.DimensionName
	}
	for _, f := range e.Flags {
		if name := FlagName(f); strings.HasPrefix(name, "persona-") {
			return name
		}
	}
	return "category:" + e.Category
}

// Table is an immutable category -> Entry mapping.
type Table struct {
	version string
	entries map[string]Entry
	aliases map[string]string
}

func newTable(version string) *Table {
	return &Table{
		version: version,
		entries: make(map[string]Entry),
		aliases: make(map[string]string),
	}
}

// Version returns the table version string.
func (t *Table) Version() string { return t.version }

// Lookup returns the entry for a category or alias.
func (t *Table) Lookup(category string) (Entry, error) {
	name := strings.ToLower(strings.TrimSpace(category))
	if target, ok := t.aliases[name]; ok {
		name = target
	}
	e, ok := t.entries[name]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q", ErrUnknownCategory, category)
	}
	return e, nil
}

// Categories returns the table's category names, sorted.
func (t *Table) Categories() []string {
	out := make([]string, 0, len(t.entries))
	for name := range t.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Entries returns all entries sorted by category.
func (t *Table) Entries() []Entry {
	out := make([]Entry, 0, len(t.entries))
	for _, name := range t.Categories() {
		out = append(out, t.entries[name])
	}
	return out
}

// rawFile mirrors the on-disk YAML layout. Entries stay as nodes so each
// one can be decoded and validated independently.
type rawFile struct {
	Version  string               `yaml:"version"`
	Patterns map[string]yaml.Node `yaml:"patterns"`
	Aliases  map[string]string    `yaml:"aliases"`
}

type rawEntry struct {
	Keywords   []string  `yaml:"keywords"`
	BaseFlags  flagField `yaml:"base_flags"`
	Confidence *float64  `yaml:"confidence"`
	MCPServers []string  `yaml:"mcp_servers"`
	Dimension  string    `yaml:"dimension"`
}

// flagField accepts either a flag string or a list of flags.
type flagField []string

func (f *flagField) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		*f = ParseFlags(node.Value)
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		var out []string
		for _, s := range list {
			out = append(out, ParseFlags(s)...)
		}
		*f = out
		return nil
	default:
		return fmt.Errorf("base_flags must be a string or list")
	}
}

// Load reads the rule table from path. A missing file yields the built-in
// table. Per-entry problems are returned as warnings (*MalformedEntryError)
// and never fail the load; only an unreadable or unparsable file is an error,
// in which case the built-in table is returned alongside it.
func Load(path string) (*Table, []error, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return Builtin(), nil, nil
	}
	if err != nil {
		return Builtin(), nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a table from YAML bytes. Built-in categories absent from the
// document stay available.
func Parse(data []byte) (*Table, []error, error) {
	var raw rawFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Builtin(), nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	t := Builtin()
	if raw.Version != "" {
		t.version = raw.Version
	}

	var warnings []error
	names := make([]string, 0, len(raw.Patterns))
	for name := range raw.Patterns {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		node := raw.Patterns[name]
		category := strings.ToLower(strings.TrimSpace(name))

		e, reason := decodeEntry(category, &node)
		if reason == "" {
			t.entries[category] = e
			continue
		}

		_, hasBuiltin := builtins[category]
		warnings = append(warnings, &MalformedEntryError{Category: category, Reason: reason, Fallback: hasBuiltin})
	}

	for alias, target := range raw.Aliases {
		t.aliases[strings.ToLower(alias)] = strings.ToLower(target)
	}

	return t, warnings, nil
}

// decodeEntry returns the entry or a non-empty reason it is malformed.
func decodeEntry(category string, node *yaml.Node) (Entry, string) {
	var r rawEntry
	if err := node.Decode(&r); err != nil {
		return Entry{}, err.Error()
	}
	if len(r.Keywords) == 0 {
		return Entry{}, "missing keywords"
	}
	if len(r.BaseFlags) == 0 {
		return Entry{}, "missing base_flags"
	}
	if r.Confidence == nil {
		return Entry{}, "missing confidence"
	}

	conf := *r.Confidence
	if conf > 1 && conf <= 100 {
		conf /= 100
	}
	if conf < 0 || conf > 1 {
		return Entry{}, fmt.Sprintf("confidence %v out of range", *r.Confidence)
	}

	return Entry{
		Category:      category,
		Keywords:      r.Keywords,
		Flags:         []string(r.BaseFlags),
		Confidence:    conf,
		MCPServers:    r.MCPServers,
		DimensionName: r.Dimension,
	}, ""
}

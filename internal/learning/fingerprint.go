package learning

import (
	"fmt"
	"sort"
	"strings"
)

// ProjectContext is the per-request snapshot supplied by the project collector.
type ProjectContext struct {
	FileCount  int      `json:"file_count"`
	Languages  []string `json:"languages,omitempty"`
	Frameworks []string `json:"frameworks,omitempty"`

	// Project is the project fingerprint (hash of the project path).
	// When empty, preferences are keyed by the context fingerprint instead.
	Project string `json:"project,omitempty"`
}

// SizeBucket discretizes a file count.
type SizeBucket string

const (
	SizeSmall  SizeBucket = "small"
	SizeMedium SizeBucket = "medium"
	SizeLarge  SizeBucket = "large"
)

// Fingerprint is the discretized, comparable form of a ProjectContext.
// Language and framework sets are lowercased, deduplicated and sorted.
type Fingerprint struct {
	Size       SizeBucket
	Languages  []string
	Frameworks []string
}

// NewFingerprint discretizes a context using the configured size buckets.
func NewFingerprint(pc ProjectContext, cfg Config) Fingerprint {
	size := SizeLarge
	switch {
	case pc.FileCount <= cfg.SmallMaxFiles:
		size = SizeSmall
	case pc.FileCount <= cfg.MediumMaxFiles:
		size = SizeMedium
	}
	return Fingerprint{
		Size:       size,
		Languages:  normalizeSet(pc.Languages),
		Frameworks: normalizeSet(pc.Frameworks),
	}
}

// String encodes the fingerprint as "size:lang,lang:framework,framework".
// Equal fingerprints always encode identically.
func (f Fingerprint) String() string {
	return string(f.Size) + ":" + strings.Join(f.Languages, ",") + ":" + strings.Join(f.Frameworks, ",")
}

// ParseFingerprint decodes the String form.
func ParseFingerprint(s string) (Fingerprint, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q", s)
	}

	size := SizeBucket(parts[0])
	switch size {
	case SizeSmall, SizeMedium, SizeLarge:
	default:
		return Fingerprint{}, fmt.Errorf("malformed fingerprint %q: unknown size %q", s, parts[0])
	}

	return Fingerprint{
		Size:       size,
		Languages:  splitSet(parts[1]),
		Frameworks: splitSet(parts[2]),
	}, nil
}

func splitSet(s string) []string {
	if s == "" {
		return nil
	}
	return normalizeSet(strings.Split(s, ","))
}

// normalizeSet lowercases, strips separator characters, dedups and sorts.
func normalizeSet(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.ToLower(strings.TrimSpace(v))
		v = strings.NewReplacer(",", "", ":", "").Replace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

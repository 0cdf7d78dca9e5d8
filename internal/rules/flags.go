package rules

import "strings"

// thinking levels are mutually exclusive and resolve as one flag.
var thinkGroup = map[string]bool{
	"think":      true,
	"think-hard": true,
	"ultrathink": true,
}

// ParseFlags splits a flag string into flags. A "--name" token absorbs the
// non-flag tokens that follow it, so "--focus security --validate" yields
// ["--focus security", "--validate"]. Leading non-flag tokens are dropped.
func ParseFlags(s string) []string {
	var (
		out []string
		cur []string
	)
	flush := func() {
		if len(cur) > 0 {
			out = append(out, strings.Join(cur, " "))
			cur = nil
		}
	}

	for _, tok := range strings.Fields(s) {
		if strings.HasPrefix(tok, "--") && len(tok) > 2 {
			flush()
			cur = []string{tok}
			continue
		}
		if len(cur) > 0 {
			cur = append(cur, tok)
		}
	}
	flush()
	return out
}

// FlagName returns the bare name of a flag: "--focus security" -> "focus".
func FlagName(flag string) string {
	name := strings.TrimPrefix(strings.TrimSpace(flag), "--")
	if i := strings.IndexAny(name, " ="); i >= 0 {
		name = name[:i]
	}
	return name
}

func conflictKey(flag string) string {
	name := FlagName(flag)
	if thinkGroup[name] {
		return "think"
	}
	return name
}

// Merge combines static and learned flags. On a name conflict the learned
// flag replaces the static one in place; learned flags with no static
// counterpart are appended in their own order. Duplicates are removed.
func Merge(static, learned []string) []string {
	learnedByKey := make(map[string]string, len(learned))
	for _, f := range learned {
		k := conflictKey(f)
		if _, ok := learnedByKey[k]; !ok {
			learnedByKey[k] = f
		}
	}

	seen := make(map[string]bool, len(static)+len(learned))
	out := make([]string, 0, len(static)+len(learned))
	for _, f := range static {
		k := conflictKey(f)
		if seen[k] {
			continue
		}
		seen[k] = true
		if lf, ok := learnedByKey[k]; ok {
			out = append(out, lf)
		} else {
			out = append(out, f)
		}
	}
	for _, f := range learned {
		k := conflictKey(f)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, f)
	}
	return out
}

// Personas returns the persona names carried by flags, in order.
func Personas(flags []string) []string {
	var out []string
	for _, f := range flags {
		if p, ok := strings.CutPrefix(FlagName(f), "persona-"); ok && p != "" {
			out = append(out, p)
		}
	}
	return out
}

// JoinFlags renders flags back into a single command-line string.
func JoinFlags(flags []string) string {
	return strings.Join(flags, " ")
}

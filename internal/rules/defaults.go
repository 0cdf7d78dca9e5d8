package rules

// builtinVersion tags the table compiled into the binary.
const builtinVersion = "builtin-1"

type builtinEntry struct {
	keywords   []string
	flags      string
	confidence float64
	mcpServers []string
}

var builtins = map[string]builtinEntry{
	"analyze_general": {
		keywords:   []string{"analyze", "분석", "review", "검토"},
		flags:      "--persona-analyzer --think",
		confidence: 0.85,
		mcpServers: []string{"Sequential"},
	},
	"analyze_security": {
		keywords:   []string{"security", "보안", "vulnerability", "취약점", "audit", "injection"},
		flags:      "--persona-security --focus security --think --validate",
		confidence: 0.95,
		mcpServers: []string{"Sequential"},
	},
	"analyze_performance": {
		keywords:   []string{"performance", "성능", "bottleneck", "latency", "slow"},
		flags:      "--persona-performance --think-hard --focus performance",
		confidence: 0.90,
		mcpServers: []string{"Sequential", "Playwright"},
	},
	"analyze_architecture": {
		keywords:   []string{"architecture", "아키텍처", "design", "structure", "dependencies"},
		flags:      "--persona-architect --ultrathink --seq",
		confidence: 0.95,
		mcpServers: []string{"Sequential"},
	},
	"implement_ui": {
		keywords:   []string{"component", "컴포넌트", "ui", "interface", "frontend"},
		flags:      "--persona-frontend --magic --c7",
		confidence: 0.94,
		mcpServers: []string{"Magic", "Context7"},
	},
	"implement_api": {
		keywords:   []string{"api", "endpoint", "backend", "server", "서버"},
		flags:      "--persona-backend --seq --c7",
		confidence: 0.92,
		mcpServers: []string{"Sequential", "Context7"},
	},
	"implement_auth": {
		keywords:   []string{"auth", "authentication", "인증", "login", "oauth"},
		flags:      "--persona-security --persona-backend --validate",
		confidence: 0.90,
		mcpServers: []string{"Sequential", "Context7"},
	},
	"improve_quality": {
		keywords:   []string{"improve", "개선", "refactor", "리팩토링", "cleanup"},
		flags:      "--persona-refactorer --loop --validate",
		confidence: 0.88,
		mcpServers: []string{"Sequential"},
	},
	"improve_performance": {
		keywords:   []string{"optimize", "최적화", "speed up", "faster", "memory"},
		flags:      "--persona-performance --think-hard --play",
		confidence: 0.90,
		mcpServers: []string{"Sequential", "Playwright"},
	},
}

// builtinAliases maps short or legacy category names to table categories.
var builtinAliases = map[string]string{
	"security":                 "analyze_security",
	"security_audit":           "analyze_security",
	"performance":              "analyze_performance",
	"architecture":             "analyze_architecture",
	"optimize_performance":     "improve_performance",
	"implement_authentication": "implement_auth",
	"refactor":                 "improve_quality",
	"ui":                       "implement_ui",
	"api":                      "implement_api",
}

func builtinFor(category string) (Entry, bool) {
	b, ok := builtins[category]
	if !ok {
		return Entry{}, false
	}
	return Entry{
		Category:   category,
		Keywords:   append([]string(nil), b.keywords...),
		Flags:      ParseFlags(b.flags),
		Confidence: b.confidence,
		MCPServers: append([]string(nil), b.mcpServers...),
		Builtin:    true,
	}, true
}

// Builtin returns the table compiled into the binary.
func Builtin() *Table {
	t := newTable(builtinVersion)
	for name := range builtins {
		e, _ := builtinFor(name)
		t.entries[name] = e
	}
	for alias, target := range builtinAliases {
		t.aliases[alias] = target
	}
	return t
}

package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"

	"github.com/Soochol/superclaude-auto-flags/internal/app"
	"github.com/Soochol/superclaude-auto-flags/internal/benchmark"
	"github.com/Soochol/superclaude-auto-flags/internal/learning"
	"github.com/Soochol/superclaude-auto-flags/internal/rules"
	"github.com/Soochol/superclaude-auto-flags/internal/search"
)

func renderRecommendation(res app.RecommendResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s %s\n", color.CyanString("Category:"), res.Category)
	fmt.Fprintf(&sb, "%s    %s\n", color.CyanString("Flags:"), color.YellowString(rules.JoinFlags(res.Flags)))
	fmt.Fprintf(&sb, "%s %s (%s)\n", color.CyanString("Confidence:"), confidenceString(res.Confidence), sourceString(res.Source))
	if len(res.Personas) > 0 {
		fmt.Fprintf(&sb, "%s  %s\n", color.CyanString("Personas:"), strings.Join(res.Personas, ", "))
	}
	if len(res.MCPServers) > 0 {
		fmt.Fprintf(&sb, "%s      %s\n", color.CyanString("MCP:"), strings.Join(res.MCPServers, ", "))
	}
	for _, r := range res.Rationale {
		fmt.Fprintf(&sb, "  • %s\n", r)
	}
	if res.InteractionID > 0 {
		fmt.Fprintf(&sb, "\nReport the outcome: autoflags feedback %d [--failed] [--rating 1-5]\n", res.InteractionID)
	} else {
		sb.WriteString(color.YellowString("\nLearning store unavailable: this recommendation was not recorded.\n"))
	}
	return sb.String()
}

func renderMatches(matches []search.Match, chosen string) string {
	var sb strings.Builder

	sb.WriteString(color.CyanString("\nCategory matches:\n"))
	if len(matches) == 0 {
		sb.WriteString("  none (category given explicitly or no keyword matched)\n")
		return sb.String()
	}
	for _, m := range matches {
		marker := " "
		if m.Category == chosen {
			marker = color.GreenString("*")
		}
		fmt.Fprintf(&sb, "  %s %-24s %.3f\n", marker, m.Category, m.Score)
	}
	return sb.String()
}

func renderFeedback(res learning.FeedbackResult) string {
	var sb strings.Builder

	marker := color.GreenString("✓")
	if res.LearningWeight < 0 {
		marker = color.RedString("✗")
	}
	fmt.Fprintf(&sb, "[%s] Feedback recorded for interaction %d (learning weight %+.2f)\n", marker, res.InteractionID, res.LearningWeight)
	fmt.Fprintf(&sb, "  Pattern:    %s @ %s: success %.0f%% over %d uses\n",
		res.Pattern.Category, res.Pattern.Fingerprint, res.Pattern.SuccessRate*100, res.Pattern.UsageCount)
	fmt.Fprintf(&sb, "  Preference: %s = %.2f\n", res.Preference.Dimension, res.Preference.Weight)
	return sb.String()
}

func renderReport(r learning.Report) string {
	var sb strings.Builder

	sb.WriteString(color.CyanString("Personalization Report\n"))
	fmt.Fprintf(&sb, "  User:      %s\n", r.UserID)
	fmt.Fprintf(&sb, "  Generated: %s\n\n", r.GeneratedAt.Format("2006-01-02 15:04"))

	fmt.Fprintf(&sb, "  %-22s %10s %10s\n", "", "current", "baseline")
	fmt.Fprintf(&sb, "  %-22s %10d %10d\n", "Interactions", r.Current.Interactions, r.Baseline.Interactions)
	fmt.Fprintf(&sb, "  %-22s %10d %10d\n", "With feedback", r.Current.WithFeedback, r.Baseline.WithFeedback)
	fmt.Fprintf(&sb, "  %-22s %9.0f%% %9.0f%%\n", "Success rate", r.Current.SuccessRate*100, r.Baseline.SuccessRate*100)
	fmt.Fprintf(&sb, "  %-22s %10.2f %10.2f\n", "Mean confidence", r.Current.MeanConfidence, r.Baseline.MeanConfidence)
	fmt.Fprintf(&sb, "  %-22s %9.0f%% %9.0f%%\n\n", "Personalized", r.Current.PersonalizedFraction*100, r.Baseline.PersonalizedFraction*100)

	if r.HasBaseline {
		fmt.Fprintf(&sb, "  Success rate change: %s\n", deltaString(r.SuccessRateDelta, 100, "%"))
		fmt.Fprintf(&sb, "  Confidence change:   %s\n", deltaString(r.ConfidenceDelta, 1, ""))
	} else {
		sb.WriteString("  No baseline yet: changes appear once older interactions exist.\n")
	}

	if len(r.TopPreferences) > 0 {
		sb.WriteString("\n  Top preferences:\n")
		for _, p := range r.TopPreferences {
			fmt.Fprintf(&sb, "    %-28s %.2f\n", p.Dimension, p.Weight)
		}
	}
	return sb.String()
}

func renderStatus(st learningStatus) string {
	var sb strings.Builder

	sb.WriteString(color.CyanString("Learning System Status\n"))
	if st.Enabled {
		fmt.Fprintf(&sb, "  Store:        %s (%s)\n", color.GreenString("enabled"), st.Path)
	} else {
		fmt.Fprintf(&sb, "  Store:        %s (%s)\n", color.RedString("unavailable"), st.Path)
	}
	fmt.Fprintf(&sb, "  User:         %s\n", st.UserID)
	fmt.Fprintf(&sb, "  Retention:    %s\n", st.Retained)
	if !st.Enabled {
		return sb.String()
	}

	fmt.Fprintf(&sb, "  Interactions: %d (%d awaiting feedback)\n", st.Stats.Interactions, st.Stats.PendingFeedback)
	fmt.Fprintf(&sb, "  Patterns:     %d (%d established, %d candidates)\n", st.Stats.Patterns, st.Established, st.Candidates)
	fmt.Fprintf(&sb, "  Preferences:  %d\n", st.Stats.Preferences)
	return sb.String()
}

func renderRules(table *rules.Table, warnings []error) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "%s (version %s, %d categories)\n\n", color.CyanString("Rule table"), table.Version(), len(table.Categories()))
	for _, e := range table.Entries() {
		origin := "file"
		if e.Builtin {
			origin = "built-in"
		}
		fmt.Fprintf(&sb, "  %s\n", color.YellowString(e.Category))
		fmt.Fprintf(&sb, "    Flags:      %s\n", rules.JoinFlags(e.Flags))
		fmt.Fprintf(&sb, "    Confidence: %s\n", confidenceString(e.Confidence))
		fmt.Fprintf(&sb, "    Keywords:   %s\n", strings.Join(e.Keywords, ", "))
		fmt.Fprintf(&sb, "    Dimension:  %s\n", e.Dimension())
		fmt.Fprintf(&sb, "    Source:     %s\n\n", origin)
	}
	for _, w := range warnings {
		fmt.Fprintf(&sb, "%s %v\n", color.RedString("warning:"), w)
	}
	return sb.String()
}

func renderBenchmark(r *benchmark.Result) string {
	var sb strings.Builder

	sb.WriteString(color.CyanString("Recommendation Latency\n"))
	fmt.Fprintf(&sb, "  Runs:   %d\n", r.Runs)
	fmt.Fprintf(&sb, "  Min:    %s\n", r.Min)
	fmt.Fprintf(&sb, "  Avg:    %s\n", r.Avg)
	fmt.Fprintf(&sb, "  P95:    %s\n", r.P95)
	fmt.Fprintf(&sb, "  Max:    %s\n", r.Max)

	within := fmt.Sprintf("%.1f%%", r.WithinBudget*100)
	if r.WithinBudget >= 0.99 {
		within = color.GreenString(within)
	} else {
		within = color.RedString(within)
	}
	fmt.Fprintf(&sb, "  Within %s budget: %s\n", r.Budget, within)

	for _, source := range []learning.Source{learning.SourceStatic, learning.SourceLearned, learning.SourcePersonalized} {
		if n := r.BySource[string(source)]; n > 0 {
			fmt.Fprintf(&sb, "  %-13s %d\n", string(source)+":", n)
		}
	}
	return sb.String()
}

func confidenceString(c float64) string {
	s := fmt.Sprintf("%.0f%%", c*100)
	switch {
	case c >= 0.8:
		return color.GreenString(s)
	case c >= 0.5:
		return color.YellowString(s)
	default:
		return color.RedString(s)
	}
}

func sourceString(s learning.Source) string {
	if s == learning.SourceStatic {
		return string(s)
	}
	return color.MagentaString(string(s))
}

func deltaString(d, scale float64, unit string) string {
	s := fmt.Sprintf("%+.2f%s", d*scale, unit)
	switch {
	case d > 0:
		return color.GreenString(s)
	case d < 0:
		return color.RedString(s)
	default:
		return s
	}
}

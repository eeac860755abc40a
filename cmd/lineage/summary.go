package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dd0wney/cluso-lineage/pkg/analysis"
	"github.com/dd0wney/cluso-lineage/pkg/impact"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#00FFFF"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#00FFFF")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Width(14)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFF00")).
			Bold(true)

	riskStyles = map[impact.RiskLevel]lipgloss.Style{
		impact.RiskHigh:    lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Bold(true),
		impact.RiskMedium:  lipgloss.NewStyle().Foreground(lipgloss.Color("#FFA500")),
		impact.RiskLow:     lipgloss.NewStyle().Foreground(lipgloss.Color("#00FF00")),
		impact.RiskUnknown: lipgloss.NewStyle().Foreground(lipgloss.Color("#666666")),
	}
)

// renderSummary formats a short human summary of res for the terminal.
func renderSummary(res *analysis.Result) string {
	var b strings.Builder

	line := func(label, value string) {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, labelStyle.Render(label), value))
		b.WriteByte('\n')
	}

	b.WriteString(titleStyle.Render("Lineage impact " + res.AnalysisID))
	b.WriteByte('\n')
	line("direction", res.Direction.String())
	line("status", res.Status())
	line("graph", fmt.Sprintf("%d nodes, %d edges", len(res.Nodes), len(res.Edges)))

	if res.ImpactReport != nil {
		counts := res.ImpactReport.CountByRisk()
		var parts []string
		for _, level := range []impact.RiskLevel{impact.RiskHigh, impact.RiskMedium, impact.RiskLow, impact.RiskUnknown} {
			if counts[level] == 0 {
				continue
			}
			parts = append(parts, riskStyles[level].Render(fmt.Sprintf("%d %s", counts[level], level)))
		}
		if len(parts) == 0 {
			parts = append(parts, "none")
		}
		line("risk", strings.Join(parts, "  "))
	}

	if cp := res.CriticalPath; cp != nil {
		ids := make([]string, len(cp.NodeIDs))
		for i, id := range cp.NodeIDs {
			ids[i] = string(id)
		}
		line("critical path", fmt.Sprintf("%s (weight %.3f)", strings.Join(ids, " → "), cp.Weight))
	}

	line("gaps", fmt.Sprintf("%d of %d nodes", res.GapSummary.WithGaps, res.GapSummary.Total))

	if len(res.IncompleteNodeIDs) > 0 {
		line("incomplete", warnStyle.Render(fmt.Sprintf("%d nodes", len(res.IncompleteNodeIDs))))
	}
	if res.Truncated {
		line("truncated", warnStyle.Render(strings.Join(res.TruncationCauses, ", ")))
	}
	if len(res.NotFoundRoots) > 0 {
		missing := make([]string, len(res.NotFoundRoots))
		for i, id := range res.NotFoundRoots {
			missing[i] = string(id)
		}
		line("missing roots", warnStyle.Render(strings.Join(missing, ", ")))
	}
	line("took", res.Duration.Round(time.Millisecond).String())

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/devpulse/internal/analytics"
	"github.com/fakeyudi/devpulse/internal/session"
)

// Renderer serializes a Report to bytes.
type Renderer interface {
	Render(r *Report) ([]byte, error)
}

// NewRenderer returns the renderer for format: "json" or "text".
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "json":
		return &JSONRenderer{}, nil
	case "", "text":
		return &TextRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown format %q (want text or json)", format)
}

// JSONRenderer renders a Report as indented JSON.
type JSONRenderer struct{}

func (jr *JSONRenderer) Render(r *Report) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

var (
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	labelStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("33"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	severityStyles = map[analytics.Severity]lipgloss.Style{
		analytics.SeverityAlert:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		analytics.SeverityWarning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		analytics.SeveritySuggestion: lipgloss.NewStyle().Foreground(lipgloss.Color("39")),
		analytics.SeverityInfo:       lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	}
	priorityStyles = map[string]lipgloss.Style{
		analytics.PriorityHigh:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196")),
		analytics.PriorityMedium: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		analytics.PriorityLow:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		analytics.PriorityInfo:   lipgloss.NewStyle().Foreground(lipgloss.Color("82")),
	}
)

// TextRenderer renders a Report for the terminal.
type TextRenderer struct{}

func (tr *TextRenderer) Render(r *Report) ([]byte, error) {
	var sb strings.Builder

	writeHeading(&sb, "Session")
	sb.WriteString(Overview(r))

	writeHeading(&sb, fmt.Sprintf("Anomalies (%d)", len(r.Anomalies)))
	sb.WriteString(AnomalyList(r.Anomalies))

	writeHeading(&sb, fmt.Sprintf("Recommendations (%d)", len(r.Recommendations)))
	sb.WriteString(RecommendationList(r.Recommendations))

	writeHeading(&sb, fmt.Sprintf("Team (last %d days)", r.Team.WindowDays))
	sb.WriteString(TeamSummary(r.Team))

	if r.History.Skipped > 0 {
		fmt.Fprintf(&sb, "\n%s\n", dimStyle.Render(fmt.Sprintf(
			"  %d of %d history records were unreadable and skipped", r.History.Skipped, r.History.Total)))
	}
	return []byte(sb.String()), nil
}

func writeHeading(sb *strings.Builder, s string) {
	sb.WriteString("\n" + headingStyle.Render("  "+s) + "\n\n")
}

func row(sb *strings.Builder, label, value string) {
	sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-18s", label)) + "  " + value + "\n")
}

// Overview renders the session headline: provenance, score and components.
func Overview(r *Report) string {
	var sb strings.Builder
	if r.Scope == ScopeNone || r.Session == nil {
		sb.WriteString(dimStyle.Render("  (no sessions recorded yet)") + "\n")
		return sb.String()
	}

	s := r.Session
	scope := "in progress"
	if r.Scope == ScopeLast {
		scope = "last finished"
	}
	row(&sb, "Session:", fmt.Sprintf("%s (%s)", s.ID, scope))
	row(&sb, "User:", s.User)
	row(&sb, "Branch:", s.VCSBranch)
	row(&sb, "Work Dir:", s.WorkDir)
	row(&sb, "Started:", s.StartTime.Local().Format("2006-01-02 15:04:05 MST"))
	if s.Synthesized {
		row(&sb, "Note:", "synthesized, no recorded session was found")
	}

	if ind := r.Indicators; ind != nil {
		m := ind.Metrics
		row(&sb, "Duration:", fmt.Sprintf("%.2fh", ind.DurationHours))
		row(&sb, "Score:", fmt.Sprintf("%.2f / %.0f (%s)", ind.ProductivityScore, analytics.MaxScore, ind.Trend))
		row(&sb, "Commands:", fmt.Sprintf("%d (%d failed, %.1f%% success)", m.CommandsExecuted, m.FailedCommands, m.SuccessRate))
		row(&sb, "Files:", fmt.Sprintf("%d read, %d modified", m.FilesRead, m.FilesModified))
		row(&sb, "Lines Changed:", fmt.Sprintf("%d", m.LinesChanged))
		row(&sb, "Agents:", agentList(m))
	}
	if c := r.Components; c != nil {
		row(&sb, "Components:", fmt.Sprintf("velocity %.2f  output %.2f  quality %.2f  agents %.2f  focus %.2f",
			c.Velocity, c.Output, c.Quality, c.AgentEfficiency, c.Focus))
	}
	baseline := "default"
	if !r.Baseline.IsDefault() {
		baseline = fmt.Sprintf("%d sessions", r.Baseline.SessionsCount)
	}
	row(&sb, "Baseline:", fmt.Sprintf("%.1f cmd/h  %.1f lines/h  %.1f%% success (%s)",
		r.Baseline.AvgCommandsPerHour, r.Baseline.AvgLinesPerHour, r.Baseline.AvgSuccessRate, baseline))
	return sb.String()
}

// AnomalyList renders anomalies one per block.
func AnomalyList(anomalies []analytics.Anomaly) string {
	var sb strings.Builder
	if len(anomalies) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, a := range anomalies {
		badge := severityStyles[a.Severity].Render(fmt.Sprintf("[%s]", strings.ToUpper(string(a.Severity))))
		fmt.Fprintf(&sb, "  %s %s\n", badge, a.Message)
		fmt.Fprintf(&sb, "      %s\n\n", dimStyle.Render(a.Recommendation))
	}
	return sb.String()
}

// RecommendationList renders recommendations one per block.
func RecommendationList(recs []session.Recommendation) string {
	var sb strings.Builder
	if len(recs) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, rec := range recs {
		badge := priorityStyles[rec.Priority].Render(fmt.Sprintf("[%s]", strings.ToUpper(rec.Priority)))
		fmt.Fprintf(&sb, "  %s %s\n", badge, rec.Title)
		fmt.Fprintf(&sb, "      %s\n", rec.Message)
		fmt.Fprintf(&sb, "      → %s\n", rec.Action)
		if rec.Impact != "" {
			fmt.Fprintf(&sb, "      %s\n", dimStyle.Render(rec.Impact))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// TeamSummary renders aggregated team metrics and the agent leaderboard.
func TeamSummary(tm analytics.TeamMetrics) string {
	var sb strings.Builder
	if tm.TotalSessions == 0 {
		sb.WriteString(dimStyle.Render("  (no finalized sessions in this window)") + "\n")
		return sb.String()
	}
	row(&sb, "Sessions:", fmt.Sprintf("%d (%.1fh)", tm.TotalSessions, tm.TotalHours))
	row(&sb, "Avg Score:", fmt.Sprintf("%.2f", tm.AvgScore))
	row(&sb, "Throughput:", fmt.Sprintf("%.1f cmd/h  %.1f lines/h", tm.CommandsPerHour, tm.LinesPerHour))
	row(&sb, "Avg Success:", fmt.Sprintf("%.1f%%", tm.AvgSuccessRate))

	trend := tm.Trend.Direction
	if tm.Trend.HasPrevious {
		trend = fmt.Sprintf("%s (%+.1f%%: %.2f → %.2f)", tm.Trend.Direction, tm.Trend.ChangePct,
			tm.Trend.PreviousAvgScore, tm.Trend.RecentAvgScore)
	}
	row(&sb, "Week over Week:", trend)

	if len(tm.Agents) > 0 {
		sb.WriteString("\n")
		for i, a := range tm.Agents {
			fmt.Fprintf(&sb, "  %s  %-24s %5d calls  %3d sessions\n",
				dimStyle.Render(fmt.Sprintf("%2d.", i+1)), a.Name, a.Invocations, a.Sessions)
		}
	}
	return sb.String()
}

// HistoryList renders recent summaries, newest first.
func HistoryList(recent []session.Summary) string {
	var sb strings.Builder
	if len(recent) == 0 {
		sb.WriteString(dimStyle.Render("  (no finalized sessions)") + "\n")
		return sb.String()
	}
	for _, s := range recent {
		fmt.Fprintf(&sb, "  %s  %5.2f  %-18s %6.2fh  %4d cmd  %5d lines  %s\n",
			s.FinishedAt().Local().Format("2006-01-02 15:04"),
			s.ProductivityScore, s.Trend, s.DurationHours,
			s.Metrics.CommandsExecuted, s.Metrics.LinesChanged, s.VCSBranch)
	}
	return sb.String()
}

func agentList(m session.Metrics) string {
	if len(m.AgentsUsed) == 0 {
		return "none"
	}
	names := make([]string, 0, len(m.AgentsUsed))
	for name, n := range m.AgentsUsed {
		names = append(names, fmt.Sprintf("%s×%d", name, n))
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// Package tui provides a Bubble Tea TUI for browsing a productivity report.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/devpulse/internal/report"
	"github.com/fakeyudi/devpulse/internal/session"
)

// ── Styles ────────────

var (
	// Title bar at the very top
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	timeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("178"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	// Selected row in the History list
	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabOverview tabID = iota
	tabAnomalies
	tabRecommendations
	tabTeam
	tabHistory
	tabCount
)

var tabNames = [tabCount]string{
	"Overview", "Anomalies", "Recommendations", "Team", "History",
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	report    *report.Report
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool
	// History tab: cursor position and expanded set, indexed into
	// report.Recent
	cursor   int
	expanded map[int]bool
}

// New creates a new TUI model for r.
func New(r *report.Report) Model {
	return Model{
		report:   r,
		expanded: make(map[int]bool),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabHistory {
				m.sortAsc = !m.sortAsc
				m.rebuildHistoryViewport()
				m.viewports[tabHistory].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabHistory && m.cursor > 0 {
				m.cursor--
				m.rebuildHistoryViewport()
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabHistory && m.cursor < len(m.report.Recent)-1 {
				m.cursor++
				m.rebuildHistoryViewport()
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabHistory && len(m.report.Recent) > 0 {
				idx := m.order()[m.cursor]
				if m.expanded[idx] {
					delete(m.expanded, idx)
				} else {
					m.expanded[idx] = true
				}
				m.rebuildHistoryViewport()
				return m, nil
			}
		}
		if !m.ready {
			return m, nil
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  devpulse  " + m.subtitle())

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-5 jump  q quit"
	if m.activeTab == tabHistory {
		dir := "newest first"
		if m.sortAsc {
			dir = "oldest first"
		}
		hint = "  ←/→ tab  ↑/↓ select  enter expand  s sort (" + dir + ")  q quit"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := m.width - lipgloss.Width(hint) - len(pct) - 2
	if pad < 1 {
		pad = 1
	}
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

func (m Model) subtitle() string {
	r := m.report
	switch {
	case r.Scope == report.ScopeNone || r.Session == nil:
		return "no sessions yet"
	case r.Indicators != nil:
		return fmt.Sprintf("%s  score %.2f (%s)", shortID(r.Session.ID), r.Indicators.ProductivityScore, r.Indicators.Trend)
	}
	return shortID(r.Session.ID)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := m.height - 3
	if vpHeight < 1 {
		vpHeight = 1
	}
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuildHistoryViewport() {
	if !m.ready {
		return
	}
	m.viewports[tabHistory].SetContent(m.renderTab(tabHistory))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	r := m.report
	switch t {
	case tabOverview:
		return heading("Session") + report.Overview(r)
	case tabAnomalies:
		return heading(fmt.Sprintf("Anomalies (%d)", len(r.Anomalies))) + report.AnomalyList(r.Anomalies)
	case tabRecommendations:
		return heading(fmt.Sprintf("Recommendations (%d)", len(r.Recommendations))) + report.RecommendationList(r.Recommendations)
	case tabTeam:
		s := heading(fmt.Sprintf("Team (last %d days)", r.Team.WindowDays)) + report.TeamSummary(r.Team)
		if r.History.Skipped > 0 {
			s += "\n" + dimStyle.Render(fmt.Sprintf("  %d of %d history records were skipped", r.History.Skipped, r.History.Total)) + "\n"
		}
		return s
	case tabHistory:
		return m.renderHistory()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

// order returns indexes into report.Recent in display order. Recent is
// stored newest first.
func (m *Model) order() []int {
	n := len(m.report.Recent)
	idx := make([]int, n)
	for i := range idx {
		if m.sortAsc {
			idx[i] = n - 1 - i
		} else {
			idx[i] = i
		}
	}
	return idx
}

func (m *Model) renderHistory() string {
	var sb strings.Builder
	dir := "newest first"
	if m.sortAsc {
		dir = "oldest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Recent Sessions (%s)", dir)))
	if len(m.report.Recent) == 0 {
		sb.WriteString(dimStyle.Render("  (no finalized sessions)") + "\n")
		return sb.String()
	}

	for pos, i := range m.order() {
		s := m.report.Recent[i]
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		ts := timeStyle.Render(s.FinishedAt().Local().Format("2006-01-02 15:04"))
		row := fmt.Sprintf("%s%s  %5.2f  %-18s %6.2fh  %s", toggle, ts, s.ProductivityScore, s.Trend, s.DurationHours, s.VCSBranch)
		if pos == m.cursor {
			row = selectedRowStyle.Width(max(m.width-2, 1)).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expanded[i] {
			sb.WriteString(renderDetail(s))
		}
	}
	return sb.String()
}

// renderDetail expands one finalized session.
func renderDetail(s session.Summary) string {
	var sb strings.Builder
	m := s.Metrics
	c := s.Components
	fmt.Fprintf(&sb, "      %s\n", dimStyle.Render(fmt.Sprintf("session %s  user %s  %s", s.ID, s.User, s.WorkDir)))
	fmt.Fprintf(&sb, "      commands %d (%.1f%% success)  files %d read / %d modified  lines %d  agents %d\n",
		m.CommandsExecuted, m.SuccessRate, m.FilesRead, m.FilesModified, m.LinesChanged, m.DistinctAgents())
	fmt.Fprintf(&sb, "      velocity %.2f  output %.2f  quality %.2f  agents %.2f  focus %.2f\n",
		c.Velocity, c.Output, c.Quality, c.AgentEfficiency, c.Focus)
	for _, rec := range s.Recommendations {
		fmt.Fprintf(&sb, "      %s %s\n", dimStyle.Render("•"), rec.Title)
	}
	sb.WriteString("\n")
	return sb.String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Run starts the TUI for r.
func Run(r *report.Report) error {
	p := tea.NewProgram(New(r), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

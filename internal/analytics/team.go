package analytics

import (
	"sort"

	"github.com/fakeyudi/devpulse/internal/session"
)

// TeamWindowDays is the default history window of team metrics.
const TeamWindowDays = 90

// Week-over-week directions.
const (
	DirectionImproving = "improving"
	DirectionDeclining = "declining"
	DirectionStable    = "stable"
)

const (
	weekSessions      = 7
	trendThresholdPct = 2.0
)

// AgentUsage is one row of the agent leaderboard.
type AgentUsage struct {
	Name        string `json:"name"`
	Invocations int    `json:"invocations"`
	Sessions    int    `json:"sessions"`
}

// WeekOverWeek compares the most recent sessions to the ones before them.
type WeekOverWeek struct {
	RecentAvgScore   float64 `json:"recent_avg_score"`
	PreviousAvgScore float64 `json:"previous_avg_score"`
	ChangePct        float64 `json:"change_pct"`
	Direction        string  `json:"direction"`
	HasPrevious      bool    `json:"has_previous"`
}

// TeamMetrics aggregates a wide window of history.
type TeamMetrics struct {
	WindowDays        int          `json:"window_days"`
	TotalSessions     int          `json:"total_sessions"`
	AvgScore          float64      `json:"avg_productivity_score"`
	TotalCommands     int          `json:"total_commands"`
	TotalLinesChanged int          `json:"total_lines_changed"`
	TotalHours        float64      `json:"total_hours"`
	CommandsPerHour   float64      `json:"commands_per_hour"`
	LinesPerHour      float64      `json:"lines_per_hour"`
	AvgSuccessRate    float64      `json:"avg_success_rate"`
	Agents            []AgentUsage `json:"agents"`
	Trend             WeekOverWeek `json:"trend"`
}

// ComputeTeamMetrics aggregates history (oldest first) read over the last
// windowDays days.
func ComputeTeamMetrics(history []session.Summary, windowDays int) TeamMetrics {
	tm := TeamMetrics{
		WindowDays: windowDays,
		Agents:     []AgentUsage{},
		Trend:      WeekOverWeek{Direction: DirectionStable},
	}
	if len(history) == 0 {
		return tm
	}

	t := totalsOf(history)
	n := float64(len(history))
	tm.TotalSessions = len(history)
	tm.AvgScore = round2(t.scoreSum / n)
	tm.TotalCommands = t.commands
	tm.TotalLinesChanged = t.lines
	tm.TotalHours = round2(t.hours)
	tm.CommandsPerHour = round2(ratio(float64(t.commands), t.hours))
	tm.LinesPerHour = round2(ratio(float64(t.lines), t.hours))
	tm.AvgSuccessRate = round2(t.successSum / n)
	tm.Agents = agentLeaderboard(history)
	tm.Trend = weekOverWeek(history)
	return tm
}

// agentLeaderboard ranks agents by invocations, then by name.
func agentLeaderboard(history []session.Summary) []AgentUsage {
	byName := map[string]*AgentUsage{}
	for _, s := range history {
		for name, n := range s.Metrics.AgentsUsed {
			u, ok := byName[name]
			if !ok {
				u = &AgentUsage{Name: name}
				byName[name] = u
			}
			u.Invocations += n
			u.Sessions++
		}
	}

	board := make([]AgentUsage, 0, len(byName))
	for _, u := range byName {
		board = append(board, *u)
	}
	sort.Slice(board, func(i, j int) bool {
		if board[i].Invocations != board[j].Invocations {
			return board[i].Invocations > board[j].Invocations
		}
		return board[i].Name < board[j].Name
	})
	return board
}

// weekOverWeek compares the mean score of the last seven sessions with the
// seven before them. Without fourteen sessions the trend is stable.
func weekOverWeek(history []session.Summary) WeekOverWeek {
	w := WeekOverWeek{Direction: DirectionStable}
	recentAvg := meanScore(history[max(0, len(history)-weekSessions):])
	w.RecentAvgScore = round2(recentAvg)

	if len(history) < 2*weekSessions {
		return w
	}
	previousAvg := meanScore(history[len(history)-2*weekSessions : len(history)-weekSessions])
	w.HasPrevious = true
	w.PreviousAvgScore = round2(previousAvg)

	// Direction is decided on the unrounded change.
	change := 0.0
	switch {
	case previousAvg > 0:
		change = (recentAvg - previousAvg) / previousAvg * 100
	case recentAvg > 0:
		change = 100
	}
	w.ChangePct = round2(change)

	switch {
	case change > trendThresholdPct:
		w.Direction = DirectionImproving
	case change < -trendThresholdPct:
		w.Direction = DirectionDeclining
	}
	return w
}

func meanScore(summaries []session.Summary) float64 {
	if len(summaries) == 0 {
		return 0
	}
	return totalsOf(summaries).scoreSum / float64(len(summaries))
}

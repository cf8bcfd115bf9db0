package session

import (
	"math"
	"time"
)

// Unknown is recorded for provenance fields that could not be determined.
const Unknown = "unknown"

// Session represents an active or finalized tracking session.
type Session struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	User      string     `json:"user"`
	WorkDir   string     `json:"work_dir"`
	VCSBranch string     `json:"vcs_branch"`
	Metrics   Metrics    `json:"metrics"`
	// Synthesized is set when finalization could not resolve any recorded
	// session and fabricated an empty one instead.
	Synthesized bool `json:"synthesized,omitempty"`
}

// Metrics holds the cumulative activity counters of a session.
type Metrics struct {
	CommandsExecuted int            `json:"commands_executed"`
	FailedCommands   int            `json:"failed_commands"`
	FilesRead        int            `json:"files_read"`
	FilesModified    int            `json:"files_modified"`
	LinesChanged     int            `json:"lines_changed"`
	AgentsUsed       map[string]int `json:"agents_used"`
	SuccessRate      float64        `json:"success_rate"` // 0 to 100
}

// NewMetrics returns zeroed counters with a 100% success rate.
func NewMetrics() Metrics {
	return Metrics{AgentsUsed: map[string]int{}, SuccessRate: 100}
}

// Normalize coerces counters read from disk into their valid ranges.
// Negative counts become zero, empty agent names are dropped and the
// success rate is recomputed from the command counts when any were recorded.
func (m *Metrics) Normalize() {
	m.CommandsExecuted = max(m.CommandsExecuted, 0)
	m.FailedCommands = min(max(m.FailedCommands, 0), m.CommandsExecuted)
	m.FilesRead = max(m.FilesRead, 0)
	m.FilesModified = max(m.FilesModified, 0)
	m.LinesChanged = max(m.LinesChanged, 0)

	agents := make(map[string]int, len(m.AgentsUsed))
	for name, n := range m.AgentsUsed {
		if name == "" || n <= 0 {
			continue
		}
		agents[name] = n
	}
	m.AgentsUsed = agents

	switch {
	case m.CommandsExecuted > 0:
		m.SuccessRate = 100 * float64(m.CommandsExecuted-m.FailedCommands) / float64(m.CommandsExecuted)
	case math.IsNaN(m.SuccessRate) || m.SuccessRate <= 0:
		m.SuccessRate = 100
	}
	m.SuccessRate = math.Min(math.Max(m.SuccessRate, 0), 100)
}

// DistinctAgents returns the number of distinct agents invoked.
func (m Metrics) DistinctAgents() int {
	return len(m.AgentsUsed)
}

// Active reports whether any activity at all was recorded.
func (m Metrics) Active() bool {
	return m.CommandsExecuted > 0 || m.FilesRead > 0 || m.FilesModified > 0 || m.LinesChanged > 0
}

// Clone returns a deep copy of m.
func (m Metrics) Clone() Metrics {
	c := m
	c.AgentsUsed = make(map[string]int, len(m.AgentsUsed))
	for k, v := range m.AgentsUsed {
		c.AgentsUsed[k] = v
	}
	return c
}

// Indicators is the live, not-yet-finalized metrics document of the active
// session. It is rewritten as a whole after every tool event.
type Indicators struct {
	SessionID         string    `json:"session_id"`
	StartTime         time.Time `json:"start_time"`
	UpdatedAt         time.Time `json:"updated_at"`
	Metrics           Metrics   `json:"metrics"`
	DurationHours     float64   `json:"duration_hours"`
	ProductivityScore float64   `json:"productivity_score"`
	Trend             string    `json:"trend"`
}

// Baseline is the rolling-window historical average used to normalize
// scores.
type Baseline struct {
	AvgCommandsPerHour float64   `json:"avg_commands_per_hour"`
	AvgLinesPerHour    float64   `json:"avg_lines_per_hour"`
	AvgSuccessRate     float64   `json:"avg_success_rate"`
	SessionsCount      int       `json:"sessions_count"`
	LastUpdated        time.Time `json:"last_updated"`
}

// Default baseline values used until enough history exists.
const (
	DefaultCommandsPerHour = 15
	DefaultLinesPerHour    = 120
	DefaultSuccessRate     = 95
)

// DefaultBaseline returns the fixed baseline applied when no history exists.
func DefaultBaseline() Baseline {
	return Baseline{
		AvgCommandsPerHour: DefaultCommandsPerHour,
		AvgLinesPerHour:    DefaultLinesPerHour,
		AvgSuccessRate:     DefaultSuccessRate,
	}
}

// IsDefault reports whether b was not derived from any history.
func (b Baseline) IsDefault() bool {
	return b.SessionsCount == 0
}

// Summary is the immutable record of a finalized session appended to the
// history log.
type Summary struct {
	Session
	DurationHours     float64          `json:"duration_hours"`
	ProductivityScore float64          `json:"productivity_score"`
	Trend             string           `json:"trend"`
	Components        Components       `json:"components"`
	Performance       Performance      `json:"performance"`
	Baseline          Baseline         `json:"baseline"`
	Recommendations   []Recommendation `json:"recommendations"`
}

// Components breaks a productivity score down into its weighted parts.
type Components struct {
	Velocity        float64 `json:"velocity"`
	Output          float64 `json:"output"`
	Quality         float64 `json:"quality"`
	AgentEfficiency float64 `json:"agent_efficiency"`
	Focus           float64 `json:"focus"`
}

// Performance holds throughput ratios derived at finalization.
type Performance struct {
	CommandsPerHour       float64 `json:"commands_per_hour"`
	LinesPerHour          float64 `json:"lines_per_hour"`
	VelocityVsBaselinePct float64 `json:"velocity_vs_baseline_pct"`
	OutputVsBaselinePct   float64 `json:"output_vs_baseline_pct"`
}

// Recommendation is an actionable suggestion derived from session metrics.
type Recommendation struct {
	Priority string `json:"priority"` // high | medium | low | info
	Category string `json:"category"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Action   string `json:"action"`
	Impact   string `json:"impact,omitempty"`
}

package analytics

import (
	"fmt"

	"github.com/fakeyudi/devpulse/internal/session"
)

// AnomalyWindowDays is how far back history is read for anomaly detection.
const AnomalyWindowDays = 30

// AnomalyType identifies a kind of deviation.
type AnomalyType string

const (
	AnomalyLowVelocity    AnomalyType = "low_velocity"
	AnomalyHighVelocity   AnomalyType = "high_velocity"
	AnomalyLowSuccessRate AnomalyType = "low_success_rate"
	AnomalyNoAgentUsage   AnomalyType = "no_agent_usage"
)

// Severity ranks an anomaly.
type Severity string

const (
	SeverityInfo       Severity = "info"
	SeveritySuggestion Severity = "suggestion"
	SeverityWarning    Severity = "warning"
	SeverityAlert      Severity = "alert"
)

// Anomaly is a deviation of the current metrics from recent history.
type Anomaly struct {
	Type           AnomalyType `json:"type"`
	Severity       Severity    `json:"severity"`
	Message        string      `json:"message"`
	Recommendation string      `json:"recommendation"`
}

// Thresholds of the anomaly rules.
const (
	lowVelocityFactor      = 0.5
	highVelocityFactor     = 1.5
	lowSuccessFactor       = 0.8
	agentlessCommandsPerHr = 10
)

// HistoricalAverages are live averages over recent history, computed
// independently of the stored baseline.
type HistoricalAverages struct {
	CommandsPerHour float64 `json:"commands_per_hour"`
	LinesPerHour    float64 `json:"lines_per_hour"`
	SuccessRate     float64 `json:"success_rate"`
	Sessions        int     `json:"sessions"`
}

// Averages computes throughput-weighted rates and the mean success rate of
// history.
func Averages(history []session.Summary) HistoricalAverages {
	if len(history) == 0 {
		return HistoricalAverages{}
	}
	t := totalsOf(history)
	return HistoricalAverages{
		CommandsPerHour: ratio(float64(t.commands), t.hours),
		LinesPerHour:    ratio(float64(t.lines), t.hours),
		SuccessRate:     t.successSum / float64(len(history)),
		Sessions:        len(history),
	}
}

// DetectAnomalies compares the current metrics against the averages of
// history. The rules are independent and may fire together. With no
// history there is nothing to deviate from and the result is empty.
func DetectAnomalies(m session.Metrics, durationHours float64, history []session.Summary) []Anomaly {
	anomalies := []Anomaly{}
	if len(history) == 0 {
		return anomalies
	}

	avg := Averages(history)
	velocity := float64(m.CommandsExecuted) / EffectiveHours(durationHours)

	if avg.CommandsPerHour > 0 {
		if velocity < lowVelocityFactor*avg.CommandsPerHour {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalyLowVelocity,
				Severity: SeverityWarning,
				Message: fmt.Sprintf("Velocity is %.1f commands/hour, below half of your %.1f average",
					velocity, avg.CommandsPerHour),
				Recommendation: "Check for blockers or context switches and break the task into smaller steps",
			})
		}
		if velocity > highVelocityFactor*avg.CommandsPerHour {
			anomalies = append(anomalies, Anomaly{
				Type:     AnomalyHighVelocity,
				Severity: SeverityInfo,
				Message: fmt.Sprintf("Velocity is %.1f commands/hour, well above your %.1f average",
					velocity, avg.CommandsPerHour),
				Recommendation: "Great momentum; note what is working so you can repeat it",
			})
		}
	}

	if m.CommandsExecuted > 0 && avg.SuccessRate > 0 && m.SuccessRate < lowSuccessFactor*avg.SuccessRate {
		anomalies = append(anomalies, Anomaly{
			Type:     AnomalyLowSuccessRate,
			Severity: SeverityAlert,
			Message: fmt.Sprintf("Success rate is %.1f%%, well below your %.1f%% average",
				m.SuccessRate, avg.SuccessRate),
			Recommendation: "Review recent failures and validate assumptions before retrying",
		})
	}

	if m.DistinctAgents() == 0 && velocity > agentlessCommandsPerHr {
		anomalies = append(anomalies, Anomaly{
			Type:           AnomalyNoAgentUsage,
			Severity:       SeveritySuggestion,
			Message:        fmt.Sprintf("No agents used while running %.1f commands/hour", velocity),
			Recommendation: "Delegate repetitive or exploratory work to a specialized agent",
		})
	}

	return anomalies
}

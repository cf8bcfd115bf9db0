package analytics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/fakeyudi/devpulse/internal/session"
)

// steadyHistory is five one-hour sessions at 20 commands/hour and a 95%
// success rate.
func steadyHistory() []session.Summary {
	return historyOf(5, func(i int, s *session.Summary) {
		s.Metrics.CommandsExecuted = 20
		s.Metrics.SuccessRate = 95
		s.DurationHours = 1
	})
}

func types(anomalies []Anomaly) []AnomalyType {
	out := make([]AnomalyType, 0, len(anomalies))
	for _, a := range anomalies {
		out = append(out, a.Type)
	}
	return out
}

// Feature: devpulse, Property 3: No history means no anomalies
func TestDetectAnomaliesEmptyHistory(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		m := session.NewMetrics()
		m.CommandsExecuted = rapid.IntRange(0, 10_000).Draw(t, "commands")
		m.SuccessRate = rapid.Float64Range(0, 100).Draw(t, "success_rate")
		hours := rapid.Float64Range(0, 24).Draw(t, "hours")

		got := DetectAnomalies(m, hours, nil)
		if len(got) != 0 {
			t.Fatalf("expected no anomalies without history, got %v", got)
		}
	})
}

func TestDetectAnomaliesLowVelocity(t *testing.T) {
	m := metrics(5, 50, 95, "planner")
	got := DetectAnomalies(m, 1, steadyHistory())

	require.Len(t, got, 1)
	assert.Equal(t, AnomalyLowVelocity, got[0].Type)
	assert.Equal(t, SeverityWarning, got[0].Severity)
	assert.NotEmpty(t, got[0].Recommendation)
}

func TestDetectAnomaliesHighVelocityWithoutAgents(t *testing.T) {
	m := metrics(40, 50, 95)
	got := DetectAnomalies(m, 1, steadyHistory())

	assert.ElementsMatch(t, []AnomalyType{AnomalyHighVelocity, AnomalyNoAgentUsage}, types(got))
	for _, a := range got {
		switch a.Type {
		case AnomalyHighVelocity:
			assert.Equal(t, SeverityInfo, a.Severity)
		case AnomalyNoAgentUsage:
			assert.Equal(t, SeveritySuggestion, a.Severity)
		}
	}
}

func TestDetectAnomaliesLowSuccessRate(t *testing.T) {
	m := metrics(20, 50, 70, "planner")
	got := DetectAnomalies(m, 1, steadyHistory())

	require.Len(t, got, 1)
	assert.Equal(t, AnomalyLowSuccessRate, got[0].Type)
	assert.Equal(t, SeverityAlert, got[0].Severity)
}

func TestDetectAnomaliesWithinRange(t *testing.T) {
	m := metrics(20, 50, 95, "planner")
	assert.Empty(t, DetectAnomalies(m, 1, steadyHistory()))
}

func TestDetectAnomaliesIgnoresSuccessWithoutCommands(t *testing.T) {
	m := session.NewMetrics()
	m.FilesRead = 3
	m.SuccessRate = 0
	got := DetectAnomalies(m, 1, steadyHistory())
	assert.NotContains(t, types(got), AnomalyLowSuccessRate)
	assert.Contains(t, types(got), AnomalyLowVelocity)
}

func TestAverages(t *testing.T) {
	avg := Averages(steadyHistory())
	assert.Equal(t, 20.0, avg.CommandsPerHour)
	assert.Equal(t, 95.0, avg.SuccessRate)
	assert.Equal(t, 5, avg.Sessions)
	assert.Zero(t, Averages(nil))
}

// Package analytics turns session counters into productivity scores,
// baselines, anomalies and recommendations. Everything here is a pure
// function of its inputs; persistence lives in package session.
package analytics

import (
	"math"

	"github.com/fakeyudi/devpulse/internal/session"
)

// MinDurationHours is the floor applied to session durations before any
// per-hour rate is computed.
const MinDurationHours = 0.1

// MaxScore is the upper bound of a productivity score.
const MaxScore = 10.0

// Trend labels.
const (
	TrendExcellent        = "excellent"
	TrendGood             = "good"
	TrendAverage          = "average"
	TrendNeedsImprovement = "needs improvement"
)

// weight is the multiplier and cap of one score component.
type weight struct {
	factor float64
	cap    float64
}

// Component weights. The caps sum to MaxScore.
var (
	velocityWeight = weight{factor: 2.0, cap: 2.5}
	outputWeight   = weight{factor: 2.0, cap: 2.5}
	qualityWeight  = weight{factor: 2.0, cap: 2.0}
	agentWeight    = weight{factor: 1.5, cap: 1.5}
	focusWeight    = weight{factor: 1.5, cap: 1.5}
)

// apply multiplies ratio by the weight and clamps the result to [0, cap].
// Non-finite ratios contribute nothing.
func (w weight) apply(ratio float64) float64 {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) {
		return 0
	}
	return clamp(ratio*w.factor, 0, w.cap)
}

// Score is the result of scoring one session.
type Score struct {
	Value      float64            `json:"value"`
	Trend      string             `json:"trend"`
	Components session.Components `json:"components"`
}

// EffectiveHours applies MinDurationHours to a raw duration.
func EffectiveHours(hours float64) float64 {
	if math.IsNaN(hours) || hours < MinDurationHours {
		return MinDurationHours
	}
	return hours
}

// ComputeScore maps a session's counters and the prevailing baseline to a
// score in [0, 10]. A session without any recorded activity scores 0.
func ComputeScore(m session.Metrics, durationHours float64, b session.Baseline) Score {
	if !m.Active() {
		return Score{Value: 0, Trend: TrendLabel(0)}
	}

	hours := EffectiveHours(durationHours)
	b = sanitizeBaseline(b)

	c := session.Components{
		Velocity:        velocityWeight.apply(float64(m.CommandsExecuted) / hours / b.AvgCommandsPerHour),
		Output:          outputWeight.apply(float64(m.LinesChanged) / hours / b.AvgLinesPerHour),
		Quality:         qualityWeight.apply(clamp(m.SuccessRate, 0, 100) / 100),
		AgentEfficiency: agentWeight.apply(math.Min(1, float64(m.DistinctAgents())/3)),
		Focus:           focusWeight.apply(math.Min(1, hours/2)),
	}

	total := c.Velocity + c.Output + c.Quality + c.AgentEfficiency + c.Focus
	value := round2(clamp(total, 0, MaxScore))
	return Score{Value: value, Trend: TrendLabel(value), Components: roundComponents(c)}
}

// TrendLabel buckets a score into its qualitative label.
func TrendLabel(score float64) string {
	switch {
	case score >= 8.0:
		return TrendExcellent
	case score >= 6.0:
		return TrendGood
	case score >= 4.0:
		return TrendAverage
	default:
		return TrendNeedsImprovement
	}
}

// sanitizeBaseline replaces unusable baseline rates with the defaults so
// that they can be divided by.
func sanitizeBaseline(b session.Baseline) session.Baseline {
	d := session.DefaultBaseline()
	if !(b.AvgCommandsPerHour > 0) || math.IsInf(b.AvgCommandsPerHour, 0) {
		b.AvgCommandsPerHour = d.AvgCommandsPerHour
	}
	if !(b.AvgLinesPerHour > 0) || math.IsInf(b.AvgLinesPerHour, 0) {
		b.AvgLinesPerHour = d.AvgLinesPerHour
	}
	if !(b.AvgSuccessRate > 0) || math.IsInf(b.AvgSuccessRate, 0) {
		b.AvgSuccessRate = d.AvgSuccessRate
	}
	return b
}

func roundComponents(c session.Components) session.Components {
	return session.Components{
		Velocity:        round2(c.Velocity),
		Output:          round2(c.Output),
		Quality:         round2(c.Quality),
		AgentEfficiency: round2(c.AgentEfficiency),
		Focus:           round2(c.Focus),
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Min(math.Max(v, lo), hi)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ratio divides a by b, returning 0 when b is not positive.
func ratio(a, b float64) float64 {
	if b <= 0 {
		return 0
	}
	return a / b
}

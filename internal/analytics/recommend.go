package analytics

import (
	"fmt"

	"github.com/fakeyudi/devpulse/internal/session"
)

// Recommendation priorities.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
	PriorityInfo   = "info"
)

// Rule thresholds.
const (
	agentDiversityMin      = 2
	agentCommandsThreshold = 20
	readEditRatioMax       = 3.0
	successRateMin         = 90.0
	shortSessionHours      = 0.25
	lowActivityCommands    = 5
	elevatedVelocityFactor = 1.2
	trendSamples           = 5
	decliningSlope         = -0.5
)

// Recommend derives suggestions from the current metrics, the baseline
// and recent history (oldest first). Rules are independent and may
// co-fire.
func Recommend(m session.Metrics, durationHours float64, b session.Baseline, history []session.Summary) []session.Recommendation {
	recs := []session.Recommendation{}
	b = sanitizeBaseline(b)
	hours := EffectiveHours(durationHours)
	velocity := float64(m.CommandsExecuted) / hours

	if m.DistinctAgents() < agentDiversityMin && m.CommandsExecuted > agentCommandsThreshold {
		recs = append(recs, session.Recommendation{
			Priority: PriorityHigh,
			Category: "agents",
			Title:    "Increase agent utilization",
			Message: fmt.Sprintf("%d commands ran with only %d distinct agent(s)",
				m.CommandsExecuted, m.DistinctAgents()),
			Action: "Delegate research, review and testing to specialized agents",
			Impact: "+15-25% velocity",
		})
	}

	if edits := max(m.FilesModified, 1); m.FilesRead > 0 && float64(m.FilesRead)/float64(edits) > readEditRatioMax {
		recs = append(recs, session.Recommendation{
			Priority: PriorityMedium,
			Category: "workflow",
			Title:    "Optimize research workflow",
			Message:  fmt.Sprintf("Read:Edit ratio is %d:%d", m.FilesRead, m.FilesModified),
			Action:   "Search for symbols instead of reading whole files, and plan edits before exploring",
			Impact:   "+10% output",
		})
	}

	if m.CommandsExecuted > 0 && m.SuccessRate < successRateMin {
		recs = append(recs, session.Recommendation{
			Priority: PriorityHigh,
			Category: "quality",
			Title:    "Improve command success rate",
			Message:  fmt.Sprintf("Success rate is %.1f%%, below %.0f%%", m.SuccessRate, successRateMin),
			Action:   "Run tests and linters before committing and verify paths and arguments",
			Impact:   "fewer retries",
		})
	}

	if durationHours < shortSessionHours || m.CommandsExecuted < lowActivityCommands {
		recs = append(recs, session.Recommendation{
			Priority: PriorityLow,
			Category: "focus",
			Title:    "Batch related work",
			Message:  "This session was very short or had little activity",
			Action:   "Group related tasks into longer focused sessions",
		})
	}

	if velocity > elevatedVelocityFactor*b.AvgCommandsPerHour {
		recs = append(recs, session.Recommendation{
			Priority: PriorityInfo,
			Category: "velocity",
			Title:    "Strong velocity",
			Message: fmt.Sprintf("%.1f commands/hour is %.0f%% of your baseline",
				velocity, 100*velocity/b.AvgCommandsPerHour),
			Action: "Keep the current workflow",
		})
	}

	if len(history) >= trendSamples {
		scores := make([]float64, 0, trendSamples)
		for _, s := range history[len(history)-trendSamples:] {
			scores = append(scores, s.ProductivityScore)
		}
		if slope := Slope(scores); slope < decliningSlope {
			recs = append(recs, session.Recommendation{
				Priority: PriorityMedium,
				Category: "trend",
				Title:    "Productivity declining",
				Message:  fmt.Sprintf("Scores over the last %d sessions fall by %.2f per session", trendSamples, -slope),
				Action:   "Take a break, revisit priorities, or pair on the current blocker",
			})
		}
	}

	return recs
}

// Slope returns the ordinary least squares slope of ys against their
// index. Fewer than two points have no slope.
func Slope(ys []float64) float64 {
	n := float64(len(ys))
	if len(ys) < 2 {
		return 0
	}
	var sumX, sumY, sumXY, sumXX float64
	for i, y := range ys {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}
	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return 0
	}
	return (n*sumXY - sumX*sumY) / denom
}

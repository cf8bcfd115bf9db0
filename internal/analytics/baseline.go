package analytics

import (
	"time"

	"github.com/fakeyudi/devpulse/internal/session"
)

// BaselineWindow is the number of most recent sessions folded into the
// baseline.
const BaselineWindow = 30

// minBaselineSessions is the least history a baseline is derived from.
// With less, the fixed defaults apply.
const minBaselineSessions = 2

// ComputeBaseline recomputes the rolling baseline from the last window
// summaries of history (all of them when fewer exist). Command and line
// rates are throughput-weighted: total count over total hours. The success
// rate is the plain mean across sessions.
func ComputeBaseline(history []session.Summary, window int, now time.Time) session.Baseline {
	if window <= 0 {
		window = BaselineWindow
	}
	if len(history) > window {
		history = history[len(history)-window:]
	}
	if len(history) < minBaselineSessions {
		b := session.DefaultBaseline()
		b.LastUpdated = now
		return b
	}

	t := totalsOf(history)
	b := session.Baseline{
		AvgCommandsPerHour: ratio(float64(t.commands), t.hours),
		AvgLinesPerHour:    ratio(float64(t.lines), t.hours),
		AvgSuccessRate:     t.successSum / float64(len(history)),
		SessionsCount:      len(history),
		LastUpdated:        now,
	}

	// A window without measurable time or output keeps the defaults for
	// the affected rate.
	d := session.DefaultBaseline()
	if b.AvgCommandsPerHour <= 0 {
		b.AvgCommandsPerHour = d.AvgCommandsPerHour
	}
	if b.AvgLinesPerHour <= 0 {
		b.AvgLinesPerHour = d.AvgLinesPerHour
	}
	if b.AvgSuccessRate <= 0 {
		b.AvgSuccessRate = d.AvgSuccessRate
	}
	return b
}

// totals accumulates raw counts across summaries.
type totals struct {
	commands   int
	lines      int
	hours      float64
	successSum float64
	scoreSum   float64
}

func totalsOf(history []session.Summary) totals {
	var t totals
	for _, s := range history {
		t.commands += s.Metrics.CommandsExecuted
		t.lines += s.Metrics.LinesChanged
		if s.DurationHours > 0 {
			t.hours += s.DurationHours
		}
		t.successSum += clamp(s.Metrics.SuccessRate, 0, 100)
		t.scoreSum += clamp(s.ProductivityScore, 0, MaxScore)
	}
	return t
}

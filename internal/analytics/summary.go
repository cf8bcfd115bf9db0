package analytics

import (
	"math"
	"time"

	"github.com/fakeyudi/devpulse/internal/session"
)

// DurationHours returns the hours between start and end, never negative.
func DurationHours(start, end time.Time) float64 {
	if start.IsZero() || end.Before(start) {
		return 0
	}
	return end.Sub(start).Hours()
}

// Summarize builds the finalized summary of sess ending at end. history
// holds the summaries of sessions finalized before this one, oldest first,
// and only feeds the recommendations. The result depends only on its
// inputs.
func Summarize(sess session.Session, end time.Time, b session.Baseline, history []session.Summary) session.Summary {
	end = end.UTC()
	sess.EndTime = &end
	sess.Metrics = sess.Metrics.Clone()

	hours := DurationHours(sess.StartTime, end)
	score := ComputeScore(sess.Metrics, hours, b)
	eff := EffectiveHours(hours)
	sb := sanitizeBaseline(b)

	cph := float64(sess.Metrics.CommandsExecuted) / eff
	lph := float64(sess.Metrics.LinesChanged) / eff

	return session.Summary{
		Session:           sess,
		DurationHours:     round4(hours),
		ProductivityScore: score.Value,
		Trend:             score.Trend,
		Components:        score.Components,
		Performance: session.Performance{
			CommandsPerHour:       round2(cph),
			LinesPerHour:          round2(lph),
			VelocityVsBaselinePct: round2(cph / sb.AvgCommandsPerHour * 100),
			OutputVsBaselinePct:   round2(lph / sb.AvgLinesPerHour * 100),
		},
		Baseline:        b,
		Recommendations: Recommend(sess.Metrics, hours, b, history),
	}
}

// LiveIndicators recomputes the running score of an active session at now.
func LiveIndicators(sess session.Session, m session.Metrics, b session.Baseline, now time.Time) session.Indicators {
	hours := DurationHours(sess.StartTime, now)
	score := ComputeScore(m, hours, b)
	return session.Indicators{
		SessionID:         sess.ID,
		StartTime:         sess.StartTime,
		UpdatedAt:         now.UTC(),
		Metrics:           m,
		DurationHours:     round4(hours),
		ProductivityScore: score.Value,
		Trend:             score.Trend,
	}
}

// PriorTo returns the summaries that ended before end and do not belong to
// sessionID, preserving order.
func PriorTo(history []session.Summary, sessionID string, end time.Time) []session.Summary {
	out := make([]session.Summary, 0, len(history))
	for _, s := range history {
		if s.ID == sessionID || !s.FinishedAt().Before(end) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// Within returns the summaries that ended no more than days before end.
// days <= 0 keeps all of them.
func Within(history []session.Summary, end time.Time, days int) []session.Summary {
	if days <= 0 {
		return history
	}
	cutoff := end.AddDate(0, 0, -days)
	out := make([]session.Summary, 0, len(history))
	for _, s := range history {
		if !s.FinishedAt().Before(cutoff) {
			out = append(out, s)
		}
	}
	return out
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}

// Package report assembles the on-demand productivity views: live status,
// anomalies, recommendations and team metrics.
package report

import (
	"context"
	"errors"
	"time"

	"github.com/fakeyudi/devpulse/internal/analytics"
	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/session"
)

// Scope says which session a report describes.
type Scope string

const (
	ScopeActive Scope = "active" // the session in progress
	ScopeLast   Scope = "last"   // the most recently finalized session
	ScopeNone   Scope = "none"   // no session recorded yet
)

// recentLimit caps the sessions listed in Report.Recent.
const recentLimit = 10

// Report is the complete, renderable productivity report.
type Report struct {
	GeneratedAt     time.Time                `json:"generated_at"`
	Scope           Scope                    `json:"scope"`
	Session         *session.Session         `json:"session,omitempty"`
	Indicators      *session.Indicators      `json:"indicators,omitempty"`
	Components      *session.Components      `json:"components,omitempty"`
	Anomalies       []analytics.Anomaly      `json:"anomalies"`
	Recommendations []session.Recommendation `json:"recommendations"`
	Baseline        session.Baseline         `json:"baseline"`
	Team            analytics.TeamMetrics    `json:"team"`
	Recent          []session.Summary        `json:"recent"` // newest first
	History         HistoryStats             `json:"history"`
}

// HistoryStats reports the health of the history log.
type HistoryStats struct {
	Total   int `json:"total"`
	Skipped int `json:"skipped"`
}

// Builder computes reports from a lifecycle manager's store.
type Builder struct {
	Manager           *lifecycle.Manager
	AnomalyWindowDays int
	TeamWindowDays    int
	Now               func() time.Time // if nil, time.Now
}

// snapshot is the session a report is about, reduced to what the
// analytics need.
type snapshot struct {
	scope      Scope
	sess       *session.Session
	indicators *session.Indicators
	summary    *session.Summary
	baseline   session.Baseline
}

func (b *Builder) now() time.Time {
	if b.Now != nil {
		return b.Now().UTC()
	}
	return time.Now().UTC()
}

func (b *Builder) store() *session.Store {
	return b.Manager.Store()
}

// current returns the active session, else the last finalized one.
func (b *Builder) current(ctx context.Context, env lifecycle.Env) (snapshot, error) {
	st, err := b.Manager.Status(ctx, env)
	if err == nil {
		return snapshot{
			scope:      ScopeActive,
			sess:       &st.Session,
			indicators: &st.Indicators,
			baseline:   st.Baseline,
		}, nil
	}
	if !errors.Is(err, session.ErrNoSession) {
		return snapshot{}, err
	}

	baseline, err := b.store().ReadBaseline()
	if err != nil {
		return snapshot{}, err
	}
	hist, err := b.store().ReadHistory(0)
	if err != nil {
		return snapshot{}, err
	}
	if len(hist.Summaries) == 0 {
		return snapshot{scope: ScopeNone, baseline: baseline}, nil
	}

	last := hist.Summaries[len(hist.Summaries)-1]
	ind := session.Indicators{
		SessionID:         last.ID,
		StartTime:         last.StartTime,
		UpdatedAt:         last.FinishedAt(),
		Metrics:           last.Metrics,
		DurationHours:     last.DurationHours,
		ProductivityScore: last.ProductivityScore,
		Trend:             last.Trend,
	}
	return snapshot{
		scope:      ScopeLast,
		sess:       &last.Session,
		indicators: &ind,
		summary:    &last,
		baseline:   last.Baseline,
	}, nil
}

// priorHistory returns the summaries that ended before the snapshot's
// session, at most days days before its end. A finalized session is
// windowed from its own end so it sees the same history it was
// finalized with.
func (b *Builder) priorHistory(snap snapshot, days int) ([]session.Summary, error) {
	hist, err := b.store().ReadHistory(0)
	if err != nil {
		return nil, err
	}
	end := b.now()
	if snap.sess == nil {
		return analytics.Within(hist.Summaries, end, days), nil
	}
	if snap.sess.EndTime != nil {
		end = *snap.sess.EndTime
	}
	return analytics.Within(analytics.PriorTo(hist.Summaries, snap.sess.ID, end), end, days), nil
}

// Status returns the live indicators of the active session, or the
// headline numbers of the last finalized one.
func (b *Builder) Status(ctx context.Context, env lifecycle.Env) (*Report, error) {
	snap, err := b.current(ctx, env)
	if err != nil {
		return nil, err
	}
	return b.base(snap), nil
}

// Anomalies runs anomaly detection for the current session.
func (b *Builder) Anomalies(ctx context.Context, env lifecycle.Env) ([]analytics.Anomaly, error) {
	snap, err := b.current(ctx, env)
	if err != nil {
		return nil, err
	}
	return b.anomalies(snap)
}

func (b *Builder) anomalies(snap snapshot) ([]analytics.Anomaly, error) {
	if snap.indicators == nil {
		return []analytics.Anomaly{}, nil
	}
	prior, err := b.priorHistory(snap, b.AnomalyWindowDays)
	if err != nil {
		return nil, err
	}
	return analytics.DetectAnomalies(snap.indicators.Metrics, snap.indicators.DurationHours, prior), nil
}

// Recommendations returns the recommendations for the current session.
func (b *Builder) Recommendations(ctx context.Context, env lifecycle.Env) ([]session.Recommendation, error) {
	snap, err := b.current(ctx, env)
	if err != nil {
		return nil, err
	}
	return b.recommendations(snap)
}

func (b *Builder) recommendations(snap snapshot) ([]session.Recommendation, error) {
	switch {
	case snap.summary != nil:
		return nonNil(snap.summary.Recommendations), nil
	case snap.indicators == nil:
		return []session.Recommendation{}, nil
	}
	prior, err := b.priorHistory(snap, 0)
	if err != nil {
		return nil, err
	}
	ind := snap.indicators
	return nonNil(analytics.Recommend(ind.Metrics, ind.DurationHours, snap.baseline, prior)), nil
}

// Team aggregates the history of the last days days. days <= 0 uses the
// builder's team window.
func (b *Builder) Team(days int) (analytics.TeamMetrics, HistoryStats, error) {
	if days <= 0 {
		days = b.TeamWindowDays
	}
	hist, err := b.store().ReadHistory(days)
	if err != nil {
		return analytics.TeamMetrics{}, HistoryStats{}, err
	}
	return analytics.ComputeTeamMetrics(hist.Summaries, days), HistoryStats{Total: hist.Total, Skipped: hist.Skipped}, nil
}

// Build assembles the full report.
func (b *Builder) Build(ctx context.Context, env lifecycle.Env) (*Report, error) {
	snap, err := b.current(ctx, env)
	if err != nil {
		return nil, err
	}
	r := b.base(snap)

	if r.Anomalies, err = b.anomalies(snap); err != nil {
		return nil, err
	}
	if r.Recommendations, err = b.recommendations(snap); err != nil {
		return nil, err
	}
	if r.Team, _, err = b.Team(0); err != nil {
		return nil, err
	}

	all, err := b.store().ReadHistory(0)
	if err != nil {
		return nil, err
	}
	r.History = HistoryStats{Total: all.Total, Skipped: all.Skipped}
	for i := len(all.Summaries) - 1; i >= 0 && len(r.Recent) < recentLimit; i-- {
		r.Recent = append(r.Recent, all.Summaries[i])
	}
	return r, nil
}

// base fills the fields every report carries.
func (b *Builder) base(snap snapshot) *Report {
	r := &Report{
		GeneratedAt:     b.now(),
		Scope:           snap.scope,
		Session:         snap.sess,
		Indicators:      snap.indicators,
		Baseline:        snap.baseline,
		Anomalies:       []analytics.Anomaly{},
		Recommendations: []session.Recommendation{},
		Recent:          []session.Summary{},
	}
	switch {
	case snap.summary != nil:
		c := snap.summary.Components
		r.Components = &c
	case snap.indicators != nil:
		c := analytics.ComputeScore(snap.indicators.Metrics, snap.indicators.DurationHours, snap.baseline).Components
		r.Components = &c
	}
	return r
}

func nonNil(recs []session.Recommendation) []session.Recommendation {
	if recs == nil {
		return []session.Recommendation{}
	}
	return recs
}

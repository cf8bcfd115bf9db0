package report

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fakeyudi/devpulse/internal/analytics"
	"github.com/fakeyudi/devpulse/internal/hook"
	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/session"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBuilder(t *testing.T) (*Builder, *fakeClock) {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	require.NoError(t, err)

	// History windows are relative to the wall clock.
	clk := &fakeClock{t: time.Now().UTC().Add(-24 * time.Hour).Truncate(time.Second)}
	m := lifecycle.New(store, lifecycle.WithClock(clk.now))
	return &Builder{
		Manager:           m,
		AnomalyWindowDays: analytics.AnomalyWindowDays,
		TeamWindowDays:    analytics.TeamWindowDays,
		Now:               clk.now,
	}, clk
}

func feed(t *testing.T, b *Builder, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		_, err := b.Manager.RecordEvent(ctx, lifecycle.Env{}, hook.Event{Tool: "Bash", Kind: hook.KindCommand, Success: true})
		require.NoError(t, err)
	}
	_, err := b.Manager.RecordEvent(ctx, lifecycle.Env{}, hook.Event{Tool: "Edit", Kind: hook.KindEdit, Success: true, LinesChanged: 40})
	require.NoError(t, err)
}

func TestBuildWithoutSessions(t *testing.T) {
	b, _ := newTestBuilder(t)

	r, err := b.Build(context.Background(), lifecycle.Env{})
	require.NoError(t, err)
	assert.Equal(t, ScopeNone, r.Scope)
	assert.Nil(t, r.Session)
	assert.Nil(t, r.Components)
	assert.Empty(t, r.Anomalies)
	assert.Empty(t, r.Recommendations)
	assert.Empty(t, r.Recent)
	assert.Equal(t, 0, r.Team.TotalSessions)
	assert.True(t, r.Baseline.IsDefault())

	out, err := (&TextRenderer{}).Render(r)
	require.NoError(t, err)
	assert.Contains(t, string(out), "no sessions recorded yet")
}

func TestBuildActiveSession(t *testing.T) {
	b, clk := newTestBuilder(t)
	ctx := context.Background()

	sess, err := b.Manager.Start(ctx, lifecycle.Env{WorkDir: "/src/app"})
	require.NoError(t, err)
	feed(t, b, 2)
	clk.advance(time.Hour)

	r, err := b.Build(ctx, lifecycle.Env{})
	require.NoError(t, err)
	assert.Equal(t, ScopeActive, r.Scope)
	require.NotNil(t, r.Session)
	assert.Equal(t, sess.ID, r.Session.ID)
	require.NotNil(t, r.Indicators)
	assert.Equal(t, 3, r.Indicators.Metrics.CommandsExecuted)
	assert.Equal(t, 40, r.Indicators.Metrics.LinesChanged)
	assert.InDelta(t, 1.0, r.Indicators.DurationHours, 1e-9)
	require.NotNil(t, r.Components)
	assert.NotNil(t, r.Anomalies)
	assert.NotEmpty(t, r.Recommendations)
	assert.Empty(t, r.Recent)
	assert.Equal(t, analytics.TeamWindowDays, r.Team.WindowDays)

	st, err := b.Status(ctx, lifecycle.Env{SessionID: sess.ID})
	require.NoError(t, err)
	assert.Equal(t, ScopeActive, st.Scope)
	assert.Equal(t, r.Indicators.ProductivityScore, st.Indicators.ProductivityScore)
}

func TestBuildLastFinishedSession(t *testing.T) {
	b, clk := newTestBuilder(t)
	ctx := context.Background()

	_, err := b.Manager.Start(ctx, lifecycle.Env{WorkDir: "/src/app"})
	require.NoError(t, err)
	feed(t, b, 19)
	clk.advance(2 * time.Hour)
	res, err := b.Manager.Finish(ctx, lifecycle.Env{})
	require.NoError(t, err)
	clk.advance(time.Hour)

	r, err := b.Build(ctx, lifecycle.Env{})
	require.NoError(t, err)
	assert.Equal(t, ScopeLast, r.Scope)
	require.NotNil(t, r.Session)
	assert.Equal(t, res.Summary.ID, r.Session.ID)
	require.NotNil(t, r.Indicators)
	assert.Equal(t, res.Summary.ProductivityScore, r.Indicators.ProductivityScore)
	assert.Equal(t, res.Summary.Recommendations, r.Recommendations)
	require.NotNil(t, r.Components)
	assert.Equal(t, res.Summary.Components, *r.Components)
	require.Len(t, r.Recent, 1)
	assert.Equal(t, 1, r.History.Total)
	assert.Equal(t, 1, r.Team.TotalSessions)
	assert.Equal(t, 20, r.Team.TotalCommands)

	recs, err := b.Recommendations(ctx, lifecycle.Env{})
	require.NoError(t, err)
	assert.Equal(t, res.Summary.Recommendations, recs)

	anomalies, err := b.Anomalies(ctx, lifecycle.Env{})
	require.NoError(t, err)
	assert.NotNil(t, anomalies)
}

func TestRecentIsNewestFirst(t *testing.T) {
	b, clk := newTestBuilder(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		_, err := b.Manager.Start(ctx, lifecycle.Env{WorkDir: "/src/app"})
		require.NoError(t, err)
		feed(t, b, 4)
		clk.advance(30 * time.Minute)
		res, err := b.Manager.Finish(ctx, lifecycle.Env{})
		require.NoError(t, err)
		ids = append(ids, res.Summary.ID)
		clk.advance(time.Hour)
	}

	r, err := b.Build(ctx, lifecycle.Env{})
	require.NoError(t, err)
	require.Len(t, r.Recent, 3)
	assert.Equal(t, ids[2], r.Recent[0].ID)
	assert.Equal(t, ids[0], r.Recent[2].ID)
	assert.Equal(t, ids[2], r.Session.ID)
}

func TestTeamDefaultsToBuilderWindow(t *testing.T) {
	b, _ := newTestBuilder(t)
	b.TeamWindowDays = 14

	tm, stats, err := b.Team(0)
	require.NoError(t, err)
	assert.Equal(t, 14, tm.WindowDays)
	assert.Equal(t, HistoryStats{}, stats)

	tm, _, err = b.Team(7)
	require.NoError(t, err)
	assert.Equal(t, 7, tm.WindowDays)
}

func TestNewRenderer(t *testing.T) {
	for _, format := range []string{"", "text", "TEXT"} {
		r, err := NewRenderer(format)
		require.NoError(t, err)
		assert.IsType(t, &TextRenderer{}, r)
	}
	r, err := NewRenderer("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONRenderer{}, r)

	_, err = NewRenderer("yaml")
	assert.Error(t, err)
}

func sampleReport() *Report {
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	m := session.NewMetrics()
	m.CommandsExecuted = 12
	m.FailedCommands = 3
	m.AgentsUsed = map[string]int{"reviewer": 2, "general-purpose": 1}
	m.Normalize()
	return &Report{
		GeneratedAt: start.Add(time.Hour),
		Scope:       ScopeActive,
		Session: &session.Session{
			ID: "abc123", StartTime: start, User: "dev", WorkDir: "/src/app", VCSBranch: "main", Metrics: m,
		},
		Indicators: &session.Indicators{
			SessionID: "abc123", StartTime: start, Metrics: m, DurationHours: 1, ProductivityScore: 6.5, Trend: "Good",
		},
		Anomalies: []analytics.Anomaly{{
			Type:           analytics.AnomalyLowSuccessRate,
			Severity:       analytics.SeverityWarning,
			Message:        "Success rate 75.0% is below your average",
			Recommendation: "Check failing commands",
		}},
		Recommendations: []session.Recommendation{{
			Priority: analytics.PriorityHigh, Title: "Improve command success", Message: "Many commands failed", Action: "Read errors closely",
		}},
		Baseline: session.DefaultBaseline(),
		Team:     analytics.TeamMetrics{WindowDays: 90},
		Recent:   []session.Summary{},
		History:  HistoryStats{Total: 4, Skipped: 1},
	}
}

func TestTextRendererSections(t *testing.T) {
	out, err := (&TextRenderer{}).Render(sampleReport())
	require.NoError(t, err)

	s := string(out)
	for _, want := range []string{
		"abc123", "in progress", "main", "6.50",
		"general-purpose×1, reviewer×2",
		"Anomalies (1)", "WARNING", "Success rate 75.0%",
		"Recommendations (1)", "HIGH", "Improve command success",
		"Team (last 90 days)", "no finalized sessions in this window",
		"1 of 4 history records were unreadable",
	} {
		assert.Contains(t, s, want)
	}
}

func TestJSONRenderer(t *testing.T) {
	out, err := (&JSONRenderer{}).Render(sampleReport())
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(out, &got))
	assert.Equal(t, "active", got["scope"])
	assert.Len(t, got["anomalies"], 1)
	assert.Len(t, got["recommendations"], 1)
	assert.Equal(t, []any{}, got["recent"])
}

func TestAnomaliesOfOldSessionMatchFinish(t *testing.T) {
	b, clk := newTestBuilder(t)
	ctx := context.Background()
	// Far outside the anomaly window measured from today.
	clk.t = clk.t.AddDate(0, 0, -200)

	for i := 0; i < 2; i++ {
		_, err := b.Manager.Start(ctx, lifecycle.Env{WorkDir: "/src/app"})
		require.NoError(t, err)
		feed(t, b, 59)
		clk.advance(time.Hour)
		_, err = b.Manager.Finish(ctx, lifecycle.Env{})
		require.NoError(t, err)
		clk.advance(time.Hour)
	}

	_, err := b.Manager.Start(ctx, lifecycle.Env{WorkDir: "/src/app"})
	require.NoError(t, err)
	feed(t, b, 2)
	clk.advance(time.Hour)
	res, err := b.Manager.Finish(ctx, lifecycle.Env{})
	require.NoError(t, err)
	require.NotEmpty(t, res.Anomalies)

	got, err := b.Anomalies(ctx, lifecycle.Env{})
	require.NoError(t, err)
	assert.Equal(t, res.Anomalies, got)
}

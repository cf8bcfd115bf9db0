// Package lifecycle starts, feeds and finalizes tracking sessions.
//
// Every entry point takes an explicit Env describing the invocation
// context; nothing is read from process globals here.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fakeyudi/devpulse/internal/analytics"
	"github.com/fakeyudi/devpulse/internal/collector"
	"github.com/fakeyudi/devpulse/internal/hook"
	"github.com/fakeyudi/devpulse/internal/session"
)

// ErrSessionActive is returned by Start when another session is in progress.
var ErrSessionActive = errors.New("session already in progress")

// ErrSessionFinished is returned when an event targets a finalized session.
var ErrSessionFinished = errors.New("session already finished")

// Env is the invocation context of a lifecycle operation.
type Env struct {
	// SessionID explicitly selects a session, overriding the pointer.
	SessionID string
	// WorkDir is recorded on new sessions. Empty means the process
	// working directory.
	WorkDir string
	// Force lets Start abandon a session that is still in progress.
	Force bool
}

// Manager runs session lifecycle operations against a Store.
type Manager struct {
	store             *session.Store
	collectors        []collector.Collector
	resolvers         []Resolver
	logger            zerolog.Logger
	now               func() time.Time
	baselineWindow    int
	anomalyWindowDays int
}

// Option configures a Manager.
type Option func(*Manager)

// WithCollectors sets the provenance collectors run for new sessions.
func WithCollectors(cs ...collector.Collector) Option {
	return func(m *Manager) { m.collectors = cs }
}

// WithResolvers replaces the session resolution strategies used by Finish.
func WithResolvers(rs ...Resolver) Option {
	return func(m *Manager) { m.resolvers = rs }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithBaselineWindow sets how many recent sessions the baseline averages.
func WithBaselineWindow(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.baselineWindow = n
		}
	}
}

// WithAnomalyWindow sets how many days of history anomalies compare against.
func WithAnomalyWindow(days int) Option {
	return func(m *Manager) {
		if days > 0 {
			m.anomalyWindowDays = days
		}
	}
}

// New returns a Manager backed by store.
func New(store *session.Store, opts ...Option) *Manager {
	m := &Manager{
		store:             store,
		resolvers:         DefaultResolvers(),
		logger:            zerolog.Nop(),
		now:               time.Now,
		baselineWindow:    analytics.BaselineWindow,
		anomalyWindowDays: analytics.AnomalyWindowDays,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() *session.Store {
	return m.store
}

func (m *Manager) clock() time.Time {
	return m.now().UTC()
}

// Start begins a new session, records its provenance and makes it the
// active session.
func (m *Manager) Start(ctx context.Context, env Env) (*session.Session, error) {
	if active, err := m.activeSession(env); err == nil && active.EndTime == nil {
		if !env.Force {
			return nil, fmt.Errorf("%w (id %s, started at %s)", ErrSessionActive, active.ID, active.StartTime.Format(time.RFC3339))
		}
		m.logger.Warn().Str("session_id", active.ID).Msg("abandoning session still in progress")
	} else if err != nil && !errors.Is(err, session.ErrNoSession) {
		m.logger.Warn().Err(err).Msg("ignoring unreadable active session")
	}

	sess, err := m.newSession(ctx, env)
	if err != nil {
		return nil, err
	}
	if err := m.store.CreateSession(sess); err != nil {
		return nil, err
	}
	if err := m.store.WriteCurrentSessionID(sess.ID); err != nil {
		return nil, err
	}

	b, err := m.store.ReadBaseline()
	if err != nil {
		return nil, err
	}
	ind := analytics.LiveIndicators(*sess, sess.Metrics, b, sess.StartTime)
	if err := m.store.WriteLiveIndicators(&ind); err != nil {
		return nil, err
	}

	m.logger.Info().Str("session_id", sess.ID).Str("branch", sess.VCSBranch).Msg("session started")
	return sess, nil
}

// newSession builds an empty session stamped now with collected provenance.
func (m *Manager) newSession(ctx context.Context, env Env) (*session.Session, error) {
	workDir := env.WorkDir
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			workDir = session.Unknown
		} else {
			workDir = wd
		}
	}
	sess := &session.Session{
		ID:        uuid.New().String(),
		StartTime: m.clock(),
		WorkDir:   workDir,
		Metrics:   session.NewMetrics(),
	}
	warnings, err := collector.Apply(ctx, sess, m.collectors...)
	if err != nil {
		return nil, fmt.Errorf("collecting provenance: %w", err)
	}
	for _, w := range warnings {
		m.logger.Debug().Str("session_id", sess.ID).Msg(w)
	}
	return sess, nil
}

// activeSession resolves the session an event or status query targets:
// the explicit id, else the live-session pointer.
func (m *Manager) activeSession(env Env) (*session.Session, error) {
	id := env.SessionID
	if id == "" {
		var err error
		if id, err = m.store.ReadCurrentSessionID(); err != nil {
			return nil, err
		}
	}
	return m.store.ReadSession(id)
}

// RecordEvent applies one tool event to the active session's live
// indicators and refreshes its running score.
func (m *Manager) RecordEvent(ctx context.Context, env Env, ev hook.Event) (*session.Indicators, error) {
	sess, err := m.activeSession(env)
	if err != nil {
		return nil, err
	}
	if sess.EndTime != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionFinished, sess.ID)
	}
	b, err := m.store.ReadBaseline()
	if err != nil {
		return nil, err
	}

	now := m.clock()
	return m.store.UpdateLiveIndicators(func(cur *session.Indicators) (*session.Indicators, error) {
		metrics := sess.Metrics
		if cur != nil && cur.SessionID == sess.ID {
			metrics = cur.Metrics
		} else if cur != nil {
			m.logger.Debug().Str("owner", cur.SessionID).Str("session_id", sess.ID).Msg("resetting live indicators of another session")
		}
		ind := analytics.LiveIndicators(*sess, hook.Apply(metrics, ev), b, now)
		return &ind, nil
	})
}

// Status is the live view of the active session.
type Status struct {
	Session    session.Session    `json:"session"`
	Indicators session.Indicators `json:"indicators"`
	Baseline   session.Baseline   `json:"baseline"`
}

// Status returns the active session with its running score recomputed at
// the current time. Returns session.ErrNoSession when nothing is active.
func (m *Manager) Status(ctx context.Context, env Env) (*Status, error) {
	sess, err := m.activeSession(env)
	if err != nil {
		return nil, err
	}
	if sess.EndTime != nil {
		return nil, session.ErrNoSession
	}
	b, err := m.store.ReadBaseline()
	if err != nil {
		return nil, err
	}

	metrics := sess.Metrics
	ind, err := m.store.ReadLiveIndicators()
	switch {
	case err == nil && ind.SessionID == sess.ID:
		metrics = ind.Metrics
	case err != nil && !errors.Is(err, session.ErrNoIndicators):
		m.logger.Warn().Err(err).Msg("ignoring unreadable live indicators")
	}

	return &Status{
		Session:    *sess,
		Indicators: analytics.LiveIndicators(*sess, metrics, b, m.clock()),
		Baseline:   b,
	}, nil
}

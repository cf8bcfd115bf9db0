package lifecycle

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fakeyudi/devpulse/internal/analytics"
	"github.com/fakeyudi/devpulse/internal/session"
)

// Source names how Finish found the session it finalized.
type Source string

const (
	SourceExplicit    Source = "explicit"
	SourcePointer     Source = "pointer"
	SourceLatest      Source = "latest"
	SourceSynthesized Source = "synthesized"
)

// Resolver is one strategy for locating the session to finalize. Resolve
// returns session.ErrNoSession when the strategy does not apply.
type Resolver struct {
	Source  Source
	Resolve func(store *session.Store, env Env) (*session.Session, error)
}

// DefaultResolvers tries the explicit id, then the live-session pointer,
// then the most recently modified session record.
func DefaultResolvers() []Resolver {
	return []Resolver{
		{Source: SourceExplicit, Resolve: resolveExplicit},
		{Source: SourcePointer, Resolve: resolvePointer},
		{Source: SourceLatest, Resolve: resolveLatest},
	}
}

func resolveExplicit(store *session.Store, env Env) (*session.Session, error) {
	if env.SessionID == "" {
		return nil, session.ErrNoSession
	}
	return store.ReadSession(env.SessionID)
}

func resolvePointer(store *session.Store, _ Env) (*session.Session, error) {
	id, err := store.ReadCurrentSessionID()
	if err != nil {
		return nil, err
	}
	return store.ReadSession(id)
}

func resolveLatest(store *session.Store, _ Env) (*session.Session, error) {
	return store.LatestSession()
}

// FinishResult describes a finalized session.
type FinishResult struct {
	Summary   session.Summary     `json:"summary"`
	Anomalies []analytics.Anomaly `json:"anomalies"`
	Source    Source              `json:"source"`
	// Appended is false when the session had already been finalized and
	// only its cached summary was rewritten.
	Appended bool `json:"appended"`
}

// Finish finalizes a session. It never fails for lack of a session: when
// no resolver finds one, an empty session is synthesized and finalized.
// Finalizing the same session again reproduces the same summary and does
// not append a second history record.
func (m *Manager) Finish(ctx context.Context, env Env) (*FinishResult, error) {
	sess, source, err := m.resolve(ctx, env)
	if err != nil {
		return nil, err
	}

	hist, err := m.store.ReadHistory(0)
	if err != nil {
		return nil, err
	}
	if hist.Skipped > 0 {
		m.logger.Warn().Int("skipped", hist.Skipped).Int("total", hist.Total).Msg("skipped malformed history records")
	}

	prev, err := m.store.ReadSummary(sess.ID)
	if err != nil && !errors.Is(err, session.ErrNoSummary) {
		m.logger.Warn().Err(err).Str("session_id", sess.ID).Msg("ignoring unreadable summary")
		prev = nil
	}
	cached := prev != nil
	// The history record stands in for a missing summary cache.
	recorded, inHistory := hist.Find(sess.ID)
	if !cached && inHistory {
		prev = &recorded
	}

	if sess.EndTime == nil && prev != nil && prev.EndTime != nil {
		end := *prev.EndTime
		sess.EndTime = &end
	}
	if sess.EndTime == nil {
		m.mergeLiveMetrics(sess)
		end := m.clock()
		if end.Before(sess.StartTime) {
			end = sess.StartTime
		}
		sess.EndTime = &end
		if err := m.store.CreateSession(sess); err != nil {
			return nil, err
		}
	}
	end := *sess.EndTime

	b := session.Baseline{}
	if prev != nil {
		b = prev.Baseline
	} else if b, err = m.store.ReadBaseline(); err != nil {
		return nil, err
	}

	prior := analytics.PriorTo(hist.Summaries, sess.ID, end)

	sum := analytics.Summarize(*sess, end, b, prior)
	appended := !cached && !inHistory
	if appended {
		if err := m.store.AppendSummary(&sum); err != nil {
			return nil, err
		}
	}

	// The summary cache is written last, so a missing cache means the
	// baseline may not include this session yet.
	if !cached {
		all := hist.Summaries
		if appended {
			all = append(append([]session.Summary{}, hist.Summaries...), sum)
		}
		nb := analytics.ComputeBaseline(all, m.baselineWindow, m.clock())
		if err := m.store.WriteBaseline(nb); err != nil {
			return nil, err
		}
	}
	if err := m.store.WriteSummary(&sum); err != nil {
		return nil, err
	}

	if err := m.clearActive(sess.ID); err != nil {
		return nil, err
	}

	result := &FinishResult{
		Summary:   sum,
		Anomalies: analytics.DetectAnomalies(sum.Metrics, sum.DurationHours, analytics.Within(prior, end, m.anomalyWindowDays)),
		Source:    source,
		Appended:  appended,
	}
	m.logger.Info().
		Str("session_id", sum.ID).
		Str("source", string(source)).
		Float64("score", sum.ProductivityScore).
		Bool("appended", appended).
		Msg("session finalized")
	return result, nil
}

// resolve walks the resolver list and synthesizes a session when none
// applies.
func (m *Manager) resolve(ctx context.Context, env Env) (*session.Session, Source, error) {
	for _, r := range m.resolvers {
		sess, err := r.Resolve(m.store, env)
		if err == nil {
			if r.Source != m.resolvers[0].Source {
				m.logger.Info().Str("source", string(r.Source)).Str("session_id", sess.ID).Msg("resolved session by fallback")
			}
			return sess, r.Source, nil
		}
		if !errors.Is(err, session.ErrNoSession) {
			m.logger.Warn().Err(err).Str("source", string(r.Source)).Msg("session resolver failed")
		}
	}

	sess, err := m.newSession(ctx, Env{WorkDir: env.WorkDir})
	if err != nil {
		return nil, "", err
	}
	if env.SessionID != "" {
		sess.ID = env.SessionID
	} else {
		sess.ID = uuid.New().String()
	}
	sess.Synthesized = true
	if err := m.store.CreateSession(sess); err != nil {
		return nil, "", err
	}
	m.logger.Warn().
		Str("session_id", sess.ID).
		Str("metrics_dir", m.store.Root()).
		Msg("no session found, finalizing a synthesized empty session")
	return sess, SourceSynthesized, nil
}

// mergeLiveMetrics folds the live indicators of sess into its record.
func (m *Manager) mergeLiveMetrics(sess *session.Session) {
	ind, err := m.store.ReadLiveIndicators()
	if err != nil {
		if !errors.Is(err, session.ErrNoIndicators) {
			m.logger.Warn().Err(err).Msg("ignoring unreadable live indicators")
		}
		return
	}
	if ind.SessionID != sess.ID {
		return
	}
	sess.Metrics = ind.Metrics.Clone()
}

// clearActive removes the pointer and live indicators if they belong to id.
func (m *Manager) clearActive(id string) error {
	cur, err := m.store.ReadCurrentSessionID()
	if err == nil && cur == id {
		if err := m.store.ClearCurrentSessionID(); err != nil {
			return err
		}
	}
	return m.store.ClearLiveIndicators(id)
}

package session_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/fakeyudi/devpulse/internal/session"
)

// generateTime produces an arbitrary time.Time value.
// We truncate to second precision to keep comparisons independent of
// monotonic clock readings.
func generateTime(t *rapid.T) time.Time {
	sec := rapid.Int64Range(0, 1_700_000_000).Draw(t, "unix_sec")
	return time.Unix(sec, 0).UTC()
}

// generateMetrics produces counters that are already in normalized form.
func generateMetrics(t *rapid.T) session.Metrics {
	m := session.NewMetrics()
	m.CommandsExecuted = rapid.IntRange(0, 500).Draw(t, "commands")
	m.FailedCommands = rapid.IntRange(0, m.CommandsExecuted).Draw(t, "failed")
	m.FilesRead = rapid.IntRange(0, 200).Draw(t, "files_read")
	m.FilesModified = rapid.IntRange(0, 200).Draw(t, "files_modified")
	m.LinesChanged = rapid.IntRange(0, 10_000).Draw(t, "lines_changed")
	numAgents := rapid.IntRange(0, 4).Draw(t, "num_agents")
	for i := 0; i < numAgents; i++ {
		name := rapid.StringMatching(`[a-z][a-z-]{0,15}`).Draw(t, "agent")
		m.AgentsUsed[name] = rapid.IntRange(1, 20).Draw(t, "agent_count")
	}
	m.Normalize()
	return m
}

// generateSession produces an arbitrary Session value.
func generateSession(t *rapid.T) *session.Session {
	var endTime *time.Time
	if rapid.Bool().Draw(t, "has_end_time") {
		et := generateTime(t)
		endTime = &et
	}
	return &session.Session{
		ID:        rapid.StringMatching(`[a-f0-9-]{1,36}`).Draw(t, "id"),
		StartTime: generateTime(t),
		EndTime:   endTime,
		User:      rapid.StringN(1, 40, -1).Draw(t, "user"),
		WorkDir:   rapid.StringN(1, 100, -1).Draw(t, "work_dir"),
		VCSBranch: rapid.StringN(1, 40, -1).Draw(t, "branch"),
		Metrics:   generateMetrics(t),
	}
}

func newStore(t *testing.T) *session.Store {
	t.Helper()
	store, err := session.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return store
}

// Feature: devpulse, Property 1: Session persistence round-trip
func TestSessionPersistenceRoundTrip(t *testing.T) {
	store := newStore(t)

	rapid.Check(t, func(t *rapid.T) {
		original := generateSession(t)

		if err := store.CreateSession(original); err != nil {
			t.Fatalf("CreateSession: %v", err)
		}

		loaded, err := store.ReadSession(original.ID)
		if err != nil {
			t.Fatalf("ReadSession: %v", err)
		}

		if loaded.ID != original.ID {
			t.Errorf("ID mismatch: got %q, want %q", loaded.ID, original.ID)
		}
		if !loaded.StartTime.Equal(original.StartTime) {
			t.Errorf("StartTime mismatch: got %v, want %v", loaded.StartTime, original.StartTime)
		}
		if (loaded.EndTime == nil) != (original.EndTime == nil) {
			t.Errorf("EndTime nil mismatch: got %v, want %v", loaded.EndTime, original.EndTime)
		} else if loaded.EndTime != nil && !loaded.EndTime.Equal(*original.EndTime) {
			t.Errorf("EndTime mismatch: got %v, want %v", *loaded.EndTime, *original.EndTime)
		}
		if loaded.User != original.User || loaded.WorkDir != original.WorkDir || loaded.VCSBranch != original.VCSBranch {
			t.Errorf("provenance mismatch: got %q/%q/%q, want %q/%q/%q",
				loaded.User, loaded.WorkDir, loaded.VCSBranch,
				original.User, original.WorkDir, original.VCSBranch)
		}
		if loaded.Metrics.CommandsExecuted != original.Metrics.CommandsExecuted {
			t.Errorf("CommandsExecuted mismatch: got %d, want %d", loaded.Metrics.CommandsExecuted, original.Metrics.CommandsExecuted)
		}
		if loaded.Metrics.SuccessRate != original.Metrics.SuccessRate {
			t.Errorf("SuccessRate mismatch: got %v, want %v", loaded.Metrics.SuccessRate, original.Metrics.SuccessRate)
		}
		if len(loaded.Metrics.AgentsUsed) != len(original.Metrics.AgentsUsed) {
			t.Errorf("AgentsUsed length mismatch: got %d, want %d", len(loaded.Metrics.AgentsUsed), len(original.Metrics.AgentsUsed))
		}
	})
}

// TestReadSessionReturnsErrNoSession verifies that ReadSession returns
// ErrNoSession when no record exists on disk.
func TestReadSessionReturnsErrNoSession(t *testing.T) {
	store := newStore(t)

	_, err := store.ReadSession("missing")
	if !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}

	_, err = store.ReadSession("../escape")
	if !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession for path-like id, got: %v", err)
	}
}

func TestSummaryRejectsPathLikeIDs(t *testing.T) {
	store := newStore(t)

	for _, id := range []string{"", "..", "../escape", `a\b`} {
		if err := store.WriteSummary(&session.Summary{Session: session.Session{ID: id}}); err == nil {
			t.Errorf("WriteSummary(%q): expected an error", id)
		}
		if _, err := store.ReadSummary(id); err == nil || errors.Is(err, session.ErrNoSummary) {
			t.Errorf("ReadSummary(%q): expected an invalid id error, got: %v", id, err)
		}
	}
	if _, err := os.Stat(filepath.Join(store.Root(), "escape_summary.json")); !os.IsNotExist(err) {
		t.Errorf("expected nothing written outside the sessions directory, got: %v", err)
	}
}

func TestLatestSessionIgnoresSummaries(t *testing.T) {
	store := newStore(t)

	older := &session.Session{ID: "older", StartTime: time.Now()}
	newer := &session.Session{ID: "newer", StartTime: time.Now()}
	if err := store.CreateSession(older); err != nil {
		t.Fatal(err)
	}
	if err := store.CreateSession(newer); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-time.Hour)
	if err := os.Chtimes(filepath.Join(store.Root(), "sessions", "older.json"), past, past); err != nil {
		t.Fatal(err)
	}

	// A summary written afterwards must not be mistaken for a session record.
	if err := store.WriteSummary(&session.Summary{Session: session.Session{ID: "older"}}); err != nil {
		t.Fatal(err)
	}

	got, err := store.LatestSession()
	if err != nil {
		t.Fatalf("LatestSession: %v", err)
	}
	if got.ID != "newer" {
		t.Errorf("LatestSession = %q, want %q", got.ID, "newer")
	}
}

func TestLatestSessionEmpty(t *testing.T) {
	store := newStore(t)
	if _, err := store.LatestSession(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession, got: %v", err)
	}
}

func TestCurrentSessionPointer(t *testing.T) {
	store := newStore(t)

	if _, err := store.ReadCurrentSessionID(); !errors.Is(err, session.ErrNoSession) {
		t.Fatalf("expected ErrNoSession before write, got: %v", err)
	}
	if err := store.WriteCurrentSessionID("abc"); err != nil {
		t.Fatal(err)
	}
	id, err := store.ReadCurrentSessionID()
	if err != nil || id != "abc" {
		t.Fatalf("ReadCurrentSessionID = %q, %v; want abc", id, err)
	}
	if err := store.ClearCurrentSessionID(); err != nil {
		t.Fatal(err)
	}
	// Clearing twice is not an error.
	if err := store.ClearCurrentSessionID(); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadCurrentSessionID(); !errors.Is(err, session.ErrNoSession) {
		t.Errorf("expected ErrNoSession after clear, got: %v", err)
	}
}

func TestUpdateLiveIndicatorsMerges(t *testing.T) {
	store := newStore(t)

	bump := func(cur *session.Indicators) (*session.Indicators, error) {
		if cur == nil {
			cur = &session.Indicators{SessionID: "s1", Metrics: session.NewMetrics()}
		}
		cur.Metrics.CommandsExecuted++
		return cur, nil
	}
	for i := 0; i < 3; i++ {
		if _, err := store.UpdateLiveIndicators(bump); err != nil {
			t.Fatalf("UpdateLiveIndicators: %v", err)
		}
	}

	ind, err := store.ReadLiveIndicators()
	if err != nil {
		t.Fatal(err)
	}
	if ind.Metrics.CommandsExecuted != 3 {
		t.Errorf("CommandsExecuted = %d, want 3", ind.Metrics.CommandsExecuted)
	}
}

func TestUpdateLiveIndicatorsRecoversFromCorruptDocument(t *testing.T) {
	store := newStore(t)
	path := filepath.Join(store.Root(), "productivity-indicators.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	var sawNil bool
	_, err := store.UpdateLiveIndicators(func(cur *session.Indicators) (*session.Indicators, error) {
		sawNil = cur == nil
		return &session.Indicators{SessionID: "s1", Metrics: session.NewMetrics()}, nil
	})
	if err != nil {
		t.Fatalf("UpdateLiveIndicators: %v", err)
	}
	if !sawNil {
		t.Error("expected a corrupt document to be treated as absent")
	}
}

func TestClearLiveIndicatorsOnlyForOwner(t *testing.T) {
	store := newStore(t)
	if err := store.WriteLiveIndicators(&session.Indicators{SessionID: "owner"}); err != nil {
		t.Fatal(err)
	}

	if err := store.ClearLiveIndicators("someone-else"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadLiveIndicators(); err != nil {
		t.Fatalf("indicators of another session were removed: %v", err)
	}

	if err := store.ClearLiveIndicators("owner"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ReadLiveIndicators(); !errors.Is(err, session.ErrNoIndicators) {
		t.Errorf("expected ErrNoIndicators, got: %v", err)
	}
}

func TestReadBaselineDefaults(t *testing.T) {
	store := newStore(t)

	b, err := store.ReadBaseline()
	if err != nil {
		t.Fatal(err)
	}
	if b != session.DefaultBaseline() {
		t.Errorf("missing baseline = %+v, want defaults", b)
	}

	path := filepath.Join(store.Root(), "current-baseline.json")
	if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}
	b, err = store.ReadBaseline()
	if err != nil {
		t.Fatal(err)
	}
	if !b.IsDefault() {
		t.Errorf("corrupt baseline = %+v, want defaults", b)
	}
}

func TestWriteBaselineKeepsPrevious(t *testing.T) {
	store := newStore(t)
	first := session.Baseline{AvgCommandsPerHour: 10, AvgLinesPerHour: 50, AvgSuccessRate: 90, SessionsCount: 3}
	second := session.Baseline{AvgCommandsPerHour: 20, AvgLinesPerHour: 80, AvgSuccessRate: 99, SessionsCount: 4}

	if err := store.WriteBaseline(first); err != nil {
		t.Fatal(err)
	}
	if err := store.WriteBaseline(second); err != nil {
		t.Fatal(err)
	}

	cur, err := store.ReadBaseline()
	if err != nil {
		t.Fatal(err)
	}
	prev, err := store.ReadPreviousBaseline()
	if err != nil {
		t.Fatal(err)
	}
	if cur.SessionsCount != 4 || prev.SessionsCount != 3 {
		t.Errorf("current/previous sessions = %d/%d, want 4/3", cur.SessionsCount, prev.SessionsCount)
	}
}

// TestNewStoreFailurePropagatesError verifies that NewStore returns an error
// when the metrics root cannot be created.
func TestNewStoreFailurePropagatesError(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission checks are ineffective")
	}

	tmp := t.TempDir()
	if err := os.Chmod(tmp, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(tmp, 0o755) })

	if _, err := session.NewStore(filepath.Join(tmp, "devpulse")); err == nil {
		t.Fatal("expected error creating store in unwritable directory, got nil")
	}
}

func TestMetricsNormalize(t *testing.T) {
	m := session.Metrics{
		CommandsExecuted: 10,
		FailedCommands:   15,
		FilesRead:        -3,
		AgentsUsed:       map[string]int{"": 2, "reviewer": 0, "planner": 4},
		SuccessRate:      250,
	}
	m.Normalize()

	if m.FailedCommands != 10 {
		t.Errorf("FailedCommands = %d, want clamped to 10", m.FailedCommands)
	}
	if m.FilesRead != 0 {
		t.Errorf("FilesRead = %d, want 0", m.FilesRead)
	}
	if m.SuccessRate != 0 {
		t.Errorf("SuccessRate = %v, want 0", m.SuccessRate)
	}
	if len(m.AgentsUsed) != 1 || m.AgentsUsed["planner"] != 4 {
		t.Errorf("AgentsUsed = %v, want only planner", m.AgentsUsed)
	}

	var empty session.Metrics
	empty.Normalize()
	if empty.SuccessRate != 100 || empty.AgentsUsed == nil {
		t.Errorf("empty metrics normalized to %+v", empty)
	}
}

package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// ErrNoSession is returned when a session record or the live-session
// pointer does not exist on disk.
var ErrNoSession = errors.New("no active session")

// ErrNoIndicators is returned by ReadLiveIndicators when no live document exists.
var ErrNoIndicators = errors.New("no live indicators")

// ErrNoSummary is returned by ReadSummary when a session was never finalized.
var ErrNoSummary = errors.New("no summary for session")

// File names inside the metrics root.
const (
	sessionsDir        = "sessions"
	historyFile        = "session-history.jsonl"
	baselineFile       = "current-baseline.json"
	prevBaselineFile   = "historical-baseline.json"
	indicatorsFile     = "productivity-indicators.json"
	currentSessionFile = ".current-session-id"
	lockFile           = ".lock"
	summarySuffix      = "_summary.json"
)

// Store persists sessions, live indicators, the baseline and the history
// log under a single metrics root directory. Every document is replaced
// whole; the history log is append-only.
type Store struct {
	root string
}

// NewStore returns a Store rooted at dir, creating the directory layout.
// An empty dir resolves to DefaultRoot.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		d, err := DefaultRoot()
		if err != nil {
			return nil, fmt.Errorf("resolving metrics directory: %w", err)
		}
		dir = d
	}
	if err := os.MkdirAll(filepath.Join(dir, sessionsDir), 0o755); err != nil {
		return nil, fmt.Errorf("creating metrics directory: %w", err)
	}
	return &Store{root: dir}, nil
}

// DefaultRoot returns the devpulse XDG data directory.
// Path: $XDG_DATA_HOME/devpulse or ~/.local/share/devpulse
func DefaultRoot() (string, error) {
	base := os.Getenv("XDG_DATA_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "devpulse"), nil
}

// Root returns the metrics root directory.
func (s *Store) Root() string {
	return s.root
}

func (s *Store) sessionPath(id string) string {
	return filepath.Join(s.root, sessionsDir, id+".json")
}

func (s *Store) summaryPath(id string) string {
	return filepath.Join(s.root, sessionsDir, id+summarySuffix)
}

func (s *Store) path(name string) string {
	return filepath.Join(s.root, name)
}

// validID reports whether id can name a file inside the sessions directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}

// CreateSession writes the full session record. It is also used to rewrite
// a record at finalization.
func (s *Store) CreateSession(sess *Session) error {
	if !validID(sess.ID) {
		return fmt.Errorf("invalid session id %q", sess.ID)
	}
	if err := writeJSON(s.sessionPath(sess.ID), sess); err != nil {
		return fmt.Errorf("failed to persist session: %w", err)
	}
	return nil
}

// ReadSession loads the session record with the given id.
// Returns ErrNoSession if the record does not exist.
func (s *Store) ReadSession(id string) (*Session, error) {
	if !validID(id) {
		return nil, ErrNoSession
	}
	var sess Session
	if err := readJSON(s.sessionPath(id), &sess); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}
	sess.Metrics.Normalize()
	return &sess, nil
}

// LatestSession returns the most recently modified session record,
// ignoring finalized summaries and unreadable records.
// Returns ErrNoSession if there is none.
func (s *Store) LatestSession() (*Session, error) {
	entries, err := os.ReadDir(filepath.Join(s.root, sessionsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSession
		}
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	var (
		latestID  string
		latestMod time.Time
	)
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") || strings.HasSuffix(name, summarySuffix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if latestID == "" || info.ModTime().After(latestMod) {
			latestID = strings.TrimSuffix(name, ".json")
			latestMod = info.ModTime()
		}
	}
	if latestID == "" {
		return nil, ErrNoSession
	}
	return s.ReadSession(latestID)
}

// WriteSummary caches the finalized summary for its session id,
// overwriting any previous one.
func (s *Store) WriteSummary(sum *Summary) error {
	if !validID(sum.ID) {
		return fmt.Errorf("invalid session id %q", sum.ID)
	}
	if err := writeJSON(s.summaryPath(sum.ID), sum); err != nil {
		return fmt.Errorf("failed to persist summary: %w", err)
	}
	return nil
}

// ReadSummary loads the cached summary for id.
// Returns ErrNoSummary if the session was never finalized.
func (s *Store) ReadSummary(id string) (*Summary, error) {
	if !validID(id) {
		return nil, fmt.Errorf("invalid session id %q", id)
	}
	var sum Summary
	if err := readJSON(s.summaryPath(id), &sum); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoSummary
		}
		return nil, fmt.Errorf("failed to read summary %s: %w", id, err)
	}
	return &sum, nil
}

// WriteCurrentSessionID records id as the live session pointer.
func (s *Store) WriteCurrentSessionID(id string) error {
	if err := writeFileAtomic(s.path(currentSessionFile), []byte(id+"\n")); err != nil {
		return fmt.Errorf("failed to persist session pointer: %w", err)
	}
	return nil
}

// ReadCurrentSessionID returns the live session pointer.
// Returns ErrNoSession if no session is active.
func (s *Store) ReadCurrentSessionID() (string, error) {
	data, err := os.ReadFile(s.path(currentSessionFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", ErrNoSession
		}
		return "", fmt.Errorf("failed to read session pointer: %w", err)
	}
	id := strings.TrimSpace(string(data))
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// ClearCurrentSessionID removes the live session pointer.
func (s *Store) ClearCurrentSessionID() error {
	return removeIfExists(s.path(currentSessionFile))
}

// WriteLiveIndicators replaces the live indicators document.
func (s *Store) WriteLiveIndicators(ind *Indicators) error {
	if err := writeJSON(s.path(indicatorsFile), ind); err != nil {
		return fmt.Errorf("failed to persist live indicators: %w", err)
	}
	return nil
}

// ReadLiveIndicators loads the live indicators document.
// Returns ErrNoIndicators if none exists.
func (s *Store) ReadLiveIndicators() (*Indicators, error) {
	var ind Indicators
	if err := readJSON(s.path(indicatorsFile), &ind); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoIndicators
		}
		return nil, fmt.Errorf("failed to read live indicators: %w", err)
	}
	ind.Metrics.Normalize()
	return &ind, nil
}

// UpdateLiveIndicators performs a locked read-merge-write of the live
// indicators document. fn receives the current document, or nil when none
// exists or it is unreadable, and returns the document to write.
func (s *Store) UpdateLiveIndicators(fn func(cur *Indicators) (*Indicators, error)) (*Indicators, error) {
	lock := flock.New(s.path(lockFile))
	if err := lock.Lock(); err != nil {
		return nil, fmt.Errorf("locking metrics directory: %w", err)
	}
	defer lock.Unlock()

	cur, err := s.ReadLiveIndicators()
	if err != nil {
		if !errors.Is(err, ErrNoIndicators) && !isCorrupt(err) {
			return nil, err
		}
		cur = nil
	}

	next, err := fn(cur)
	if err != nil {
		return nil, err
	}
	if err := s.WriteLiveIndicators(next); err != nil {
		return nil, err
	}
	return next, nil
}

// ClearLiveIndicators removes the live indicators document if it belongs to
// sessionID. An empty sessionID removes it unconditionally.
func (s *Store) ClearLiveIndicators(sessionID string) error {
	if sessionID != "" {
		ind, err := s.ReadLiveIndicators()
		if err == nil && ind.SessionID != sessionID {
			return nil
		}
	}
	return removeIfExists(s.path(indicatorsFile))
}

// ReadBaseline loads the current baseline. A missing or unreadable
// baseline yields DefaultBaseline.
func (s *Store) ReadBaseline() (Baseline, error) {
	var b Baseline
	if err := readJSON(s.path(baselineFile), &b); err != nil {
		if errors.Is(err, os.ErrNotExist) || isCorrupt(err) {
			return DefaultBaseline(), nil
		}
		return Baseline{}, fmt.Errorf("failed to read baseline: %w", err)
	}
	return b, nil
}

// WriteBaseline replaces the current baseline. The previous one is kept
// as historical-baseline.json.
func (s *Store) WriteBaseline(b Baseline) error {
	if prev, err := os.ReadFile(s.path(baselineFile)); err == nil {
		if err := writeFileAtomic(s.path(prevBaselineFile), prev); err != nil {
			return fmt.Errorf("failed to persist historical baseline: %w", err)
		}
	}
	if err := writeJSON(s.path(baselineFile), b); err != nil {
		return fmt.Errorf("failed to persist baseline: %w", err)
	}
	return nil
}

// ReadPreviousBaseline loads the baseline that was current before the last
// refresh. Returns DefaultBaseline when there is none.
func (s *Store) ReadPreviousBaseline() (Baseline, error) {
	var b Baseline
	if err := readJSON(s.path(prevBaselineFile), &b); err != nil {
		if errors.Is(err, os.ErrNotExist) || isCorrupt(err) {
			return DefaultBaseline(), nil
		}
		return Baseline{}, fmt.Errorf("failed to read historical baseline: %w", err)
	}
	return b, nil
}

// writeJSON marshals v and writes it atomically to path.
func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return writeFileAtomic(path, data)
}

// readJSON reads path and unmarshals it into v. Decoding failures are
// wrapped in a corruptError.
func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &corruptError{path: path, err: err}
	}
	return nil
}

// writeFileAtomic writes data to a temp file in the same directory and
// renames it over path.
func writeFileAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+"-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Clean up the temp file on any error path.
	defer func() {
		if err != nil {
			os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func removeIfExists(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return nil
}

// corruptError reports a document that exists but cannot be decoded.
type corruptError struct {
	path string
	err  error
}

func (e *corruptError) Error() string {
	return "malformed document " + e.path + ": " + e.err.Error()
}

func (e *corruptError) Unwrap() error {
	return e.err
}

func isCorrupt(err error) bool {
	var ce *corruptError
	return errors.As(err, &ce)
}

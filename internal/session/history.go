package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gofrs/flock"
)

// maxRecordSize bounds a single history line.
const maxRecordSize = 4 << 20

// History is the result of reading the history log.
type History struct {
	Summaries []Summary // valid records, oldest first
	Total     int       // non-empty lines seen
	Skipped   int       // lines that could not be decoded
}

// AppendSummary appends sum to the history log as a single JSON line.
// The line is written with one call under an exclusive lock so concurrent
// appends interleave at record boundaries.
func (s *Store) AppendSummary(sum *Summary) error {
	line, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("failed to encode summary: %w", err)
	}
	line = append(line, '\n')

	path := s.path(historyFile)
	lock := flock.New(path + ".lock")
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("locking history: %w", err)
	}
	defer lock.Unlock()

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("failed to append history: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// ReadHistory returns the summaries whose end time lies within the last
// sinceDays days. sinceDays <= 0 returns the whole log. Malformed lines are
// skipped and counted; a missing log is an empty history.
func (s *Store) ReadHistory(sinceDays int) (History, error) {
	var cutoff time.Time
	if sinceDays > 0 {
		cutoff = time.Now().AddDate(0, 0, -sinceDays)
	}

	var h History
	f, err := os.Open(s.path(historyFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return h, nil
		}
		return h, fmt.Errorf("failed to open history: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRecordSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		h.Total++

		var sum Summary
		if err := json.Unmarshal(line, &sum); err != nil || sum.ID == "" {
			h.Skipped++
			continue
		}
		if !cutoff.IsZero() && sum.FinishedAt().Before(cutoff) {
			continue
		}
		sum.Metrics.Normalize()
		h.Summaries = append(h.Summaries, sum)
	}
	if err := scanner.Err(); err != nil {
		return h, fmt.Errorf("failed to read history: %w", err)
	}
	return h, nil
}

// FinishedAt returns the end time, or the start time for records without one.
func (s Summary) FinishedAt() time.Time {
	if s.EndTime != nil {
		return *s.EndTime
	}
	return s.StartTime
}

// Contains reports whether the history holds a summary for id.
func (h History) Contains(id string) bool {
	_, ok := h.Find(id)
	return ok
}

// Find returns the most recent summary recorded for id.
func (h History) Find(id string) (Summary, bool) {
	for i := len(h.Summaries) - 1; i >= 0; i-- {
		if h.Summaries[i].ID == id {
			return h.Summaries[i], true
		}
	}
	return Summary{}, false
}

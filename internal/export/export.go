// Package export mirrors the session history into a SQLite database for
// dashboards and ad-hoc queries.
package export

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"

	"github.com/fakeyudi/devpulse/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS session_summaries (
	id                 TEXT PRIMARY KEY,
	user               TEXT NOT NULL,
	work_dir           TEXT NOT NULL,
	vcs_branch         TEXT NOT NULL,
	start_time         TEXT NOT NULL,
	end_time           TEXT NOT NULL,
	duration_hours     REAL NOT NULL,
	productivity_score REAL NOT NULL,
	trend              TEXT NOT NULL,
	commands_executed  INTEGER NOT NULL,
	failed_commands    INTEGER NOT NULL,
	success_rate       REAL NOT NULL,
	files_read         INTEGER NOT NULL,
	files_modified     INTEGER NOT NULL,
	lines_changed      INTEGER NOT NULL,
	synthesized        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS agent_usage (
	session_id  TEXT NOT NULL REFERENCES session_summaries(id) ON DELETE CASCADE,
	agent       TEXT NOT NULL,
	invocations INTEGER NOT NULL,
	PRIMARY KEY (session_id, agent)
);
`

// Store is a writable export database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path and ensures the schema.
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying handle for queries.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Write upserts summaries by session id in one transaction, replacing
// each session's agent usage rows. Returns the number of rows written.
func (s *Store) Write(ctx context.Context, summaries []session.Summary) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.PrepareContext(ctx, `
		INSERT INTO session_summaries (
			id, user, work_dir, vcs_branch, start_time, end_time, duration_hours,
			productivity_score, trend, commands_executed, failed_commands, success_rate,
			files_read, files_modified, lines_changed, synthesized
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user = excluded.user,
			work_dir = excluded.work_dir,
			vcs_branch = excluded.vcs_branch,
			start_time = excluded.start_time,
			end_time = excluded.end_time,
			duration_hours = excluded.duration_hours,
			productivity_score = excluded.productivity_score,
			trend = excluded.trend,
			commands_executed = excluded.commands_executed,
			failed_commands = excluded.failed_commands,
			success_rate = excluded.success_rate,
			files_read = excluded.files_read,
			files_modified = excluded.files_modified,
			lines_changed = excluded.lines_changed,
			synthesized = excluded.synthesized
	`)
	if err != nil {
		return 0, fmt.Errorf("prepare upsert: %w", err)
	}
	defer upsert.Close()

	for _, sum := range summaries {
		m := sum.Metrics
		if _, err := upsert.ExecContext(ctx,
			sum.ID, sum.User, sum.WorkDir, sum.VCSBranch,
			formatTime(sum.StartTime), formatTime(sum.FinishedAt()),
			sum.DurationHours, sum.ProductivityScore, sum.Trend,
			m.CommandsExecuted, m.FailedCommands, m.SuccessRate,
			m.FilesRead, m.FilesModified, m.LinesChanged, sum.Synthesized,
		); err != nil {
			return 0, fmt.Errorf("upsert session %s: %w", sum.ID, err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM agent_usage WHERE session_id = ?`, sum.ID); err != nil {
			return 0, fmt.Errorf("clear agent usage %s: %w", sum.ID, err)
		}
		agents := make([]string, 0, len(m.AgentsUsed))
		for name := range m.AgentsUsed {
			agents = append(agents, name)
		}
		sort.Strings(agents)
		for _, name := range agents {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO agent_usage (session_id, agent, invocations) VALUES (?, ?, ?)`,
				sum.ID, name, m.AgentsUsed[name],
			); err != nil {
				return 0, fmt.Errorf("insert agent usage %s: %w", sum.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(summaries), nil
}

// Export writes summaries to the database at path.
func Export(ctx context.Context, path string, summaries []session.Summary) (int, error) {
	s, err := Open(ctx, path)
	if err != nil {
		return 0, err
	}
	defer s.Close()
	return s.Write(ctx, summaries)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

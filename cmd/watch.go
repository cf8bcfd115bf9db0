package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/collector"
	"github.com/fakeyudi/devpulse/internal/hook"
	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/session"
)

// watchDebounce collapses the burst of write events a single save produces.
const watchDebounce = 2 * time.Second

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Count file writes in the session's working directory as edits",
	Long: `Watch the active session's working directory and record every file
write as an edit. Useful when the agent runtime has no tool-event hook.
Runs until interrupted or until the session is finished.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}
		env := invocationEnv("", false)

		st, err := m.Status(cmd.Context(), env)
		if err != nil {
			if errors.Is(err, session.ErrNoSession) {
				return fmt.Errorf("no active session")
			}
			return err
		}
		// Pin the session so a later start does not redirect the watcher.
		env.SessionID = st.Session.ID

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()

		fw := &collector.FileWatcher{
			WorkDir:        st.Session.WorkDir,
			IgnorePatterns: cfg.IgnorePatterns,
			Logger:         logger,
		}
		last := map[string]time.Time{}
		onEdit := func(path string) error {
			now := time.Now()
			if t, ok := last[path]; ok && now.Sub(t) < watchDebounce {
				return nil
			}
			last[path] = now

			_, err := m.RecordEvent(ctx, env, hook.Event{
				Tool:     "watch",
				Kind:     hook.KindFileWrite,
				Success:  true,
				FilePath: path,
			})
			if errors.Is(err, lifecycle.ErrSessionFinished) || errors.Is(err, session.ErrNoSession) {
				logger.Info().Str("session_id", env.SessionID).Msg("session ended, stopping watcher")
				cancel()
				return nil
			}
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for session %s (Ctrl-C to stop)\n", fw.WorkDir, env.SessionID)
		return fw.Watch(ctx, onEdit)
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/hook"
	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/session"
)

var eventVerbose bool

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Record one tool invocation read as a hook payload from stdin",
	Long: `Record one tool invocation of the agent runtime.

The hook payload is read from stdin as JSON with tool_name, tool_input and
tool_response. Events that arrive while no session is active are ignored.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ev, err := hook.Read(cmd.InOrStdin())
		if err != nil {
			return err
		}

		m, err := newManager()
		if err != nil {
			return err
		}

		ind, err := m.RecordEvent(cmd.Context(), invocationEnv("", false), ev)
		switch {
		case errors.Is(err, session.ErrNoSession), errors.Is(err, lifecycle.ErrSessionFinished):
			logger.Warn().Err(err).Str("tool", ev.Tool).Msg("ignoring event outside an active session")
			return nil
		case err != nil:
			return err
		}

		logger.Debug().
			Str("session_id", ind.SessionID).
			Str("tool", ev.Tool).
			Str("kind", string(ev.Kind)).
			Bool("success", ev.Success).
			Msg("event recorded")
		if eventVerbose {
			fmt.Fprintf(cmd.OutOrStdout(), "%s  score %.2f (%s)  commands %d  success %.1f%%\n",
				ind.SessionID, ind.ProductivityScore, ind.Trend, ind.Metrics.CommandsExecuted, ind.Metrics.SuccessRate)
		}
		return nil
	},
}

func init() {
	eventCmd.Flags().BoolVarP(&eventVerbose, "verbose", "v", false, "Print the updated running score")
	rootCmd.AddCommand(eventCmd)
}

package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/report"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the running score of the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBuilder()
		if err != nil {
			return err
		}

		r, err := b.Status(cmd.Context(), invocationEnv("", false))
		if err != nil {
			return err
		}
		if r.Scope != report.ScopeActive {
			cmd.Println("no active session")
			return nil
		}

		ind := r.Indicators
		m := ind.Metrics
		cmd.Printf("Session: %s\n", r.Session.ID)
		cmd.Printf("Started: %s\n", r.Session.StartTime.Format(time.RFC3339))
		cmd.Printf("Duration: %.2fh\n", ind.DurationHours)
		cmd.Printf("Score: %.2f (%s)\n", ind.ProductivityScore, ind.Trend)
		cmd.Printf("Commands: %d (%d failed)\n", m.CommandsExecuted, m.FailedCommands)
		cmd.Printf("Files: %d read, %d modified\n", m.FilesRead, m.FilesModified)
		cmd.Printf("Lines changed: %d\n", m.LinesChanged)
		cmd.Printf("Agents: %d distinct\n", m.DistinctAgents())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

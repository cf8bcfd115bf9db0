package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/export"
	"github.com/fakeyudi/devpulse/internal/session"
)

var exportDB string
var exportDays int

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Mirror the session history into a SQLite database",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportDB == "" {
			return fmt.Errorf("--db is required")
		}
		store, err := session.NewStore(cfg.MetricsDir)
		if err != nil {
			return err
		}
		hist, err := store.ReadHistory(exportDays)
		if err != nil {
			return err
		}
		if hist.Skipped > 0 {
			logger.Warn().Int("skipped", hist.Skipped).Int("total", hist.Total).Msg("skipped malformed history records")
		}

		n, err := export.Export(cmd.Context(), exportDB, hist.Summaries)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d sessions to %s\n", n, exportDB)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDB, "db", "", "SQLite database file to write")
	exportCmd.Flags().IntVar(&exportDays, "days", 0, "Only export sessions of the last N days (default: all)")
	rootCmd.AddCommand(exportCmd)
}

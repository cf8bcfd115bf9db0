package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/report"
)

var teamDays int
var teamFormat string

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Aggregate metrics across finalized sessions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if teamDays < 0 {
			return fmt.Errorf("--days must not be negative")
		}
		b, err := newBuilder()
		if err != nil {
			return err
		}

		tm, stats, err := b.Team(teamDays)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format := strings.ToLower(outputFormat(teamFormat)); format {
		case "json":
			data, err := json.MarshalIndent(map[string]any{"team": tm, "history": stats}, "", "  ")
			if err != nil {
				return fmt.Errorf("encode team metrics: %w", err)
			}
			fmt.Fprintln(out, string(data))
		case "", "text":
			fmt.Fprintf(out, "Team (last %d days)\n", tm.WindowDays)
			fmt.Fprint(out, report.TeamSummary(tm))
			if stats.Skipped > 0 {
				fmt.Fprintf(out, "\n%d of %d history records were unreadable and skipped\n", stats.Skipped, stats.Total)
			}
		default:
			return fmt.Errorf("unknown format %q (want text or json)", format)
		}
		return nil
	},
}

func init() {
	teamCmd.Flags().IntVar(&teamDays, "days", 0, "History window in days (default: team_window_days from config)")
	teamCmd.Flags().StringVar(&teamFormat, "format", "", "Output format: text or json (overrides config)")
	rootCmd.AddCommand(teamCmd)
}

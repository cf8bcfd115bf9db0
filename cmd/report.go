package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/report"
	"github.com/fakeyudi/devpulse/internal/tui"
)

var reportFormat string
var reportTUI bool

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Show score, anomalies, recommendations and team metrics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBuilder()
		if err != nil {
			return err
		}

		r, err := b.Build(cmd.Context(), invocationEnv("", false))
		if err != nil {
			return err
		}
		if r.History.Skipped > 0 {
			logger.Warn().Int("skipped", r.History.Skipped).Int("total", r.History.Total).Msg("skipped malformed history records")
		}

		if reportTUI {
			return tui.Run(r)
		}

		renderer, err := report.NewRenderer(outputFormat(reportFormat))
		if err != nil {
			return err
		}
		data, err := renderer.Render(r)
		if err != nil {
			return fmt.Errorf("render report: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportFormat, "format", "", "Output format: text or json (overrides config)")
	reportCmd.Flags().BoolVar(&reportTUI, "tui", false, "Browse the report in an interactive viewer")
	rootCmd.AddCommand(reportCmd)
}

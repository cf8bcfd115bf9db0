package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/report"
)

var finishFormat string

var finishCmd = &cobra.Command{
	Use:     "finish",
	Aliases: []string{"stop"},
	Short:   "Finalize the current session and record its summary",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		res, err := m.Finish(cmd.Context(), invocationEnv("", false))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		switch format := strings.ToLower(outputFormat(finishFormat)); format {
		case "json":
			data, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return fmt.Errorf("encode summary: %w", err)
			}
			fmt.Fprintln(out, string(data))
		case "", "text":
			printFinish(cmd, res)
		default:
			return fmt.Errorf("unknown format %q (want text or json)", format)
		}
		return nil
	},
}

func printFinish(cmd *cobra.Command, res *lifecycle.FinishResult) {
	out := cmd.OutOrStdout()
	s := res.Summary
	fmt.Fprintf(out, "Session finished: %s (%s)\n", s.ID, res.Source)
	if !res.Appended {
		fmt.Fprintln(out, "  already finalized, summary refreshed")
	}
	fmt.Fprintf(out, "  Score %.2f (%s)  %.2fh  %d commands  %.1f%% success  %d lines\n",
		s.ProductivityScore, s.Trend, s.DurationHours,
		s.Metrics.CommandsExecuted, s.Metrics.SuccessRate, s.Metrics.LinesChanged)
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Anomalies (%d)\n", len(res.Anomalies))
	fmt.Fprint(out, report.AnomalyList(res.Anomalies))
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Recommendations (%d)\n", len(s.Recommendations))
	fmt.Fprint(out, report.RecommendationList(s.Recommendations))
}

func init() {
	finishCmd.Flags().StringVar(&finishFormat, "format", "", "Output format: text or json (overrides config)")
	rootCmd.AddCommand(finishCmd)
}

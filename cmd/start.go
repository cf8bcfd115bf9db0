package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var startForce bool
var startDir string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Begin a new tracking session",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := newManager()
		if err != nil {
			return err
		}

		s, err := m.Start(cmd.Context(), invocationEnv(startDir, startForce))
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Session started: %s\n", s.ID)
		fmt.Fprintf(out, "  user %s  branch %s  dir %s\n", s.User, s.VCSBranch, s.WorkDir)
		return nil
	},
}

func init() {
	startCmd.Flags().BoolVar(&startForce, "force", false, "Abandon a session that is still in progress")
	startCmd.Flags().StringVar(&startDir, "dir", "", "Working directory to record (default: current directory)")
	rootCmd.AddCommand(startCmd)
}

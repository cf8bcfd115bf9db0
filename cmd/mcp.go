package cmd

import (
	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/mcpserver"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the productivity reports as MCP tools over stdio",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := newBuilder()
		if err != nil {
			return err
		}

		s := mcpserver.New(&mcpserver.Handlers{
			Builder: b,
			Env:     invocationEnv("", false),
			Logger:  logger,
		}, version)
		logger.Info().Str("metrics_dir", b.Manager.Store().Root()).Msg("serving MCP on stdio")
		return mcpserver.Serve(s)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

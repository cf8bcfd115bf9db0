package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/devpulse/internal/collector"
	"github.com/fakeyudi/devpulse/internal/config"
	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/logging"
	"github.com/fakeyudi/devpulse/internal/profile"
	"github.com/fakeyudi/devpulse/internal/report"
	"github.com/fakeyudi/devpulse/internal/session"
)

// EnvSessionID selects a session explicitly, like --session.
const EnvSessionID = "DEVPULSE_SESSION_ID"

// version is set at build time via ldflags.
var version = "dev"

// cfg holds the merged configuration, populated in PersistentPreRunE.
var cfg config.Config

// activeProfile holds the loaded user profile.
var activeProfile *profile.Profile

// logger writes structured diagnostics to stderr.
var logger = zerolog.Nop()

var sessionFlag string

// hookCommands run under the agent runtime without a terminal and must
// never prompt.
var hookCommands = map[string]bool{
	"event":  true,
	"finish": true,
	"mcp":    true,
	"setup":  true,
}

var rootCmd = &cobra.Command{
	Use:          "devpulse",
	Short:        "Track agent-assisted development sessions and score their productivity",
	Version:      version,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// First-run: profile missing → run setup wizard automatically.
		// Only do this when stdin is an interactive terminal.
		if !profile.Exists() && !hookCommands[cmd.Name()] && term.IsTerminal(os.Stdin.Fd()) {
			if err := runSetup(cmd, true); err != nil {
				return err
			}
		}

		// The profile is optional: non-interactive environments may have none.
		activeProfile = nil
		if profile.Exists() {
			p, err := profile.Load()
			if err != nil {
				return fmt.Errorf("loading profile: %w", err)
			}
			activeProfile = p
		}

		global, err := config.LoadGlobal()
		if err != nil {
			return fmt.Errorf("loading global config: %w", err)
		}
		project, err := config.LoadProject()
		if err != nil {
			return fmt.Errorf("loading project config: %w", err)
		}
		cfg = config.Merge(global, project)
		cfg.ApplyEnv()

		// Profile values fill in config gaps.
		if activeProfile != nil && activeProfile.DefaultFormat != "" {
			if cfg.DefaultFormat == "" || cfg.DefaultFormat == "text" {
				cfg.DefaultFormat = activeProfile.DefaultFormat
			}
		}

		logger = logging.New(cfg.LogLevel, cmd.ErrOrStderr())
		return nil
	},
}

// Execute runs the root command. Exits with code 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// GetConfig returns the merged configuration for use by subcommands.
func GetConfig() config.Config {
	return cfg
}

// GetProfile returns the active user profile.
func GetProfile() *profile.Profile {
	return activeProfile
}

// invocationEnv builds the lifecycle context of this process. The
// --session flag wins over DEVPULSE_SESSION_ID.
func invocationEnv(workDir string, force bool) lifecycle.Env {
	id := strings.TrimSpace(sessionFlag)
	if id == "" {
		id = strings.TrimSpace(os.Getenv(EnvSessionID))
	}
	return lifecycle.Env{SessionID: id, WorkDir: workDir, Force: force}
}

// newManager opens the metrics store and wires the provenance collectors.
func newManager() (*lifecycle.Manager, error) {
	store, err := session.NewStore(cfg.MetricsDir)
	if err != nil {
		return nil, err
	}

	argv, err := cfg.VCSArgv()
	if err != nil {
		logger.Warn().Err(err).Msg("falling back to the default vcs command")
		argv = nil
	}
	name := ""
	if activeProfile != nil {
		name = activeProfile.Name
	}

	return lifecycle.New(store,
		lifecycle.WithLogger(logger),
		lifecycle.WithCollectors(
			&collector.GitCollector{Argv: argv},
			&collector.UserCollector{ProfileName: name},
		),
		lifecycle.WithBaselineWindow(cfg.BaselineWindow),
		lifecycle.WithAnomalyWindow(cfg.AnomalyWindowDays),
	), nil
}

// newBuilder returns a report builder over the configured store.
func newBuilder() (*report.Builder, error) {
	m, err := newManager()
	if err != nil {
		return nil, err
	}
	return &report.Builder{
		Manager:           m,
		AnomalyWindowDays: cfg.AnomalyWindowDays,
		TeamWindowDays:    cfg.TeamWindowDays,
	}, nil
}

// outputFormat resolves --format against the configured default.
func outputFormat(flag string) string {
	if flag != "" {
		return flag
	}
	return cfg.DefaultFormat
}

func init() {
	rootCmd.PersistentFlags().StringVar(&sessionFlag, "session", "", "Session id to operate on (overrides "+EnvSessionID+")")
}

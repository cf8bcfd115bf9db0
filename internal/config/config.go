package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
)

// Environment overrides applied after the config files are merged.
const (
	EnvMetricsDir = "DEVPULSE_METRICS_DIR"
	EnvLogLevel   = "DEVPULSE_LOG_LEVEL"
)

// Config holds all configurable devpulse settings.
type Config struct {
	MetricsDir        string   `json:"metrics_dir"`         // empty: XDG data dir
	BaselineWindow    int      `json:"baseline_window"`     // sessions
	AnomalyWindowDays int      `json:"anomaly_window_days"` // days of history compared against
	TeamWindowDays    int      `json:"team_window_days"`
	LogLevel          string   `json:"log_level"`
	DefaultFormat     string   `json:"default_format"` // "text" | "json"
	VCSCommand        string   `json:"vcs_command"`    // prints the current branch
	IgnorePatterns    []string `json:"ignore_patterns"`
}

// Defaults returns sensible default configuration values.
func Defaults() Config {
	return Config{
		BaselineWindow:    30,
		AnomalyWindowDays: 30,
		TeamWindowDays:    90,
		LogLevel:          "info",
		DefaultFormat:     "text",
		VCSCommand:        "git rev-parse --abbrev-ref HEAD",
		IgnorePatterns:    []string{},
	}
}

// Dir returns the devpulse config directory, ~/.config/devpulse.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "devpulse"), nil
}

// LoadGlobal reads ~/.config/devpulse/config.json.
// Returns defaults if the file is absent.
func LoadGlobal() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return loadFile(filepath.Join(dir, "config.json"), true)
}

// LoadProject reads .devpulseconfig in the current working directory.
// Returns nil (no error) if the file is absent.
func LoadProject() (*Config, error) {
	return loadFile(".devpulseconfig", false)
}

// loadFile reads and parses a JSON config file at path.
// If returnDefaults is true, returns defaults when the file is absent.
// If returnDefaults is false, returns nil when the file is absent.
func loadFile(path string, returnDefaults bool) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if returnDefaults {
				d := Defaults()
				return &d, nil
			}
			return nil, nil
		}
		return nil, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, &ParseError{Path: path, Err: err}
	}
	return &cfg, nil
}

// Merge combines global and project configs, with project taking precedence.
// Missing keys fall back to global, then defaults.
func Merge(global, project *Config) Config {
	result := Defaults()
	for _, layer := range []*Config{global, project} {
		if layer != nil {
			result.overlay(layer)
		}
	}
	return result
}

// overlay copies every set field of c onto cfg.
func (cfg *Config) overlay(c *Config) {
	if c.MetricsDir != "" {
		cfg.MetricsDir = c.MetricsDir
	}
	if c.BaselineWindow > 0 {
		cfg.BaselineWindow = c.BaselineWindow
	}
	if c.AnomalyWindowDays > 0 {
		cfg.AnomalyWindowDays = c.AnomalyWindowDays
	}
	if c.TeamWindowDays > 0 {
		cfg.TeamWindowDays = c.TeamWindowDays
	}
	if c.LogLevel != "" {
		cfg.LogLevel = c.LogLevel
	}
	if c.DefaultFormat != "" {
		cfg.DefaultFormat = c.DefaultFormat
	}
	if c.VCSCommand != "" {
		cfg.VCSCommand = c.VCSCommand
	}
	if len(c.IgnorePatterns) > 0 {
		cfg.IgnorePatterns = c.IgnorePatterns
	}
}

// ApplyEnv overrides cfg with the DEVPULSE_* environment variables.
func (cfg *Config) ApplyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvMetricsDir)); v != "" {
		cfg.MetricsDir = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.LogLevel = v
	}
}

// VCSArgv splits VCSCommand into an argv using shell quoting rules.
func (cfg Config) VCSArgv() ([]string, error) {
	argv, err := shlex.Split(cfg.VCSCommand)
	if err != nil {
		return nil, fmt.Errorf("parsing vcs_command %q: %w", cfg.VCSCommand, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("vcs_command is empty")
	}
	return argv, nil
}

// ParseError is returned when a config file exists but cannot be parsed.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return "failed to parse config file " + e.Path + ": " + e.Err.Error()
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package collector

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/fakeyudi/devpulse/internal/session"
)

// GitRunner executes a VCS command and returns its output.
// This abstraction allows mocking in tests.
type GitRunner func(ctx context.Context, workDir string, argv ...string) (string, error)

// DefaultBranchCommand prints the current git branch.
var DefaultBranchCommand = []string{"git", "rev-parse", "--abbrev-ref", "HEAD"}

// GitCollector records the VCS branch of the working directory.
type GitCollector struct {
	WorkDir string
	Argv    []string  // if empty, uses DefaultBranchCommand
	Runner  GitRunner // if nil, runs a real subprocess
}

// defaultGitRunner runs argv as a real subprocess.
func defaultGitRunner(ctx context.Context, workDir string, argv ...string) (string, error) {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = workDir
	out, err := cmd.Output()
	return string(out), err
}

// Collect implements Collector. A working directory outside any repository
// (exit code 128), a missing VCS binary or empty output all yield
// session.Unknown and a warning.
func (g *GitCollector) Collect(ctx context.Context, sess *session.Session) (CollectorResult, error) {
	runner := g.Runner
	if runner == nil {
		runner = defaultGitRunner
	}
	argv := g.Argv
	if len(argv) == 0 {
		argv = DefaultBranchCommand
	}
	workDir := g.WorkDir
	if workDir == "" {
		workDir = sess.WorkDir
	}

	out, err := runner(ctx, workDir, argv...)
	if err != nil {
		if ctx.Err() != nil {
			return CollectorResult{}, ctx.Err()
		}
		warning := "vcs branch unavailable: " + err.Error()
		if isExitCode128(err) {
			warning = "not a git repository"
		}
		return CollectorResult{VCSBranch: session.Unknown, Warnings: []string{warning}}, nil
	}

	branch := firstLine(out)
	if branch == "" {
		return CollectorResult{VCSBranch: session.Unknown, Warnings: []string{"vcs command printed no branch"}}, nil
	}
	return CollectorResult{VCSBranch: branch}, nil
}

// isExitCode128 reports whether err is an *exec.ExitError with exit code 128.
func isExitCode128(err error) bool {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode() == 128
	}
	return false
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = strings.TrimSpace(s[:i])
	}
	return s
}

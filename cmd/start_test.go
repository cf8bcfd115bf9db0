package cmd

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	return executeCommandWithInput(root, strings.NewReader(""), args...)
}

// executeCommandWithInput is executeCommand with in as stdin.
func executeCommandWithInput(root *cobra.Command, in io.Reader, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetIn(in)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// isolate points every devpulse path at temp dirs and resets flag state
// left behind by earlier runs.
func isolate(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_DATA_HOME", tmp)
	t.Setenv("DEVPULSE_METRICS_DIR", tmp+"/metrics")
	t.Setenv("DEVPULSE_LOG_LEVEL", "warn")
	t.Setenv(EnvSessionID, "")
	t.Setenv("USER", "tester")

	sessionFlag = ""
	startForce, startDir = false, ""
	eventVerbose = false
	finishFormat = ""
	reportFormat, reportTUI = "", false
	teamDays, teamFormat = 0, ""
	exportDB, exportDays = "", 0
	return tmp
}

// TestDoubleStartError verifies that running "start" when a session is already
// active returns an error containing "session already in progress".
func TestDoubleStartError(t *testing.T) {
	tmp := isolate(t)

	out, err := executeCommand(rootCmd, "start", "--dir", tmp)
	if err != nil {
		t.Fatalf("first start: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Session started:") {
		t.Errorf("expected start confirmation, got: %q", out)
	}
	if !strings.Contains(out, "user tester") {
		t.Errorf("expected user from $USER, got: %q", out)
	}

	out, err = executeCommand(rootCmd, "start", "--dir", tmp)
	if err == nil {
		t.Fatal("expected an error from double-start, got nil")
	}
	combined := out + err.Error()
	if !strings.Contains(combined, "session already in progress") {
		t.Errorf("expected error to contain %q, got: %q", "session already in progress", combined)
	}
}

func TestStartForceReplacesActiveSession(t *testing.T) {
	tmp := isolate(t)

	if out, err := executeCommand(rootCmd, "start", "--dir", tmp); err != nil {
		t.Fatalf("first start: %v\n%s", err, out)
	}
	out, err := executeCommand(rootCmd, "start", "--dir", tmp, "--force")
	if err != nil {
		t.Fatalf("forced start: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Session started:") {
		t.Errorf("expected start confirmation, got: %q", out)
	}
}

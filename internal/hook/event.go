// Package hook decodes tool-invocation payloads sent by the host agent
// runtime into typed events.
package hook

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/fakeyudi/devpulse/internal/session"
)

// ErrInvalidPayload is returned when a payload is not a JSON object.
var ErrInvalidPayload = errors.New("invalid hook payload")

// Kind classifies a tool invocation.
type Kind string

const (
	KindRead    Kind = "read"
	KindEdit    Kind = "edit"
	KindCommand Kind = "command"
	KindAgent   Kind = "agent"
	KindOther   Kind = "other"

	// KindFileWrite is a file write observed outside the tool stream. It
	// is not a tool invocation and only counts as a modified file.
	KindFileWrite Kind = "file_write"
)

// Event is one tool invocation reported by the host runtime.
type Event struct {
	Tool             string
	Kind             Kind
	Success          bool
	FilePath         string
	LinesChanged     int
	Agent            string
	RuntimeSessionID string
}

// toolKinds maps known tool names to their kind. Unknown tools are
// KindOther and still count as executed commands.
var toolKinds = map[string]Kind{
	"Read":         KindRead,
	"Glob":         KindRead,
	"Grep":         KindRead,
	"LS":           KindRead,
	"NotebookRead": KindRead,
	"WebFetch":     KindRead,
	"Edit":         KindEdit,
	"MultiEdit":    KindEdit,
	"Write":        KindEdit,
	"NotebookEdit": KindEdit,
	"Bash":         KindCommand,
	"Task":         KindAgent,
	"Agent":        KindAgent,
}

// Parse decodes a raw payload.
func Parse(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return Event{}, fmt.Errorf("%w: not valid JSON", ErrInvalidPayload)
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return Event{}, fmt.Errorf("%w: expected an object", ErrInvalidPayload)
	}

	tool := strings.TrimSpace(root.Get("tool_name").String())
	if tool == "" {
		tool = strings.TrimSpace(root.Get("tool").String())
	}
	if tool == "" {
		return Event{}, fmt.Errorf("%w: missing tool_name", ErrInvalidPayload)
	}

	input := root.Get("tool_input")
	kind, ok := toolKinds[tool]
	if !ok {
		kind = KindOther
	}

	ev := Event{
		Tool:             tool,
		Kind:             kind,
		Success:          succeeded(root.Get("tool_response")),
		FilePath:         firstString(input, "file_path", "notebook_path", "path"),
		RuntimeSessionID: root.Get("session_id").String(),
	}

	switch kind {
	case KindEdit:
		ev.LinesChanged = changedLines(tool, input)
	case KindAgent:
		ev.Agent = firstString(input, "subagent_type", "agent", "name")
		if ev.Agent == "" {
			ev.Agent = "general-purpose"
		}
	}
	return ev, nil
}

// Read parses a payload from r.
func Read(r io.Reader) (Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Event{}, fmt.Errorf("reading hook payload: %w", err)
	}
	return Parse(data)
}

// Apply folds ev into m.
func Apply(m session.Metrics, ev Event) session.Metrics {
	m = m.Clone()
	if ev.Kind == KindFileWrite {
		m.FilesModified++
		m.LinesChanged += ev.LinesChanged
		m.Normalize()
		return m
	}
	m.CommandsExecuted++
	if !ev.Success {
		m.FailedCommands++
	}
	switch ev.Kind {
	case KindRead:
		m.FilesRead++
	case KindEdit:
		if ev.Success {
			m.FilesModified++
			m.LinesChanged += ev.LinesChanged
		}
	case KindAgent:
		m.AgentsUsed[ev.Agent]++
	}
	m.Normalize()
	return m
}

// succeeded inspects a tool response for the failure markers used by the
// supported runtimes. An absent response counts as success.
func succeeded(resp gjson.Result) bool {
	if !resp.Exists() {
		return true
	}
	if resp.Type == gjson.String {
		return !strings.HasPrefix(strings.ToLower(resp.Str), "error")
	}
	if v := resp.Get("is_error"); v.Exists() && v.Bool() {
		return false
	}
	if v := resp.Get("success"); v.Exists() && v.Type == gjson.False {
		return false
	}
	if v := resp.Get("error"); v.Exists() && v.Type != gjson.Null && v.String() != "" {
		return false
	}
	for _, key := range []string{"exit_code", "exitCode"} {
		if v := resp.Get(key); v.Exists() && v.Int() != 0 {
			return false
		}
	}
	if resp.Get("interrupted").Bool() {
		return false
	}
	return true
}

// changedLines counts the lines written by an edit tool.
func changedLines(tool string, input gjson.Result) int {
	switch tool {
	case "Write":
		return countLines(input.Get("content").String())
	case "MultiEdit":
		n := 0
		input.Get("edits").ForEach(func(_, e gjson.Result) bool {
			n += countLines(e.Get("new_string").String())
			return true
		})
		return n
	case "NotebookEdit":
		return countLines(input.Get("new_source").String())
	default:
		return countLines(input.Get("new_string").String())
	}
}

func countLines(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(s, "\n"), "\n") + 1
}

func firstString(obj gjson.Result, keys ...string) string {
	for _, k := range keys {
		if v := obj.Get(k); v.Type == gjson.String && v.Str != "" {
			return v.Str
		}
	}
	return ""
}

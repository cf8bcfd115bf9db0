// Package mcpserver exposes the on-demand productivity reports as MCP tools
// over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"

	"github.com/fakeyudi/devpulse/internal/lifecycle"
	"github.com/fakeyudi/devpulse/internal/report"
)

// Tool names.
const (
	ToolStatus          = "productivity_status"
	ToolAnomalies       = "detect_anomalies"
	ToolRecommendations = "recommendations"
	ToolTeamMetrics     = "team_metrics"
)

// Handlers serves the report tools for one invocation environment.
type Handlers struct {
	Builder *report.Builder
	Env     lifecycle.Env
	Logger  zerolog.Logger
}

// New creates the MCP server with every report tool registered.
func New(h *Handlers, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"devpulse",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	s.AddTool(mcp.NewTool(ToolStatus,
		mcp.WithDescription("Live productivity indicators of the active session, or of the last finished session when none is active."),
	), h.Status)

	s.AddTool(mcp.NewTool(ToolAnomalies,
		mcp.WithDescription("Compare the current session with the last 30 days of history and report deviations."),
	), h.Anomalies)

	s.AddTool(mcp.NewTool(ToolRecommendations,
		mcp.WithDescription("Prioritized suggestions for the current session."),
	), h.Recommendations)

	s.AddTool(mcp.NewTool(ToolTeamMetrics,
		mcp.WithDescription("Aggregate metrics across finalized sessions with a week-over-week trend."),
		mcp.WithNumber("days", mcp.Description("History window in days (default 90)")),
	), h.TeamMetrics)

	return s
}

// Serve runs s on stdin/stdout until the client disconnects.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func (h *Handlers) Status(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	r, err := h.Builder.Status(ctx, h.Env)
	if err != nil {
		return h.fail(req, err), nil
	}
	return jsonResult(map[string]any{
		"scope":      r.Scope,
		"session":    r.Session,
		"indicators": r.Indicators,
		"components": r.Components,
		"baseline":   r.Baseline,
	})
}

func (h *Handlers) Anomalies(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	anomalies, err := h.Builder.Anomalies(ctx, h.Env)
	if err != nil {
		return h.fail(req, err), nil
	}
	return jsonResult(map[string]any{
		"count":     len(anomalies),
		"anomalies": anomalies,
	})
}

func (h *Handlers) Recommendations(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	recs, err := h.Builder.Recommendations(ctx, h.Env)
	if err != nil {
		return h.fail(req, err), nil
	}
	return jsonResult(map[string]any{
		"count":           len(recs),
		"recommendations": recs,
	})
}

func (h *Handlers) TeamMetrics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := req.GetInt("days", 0)
	if days < 0 {
		return mcp.NewToolResultError("days must not be negative"), nil
	}
	tm, stats, err := h.Builder.Team(days)
	if err != nil {
		return h.fail(req, err), nil
	}
	return jsonResult(map[string]any{
		"team":    tm,
		"history": stats,
	})
}

func (h *Handlers) fail(req mcp.CallToolRequest, err error) *mcp.CallToolResult {
	h.Logger.Error().Err(err).Str("tool", req.Params.Name).Msg("tool call failed")
	return mcp.NewToolResultError(err.Error())
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding result: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

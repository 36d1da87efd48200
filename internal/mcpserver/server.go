// Copyright 2025 James Ross

// Package mcpserver exposes the dispatch tools to the upstream orchestrator
// over stdio. Tool-level failures are JSON payloads with success=false;
// Go errors never cross the boundary.
package mcpserver

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/dispatch"
)

// Server wraps the MCP server instance.
type Server struct {
	mcpServer *server.MCPServer
	core      *dispatch.Core
	log       *zap.Logger
}

// NewServer creates the MCP server with all dispatch tools registered.
func NewServer(core *dispatch.Core, version string, log *zap.Logger) *Server {
	s := server.NewMCPServer("aider-dispatch", version, server.WithLogging())
	srv := &Server{mcpServer: s, core: core, log: log}
	srv.registerTools()
	return srv
}

// Start runs the server in stdio mode (blocking).
func (s *Server) Start(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

func (s *Server) registerTools() {
	stringArray := map[string]any{"type": "string"}
	nestedArray := map[string]any{"type": "array", "items": map[string]any{"type": "string"}}

	s.mcpServer.AddTool(mcp.NewTool("plan",
		mcp.WithDescription("Produce planning guidance for breaking a project into small parallel coding tasks."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The project requirements to plan for")),
	), s.handlePlan)

	s.mcpServer.AddTool(mcp.NewTool("plan_from_scratch",
		mcp.WithDescription("Produce planning guidance for a brand-new project, including dependency research steps."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The project requirements to plan for")),
	), s.handlePlanFromScratch)

	s.mcpServer.AddTool(mcp.NewTool("code_with_ai",
		mcp.WithDescription("Run one AI coding task against the editable files. The model is chosen automatically from the prompt unless overridden."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Natural language description of the code change")),
		mcp.WithString("working_dir", mcp.Required(), mcp.Description("Directory holding the version-controlled files")),
		mcp.WithArray("editable_files", mcp.Required(), mcp.Description("Files the AI may edit"), mcp.Items(stringArray)),
		mcp.WithArray("readonly_files", mcp.Description("Files readable for context only"), mcp.Items(stringArray)),
		mcp.WithString("model", mcp.Description("Model override; omit for automatic selection")),
		mcp.WithArray("target_elements", mcp.Description("Function/class names to focus context extraction on"), mcp.Items(stringArray)),
	), s.handleCodeWithAI)

	s.mcpServer.AddTool(mcp.NewTool("code_with_multiple_ai",
		mcp.WithDescription("Run several AI coding tasks, in parallel when their editable files do not conflict."),
		mcp.WithArray("prompts", mcp.Required(), mcp.Description("One prompt per task"), mcp.Items(stringArray)),
		mcp.WithString("working_dir", mcp.Required(), mcp.Description("Directory holding the version-controlled files")),
		mcp.WithArray("editable_files_list", mcp.Required(), mcp.Description("One editable-file list per task"), mcp.Items(nestedArray)),
		mcp.WithArray("readonly_files_list", mcp.Description("One readonly-file list per task"), mcp.Items(nestedArray)),
		mcp.WithArray("models", mcp.Description("Optional model per task; empty entries select automatically"), mcp.Items(stringArray)),
		mcp.WithNumber("max_workers", mcp.Description("Cap on parallel workers")),
		mcp.WithBoolean("parallel", mcp.Description("Run tasks in parallel (default true)"), mcp.DefaultBool(true)),
		mcp.WithString("conflict_handling", mcp.Description("What to do when tasks share editable files"),
			mcp.DefaultString("auto"), mcp.Enum("auto", "warn", "ignore")),
	), s.handleCodeWithMultipleAI)

	s.mcpServer.AddTool(mcp.NewTool("get_cost_summary",
		mcp.WithDescription("Summarize recorded task costs over a trailing window."),
		mcp.WithNumber("days", mcp.Description("Window in days (default 7)"), mcp.DefaultNumber(7)),
	), s.handleCostSummary)

	s.mcpServer.AddTool(mcp.NewTool("estimate_task_cost",
		mcp.WithDescription("Estimate the cost of a task before running it."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("The task prompt")),
		mcp.WithArray("file_paths", mcp.Description("Files whose contents count toward input tokens"), mcp.Items(stringArray)),
		mcp.WithString("model", mcp.Description("Model override; omit for automatic selection")),
	), s.handleEstimateCost)

	s.mcpServer.AddTool(mcp.NewTool("get_budget_status",
		mcp.WithDescription("Report budget limits, current usage and remaining headroom."),
	), s.handleBudgetStatus)

	s.mcpServer.AddTool(mcp.NewTool("export_cost_report",
		mcp.WithDescription("Export a detailed cost report. CSV lands in the costs directory."),
		mcp.WithNumber("days", mcp.Description("Window in days (default 30)"), mcp.DefaultNumber(30)),
		mcp.WithString("format", mcp.Description("Report format"),
			mcp.DefaultString("json"), mcp.Enum("json", "summary", "csv")),
	), s.handleExportReport)

	s.mcpServer.AddTool(mcp.NewTool("get_system_health",
		mcp.WithDescription("Report dispatch health: breaker state, queue depth, resource pressure and ledger recency."),
	), s.handleSystemHealth)
}

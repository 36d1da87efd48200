// Copyright 2025 James Ross
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/flyingrobots/aider-dispatch/internal/dispatch"
	"github.com/flyingrobots/aider-dispatch/internal/router"
)

func (s *Server) handleCodeWithAI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	task := dispatch.Task{
		Prompt:         stringArg(args, "prompt", ""),
		WorkingDir:     stringArg(args, "working_dir", ""),
		EditableFiles:  stringSlice(args, "editable_files"),
		ReadonlyFiles:  stringSlice(args, "readonly_files"),
		Model:          stringArg(args, "model", ""),
		TargetElements: stringSlice(args, "target_elements"),
	}
	if task.Prompt == "" {
		return jsonError("Error: prompt is required", "ValidationError"), nil
	}
	result := s.core.RunSingle(ctx, task, 0)
	return jsonResult(result), nil
}

func (s *Server) handleCodeWithMultipleAI(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	batch := dispatch.Batch{
		Prompts:           stringSlice(args, "prompts"),
		WorkingDir:        stringArg(args, "working_dir", ""),
		EditableFilesList: nestedStringSlice(args, "editable_files_list"),
		ReadonlyFilesList: nestedStringSlice(args, "readonly_files_list"),
		Models:            stringSlice(args, "models"),
		MaxWorkers:        intArg(args, "max_workers", 0),
		Parallel:          boolArg(args, "parallel", true),
		ConflictHandling:  stringArg(args, "conflict_handling", "auto"),
	}
	if batch.WorkingDir == "" {
		return jsonError("Error: working_dir is required", "ValidationError"), nil
	}
	result, err := s.core.RunBatch(ctx, batch)
	if err != nil {
		return jsonError("Error: "+err.Error(), "ValidationError"), nil
	}
	return jsonResult(result), nil
}

func (s *Server) handleCostSummary(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	days := intArg(getArgs(request), "days", 7)
	summary := s.core.Ledger().Summarize(days)
	return jsonResult(map[string]any{"success": true, "summary": summary}), nil
}

func (s *Server) handleEstimateCost(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	prompt := stringArg(args, "prompt", "")
	if prompt == "" {
		return jsonError("Error: prompt is required", "ValidationError"), nil
	}
	cfg := s.core.Config()
	model := stringArg(args, "model", "")
	if model == "" {
		model = router.New(cfg.Models, s.log).Select(prompt, "")
	}

	var contents []string
	for _, path := range stringSlice(args, "file_paths") {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		contents = append(contents, string(data))
	}

	gate := s.core.Gate()
	est := gate.Estimate(prompt, contents, model, router.TaskKind(prompt))
	ok, msg := gate.Admit(est)
	if msg == "" {
		msg = "Cost is within budget limits"
	}
	return jsonResult(map[string]any{
		"success":       true,
		"cost_estimate": est,
		"budget_check": map[string]any{
			"within_budget": ok,
			"message":       msg,
		},
		"human_readable": map[string]any{
			"estimated_cost":  fmt.Sprintf("$%.4f", est.TotalCost),
			"model_used":      model,
			"token_breakdown": fmt.Sprintf("%d input + ~%d output = %d total tokens", est.InputTokens, est.EstimatedOutputTokens, est.TotalTokens),
		},
	}), nil
}

func (s *Server) handleBudgetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	st := s.core.Gate().Budget()
	return jsonResult(map[string]any{"success": true, "budget_status": st}), nil
}

func (s *Server) handleExportReport(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := getArgs(request)
	days := intArg(args, "days", 30)
	format := stringArg(args, "format", "json")
	ledger := s.core.Ledger()

	switch format {
	case "summary":
		summary := ledger.Summarize(days)
		lines := []string{
			fmt.Sprintf("Cost Report - Last %d Days", days),
			strings.Repeat("=", 40),
			fmt.Sprintf("Total Spent: $%.4f", summary.TotalCost),
			fmt.Sprintf("Tasks Completed: %d", summary.TaskCount),
			fmt.Sprintf("Average per Task: $%.4f", summary.AverageCost),
			fmt.Sprintf("Total Tokens: %d", summary.TotalTokens),
			"",
			"Cost by Model:",
		}
		for model, stats := range summary.CostByModel {
			lines = append(lines, fmt.Sprintf("  %s: $%.4f (%d tasks)", model, stats.TotalCost, stats.TaskCount))
		}
		return newTextResult(strings.Join(lines, "\n")), nil
	case "csv":
		path, records, err := ledger.ExportCSV(days)
		if err != nil {
			return jsonError("Error: CSV export failed: "+err.Error(), "ExportError"), nil
		}
		return jsonResult(map[string]any{
			"success":     true,
			"message":     "Cost data exported to CSV",
			"file":        path,
			"records":     records,
			"period_days": days,
		}), nil
	default:
		return jsonResult(map[string]any{
			"success":       true,
			"period_days":   days,
			"summary":       ledger.Summarize(days),
			"budget_status": s.core.Gate().Budget(),
		}), nil
	}
}

func (s *Server) handleSystemHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	state, failures, lastFailure := s.core.Breaker().Snapshot()
	snap := s.core.Monitor().Current()
	queueDepth := s.core.Queue().Depth()

	status := "healthy"
	var issues []string
	if state.String() == "OPEN" {
		status = "unhealthy"
		issues = append(issues, "circuit breaker is open; the editor CLI is failing")
	} else if state.String() == "HALF_OPEN" {
		status = "degraded"
		issues = append(issues, "circuit breaker is probing after failures")
	}
	if snap.Degraded {
		status = worstOf(status, "degraded")
		issues = append(issues, fmt.Sprintf("resource pressure: cpu %.1f%%, memory %.1f%%", snap.CPUPercent, snap.MemoryPercent))
	}
	cfg := s.core.Config()
	if queueDepth >= cfg.Resilience.MaxQueueSize {
		status = worstOf(status, "degraded")
		issues = append(issues, "task queue is full")
	}

	health := map[string]any{
		"success": true,
		"status":  status,
		"issues":  issues,
		"circuit_breaker": map[string]any{
			"state":             state.String(),
			"failure_count":     failures,
			"last_failure_time": formatTime(lastFailure),
		},
		"queue": map[string]any{
			"depth":    queueDepth,
			"capacity": cfg.Resilience.MaxQueueSize,
		},
		"resources": snap,
		"recent_activity": map[string]any{
			"tasks_last_24h": s.core.Ledger().Summarize(1).TaskCount,
		},
	}
	return jsonResult(health), nil
}

func worstOf(a, b string) string {
	rank := map[string]int{"healthy": 0, "degraded": 1, "unhealthy": 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}

// getArgs safely extracts the arguments map from a CallToolRequest.
func getArgs(request mcp.CallToolRequest) map[string]interface{} {
	if request.Params.Arguments == nil {
		return map[string]interface{}{}
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return map[string]interface{}{}
	}
	return args
}

func stringArg(args map[string]interface{}, key, def string) string {
	if v, ok := args[key].(string); ok && v != "" {
		return v
	}
	return def
}

func intArg(args map[string]interface{}, key string, def int) int {
	if v, ok := args[key].(float64); ok {
		return int(v)
	}
	return def
}

func boolArg(args map[string]interface{}, key string, def bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return def
}

func stringSlice(args map[string]interface{}, key string) []string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func nestedStringSlice(args map[string]interface{}, key string) [][]string {
	raw, ok := args[key].([]interface{})
	if !ok {
		return nil
	}
	out := make([][]string, 0, len(raw))
	for _, item := range raw {
		inner, ok := item.([]interface{})
		if !ok {
			out = append(out, nil)
			continue
		}
		row := make([]string, 0, len(inner))
		for _, cell := range inner {
			if s, ok := cell.(string); ok {
				row = append(row, s)
			}
		}
		out = append(out, row)
	}
	return out
}

// jsonResult marshals v as the tool's text payload.
func jsonResult(v any) *mcp.CallToolResult {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return jsonError("Error: failed to encode result: "+err.Error(), "EncodingError")
	}
	return newTextResult(string(data))
}

// jsonError renders a structured failure. The error always reaches the
// orchestrator as a JSON value, never as a transport-level fault.
func jsonError(msg, errType string) *mcp.CallToolResult {
	data, _ := json.Marshal(map[string]any{
		"success":    false,
		"error":      msg,
		"error_type": errType,
	})
	return newTextResult(string(data))
}

func newTextResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: text},
		},
	}
}

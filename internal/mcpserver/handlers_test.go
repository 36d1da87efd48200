// Copyright 2025 James Ross
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/costs"
	"github.com/flyingrobots/aider-dispatch/internal/dispatch"
	"github.com/flyingrobots/aider-dispatch/internal/monitor"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	overlay := filepath.Join(dir, "overlay.yaml")
	content := fmt.Sprintf("cost:\n  ledger_dir: %q\n", filepath.Join(dir, "costs"))
	require.NoError(t, os.WriteFile(overlay, []byte(content), 0o644))
	mgr, err := config.Load(overlay)
	require.NoError(t, err)
	clk := clock.Real()
	ledger, err := costs.OpenLedger(mgr.Current().Cost.LedgerDir, clk, nil)
	require.NoError(t, err)
	core := dispatch.NewCore(mgr, ledger, monitor.New(mgr.Current().Resilience, nil), nil, clk)
	return NewServer(core, "test", nil)
}

func request(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{Params: mcp.CallToolParams{Arguments: args}}
}

func textOf(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func decode(t *testing.T, res *mcp.CallToolResult) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, res)), &m))
	return m
}

func TestCodeWithAIMissingPrompt(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCodeWithAI(context.Background(), request(map[string]interface{}{}))
	require.NoError(t, err, "tool errors must be values, not Go errors")
	m := decode(t, res)
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "Error:")
}

func TestCodeWithAIMissingWorkingDir(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCodeWithAI(context.Background(), request(map[string]interface{}{
		"prompt":         "fix things",
		"editable_files": []interface{}{"a.py"},
	}))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "working_dir")
}

func TestCodeWithMultipleAIMismatchedLists(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCodeWithMultipleAI(context.Background(), request(map[string]interface{}{
		"prompts":             []interface{}{"a", "b"},
		"working_dir":         t.TempDir(),
		"editable_files_list": []interface{}{[]interface{}{"x.py"}},
	}))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, false, m["success"])
	assert.Contains(t, m["error"], "must match length of prompts")
}

func TestEstimateTaskCost(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleEstimateCost(context.Background(), request(map[string]interface{}{
		"prompt": "fix the login_user function",
	}))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	est := m["cost_estimate"].(map[string]any)
	assert.Greater(t, est["input_tokens"].(float64), 0.0)
	assert.Greater(t, est["estimated_output_tokens"].(float64), 0.0)
	check := m["budget_check"].(map[string]any)
	assert.Equal(t, true, check["within_budget"])
}

func TestBudgetStatusTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleBudgetStatus(context.Background(), request(nil))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	st := m["budget_status"].(map[string]any)
	limits := st["budget_limits"].(map[string]any)
	assert.Equal(t, 5.0, limits["max_cost_per_task"])
}

func TestCostSummaryTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleCostSummary(context.Background(), request(map[string]interface{}{"days": float64(7)}))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	summary := m["summary"].(map[string]any)
	assert.Equal(t, 0.0, summary["total_cost"])
	assert.Equal(t, 7.0, summary["period_days"])
}

func TestExportReportFormats(t *testing.T) {
	s := newTestServer(t)

	res, err := s.handleExportReport(context.Background(), request(map[string]interface{}{"format": "summary"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "Cost Report - Last 30 Days")

	res, err = s.handleExportReport(context.Background(), request(map[string]interface{}{"format": "csv"}))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	assert.Contains(t, m["file"], "cost_export_")

	res, err = s.handleExportReport(context.Background(), request(map[string]interface{}{}))
	require.NoError(t, err)
	m = decode(t, res)
	assert.Equal(t, true, m["success"])
	assert.Contains(t, m, "budget_status")
}

func TestSystemHealthTool(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handleSystemHealth(context.Background(), request(nil))
	require.NoError(t, err)
	m := decode(t, res)
	assert.Equal(t, true, m["success"])
	assert.Equal(t, "healthy", m["status"])
	cb := m["circuit_breaker"].(map[string]any)
	assert.Equal(t, "CLOSED", cb["state"])
}

func TestPlanTools(t *testing.T) {
	s := newTestServer(t)
	res, err := s.handlePlan(context.Background(), request(map[string]interface{}{"prompt": "build a snake game"}))
	require.NoError(t, err)
	text := textOf(t, res)
	assert.Contains(t, text, "Requirements: build a snake game")
	assert.Contains(t, text, "code_with_multiple_ai")

	res, err = s.handlePlanFromScratch(context.Background(), request(map[string]interface{}{"prompt": "build a snake game"}))
	require.NoError(t, err)
	assert.Contains(t, textOf(t, res), "## Preparation")
}

func TestArgHelpers(t *testing.T) {
	args := map[string]interface{}{
		"s":      "str",
		"n":      float64(4),
		"b":      true,
		"list":   []interface{}{"a", "b"},
		"nested": []interface{}{[]interface{}{"x"}, []interface{}{"y", "z"}},
	}
	assert.Equal(t, "str", stringArg(args, "s", ""))
	assert.Equal(t, "dflt", stringArg(args, "missing", "dflt"))
	assert.Equal(t, 4, intArg(args, "n", 0))
	assert.Equal(t, 9, intArg(args, "missing", 9))
	assert.Equal(t, true, boolArg(args, "b", false))
	assert.Equal(t, []string{"a", "b"}, stringSlice(args, "list"))
	assert.Equal(t, [][]string{{"x"}, {"y", "z"}}, nestedStringSlice(args, "nested"))
	assert.Nil(t, stringSlice(args, "missing"))
}

// Copyright 2025 James Ross
package costs

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
)

func testRecord(id string, at time.Time, cost float64) Record {
	return Record{
		TaskID:          id,
		TaskName:        "Test Task",
		Model:           "gpt-4.1-mini",
		Timestamp:       at,
		DurationSeconds: 12.5,
		InputTokens:     1000,
		OutputTokens:    500,
		InputCost:       cost * 2 / 3,
		OutputCost:      cost / 3,
		TotalCost:       cost,
	}
}

func TestLedgerRoundTrip(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	l.Append(testRecord("aaaa", clk.Now().Add(-time.Hour), 0.0123))
	l.Append(testRecord("bbbb", clk.Now(), 0.5))

	reloaded, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	got := reloaded.Snapshot()
	require.Len(t, got, 2)
	// newest first
	assert.Equal(t, "bbbb", got[0].TaskID)
	assert.Equal(t, "aaaa", got[1].TaskID)
	assert.InDelta(t, 0.5, got[0].TotalCost, 1e-8)
}

func TestLedgerSaveIsByteStable(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	l.Append(testRecord("aaaa", clk.Now(), 0.00000001))

	path := filepath.Join(dir, "costs_2026-08.json")
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	reloaded, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	require.NoError(t, reloaded.Flush())
	second, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	// fixed notation on disk, no scientific form
	assert.NotContains(t, string(first), "e-")
}

func TestLedgerBackupBeforeOverwrite(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	l.Append(testRecord("aaaa", clk.Now(), 0.1))
	l.Append(testRecord("bbbb", clk.Now(), 0.2))

	bak := filepath.Join(dir, "costs_2026-08.json.bak")
	data, err := os.ReadFile(bak)
	require.NoError(t, err)
	var recs []diskRecord
	require.NoError(t, json.Unmarshal(data, &recs))
	assert.Len(t, recs, 1)
}

func TestLedgerNeverTouchesPriorMonths(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	prior := `[{"task_id":"old1","task_name":"Old","model":"m","timestamp":"2026-07-02T00:00:00Z","duration_seconds":1,"input_tokens":1,"output_tokens":1,"input_cost":0.00000001,"output_cost":0.00000001,"total_cost":0.00000002}]`
	priorPath := filepath.Join(dir, "costs_2026-07.json")
	require.NoError(t, os.WriteFile(priorPath, []byte(prior), 0o644))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	require.Len(t, l.Snapshot(), 1)

	l.Append(testRecord("new1", clk.Now(), 0.3))
	after, err := os.ReadFile(priorPath)
	require.NoError(t, err)
	assert.Equal(t, prior, string(after))

	// current-month file holds only the new record
	data, err := os.ReadFile(filepath.Join(dir, "costs_2026-08.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "new1")
	assert.NotContains(t, string(data), "old1")
}

func TestLedgerLoadsThreeMonths(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	for i, month := range []string{"2026-05", "2026-06", "2026-07", "2026-08"} {
		rec := fmt.Sprintf(`[{"task_id":"t%d","task_name":"T","model":"m","timestamp":"%s-10T00:00:00Z","duration_seconds":1,"input_tokens":1,"output_tokens":1,"input_cost":0.00000000,"output_cost":0.00000000,"total_cost":0.00000000}]`, i, month)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "costs_"+month+".json"), []byte(rec), 0o644))
	}

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	got := l.Snapshot()
	require.Len(t, got, 3) // current plus two prior months; 2026-05 excluded
	for _, r := range got {
		assert.NotEqual(t, "t0", r.TaskID)
	}
}

func TestSummarize(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	recent := testRecord("recent", clk.Now().Add(-2*time.Hour), 0.3)
	old := testRecord("old", clk.Now().Add(-10*24*time.Hour), 1.0)
	old.Model = "gemini/gemini-2.5-pro"
	l.Append(recent)
	l.Append(old)

	s := l.Summarize(7)
	assert.Equal(t, 1, s.TaskCount)
	assert.InDelta(t, 0.3, s.TotalCost, 1e-9)
	assert.Equal(t, 1500, s.TotalTokens)
	assert.Equal(t, 7, s.PeriodDays)
	assert.Contains(t, s.CostByModel, "gpt-4.1-mini")
	assert.NotContains(t, s.CostByModel, "gemini/gemini-2.5-pro")

	s30 := l.Summarize(30)
	assert.Equal(t, 2, s30.TaskCount)
	assert.InDelta(t, 0.65, s30.AverageCost, 1e-9)
}

func TestExportCSV(t *testing.T) {
	dir := t.TempDir()
	clk := clock.NewManual(time.Date(2026, 8, 15, 10, 30, 0, 0, time.UTC))

	l, err := OpenLedger(dir, clk, nil)
	require.NoError(t, err)
	l.Append(testRecord("csv1", clk.Now(), 0.25))

	path, n, err := l.ExportCSV(30)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, filepath.Join(dir, "cost_export_20260815_103000.csv"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "timestamp,task_id,task_name,model,input_tokens,output_tokens,total_tokens,input_cost,output_cost,total_cost,duration_seconds", lines[0])
	assert.Contains(t, lines[1], "csv1")
	assert.Contains(t, lines[1], "1500")
}

func TestRecordCostIdentity(t *testing.T) {
	r := testRecord("x", time.Now(), 0.9)
	assert.Less(t, math.Abs(r.TotalCost-(r.InputCost+r.OutputCost)), 1e-9)
}

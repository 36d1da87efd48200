// Copyright 2025 James Ross
package costs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Record is one executed task's cost entry. Monetary fields are USD.
type Record struct {
	TaskID          string    `json:"task_id"`
	TaskName        string    `json:"task_name"`
	Model           string    `json:"model"`
	Timestamp       time.Time `json:"timestamp"`
	DurationSeconds float64   `json:"duration_seconds"`
	InputTokens     int       `json:"input_tokens"`
	OutputTokens    int       `json:"output_tokens"`
	InputCost       float64   `json:"input_cost"`
	OutputCost      float64   `json:"output_cost"`
	TotalCost       float64   `json:"total_cost"`
}

// diskRecord is the storage form: money rounded to 8 decimals and rendered
// in fixed notation so ledger files never contain scientific notation.
type diskRecord struct {
	TaskID          string  `json:"task_id"`
	TaskName        string  `json:"task_name"`
	Model           string  `json:"model"`
	Timestamp       string  `json:"timestamp"`
	DurationSeconds float64 `json:"duration_seconds"`
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	InputCost       usd     `json:"input_cost"`
	OutputCost      usd     `json:"output_cost"`
	TotalCost       usd     `json:"total_cost"`
}

type usd float64

func (u usd) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatFloat(float64(u), 'f', 8, 64)), nil
}

func (u *usd) UnmarshalJSON(b []byte) error {
	f, err := strconv.ParseFloat(string(b), 64)
	if err != nil {
		return err
	}
	*u = usd(f)
	return nil
}

func toDisk(r Record) diskRecord {
	return diskRecord{
		TaskID:          r.TaskID,
		TaskName:        r.TaskName,
		Model:           r.Model,
		Timestamp:       r.Timestamp.Format(time.RFC3339Nano),
		DurationSeconds: r.DurationSeconds,
		InputTokens:     r.InputTokens,
		OutputTokens:    r.OutputTokens,
		InputCost:       usd(round8(r.InputCost)),
		OutputCost:      usd(round8(r.OutputCost)),
		TotalCost:       usd(round8(r.TotalCost)),
	}
}

func fromDisk(d diskRecord) (Record, error) {
	ts, err := time.Parse(time.RFC3339Nano, d.Timestamp)
	if err != nil {
		return Record{}, fmt.Errorf("parse timestamp %q: %w", d.Timestamp, err)
	}
	return Record{
		TaskID:          d.TaskID,
		TaskName:        d.TaskName,
		Model:           d.Model,
		Timestamp:       ts,
		DurationSeconds: d.DurationSeconds,
		InputTokens:     d.InputTokens,
		OutputTokens:    d.OutputTokens,
		InputCost:       float64(d.InputCost),
		OutputCost:      float64(d.OutputCost),
		TotalCost:       float64(d.TotalCost),
	}, nil
}

func round8(f float64) float64 {
	s := strconv.FormatFloat(f, 'f', 8, 64)
	r, _ := strconv.ParseFloat(s, 64)
	return r
}

// Ledger owns the authoritative cost records. A warm in-memory list mirrors
// the current month plus up to two prior months, newest first. Writes are
// serialized; readers snapshot under the lock.
type Ledger struct {
	mu      sync.Mutex
	dir     string
	clk     clock.Clock
	log     *zap.Logger
	records []Record
}

// OpenLedger loads the current month and up to two prior months from dir,
// creating dir if needed.
func OpenLedger(dir string, clk clock.Clock, log *zap.Logger) (*Ledger, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	l := &Ledger{dir: dir, clk: clk, log: log}

	now := clk.Now()
	for back := 0; back <= 2; back++ {
		month := now.AddDate(0, -back, 0)
		path := l.monthFile(month)
		recs, err := loadMonth(path)
		if err != nil {
			if log != nil {
				log.Warn("skipping unreadable ledger file", obs.String("file", path), obs.Err(err))
			}
			continue
		}
		l.records = append(l.records, recs...)
	}
	sort.SliceStable(l.records, func(i, j int) bool {
		return l.records[i].Timestamp.After(l.records[j].Timestamp)
	})
	return l, nil
}

func (l *Ledger) monthFile(t time.Time) string {
	return filepath.Join(l.dir, fmt.Sprintf("costs_%s.json", t.Format("2006-01")))
}

func loadMonth(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var disk []diskRecord
	if err := json.Unmarshal(data, &disk); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	recs := make([]Record, 0, len(disk))
	for _, d := range disk {
		r, err := fromDisk(d)
		if err != nil {
			return nil, err
		}
		recs = append(recs, r)
	}
	return recs, nil
}

// Append records a task cost and snapshots the current month to disk.
// Persistence failures are logged, never returned: losing a ledger write
// must not fail the request.
func (l *Ledger) Append(r Record) {
	l.mu.Lock()
	l.records = append([]Record{r}, l.records...)
	sort.SliceStable(l.records, func(i, j int) bool {
		return l.records[i].Timestamp.After(l.records[j].Timestamp)
	})
	err := l.saveLocked()
	l.mu.Unlock()
	if err != nil && l.log != nil {
		l.log.Warn("ledger save failed", obs.Err(err))
	}
}

// Flush writes the current month to disk.
func (l *Ledger) Flush() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked()
}

// saveLocked writes only current-month records; prior-month files are never
// touched. The existing file is copied to <name>.bak before overwrite.
func (l *Ledger) saveLocked() error {
	now := l.clk.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	var disk []diskRecord
	for i := len(l.records) - 1; i >= 0; i-- {
		if !l.records[i].Timestamp.Before(monthStart) {
			disk = append(disk, toDisk(l.records[i]))
		}
	}
	// The warm list is newest-first; iterating it backwards leaves the
	// stored file oldest-first, which keeps appends as stable diffs.
	if disk == nil {
		disk = []diskRecord{}
	}

	path := l.monthFile(now)
	if _, err := os.Stat(path); err == nil {
		if err := copyFile(path, path+".bak"); err != nil && l.log != nil {
			l.log.Warn("ledger backup failed", obs.Err(err))
		}
	}

	data, err := json.MarshalIndent(disk, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// Snapshot returns a copy of the warm list, newest first.
func (l *Ledger) Snapshot() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// ModelSummary aggregates one model's share of a summary period.
type ModelSummary struct {
	TotalCost   float64 `json:"total_cost"`
	TaskCount   int     `json:"task_count"`
	TotalTokens int     `json:"total_tokens"`
}

// Summary is the aggregate over a trailing window of days.
type Summary struct {
	TotalCost   float64                 `json:"total_cost"`
	TaskCount   int                     `json:"task_count"`
	AverageCost float64                 `json:"average_cost"`
	TotalTokens int                     `json:"total_tokens"`
	PeriodDays  int                     `json:"period_days"`
	CostByModel map[string]ModelSummary `json:"cost_by_model"`
}

// Summarize aggregates records newer than now-days.
func (l *Ledger) Summarize(days int) Summary {
	cutoff := l.clk.Now().AddDate(0, 0, -days)
	s := Summary{PeriodDays: days, CostByModel: map[string]ModelSummary{}}
	for _, r := range l.Snapshot() {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		s.TotalCost += r.TotalCost
		s.TaskCount++
		s.TotalTokens += r.InputTokens + r.OutputTokens
		ms := s.CostByModel[r.Model]
		ms.TotalCost += r.TotalCost
		ms.TaskCount++
		ms.TotalTokens += r.InputTokens + r.OutputTokens
		s.CostByModel[r.Model] = ms
	}
	if s.TaskCount > 0 {
		s.AverageCost = s.TotalCost / float64(s.TaskCount)
	}
	return s
}

// ExportCSV writes records from the trailing window to a timestamped CSV in
// the ledger directory and returns its path.
func (l *Ledger) ExportCSV(days int) (string, int, error) {
	cutoff := l.clk.Now().AddDate(0, 0, -days)
	path := filepath.Join(l.dir, fmt.Sprintf("cost_export_%s.csv", l.clk.Now().Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", 0, fmt.Errorf("create export: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"timestamp", "task_id", "task_name", "model", "input_tokens", "output_tokens",
		"total_tokens", "input_cost", "output_cost", "total_cost", "duration_seconds"}
	if err := w.Write(header); err != nil {
		return "", 0, err
	}
	n := 0
	for _, r := range l.Snapshot() {
		if r.Timestamp.Before(cutoff) {
			continue
		}
		row := []string{
			r.Timestamp.Format(time.RFC3339Nano),
			r.TaskID,
			r.TaskName,
			r.Model,
			strconv.Itoa(r.InputTokens),
			strconv.Itoa(r.OutputTokens),
			strconv.Itoa(r.InputTokens + r.OutputTokens),
			strconv.FormatFloat(round8(r.InputCost), 'f', 8, 64),
			strconv.FormatFloat(round8(r.OutputCost), 'f', 8, 64),
			strconv.FormatFloat(round8(r.TotalCost), 'f', 8, 64),
			strconv.FormatFloat(r.DurationSeconds, 'f', -1, 64),
		}
		if err := w.Write(row); err != nil {
			return "", 0, err
		}
		n++
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", 0, err
	}
	return path, n, nil
}

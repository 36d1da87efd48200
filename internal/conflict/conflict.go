// Copyright 2025 James Ross

// Package conflict detects editable files shared between tasks submitted in
// one batch. Two tasks conflict when any of their editable paths normalize
// to the same absolute file, symlinks included.
package conflict

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Task pairs a task identifier with its editable paths.
type Task struct {
	ID    string
	Paths []string
}

// Pair names two conflicting tasks and the files they share.
type Pair struct {
	TaskA       string   `json:"task_a"`
	TaskB       string   `json:"task_b"`
	SharedPaths []string `json:"shared_paths"`
}

// Report is the detection outcome.
type Report struct {
	HasConflicts  bool                `json:"has_conflicts"`
	PathsByTask   map[string][]string `json:"paths_by_task"`
	TasksByPath   map[string][]string `json:"tasks_by_path"`
	Pairs         []Pair              `json:"conflict_pairs"`
	SkippedPaths  []string            `json:"skipped_paths,omitempty"`
	TimedOut      bool                `json:"timed_out,omitempty"`
	ConflictFiles []string            `json:"conflict_files"`
}

// Detector normalizes paths relative to a working directory under a
// wall-clock budget.
type Detector struct {
	workingDir string
	timeout    time.Duration
	clk        clock.Clock
	log        *zap.Logger
}

func New(workingDir string, timeout time.Duration, clk clock.Clock, log *zap.Logger) *Detector {
	return &Detector{workingDir: workingDir, timeout: timeout, clk: clk, log: log}
}

// Detect builds the path-sharing report for tasks. Invalid paths are skipped
// with a warning; hitting the timeout returns partial results flagged
// TimedOut rather than an error.
func (d *Detector) Detect(tasks []Task) Report {
	rep := Report{
		PathsByTask: map[string][]string{},
		TasksByPath: map[string][]string{},
	}
	deadline := d.clk.Now().Add(d.timeout)

	for _, t := range tasks {
		if d.timeout > 0 && d.clk.Now().After(deadline) {
			rep.TimedOut = true
			break
		}
		seen := map[string]bool{}
		for _, p := range t.Paths {
			norm, err := d.normalize(p)
			if err != nil {
				rep.SkippedPaths = append(rep.SkippedPaths, p)
				if d.log != nil {
					d.log.Warn("skipping path in conflict detection",
						obs.String("task", t.ID), obs.String("path", p), obs.Err(err))
				}
				continue
			}
			if seen[norm] {
				continue
			}
			seen[norm] = true
			rep.PathsByTask[t.ID] = append(rep.PathsByTask[t.ID], norm)
			rep.TasksByPath[norm] = append(rep.TasksByPath[norm], t.ID)
		}
	}

	for path, ids := range rep.TasksByPath {
		if len(ids) >= 2 {
			rep.HasConflicts = true
			rep.ConflictFiles = append(rep.ConflictFiles, path)
		}
	}
	sort.Strings(rep.ConflictFiles)

	// pairwise matrix over tasks sharing at least one file
	shared := map[[2]string][]string{}
	for _, path := range rep.ConflictFiles {
		ids := rep.TasksByPath[path]
		for i := 0; i < len(ids); i++ {
			for j := i + 1; j < len(ids); j++ {
				k := [2]string{ids[i], ids[j]}
				shared[k] = append(shared[k], path)
			}
		}
	}
	for k, paths := range shared {
		sort.Strings(paths)
		rep.Pairs = append(rep.Pairs, Pair{TaskA: k[0], TaskB: k[1], SharedPaths: paths})
	}
	sort.Slice(rep.Pairs, func(i, j int) bool {
		if rep.Pairs[i].TaskA != rep.Pairs[j].TaskA {
			return rep.Pairs[i].TaskA < rep.Pairs[j].TaskA
		}
		return rep.Pairs[i].TaskB < rep.Pairs[j].TaskB
	})
	return rep
}

// normalize resolves p against the working directory, follows symlinks and
// canonicalizes. Nonexistent files keep their cleaned absolute path so new
// files still collide by name.
func (d *Detector) normalize(p string) (string, error) {
	if p == "" {
		return "", fmt.Errorf("empty path")
	}
	abs := p
	if !filepath.IsAbs(p) {
		abs = filepath.Join(d.workingDir, p)
	}
	abs = filepath.Clean(abs)
	resolved, err := filepath.EvalSymlinks(abs)
	if err == nil {
		return resolved, nil
	}
	// The parent may exist even when the file does not yet.
	dir, base := filepath.Split(abs)
	if rdir, derr := filepath.EvalSymlinks(filepath.Clean(dir)); derr == nil {
		return filepath.Join(rdir, base), nil
	}
	return abs, nil
}

// Describe renders the report at the requested verbosity
// (minimal | standard | verbose).
func Describe(rep Report, verbosity string) string {
	if !rep.HasConflicts {
		return "No file conflicts detected."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Conflicts detected on %d file(s).", len(rep.ConflictFiles))
	if verbosity == "minimal" {
		return b.String()
	}
	for _, p := range rep.Pairs {
		fmt.Fprintf(&b, "\n  tasks %s and %s share: %s", p.TaskA, p.TaskB, strings.Join(p.SharedPaths, ", "))
	}
	if verbosity == "verbose" {
		for id, paths := range rep.PathsByTask {
			fmt.Fprintf(&b, "\n  task %s edits: %s", id, strings.Join(paths, ", "))
		}
		if rep.TimedOut {
			b.WriteString("\n  detection timed out; results are partial")
		}
	}
	return b.String()
}

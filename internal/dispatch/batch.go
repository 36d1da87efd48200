// Copyright 2025 James Ross
package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/flyingrobots/aider-dispatch/internal/conflict"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// RunBatch validates the parallel lists, applies the conflict policy and
// runs the tasks through the worker pool. Results come back in input order.
func (c *Core) RunBatch(ctx context.Context, batch Batch) (BatchResult, error) {
	n := len(batch.Prompts)
	if n == 0 {
		return BatchResult{}, fmt.Errorf("prompts must not be empty")
	}
	if len(batch.EditableFilesList) != n {
		return BatchResult{}, fmt.Errorf("length of editable_files_list (%d) must match length of prompts (%d)",
			len(batch.EditableFilesList), n)
	}
	if batch.ReadonlyFilesList == nil {
		batch.ReadonlyFilesList = make([][]string, n)
	} else if len(batch.ReadonlyFilesList) != n {
		return BatchResult{}, fmt.Errorf("length of readonly_files_list (%d) must match length of prompts (%d)",
			len(batch.ReadonlyFilesList), n)
	}
	if batch.Models == nil {
		batch.Models = make([]string, n)
	} else if len(batch.Models) != n {
		return BatchResult{}, fmt.Errorf("length of models (%d) must match length of prompts (%d)",
			len(batch.Models), n)
	}
	if batch.TargetElements == nil {
		batch.TargetElements = make([][]string, n)
	} else if len(batch.TargetElements) != n {
		return BatchResult{}, fmt.Errorf("length of target_elements (%d) must match length of prompts (%d)",
			len(batch.TargetElements), n)
	}

	cfg := c.cfgMgr.Current()
	parallel := batch.Parallel
	policy := batch.ConflictHandling
	if policy == "" {
		policy = "auto"
	}

	var conflictInfo *ConflictInfo
	if parallel && cfg.Features.ConflictDetection && policy != "ignore" {
		tasks := make([]conflict.Task, n)
		for i := range batch.Prompts {
			tasks[i] = conflict.Task{ID: fmt.Sprintf("task_%d", i), Paths: batch.EditableFilesList[i]}
		}
		det := conflict.New(batch.WorkingDir, cfg.Resilience.ConflictTimeout, c.clk, c.log)
		rep := det.Detect(tasks)
		conflictInfo = &ConflictInfo{
			Report:      rep,
			Description: conflict.Describe(rep, cfg.Features.ConflictVerbosity),
		}
		if rep.HasConflicts {
			switch policy {
			case "auto":
				if c.log != nil {
					c.log.Warn("conflicts detected, falling back to sequential execution",
						obs.Int("conflict_files", len(rep.ConflictFiles)))
				}
				parallel = false
			case "warn":
				if c.log != nil {
					c.log.Warn("conflicts detected, continuing in parallel",
						obs.Int("conflict_files", len(rep.ConflictFiles)))
				}
			}
		}
	}

	workers := 1
	if parallel {
		workers = n
		if workers > cfg.Resilience.MaxConcurrentTasks {
			workers = cfg.Resilience.MaxConcurrentTasks
		}
		if batch.MaxWorkers > 0 && batch.MaxWorkers < workers {
			workers = batch.MaxWorkers
		}
	}

	start := time.Now()
	results := c.runPool(ctx, batch, workers)
	elapsed := time.Since(start).Seconds()

	res := BatchResult{
		Success:       true,
		Results:       results,
		ExecutionTime: elapsed,
		ConflictInfo:  conflictInfo,
	}
	if parallel {
		res.ExecutionType = "parallel"
	} else {
		res.ExecutionType = "sequential"
	}

	seen := map[string]bool{}
	succeeded := 0
	for _, r := range results {
		res.SuccessStatuses = append(res.SuccessStatuses, r.Success)
		res.StatusMessages = append(res.StatusMessages, r.StatusMessage)
		res.TheoreticalSequentialTime += r.ExecutionTime
		if !r.Success {
			res.Success = false
		} else {
			succeeded++
		}
		for _, f := range r.FilesModified {
			if !seen[f] {
				seen[f] = true
				res.ModifiedFiles = append(res.ModifiedFiles, f)
			}
		}
		if r.AutoDetection != nil && r.AutoDetection.DetectionMethod == "auto" {
			res.AutoDetectionSummary = append(res.AutoDetectionSummary,
				fmt.Sprintf("task %d: detected %v", r.TaskIndex, r.AutoDetection.AutoDetectedTargets))
		}
	}
	res.Speedup = 1.0
	if parallel && elapsed > 0 && res.TheoreticalSequentialTime > 0 {
		res.Speedup = res.TheoreticalSequentialTime / elapsed
	}
	res.Summary = fmt.Sprintf("Processed %d prompts with %d successes", n, succeeded)
	return res, nil
}

// runPool feeds tasks to `workers` goroutines in submission order and
// returns results indexed by input position. On cancellation, pending tasks
// get a structured cancellation result while in-flight ones finish.
func (c *Core) runPool(ctx context.Context, batch Batch, workers int) []TaskResult {
	n := len(batch.Prompts)
	if workers > n {
		workers = n
	}
	results := make([]TaskResult, n)
	work := make(chan int)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range work {
				task := Task{
					Prompt:         batch.Prompts[i],
					WorkingDir:     batch.WorkingDir,
					EditableFiles:  batch.EditableFilesList[i],
					ReadonlyFiles:  batch.ReadonlyFilesList[i],
					Model:          batch.Models[i],
					TargetElements: batch.TargetElements[i],
				}
				if ctx.Err() != nil {
					results[i] = c.reject(TaskResult{
						TaskIndex:     i,
						Prompt:        task.Prompt,
						EditableFiles: task.EditableFiles,
					}, "batch cancelled before task started", ErrTypeCancelled, "Cancelled before execution.")
					continue
				}
				results[i] = c.RunSingle(ctx, task, i)
			}
		}()
	}
	for i := 0; i < n; i++ {
		work <- i
	}
	close(work)
	wg.Wait()
	return results
}

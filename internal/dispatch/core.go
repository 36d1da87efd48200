// Copyright 2025 James Ross
package dispatch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/breaker"
	"github.com/flyingrobots/aider-dispatch/internal/clock"
	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/costs"
	"github.com/flyingrobots/aider-dispatch/internal/editor"
	"github.com/flyingrobots/aider-dispatch/internal/extract"
	"github.com/flyingrobots/aider-dispatch/internal/monitor"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
	"github.com/flyingrobots/aider-dispatch/internal/router"
	"github.com/flyingrobots/aider-dispatch/internal/tokens"
)

// Core wires the subsystems together for single and batch runs.
type Core struct {
	cfgMgr  *config.Manager
	log     *zap.Logger
	ledger  *costs.Ledger
	breaker *breaker.CircuitBreaker
	monitor *monitor.Monitor
	queue   *Queue
	clk     clock.Clock

	// runEditor is the adapter invocation; tests substitute it.
	runEditor func(ctx context.Context, cfg config.Editor, inv editor.Invocation) editor.Outcome
}

func NewCore(cfgMgr *config.Manager, ledger *costs.Ledger, mon *monitor.Monitor, log *zap.Logger, clk clock.Clock) *Core {
	cfg := cfgMgr.Current()
	return &Core{
		cfgMgr:  cfgMgr,
		log:     log,
		ledger:  ledger,
		breaker: breaker.New(cfg.Resilience.FailureThreshold, cfg.Resilience.ResetTimeout, clk),
		monitor: mon,
		queue:   NewQueue(cfg.Resilience.MaxQueueSize),
		clk:     clk,
		runEditor: func(ctx context.Context, cfg config.Editor, inv editor.Invocation) editor.Outcome {
			return editor.New(cfg, log).Run(ctx, inv)
		},
	}
}

// Ledger exposes the cost ledger for the reporting tools.
func (c *Core) Ledger() *costs.Ledger { return c.ledger }

// Breaker exposes the circuit breaker for health reporting.
func (c *Core) Breaker() *breaker.CircuitBreaker { return c.breaker }

// Queue exposes the task queue for health reporting.
func (c *Core) Queue() *Queue { return c.queue }

// Monitor exposes the resource monitor for health reporting.
func (c *Core) Monitor() *monitor.Monitor { return c.monitor }

// Config returns the active configuration snapshot.
func (c *Core) Config() *config.Config { return c.cfgMgr.Current() }

// Reload re-reads configuration; the running breaker, queue and resource
// monitor keep their settings from startup, while per-request settings
// (models, pricing, budgets, features, extraction, editor) pick up new values.
func (c *Core) Reload() error { return c.cfgMgr.Reload() }

// Gate builds the cost gate over the current snapshot.
func (c *Core) Gate() *costs.Gate {
	cfg := c.cfgMgr.Current()
	return costs.NewGate(costs.NewPricing(cfg.Pricing, c.log), c.ledger, cfg.Cost)
}

// Shutdown stops intake and flushes the ledger. In-flight subprocesses are
// allowed to finish by their own contexts.
func (c *Core) Shutdown() {
	c.queue.Close()
	if err := c.ledger.Flush(); err != nil && c.log != nil {
		c.log.Warn("ledger flush on shutdown failed", obs.Err(err))
	}
}

// RunSingle executes one task end to end and always returns a structured
// result.
func (c *Core) RunSingle(ctx context.Context, task Task, index int) TaskResult {
	cfg := c.cfgMgr.Current()
	res := TaskResult{
		TaskIndex:     index,
		Prompt:        task.Prompt,
		EditableFiles: task.EditableFiles,
	}

	if task.WorkingDir == "" {
		return c.reject(res, "working_dir is required", ErrTypeValidation, "Task rejected: missing working directory.")
	}
	if len(task.EditableFiles) == 0 {
		return c.reject(res, "editable_files must not be empty", ErrTypeValidation, "Task rejected: nothing to edit.")
	}

	// model routing
	rt := router.New(cfg.Models, c.log)
	model := rt.Select(task.Prompt, task.Model)
	res.Model = model

	// target elements: explicit wins, otherwise auto-detect when enabled
	info := &AutoDetectionInfo{DetectionMethod: "none", TargetElementsProvided: len(task.TargetElements) > 0}
	targets := task.TargetElements
	fileContents := readFiles(task.WorkingDir, append(append([]string{}, task.EditableFiles...), task.ReadonlyFiles...))
	if len(targets) > 0 {
		info.DetectionMethod = "manual"
	} else if cfg.Features.AutoDetection {
		targets = extract.DetectTargets(task.Prompt, fileContents, cfg.Features.ExtendedJSDetection)
		if len(targets) > 0 {
			info.DetectionMethod = "auto"
			info.AutoDetectedTargets = targets
		}
	}

	// context extraction: splice per-file focused excerpts into the prompt
	prompt := task.Prompt
	if cfg.Features.ContextExtraction && len(targets) > 0 {
		prompt = c.enhancePrompt(cfg, task, targets, info)
	}
	res.AutoDetection = info

	// cost gate
	var est costs.Estimate
	gate := c.Gate()
	if cfg.Features.CostTracking {
		est = gate.Estimate(task.Prompt, fileContents, model, router.TaskKind(task.Prompt))
		ok, msg := gate.Admit(est)
		if !ok {
			res.CostEstimate = &est
			return c.reject(res, "Task aborted: "+msg, ErrTypeAdmission, "Task aborted to prevent budget overrun.")
		}
		if msg != "" && c.log != nil {
			c.log.Warn("cost warning", obs.String("message", msg))
		}
	}

	// resource pressure gates intake, not in-flight work
	if c.monitor != nil && c.monitor.Degraded() {
		obs.TasksRejected.WithLabelValues("degraded").Inc()
		return c.reject(res, "system resources exhausted, task intake paused", ErrTypeAdmission, "Rejected while in degraded mode.")
	}

	// queue slot
	if !c.queue.TryAcquire() {
		if c.queue.Closed() {
			obs.TasksRejected.WithLabelValues("shutdown").Inc()
			return c.reject(res, "server is shutting down", ErrTypeCancelled, "Rejected due to shutdown.")
		}
		obs.TasksRejected.WithLabelValues("queue_full").Inc()
		return c.reject(res, "Task queue is full. Please try again later.", ErrTypeAdmission, "Rejected due to full task queue.")
	}
	defer c.queue.Release()

	obs.TasksStarted.Inc()
	start := time.Now()
	var out editor.Outcome
	callErr := c.breaker.Call(func() error {
		out = c.runEditor(ctx, cfg.Editor, editor.Invocation{
			Prompt:        prompt,
			WorkingDir:    task.WorkingDir,
			EditableFiles: task.EditableFiles,
			ReadonlyFiles: task.ReadonlyFiles,
			Model:         model,
		})
		return out.Err
	})
	duration := time.Since(start)
	res.ExecutionTime = duration.Seconds()
	obs.TaskDuration.Observe(duration.Seconds())

	if callErr == breaker.ErrOpen {
		obs.TasksRejected.WithLabelValues("breaker_open").Inc()
		return c.reject(res, callErr.Error(), ErrTypeAdmission, "Rejected by the circuit breaker.")
	}

	res.Diff = out.Diff
	res.Details = out.Details
	res.ImplementationNotes = out.ImplementationNotes
	res.FilesModified = out.FilesModified
	res.FilesAttempted = out.FilesAttempted
	res.Success = out.Success
	if callErr != nil {
		res.Error = callErr.Error()
		res.ErrorType = ErrTypeExecution
	}
	if res.Success {
		res.StatusMessage = fmt.Sprintf("Successfully implemented changes to %s: %s",
			strings.Join(task.EditableFiles, ", "), res.Details)
		obs.TasksCompleted.Inc()
	} else {
		res.StatusMessage = fmt.Sprintf("Failed to implement changes to %s: %s",
			strings.Join(task.EditableFiles, ", "), firstNonEmpty(res.Error, res.Details))
		obs.TasksFailed.Inc()
	}

	// record actual cost: input from the estimate's count (recounted from
	// the sent prompt if that is zero); output approximated from the result
	// size, at least 500
	if cfg.Features.CostTracking {
		inputTokens := est.InputTokens
		if inputTokens == 0 {
			inputTokens = tokens.Count(prompt+strings.Join(fileContents, "\n"), model)
		}
		outputTokens := len(out.Stdout+out.Diff) / 4
		if outputTokens < 500 {
			outputTokens = 500
		}
		rec := gate.Record(shortID(), costs.TaskName(task.Prompt), model, inputTokens, outputTokens, duration, c.clk.Now())
		res.CostInfo = &CostInfo{
			TotalCost:       rec.TotalCost,
			InputTokens:     rec.InputTokens,
			OutputTokens:    rec.OutputTokens,
			Model:           model,
			DurationSeconds: rec.DurationSeconds,
		}
	}
	return res
}

// enhancePrompt appends per-file focused-context excerpts to the prompt,
// each headed with the file name and extracted targets.
func (c *Core) enhancePrompt(cfg *config.Config, task Task, targets []string, info *AutoDetectionInfo) string {
	var b strings.Builder
	b.WriteString(task.Prompt)
	exCfg := extract.Config{
		MaxTokens:         cfg.Extraction.MaxTokens,
		MinRelevanceScore: cfg.Extraction.MinRelevanceScore,
		IncludeImports:    cfg.Extraction.IncludeImports,
		PreserveSyntax:    cfg.Extraction.PreserveSyntax,
	}
	for _, file := range task.EditableFiles {
		full := filepath.Join(task.WorkingDir, file)
		r := extract.Extract(full, targets, exCfg, c.log)
		if r.Err != "" || r.FallbackUsed || len(r.TargetElements) == 0 {
			continue
		}
		info.ContextExtractionUsed = true
		info.FilesWithContext = append(info.FilesWithContext, file)
		fmt.Fprintf(&b, "\n\n## Focused context: %s (%s)\n%s",
			file, strings.Join(r.TargetElements, ", "), r.FocusedContext)
	}
	return b.String()
}

func (c *Core) reject(res TaskResult, errMsg, errType, status string) TaskResult {
	res.Success = false
	res.Error = errMsg
	res.ErrorType = errType
	res.StatusMessage = status
	if c.log != nil {
		c.log.Warn("task rejected", obs.String("error", errMsg), obs.String("error_type", errType))
	}
	return res
}

func readFiles(workingDir string, files []string) []string {
	var contents []string
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(workingDir, f))
		if err != nil {
			continue
		}
		contents = append(contents, string(data))
	}
	return contents
}

func shortID() string {
	return uuid.NewString()[:8]
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

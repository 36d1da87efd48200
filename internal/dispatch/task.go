// Copyright 2025 James Ross

// Package dispatch orchestrates the full task lifecycle: routing, target
// auto-detection, context extraction, budget admission, queued execution
// through the circuit breaker, diffing and cost recording — for single
// tasks and for batches run under conflict policy.
package dispatch

import (
	"github.com/flyingrobots/aider-dispatch/internal/conflict"
	"github.com/flyingrobots/aider-dispatch/internal/costs"
)

// Task is one coding request.
type Task struct {
	Prompt         string   `json:"prompt"`
	WorkingDir     string   `json:"working_dir"`
	EditableFiles  []string `json:"editable_files"`
	ReadonlyFiles  []string `json:"readonly_files"`
	Model          string   `json:"model,omitempty"`
	TargetElements []string `json:"target_elements,omitempty"`
}

// CostInfo is the per-task accounting attached to a result.
type CostInfo struct {
	TotalCost       float64 `json:"total_cost"`
	InputTokens     int     `json:"input_tokens"`
	OutputTokens    int     `json:"output_tokens"`
	Model           string  `json:"model"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// AutoDetectionInfo records how target elements were obtained.
type AutoDetectionInfo struct {
	DetectionMethod        string   `json:"detection_method"` // manual | auto | none
	AutoDetectedTargets    []string `json:"auto_detected_targets,omitempty"`
	ContextExtractionUsed  bool     `json:"context_extraction_used"`
	FilesWithContext       []string `json:"files_processed_with_context,omitempty"`
	TargetElementsProvided bool     `json:"target_elements_provided"`
}

// TaskResult reports one task's outcome. Failure is a value, never a panic
// or error crossing the tool boundary.
type TaskResult struct {
	TaskIndex           int                `json:"task_index"`
	Prompt              string             `json:"prompt"`
	Model               string             `json:"model"`
	EditableFiles       []string           `json:"editable_files"`
	Success             bool               `json:"success"`
	Diff                string             `json:"diff,omitempty"`
	Details             string             `json:"details,omitempty"`
	ImplementationNotes string             `json:"implementation_notes,omitempty"`
	FilesModified       []string           `json:"files_modified,omitempty"`
	FilesAttempted      []string           `json:"files_attempted,omitempty"`
	ExecutionTime       float64            `json:"execution_time"`
	StatusMessage       string             `json:"status_message"`
	CostInfo            *CostInfo          `json:"cost_info,omitempty"`
	CostEstimate        *costs.Estimate    `json:"cost_estimate,omitempty"`
	AutoDetection       *AutoDetectionInfo `json:"auto_detection_info,omitempty"`
	Error               string             `json:"error,omitempty"`
	ErrorType           string             `json:"error_type,omitempty"`
}

// Error kinds used in TaskResult.ErrorType.
const (
	ErrTypeValidation = "ValidationError"
	ErrTypeAdmission  = "AdmissionError"
	ErrTypeExecution  = "ExecutionError"
	ErrTypeCancelled  = "CancelledError"
)

// ConflictInfo wraps the detector report with its rendered description.
type ConflictInfo struct {
	conflict.Report
	Description string `json:"description"`
}

// BatchResult aggregates a batch run.
type BatchResult struct {
	Success                   bool          `json:"success"`
	Results                   []TaskResult  `json:"results"`
	SuccessStatuses           []bool        `json:"success_statuses"`
	StatusMessages            []string      `json:"status_messages"`
	ExecutionType             string        `json:"execution_type"` // parallel | sequential
	ExecutionTime             float64       `json:"execution_time"`
	TheoreticalSequentialTime float64       `json:"theoretical_sequential_time"`
	Speedup                   float64       `json:"speedup"`
	ModifiedFiles             []string      `json:"modified_files"`
	ConflictInfo              *ConflictInfo `json:"conflict_info,omitempty"`
	AutoDetectionSummary      []string      `json:"auto_detection_summary,omitempty"`
	Summary                   string        `json:"summary"`
}

// Batch is a set of parallel per-task field lists; all lists must be equal
// length.
type Batch struct {
	Prompts           []string   `json:"prompts"`
	WorkingDir        string     `json:"working_dir"`
	EditableFilesList [][]string `json:"editable_files_list"`
	ReadonlyFilesList [][]string `json:"readonly_files_list,omitempty"`
	Models            []string   `json:"models,omitempty"`
	TargetElements    [][]string `json:"target_elements,omitempty"`
	MaxWorkers        int        `json:"max_workers,omitempty"`
	Parallel          bool       `json:"parallel"`
	ConflictHandling  string     `json:"conflict_handling,omitempty"` // auto | warn | ignore
}

// Copyright 2025 James Ross

// Package editor runs the external code-editing CLI for exactly one task
// and reports the outcome. The CLI is a black box: inputs are the
// constructed argv and a scratch prompt file, outputs are exit code, stdout,
// stderr and a post-run VCS diff. Retries belong to the caller; the adapter
// does one attempt.
package editor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// Invocation describes one editing run.
type Invocation struct {
	Prompt        string
	WorkingDir    string
	EditableFiles []string
	ReadonlyFiles []string
	Model         string
}

// Outcome is what the adapter observed.
type Outcome struct {
	Success             bool
	ExitCode            int
	Stdout              string
	Stderr              string
	Diff                string
	Details             string
	ImplementationNotes string
	FilesModified       []string
	FilesAttempted      []string
	Duration            time.Duration
	TimedOut            bool
	Err                 error
}

// Adapter builds and runs the editor CLI.
type Adapter struct {
	cfg        config.Editor
	log        *zap.Logger
	meaningful Predicate
}

func New(cfg config.Editor, log *zap.Logger) *Adapter {
	return &Adapter{cfg: cfg, log: log, meaningful: DefaultMeaningful}
}

// SetMeaningful swaps the change-meaningfulness predicate.
func (a *Adapter) SetMeaningful(p Predicate) { a.meaningful = p }

// Run executes the CLI for inv, collects the diff and judges whether the
// editable files meaningfully changed.
func (a *Adapter) Run(ctx context.Context, inv Invocation) Outcome {
	out := Outcome{FilesAttempted: inv.EditableFiles}

	msgFile, err := writePromptFile(inv.Prompt)
	if err != nil {
		out.Err = fmt.Errorf("write prompt file: %w", err)
		out.Details = "Could not stage the prompt for the editor CLI."
		return out
	}
	defer os.Remove(msgFile)

	argv := a.buildArgs(inv, msgFile)
	runCtx := ctx
	var cancel context.CancelFunc
	if a.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, a.cfg.Binary, argv...)
	cmd.Dir = inv.WorkingDir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	out.Duration = time.Since(start)
	out.Stdout = strings.TrimSpace(stdout.String())
	out.Stderr = strings.TrimSpace(stderr.String())

	if runErr != nil {
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
		} else {
			out.ExitCode = -1
		}
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			out.TimedOut = true
			out.Err = fmt.Errorf("editor timed out after %v", a.cfg.Timeout)
		} else if errors.Is(runCtx.Err(), context.Canceled) {
			out.Err = fmt.Errorf("editor canceled: %w", runErr)
		} else {
			out.Err = fmt.Errorf("editor exited with code %d: %s", out.ExitCode, firstLine(out.Stderr))
		}
	}

	out.Diff = a.changesDiffOrContent(inv.WorkingDir, inv.EditableFiles)
	changed := a.meaningful(inv.WorkingDir, inv.EditableFiles)

	switch {
	case out.Err != nil:
		out.Details = "The editor CLI did not complete successfully."
	case !changed:
		out.Details = "No meaningful changes detected in the editable files."
	default:
		out.Success = true
		out.Details = fmt.Sprintf("Editor completed in %.1fs with changes to %d file(s).",
			out.Duration.Seconds(), len(inv.EditableFiles))
		out.FilesModified = inv.EditableFiles
		out.FilesAttempted = nil
	}
	out.ImplementationNotes = out.Stdout
	if a.log != nil {
		a.log.Info("editor run finished",
			obs.String("model", inv.Model),
			obs.Int("exit_code", out.ExitCode),
			obs.Bool("success", out.Success),
			obs.F64("duration_seconds", out.Duration.Seconds()))
	}
	return out
}

// buildArgs constructs the CLI argv: model, non-interactive confirmation,
// no auto-commit, no streaming, per-file registration and the message file.
func (a *Adapter) buildArgs(inv Invocation, msgFile string) []string {
	args := []string{
		"--model", inv.Model,
		"--yes-always",
		"--no-auto-commits",
		"--no-stream",
		"--chat-history-file", filepath.Join(inv.WorkingDir, a.cfg.ChatHistoryName),
	}
	for _, f := range inv.EditableFiles {
		args = append(args, "--file", f)
	}
	for _, f := range inv.ReadonlyFiles {
		args = append(args, "--read", f)
	}
	args = append(args, "--message-file", msgFile)
	return args
}

func writePromptFile(prompt string) (string, error) {
	f, err := os.CreateTemp("", "dispatch-prompt-*.md")
	if err != nil {
		return "", err
	}
	if _, err := f.WriteString(prompt); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// Copyright 2025 James Ross
package editor

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/aider-dispatch/internal/config"
)

func testAdapter() *Adapter {
	return New(config.Editor{
		Binary:          "aider",
		VCSBinary:       "git",
		Timeout:         time.Minute,
		ChatHistoryName: ".aider.chat.history.md",
	}, nil)
}

func TestBuildArgs(t *testing.T) {
	a := testAdapter()
	inv := Invocation{
		Prompt:        "do things",
		WorkingDir:    "/work",
		EditableFiles: []string{"a.py", "b.py"},
		ReadonlyFiles: []string{"c.py"},
		Model:         "gpt-4.1-mini",
	}
	args := a.buildArgs(inv, "/tmp/prompt.md")

	assert.Equal(t, []string{
		"--model", "gpt-4.1-mini",
		"--yes-always",
		"--no-auto-commits",
		"--no-stream",
		"--chat-history-file", "/work/.aider.chat.history.md",
		"--file", "a.py",
		"--file", "b.py",
		"--read", "c.py",
		"--message-file", "/tmp/prompt.md",
	}, args)
}

func TestWritePromptFile(t *testing.T) {
	path, err := writePromptFile("fix the bug\nwith care")
	require.NoError(t, err)
	defer os.Remove(path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "fix the bug\nwith care", string(data))
}

func TestDiffFallbackEmitsContents(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.py"), []byte("print('hi')\n"), 0o644))

	a := New(config.Editor{Binary: "aider", VCSBinary: "definitely-not-a-vcs"}, nil)
	diff := a.changesDiffOrContent(dir, []string{"a.py", "missing.py"})

	assert.Contains(t, diff, "--- a.py ---")
	assert.Contains(t, diff, "print('hi')")
	assert.Contains(t, diff, "--- missing.py --- (File not found)")
}

func TestDiffEmptyFileList(t *testing.T) {
	a := testAdapter()
	assert.Equal(t, "", a.changesDiffOrContent(t.TempDir(), nil))
}

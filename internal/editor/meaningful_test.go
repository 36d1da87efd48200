// Copyright 2025 James Ross
package editor

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestMeaningfulMultilineFile(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.py", "x = 1\ny = 2\n")
	assert.True(t, DefaultMeaningful(dir, []string{"a.py"}))
}

func TestMeaningfulSingleLineWithKeyword(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.py", "def f(): pass")
	assert.True(t, DefaultMeaningful(dir, []string{"a.py"}))
}

func TestZeroSizeFileIsNotMeaningful(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "empty.py", "")
	assert.False(t, DefaultMeaningful(dir, []string{"empty.py"}))
}

func TestWhitespaceOnlyIsNotMeaningful(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "blank.py", "   \n\n  \n")
	assert.False(t, DefaultMeaningful(dir, []string{"blank.py"}))
}

func TestMissingFileIsNotMeaningful(t *testing.T) {
	assert.False(t, DefaultMeaningful(t.TempDir(), []string{"nope.py"}))
}

func TestAnyMeaningfulFileSuffices(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "empty.py", "")
	write(t, dir, "real.py", "import os\nprint(os)\n")
	assert.True(t, DefaultMeaningful(dir, []string{"empty.py", "real.py"}))
}

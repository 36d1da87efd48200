// Copyright 2025 James Ross
package editor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

// changesDiffOrContent asks the VCS for a diff of the editable files; when
// that fails it emits each file's current contents so the caller still sees
// what the tree holds.
func (a *Adapter) changesDiffOrContent(workingDir string, files []string) string {
	if len(files) == 0 {
		return ""
	}
	args := append([]string{"-C", workingDir, "diff", "--"}, files...)
	cmd := exec.Command(a.cfg.VCSBinary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err == nil {
		return stdout.String()
	} else if a.log != nil {
		a.log.Warn("vcs diff failed, falling back to file contents",
			obs.Err(err), obs.String("stderr", stderr.String()))
	}

	var b bytes.Buffer
	for _, f := range files {
		full := filepath.Join(workingDir, f)
		content, err := os.ReadFile(full)
		switch {
		case os.IsNotExist(err):
			fmt.Fprintf(&b, "--- %s --- (File not found)\n\n", f)
		case err != nil:
			fmt.Fprintf(&b, "--- %s --- (Error reading file)\n\n", f)
		default:
			fmt.Fprintf(&b, "--- %s ---\n%s\n\n", f, content)
		}
	}
	return b.String()
}

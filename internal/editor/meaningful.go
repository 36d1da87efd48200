// Copyright 2025 James Ross
package editor

import (
	"os"
	"path/filepath"
	"strings"
)

// Predicate decides whether the editable files contain a real change worth
// reporting as success.
type Predicate func(workingDir string, files []string) bool

// meaningfulMarkers is a conservative default: language keywords,
// structural punctuation and framework markers that indicate actual code
// rather than an empty or placeholder file.
var meaningfulMarkers = []string{
	// Python
	"def ", "class ", "import ", "from ", "async def", "return", "yield",
	"try:", "except", "with ", "lambda", "elif", "@",
	// JavaScript / TypeScript
	"function", "const ", "let ", "var ", "export", "require", "=>",
	"interface", "type ", "enum", "await",
	// frameworks and routing
	"router", "route", "endpoint", "middleware", "component", "service",
	"controller", "model", "template",
	// structural punctuation
	"{", "}", "[", "]", "(", ")", "=", "==", "!=", "&&", "||",
	// data formats
	"\":", "':", "yaml", "json", "xml", "html", "css",
	// SQL
	"select", "insert", "update", "delete ", "create", "alter",
}

// DefaultMeaningful reports true when any editable file is non-empty and
// either spans multiple lines or matches a marker. Unreadable files are
// treated as meaningful if present: better a false success than a silently
// dropped edit.
func DefaultMeaningful(workingDir string, files []string) bool {
	for _, f := range files {
		full := filepath.Join(workingDir, f)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		content, err := os.ReadFile(full)
		if err != nil {
			if info.Size() > 0 {
				return true
			}
			continue
		}
		stripped := strings.TrimSpace(string(content))
		if stripped == "" {
			continue
		}
		if len(strings.Split(stripped, "\n")) > 1 {
			return true
		}
		lower := strings.ToLower(stripped)
		for _, marker := range meaningfulMarkers {
			if strings.Contains(lower, strings.ToLower(marker)) {
				return true
			}
		}
	}
	return false
}

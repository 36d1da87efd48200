// Copyright 2025 James Ross
package parser

import (
	"path/filepath"
	"strings"
)

// Language tags the parser variant for a file.
type Language string

const (
	Python     Language = "python"
	TypeScript Language = "typescript"
	JavaScript Language = "javascript"
	Unknown    Language = "unknown"
)

// Detect maps a file extension to a language.
func Detect(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".py":
		return Python
	case ".ts", ".tsx":
		return TypeScript
	case ".js", ".jsx":
		return JavaScript
	default:
		return Unknown
	}
}

// Parse dispatches to the variant for lang. Unknown languages return
// (nil, false) so callers fall back to whole-file handling.
func Parse(lang Language, source string) ([]Block, bool) {
	switch lang {
	case Python:
		blocks, err := ParsePython(source)
		if err != nil {
			return nil, false
		}
		return blocks, true
	case TypeScript, JavaScript:
		blocks, err := ParseJSTS(source)
		if err != nil {
			return nil, false
		}
		return blocks, true
	default:
		return nil, false
	}
}

// Copyright 2025 James Ross
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	pyDef    = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)\s*\(`)
	pyClass  = regexp.MustCompile(`^(\s*)class\s+(\w+)\s*(?:\(([^)]*)\))?\s*:`)
	pyImport = regexp.MustCompile(`^(?:import|from)\s+`)
	pyAssign = regexp.MustCompile(`^(\w+)\s*=`)
	pyCall   = regexp.MustCompile(`(\w+(?:\.\w+)*)\s*\(`)

	pyKeywords = map[string]bool{
		"if": true, "for": true, "while": true, "return": true, "print": true,
		"len": true, "range": true, "str": true, "int": true, "float": true,
		"list": true, "dict": true, "set": true, "tuple": true, "isinstance": true,
		"super": true, "type": true, "and": true, "or": true, "not": true,
	}
)

// ParsePython extracts functions, methods, classes, imports and module-level
// assignments by scanning indentation. Block ends are the last line indented
// deeper than the declaration.
func ParsePython(source string) ([]Block, error) {
	lines := strings.Split(source, "\n")
	var blocks []Block

	type classSpan struct {
		name       string
		start, end int
	}
	var classes []classSpan

	// First pass: class spans, so nested defs can be typed as methods.
	for i, line := range lines {
		m := pyClass.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		indent := len(m[1])
		end := blockEnd(lines, i, indent)
		classes = append(classes, classSpan{name: m[2], start: i + 1, end: end})

		deps := map[string]bool{}
		for _, base := range strings.Split(m[3], ",") {
			base = strings.TrimSpace(base)
			if base != "" {
				deps[base] = true
			}
		}
		content := strings.Join(lines[i:end], "\n")
		blocks = append(blocks, newBlock(content, i+1, end, Class, m[2], deps))
	}

	for i, line := range lines {
		if m := pyDef.FindStringSubmatch(line); m != nil {
			indent := len(m[1])
			end := blockEnd(lines, i, indent)
			content := strings.Join(lines[i:end], "\n")
			typ := Function
			if indent > 0 {
				for _, c := range classes {
					if i+1 > c.start && i+1 <= c.end {
						typ = Method
						break
					}
				}
			}
			blocks = append(blocks, newBlock(content, i+1, end, typ, m[2], pyCallDeps(content)))
			continue
		}
		trimmed := strings.TrimSpace(line)
		if pyImport.MatchString(line) && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			blocks = append(blocks, newBlock(line, i+1, i+1, Import,
				fmt.Sprintf("import_%d", i+1), pyImportNames(trimmed)))
			continue
		}
		if m := pyAssign.FindStringSubmatch(line); m != nil && !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t") {
			blocks = append(blocks, newBlock(line, i+1, i+1, Variable, m[1], nil))
		}
	}
	return blocks, nil
}

// blockEnd returns the 1-based line after which the suite starting at
// declaration line idx (0-based) with the given indent ends.
func blockEnd(lines []string, idx, indent int) int {
	end := idx + 1
	for j := idx + 1; j < len(lines); j++ {
		trimmed := strings.TrimSpace(lines[j])
		if trimmed == "" {
			continue
		}
		if lineIndent(lines[j]) <= indent {
			break
		}
		end = j + 1
	}
	return end
}

func lineIndent(line string) int {
	n := 0
	for _, r := range line {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 8
		default:
			return n
		}
	}
	return n
}

var pyDefHeader = regexp.MustCompile(`(?m)^\s*(?:async\s+)?def\s+\w+`)

// pyCallDeps collects called identifiers. For obj.method() the receiver is
// recorded, matching how attribute calls resolve to their object. The def
// header is stripped first so a function never depends on itself.
func pyCallDeps(content string) map[string]bool {
	deps := map[string]bool{}
	content = pyDefHeader.ReplaceAllString(content, "")
	for _, m := range pyCall.FindAllStringSubmatch(content, -1) {
		name := m[1]
		if dot := strings.IndexByte(name, '.'); dot >= 0 {
			name = name[:dot]
		}
		if name == "self" || name == "def" || pyKeywords[name] {
			continue
		}
		deps[name] = true
	}
	return deps
}

func pyImportNames(line string) map[string]bool {
	deps := map[string]bool{}
	line = strings.TrimSpace(line)
	rest := ""
	if strings.HasPrefix(line, "from ") {
		parts := strings.SplitN(strings.TrimPrefix(line, "from "), " import ", 2)
		deps[strings.TrimSpace(parts[0])] = true
		if len(parts) == 2 {
			rest = parts[1]
		}
	} else {
		rest = strings.TrimPrefix(line, "import ")
	}
	for _, piece := range strings.Split(rest, ",") {
		piece = strings.TrimSpace(piece)
		if piece == "" {
			continue
		}
		// honor aliases: "x as y" binds y
		if fields := strings.Fields(piece); len(fields) == 3 && fields[1] == "as" {
			deps[fields[2]] = true
			continue
		}
		deps[piece] = true
	}
	return deps
}

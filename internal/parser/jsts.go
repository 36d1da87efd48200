// Copyright 2025 James Ross
package parser

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	jsFunc      = regexp.MustCompile(`^\s*(?:export\s+)?(?:async\s+)?function\s+(\w+)`)
	jsArrow     = regexp.MustCompile(`^\s*(?:export\s+)?const\s+(\w+)\s*=\s*.*=>`)
	jsClass     = regexp.MustCompile(`^\s*(?:export\s+)?class\s+(\w+)`)
	jsInterface = regexp.MustCompile(`^\s*(?:export\s+)?interface\s+(\w+)`)
	jsType      = regexp.MustCompile(`^\s*(?:export\s+)?type\s+(\w+)`)

	jsImportBare  = regexp.MustCompile(`import\s+(\w+)`)
	jsImportNamed = regexp.MustCompile(`import\s+(?:\w+\s*,\s*)?\{([^}]+)\}`)
	jsImportFrom  = regexp.MustCompile(`from\s+['"]([^'"]+)['"]`)

	jsCall = regexp.MustCompile(`(\w+)\s*\(`)

	jsKeywords = map[string]bool{
		"const": true, "let": true, "var": true, "function": true, "if": true,
		"else": true, "for": true, "while": true, "return": true, "switch": true,
		"catch": true, "typeof": true, "new": true, "await": true, "async": true,
	}
)

// ParseJSTS extracts functions, arrow-bound constants, classes, imports,
// interfaces and type aliases with regex patterns. Block ends come from
// brace counting; unbalanced braces default the end to min(start+10, eof).
func ParseJSTS(source string) ([]Block, error) {
	lines := strings.Split(source, "\n")
	var blocks []Block

	type pattern struct {
		re  *regexp.Regexp
		typ ElementType
	}
	patterns := []pattern{
		{jsFunc, Function},
		{jsArrow, Function},
		{jsClass, Class},
		{jsInterface, Interface},
		{jsType, TypeAlias},
	}

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "import ") {
			blocks = append(blocks, newBlock(line, i+1, i+1, Import,
				fmt.Sprintf("import_%d", i+1), jsImportDeps(line)))
			continue
		}
		for _, p := range patterns {
			m := p.re.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			end := braceEnd(lines, i)
			content := strings.Join(lines[i:end], "\n")
			var deps map[string]bool
			if p.typ == Function {
				deps = jsCallDeps(content)
			}
			blocks = append(blocks, newBlock(content, i+1, end, p.typ, m[1], deps))
			break
		}
	}
	return blocks, nil
}

// braceEnd scans from the declaration line counting braces; the block ends
// on the line that balances the first opening brace.
func braceEnd(lines []string, start int) int {
	count := 0
	opened := false
	for i := start; i < len(lines); i++ {
		for _, ch := range lines[i] {
			switch ch {
			case '{':
				count++
				opened = true
			case '}':
				count--
				if opened && count == 0 {
					return i + 1
				}
			}
		}
	}
	end := start + 11
	if end > len(lines) {
		end = len(lines)
	}
	return end
}

func jsImportDeps(line string) map[string]bool {
	deps := map[string]bool{}
	if m := jsImportNamed.FindStringSubmatch(line); m != nil {
		for _, name := range strings.Split(m[1], ",") {
			name = strings.TrimSpace(name)
			// "x as y" binds y
			if fields := strings.Fields(name); len(fields) == 3 && fields[1] == "as" {
				name = fields[2]
			}
			if name != "" {
				deps[name] = true
			}
		}
	} else if m := jsImportBare.FindStringSubmatch(line); m != nil {
		deps[m[1]] = true
	}
	if m := jsImportFrom.FindStringSubmatch(line); m != nil {
		deps[m[1]] = true
	}
	return deps
}

var jsFuncHeader = regexp.MustCompile(`function\s+\w+`)

func jsCallDeps(content string) map[string]bool {
	deps := map[string]bool{}
	content = jsFuncHeader.ReplaceAllString(content, "")
	for _, m := range jsCall.FindAllStringSubmatch(content, -1) {
		if jsKeywords[m[1]] {
			continue
		}
		deps[m[1]] = true
	}
	return deps
}

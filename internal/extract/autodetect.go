// Copyright 2025 James Ross
package extract

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Prompt patterns that surface function/class names from natural language.
// Each pattern captures exactly one candidate name.
var promptPatterns = compileAll(
	`(?:fix|update|debug|modify|change|improve|refactor|implement)\s+(?:the\s+)?(\w+)\s+function`,
	`(?:fix|update|debug|modify|change|improve|refactor|implement)\s+(?:the\s+)?(\w+)\s+method`,
	`(?:fix|update|debug|modify|change|improve|refactor|implement)\s+(?:the\s+)?(\w+)\s+class`,
	`(\w+)\s+function\s+(?:has\s+)?(?:a\s+)?(?:bug|issue|problem|error)`,
	`(\w+)\s+method\s+(?:has\s+)?(?:a\s+)?(?:bug|issue|problem|error)`,
	`(\w+)\s+class\s+(?:has\s+)?(?:a\s+)?(?:bug|issue|problem|error)`,
	`(\w+)\s+function\s+(?:is\s+)?(?:not\s+)?(?:working|broken|failing)`,
	`(\w+)\s+method\s+(?:is\s+)?(?:not\s+)?(?:working|broken|failing)`,
	`bug\s+in\s+(?:the\s+)?(\w+)\s+function`,
	`bug\s+in\s+(?:the\s+)?(\w+)\s+method`,
	`bug\s+in\s+(?:the\s+)?(\w+)\s+class`,
	`error\s+in\s+(?:the\s+)?(\w+)\s+function`,
	`error\s+in\s+(?:the\s+)?(\w+)\s+method`,
	`add\s+(?:a\s+)?(\w+)\s+function`,
	`create\s+(?:a\s+)?(\w+)\s+function`,
	`write\s+(?:a\s+)?(\w+)\s+function`,
	`improve\s+(?:the\s+)?(\w+)\s+function`,
	`optimize\s+(?:the\s+)?(\w+)\s+function`,
	`add\s+error\s+handling\s+to\s+(?:the\s+)?(\w+)`,
	`(?:^|\s)(\w+)\(\)`,
	`def\s+(\w+)`,
	`class\s+(\w+)`,
)

func compileAll(patterns ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(patterns))
	for i, p := range patterns {
		out[i] = regexp.MustCompile(`(?i)` + p)
	}
	return out
}

// stopWords filters English words a prompt pattern can capture by accident.
var stopWords = map[string]bool{
	"the": true, "and": true, "but": true, "for": true, "with": true,
	"was": true, "were": true, "been": true, "have": true, "has": true,
	"had": true, "does": true, "did": true, "will": true, "would": true,
	"could": true, "should": true, "can": true, "may": true, "might": true,
	"must": true, "this": true, "that": true, "these": true, "those": true,
	"fix": true, "bug": true, "error": true, "issue": true, "problem": true,
	"update": true, "change": true, "add": true, "not": true, "working": true,
	"broken": true, "failing": true, "function": true, "method": true, "class": true,
}

// DetectTargets extracts candidate element names from a prompt. When file
// contents are supplied, only candidates declared in one of those files
// survive. The extended flag enables the wider JS/TS framework catalog.
// Never fails; an empty slice means no usable candidate.
func DetectTargets(prompt string, fileContents []string, extended bool) []string {
	seen := map[string]bool{}
	for _, re := range promptPatterns {
		for _, m := range re.FindAllStringSubmatch(prompt, -1) {
			name := m[1]
			if len(name) < 3 || stopWords[strings.ToLower(name)] {
				continue
			}
			seen[name] = true
		}
	}
	if len(seen) == 0 {
		return nil
	}

	candidates := make([]string, 0, len(seen))
	for name := range seen {
		candidates = append(candidates, name)
	}
	sort.Strings(candidates)

	if len(fileContents) == 0 {
		return candidates
	}

	var verified []string
	for _, name := range candidates {
		for _, content := range fileContents {
			if declaredIn(name, content, extended) {
				verified = append(verified, name)
				break
			}
		}
	}
	return verified
}

// declaredIn reports whether name is declared as a function or class in
// content.
func declaredIn(name, content string, extended bool) bool {
	q := regexp.QuoteMeta(name)
	patterns := []string{
		`(?i)def\s+` + q + `\s*\(`,
		`(?i)class\s+` + q + `\b`,
		`(?i)function\s+` + q + `\s*\(`,
		`const\s+` + q + `\s*=`,
		`let\s+` + q + `\s*=`,
	}
	if extended {
		patterns = append(patterns, frameworkPatterns(q)...)
	}
	for _, p := range patterns {
		if regexp.MustCompile(p).MatchString(content) {
			return true
		}
	}
	return false
}

// frameworkPatterns covers JS/TS framework declaration shapes: exported
// arrows, class components, API-route handlers and schema declarations.
func frameworkPatterns(q string) []string {
	return []string{
		`export\s+(?:default\s+)?(?:async\s+)?function\s+` + q + `\b`,
		`export\s+const\s+` + q + `\s*=`,
		`class\s+` + q + `\s+extends\s+(?:React\.)?(?:Pure)?Component\b`,
		fmt.Sprintf(`(?:app|router)\.(?:get|post|put|delete|patch)\s*\([^)]*\b%s\b`, q),
		`const\s+` + q + `\s*=\s*new\s+(?:mongoose\.)?Schema\s*\(`,
		fmt.Sprintf(`model\s*\(\s*['"]%s['"]`, q),
	}
}

// Copyright 2025 James Ross

// Package scorer ranks parsed code blocks by relevance to a set of target
// elements over the dependency graph. Blocks stay immutable; scores live in
// a map keyed by block identity.
package scorer

import (
	"regexp"
	"strings"

	"github.com/flyingrobots/aider-dispatch/internal/parser"
)

// Relevance weights, descending. Anything scoring below the configured
// minimum is excluded from extraction.
const (
	ScoreTarget       = 10
	ScoreDirectCalls  = 8
	ScoreReverseCalls = 7
	ScoreSharedState  = 6
	ScoreTypeDefs     = 5
	ScoreImports      = 4
	ScoreClassContext = 3
	ScoreUnrelated    = 0
)

var assignPattern = regexp.MustCompile(`\b([a-zA-Z_][a-zA-Z0-9_]*)\s*=`)

// Scores maps block identity to its relevance score.
type Scores map[parser.Key]int

// Score rates every block against the targets and returns the scores of
// those meeting minScore.
func Score(blocks []parser.Block, targets []parser.Block, graph parser.Graph, minScore int) Scores {
	targetNames := map[string]bool{}
	for _, t := range targets {
		targetNames[t.Name] = true
	}

	out := Scores{}
	for _, b := range blocks {
		s := scoreOne(b, targets, targetNames, graph, blocks)
		if s >= minScore {
			out[b.Key()] = s
		}
	}
	return out
}

func scoreOne(b parser.Block, targets []parser.Block, targetNames map[string]bool, graph parser.Graph, all []parser.Block) int {
	if targetNames[b.Name] {
		return ScoreTarget
	}

	// this element calls a target
	for dep := range b.Dependencies {
		if targetNames[dep] {
			return ScoreDirectCalls
		}
	}

	// a target calls this element
	for name := range targetNames {
		if graph[name][b.Name] {
			return ScoreReverseCalls
		}
	}

	if sharesState(b, targets) {
		return ScoreSharedState
	}

	if (b.Type == parser.Interface || b.Type == parser.TypeAlias || b.Type == parser.Class) && typeUsed(b.Name, targets) {
		return ScoreTypeDefs
	}

	if b.Type == parser.Import && essentialImport(b, targetNames, graph) {
		return ScoreImports
	}

	if b.Type == parser.Class && containsTargetMethod(b, targets) {
		return ScoreClassContext
	}

	return ScoreUnrelated
}

// sharesState reports whether b assigns any variable name a target also
// assigns.
func sharesState(b parser.Block, targets []parser.Block) bool {
	bVars := assignedNames(b.Content)
	if len(bVars) == 0 {
		return false
	}
	for _, t := range targets {
		for v := range assignedNames(t.Content) {
			if bVars[v] {
				return true
			}
		}
	}
	return false
}

func assignedNames(content string) map[string]bool {
	names := map[string]bool{}
	for _, m := range assignPattern.FindAllStringSubmatch(content, -1) {
		names[m[1]] = true
	}
	return names
}

func typeUsed(name string, targets []parser.Block) bool {
	for _, t := range targets {
		if strings.Contains(t.Content, name) {
			return true
		}
	}
	return false
}

func essentialImport(b parser.Block, targetNames map[string]bool, graph parser.Graph) bool {
	for name := range targetNames {
		for dep := range graph[name] {
			if b.Dependencies[dep] {
				return true
			}
		}
	}
	return false
}

func containsTargetMethod(class parser.Block, targets []parser.Block) bool {
	for _, t := range targets {
		if t.Type != parser.Method && t.Type != parser.Function {
			continue
		}
		if t.StartLine >= class.StartLine && t.StartLine <= class.EndLine {
			return true
		}
	}
	return false
}

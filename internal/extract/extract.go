// Copyright 2025 James Ross

// Package extract produces the minimal syntactically-complete slice of a
// source file relevant to a set of target elements, sized to a token
// budget, plus prompt-driven auto-detection of those targets.
package extract

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/obs"
	"github.com/flyingrobots/aider-dispatch/internal/parser"
	"github.com/flyingrobots/aider-dispatch/internal/scorer"
)

// Config controls one extraction run.
type Config struct {
	MaxTokens         int
	MinRelevanceScore int
	IncludeImports    bool
	PreserveSyntax    bool
	Language          parser.Language // empty: detect from extension
}

// Stats describes how much the extraction saved.
type Stats struct {
	ReductionRatio  float64 `json:"reduction_ratio"`
	TokenSavings    int     `json:"token_savings"`
	LineReduction   float64 `json:"line_reduction"`
	BlocksSelected  int     `json:"blocks_selected"`
	TokenBudgetUsed float64 `json:"token_budget_used"`
	OriginalTokens  int     `json:"original_tokens"`
	FocusedTokens   int     `json:"focused_tokens"`
	OriginalLines   int     `json:"original_lines"`
	FocusedLines    int     `json:"focused_lines"`
}

// Edit is a suggested edit location inside the focused context.
type Edit struct {
	ElementName string `json:"element_name"`
	ElementType string `json:"element_type"`
	StartLine   int    `json:"start_line"`
	EndLine     int    `json:"end_line"`
	Suggestion  string `json:"suggestion"`
}

// Result is the extraction output record.
type Result struct {
	FocusedContext string              `json:"focused_context"`
	Stats          Stats               `json:"extraction_stats"`
	DependencyMap  map[string][]string `json:"dependency_map"`
	SuggestedEdits []Edit              `json:"suggested_edits"`
	TargetElements []string            `json:"target_elements"`
	Language       string              `json:"language"`
	OriginalFile   string              `json:"original_file"`
	FallbackUsed   bool                `json:"fallback_used,omitempty"`
	Err            string              `json:"error,omitempty"`
}

// Extract runs the full pipeline against the file at path. Parser failures,
// unknown languages and missing targets fall back to the whole file; only a
// read failure yields an error sentinel, and even that is a Result, not a
// Go error.
func Extract(path string, targets []string, cfg Config, log *zap.Logger) Result {
	source, err := os.ReadFile(path)
	if err != nil {
		return Result{
			FocusedContext: fmt.Sprintf("# Error reading file: %v", err),
			OriginalFile:   path,
			Language:       string(parser.Unknown),
			DependencyMap:  map[string][]string{},
			Err:            err.Error(),
		}
	}
	return ExtractSource(path, string(source), targets, cfg, log)
}

// ExtractSource is Extract with the file contents already in hand.
func ExtractSource(path, source string, targets []string, cfg Config, log *zap.Logger) Result {
	lang := cfg.Language
	if lang == "" {
		lang = parser.Detect(path)
	}

	blocks, ok := parser.Parse(lang, source)
	if !ok {
		if log != nil {
			log.Debug("no parser for file, emitting full contents", obs.String("file", path))
		}
		return fallback(path, source, lang)
	}

	targetBlocks := findTargets(blocks, targets)
	if len(targetBlocks) == 0 {
		if log != nil {
			log.Debug("targets not found, emitting full contents",
				obs.String("file", path), obs.String("targets", strings.Join(targets, ",")))
		}
		return fallback(path, source, lang)
	}

	graph := parser.BuildGraph(blocks)
	scores := scorer.Score(blocks, targetBlocks, graph, cfg.MinRelevanceScore)

	selected := selectWithinBudget(blocks, scores, cfg.MaxTokens)
	selected = ensureCompleteness(selected, blocks, cfg)

	// Emit in source order so the excerpt reads top to bottom.
	sort.SliceStable(selected, func(i, j int) bool { return selected[i].StartLine < selected[j].StartLine })
	parts := make([]string, 0, len(selected))
	for _, b := range selected {
		parts = append(parts, b.Content)
	}
	focused := strings.Join(parts, "\n")

	stats := computeStats(source, focused, len(selected), cfg.MaxTokens)
	obs.ContextReduction.Observe(stats.ReductionRatio)

	targetNames := make([]string, 0, len(targetBlocks))
	depMap := map[string][]string{}
	var edits []Edit
	for _, t := range targetBlocks {
		targetNames = append(targetNames, t.Name)
		deps := make([]string, 0, len(graph[t.Name]))
		for d := range graph[t.Name] {
			deps = append(deps, d)
		}
		sort.Strings(deps)
		depMap[t.Name] = deps
		edits = append(edits, Edit{
			ElementName: t.Name,
			ElementType: string(t.Type),
			StartLine:   t.StartLine,
			EndLine:     t.EndLine,
			Suggestion:  fmt.Sprintf("Consider modifying %s %q at lines %d-%d", t.Type, t.Name, t.StartLine, t.EndLine),
		})
	}

	return Result{
		FocusedContext: focused,
		Stats:          stats,
		DependencyMap:  depMap,
		SuggestedEdits: edits,
		TargetElements: targetNames,
		Language:       string(lang),
		OriginalFile:   path,
	}
}

// findTargets matches targets by name; the dotted "Class.method" form
// resolves to the method enclosed by that class's line range.
func findTargets(blocks []parser.Block, targets []string) []parser.Block {
	var found []parser.Block
	for _, target := range targets {
		className, methodName, dotted := strings.Cut(target, ".")
		for _, b := range blocks {
			if b.Name == target {
				found = append(found, b)
				continue
			}
			if dotted && b.Name == methodName && insideClass(blocks, className, b) {
				found = append(found, b)
			}
		}
	}
	return found
}

func insideClass(blocks []parser.Block, className string, b parser.Block) bool {
	for _, c := range blocks {
		if c.Type == parser.Class && c.Name == className &&
			c.StartLine <= b.StartLine && b.StartLine <= c.EndLine {
			return true
		}
	}
	return false
}

// selectWithinBudget takes blocks by highest score first until the token
// budget is filled. A single import block scoring >= 8 may exceed the
// budget by up to 10%. Ties in score resolve by declaration order.
func selectWithinBudget(blocks []parser.Block, scores scorer.Scores, maxTokens int) []parser.Block {
	var candidates []parser.Block
	for _, b := range blocks {
		if _, ok := scores[b.Key()]; ok {
			candidates = append(candidates, b)
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		si, sj := scores[candidates[i].Key()], scores[candidates[j].Key()]
		if si != sj {
			return si > sj
		}
		return candidates[i].StartLine < candidates[j].StartLine
	})

	var selected []parser.Block
	total := 0
	for _, b := range candidates {
		if total+b.TokenCount <= maxTokens {
			selected = append(selected, b)
			total += b.TokenCount
			continue
		}
		if b.Type == parser.Import && scores[b.Key()] >= scorer.ScoreDirectCalls {
			if float64(total+b.TokenCount) <= float64(maxTokens)*1.1 {
				selected = append(selected, b)
				total += b.TokenCount
			}
		}
	}
	return selected
}

// ensureCompleteness makes the selection syntactically self-consistent:
// methods get a synthesized class header, and imports referenced by selected
// blocks are pulled in. Imports may stretch the budget to 110%; everything
// else stays inside it.
func ensureCompleteness(selected []parser.Block, all []parser.Block, cfg Config) []parser.Block {
	if !cfg.PreserveSyntax {
		return selected
	}
	have := map[parser.Key]bool{}
	total := 0
	for _, b := range selected {
		have[b.Key()] = true
		total += b.TokenCount
	}
	out := selected

	for _, b := range selected {
		if b.Type != parser.Method {
			continue
		}
		class := containingClass(all, b)
		if class == nil {
			continue
		}
		header := classHeader(*class)
		if !have[header.Key()] && !have[class.Key()] && total+header.TokenCount <= cfg.MaxTokens {
			out = append(out, header)
			have[header.Key()] = true
			total += header.TokenCount
		}
	}

	if cfg.IncludeImports {
		for _, imp := range all {
			if imp.Type != parser.Import || have[imp.Key()] {
				continue
			}
			if importNeeded(imp, selected) && float64(total+imp.TokenCount) <= float64(cfg.MaxTokens)*1.1 {
				out = append(out, imp)
				have[imp.Key()] = true
				total += imp.TokenCount
			}
		}
	}
	return out
}

func importNeeded(imp parser.Block, selected []parser.Block) bool {
	for _, b := range selected {
		for dep := range imp.Dependencies {
			if strings.Contains(b.Content, dep) {
				return true
			}
		}
	}
	return false
}

func containingClass(all []parser.Block, b parser.Block) *parser.Block {
	for i := range all {
		c := &all[i]
		if c.Type == parser.Class && c.StartLine <= b.StartLine && b.StartLine <= c.EndLine {
			return c
		}
	}
	return nil
}

// classHeader synthesizes a one-line class declaration plus an ellipsis
// comment so extracted methods keep their enclosing scope.
func classHeader(class parser.Block) parser.Block {
	decl := ""
	for _, line := range strings.Split(class.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "class ") {
			decl = line
			break
		}
	}
	if decl == "" {
		decl = fmt.Sprintf("class %s:", class.Name)
	}
	content := decl + "\n    # ... methods extracted below ..."
	return parser.NewSynthetic(content, class.StartLine, class.StartLine+1, parser.ClassHeader, class.Name)
}

func computeStats(original, focused string, blocksSelected, maxTokens int) Stats {
	origTokens := len(strings.Fields(original))
	focTokens := len(strings.Fields(focused))
	origLines := len(strings.Split(original, "\n"))
	focLines := len(strings.Split(focused, "\n"))

	s := Stats{
		TokenSavings:   origTokens - focTokens,
		BlocksSelected: blocksSelected,
		OriginalTokens: origTokens,
		FocusedTokens:  focTokens,
		OriginalLines:  origLines,
		FocusedLines:   focLines,
	}
	if origTokens > 0 {
		s.ReductionRatio = float64(focTokens) / float64(origTokens)
	}
	if origLines > 0 {
		s.LineReduction = float64(origLines-focLines) / float64(origLines)
	}
	if maxTokens > 0 {
		s.TokenBudgetUsed = float64(focTokens) / float64(maxTokens)
	}
	return s
}

func fallback(path, source string, lang parser.Language) Result {
	tokens := len(strings.Fields(source))
	lines := len(strings.Split(source, "\n"))
	return Result{
		FocusedContext: source,
		Stats: Stats{
			ReductionRatio:  1.0,
			BlocksSelected:  1,
			TokenBudgetUsed: 1.0,
			OriginalTokens:  tokens,
			FocusedTokens:   tokens,
			OriginalLines:   lines,
			FocusedLines:    lines,
		},
		DependencyMap: map[string][]string{},
		Language:      string(lang),
		OriginalFile:  path,
		FallbackUsed:  true,
	}
}

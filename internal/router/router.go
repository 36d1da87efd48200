// Copyright 2025 James Ross

// Package router maps a natural-language coding prompt to a concrete model
// identifier by keyword classification under a layered precedence:
// explicit argument > configured global override > category match > default.
package router

import (
	"strings"

	"go.uber.org/zap"

	"github.com/flyingrobots/aider-dispatch/internal/config"
	"github.com/flyingrobots/aider-dispatch/internal/obs"
)

type category struct {
	name     string
	keywords []string
}

// Declaration order breaks score ties, so keep this list stable.
var categories = []category{
	{"hard", []string{"complex", "advanced", "sophisticated", "intricate", "challenging"}},
	{"easy", []string{"simple", "basic", "quick", "easy", "straightforward", "minimal"}},
	{"algorithm", []string{"algorithm", "data structure", "sorting", "searching"}},
	{"testing", []string{"test", "unittest", "pytest", "spec", "assertion", "mock"}},
	{"documentation", []string{"documentation", "readme", "docs", "comment", "explain"}},
	{"writing", []string{"write", "content", "article", "blog", "copy", "text"}},
	{"database", []string{"database", "sql", "query", "orm", "migration", "schema"}},
	{"api", []string{"api", "endpoint", "rest", "graphql", "request", "response"}},
	{"frontend", []string{"frontend", "ui", "interface", "component", "view"}},
	{"backend", []string{"backend", "server", "service", "logic", "business"}},
	{"css", []string{"css", "style", "styling", "animation", "layout", "design"}},
	{"react", []string{"react", "jsx", "component", "hook", "state"}},
	{"python", []string{"python", "py", "django", "flask", "fastapi"}},
	{"javascript", []string{"javascript", "js", "node", "npm"}},
	{"typescript", []string{"typescript", "ts", "tsx", "types"}},
	{"refactor", []string{"refactor", "cleanup", "reorganize", "restructure"}},
	{"optimization", []string{"optimize", "performance", "speed", "efficient"}},
	{"debug", []string{"debug", "fix", "error", "bug", "issue", "problem"}},
}

// Router selects a model for each prompt. Stateless apart from config and
// logging; routing the same prompt twice yields the same identifier.
type Router struct {
	models config.Models
	log    *zap.Logger
}

func New(models config.Models, log *zap.Logger) *Router {
	return &Router{models: models, log: log}
}

// Select resolves the model for prompt. explicit, when non-empty, wins over
// everything else.
func (r *Router) Select(prompt, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if r.models.Override != "" {
		return r.models.Override
	}

	if cat := Classify(prompt); cat != "" {
		if model, ok := r.models.Categories[cat]; ok && model != "" {
			if r.log != nil {
				r.log.Debug("model selected by category",
					obs.String("category", cat), obs.String("model", model))
			}
			return model
		}
	}
	return r.models.Default
}

// Classify returns the highest-scoring keyword category for prompt, or ""
// when no keyword matches. Ties resolve by declaration order.
func Classify(prompt string) string {
	lower := strings.ToLower(prompt)
	best := ""
	bestScore := 0
	for _, c := range categories {
		score := 0
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			best = c.name
			bestScore = score
		}
	}
	return best
}

// TaskKind maps a routing category to the output-estimation task kind.
func TaskKind(prompt string) string {
	switch Classify(prompt) {
	case "testing":
		return "testing"
	case "documentation", "writing":
		return "documentation"
	case "refactor":
		return "refactor"
	case "debug":
		return "debug"
	case "easy":
		return "simple"
	case "":
		return "general"
	default:
		return "code_generation"
	}
}

// Copyright 2025 James Ross

// Package parser extracts named code elements and their dependency edges
// from source files. Two variants are implemented: an indentation-scanning
// analyzer for Python and a regex analyzer for JavaScript/TypeScript; every
// other extension falls back to whole-file handling upstream.
package parser

import "strings"

// ElementType classifies an extracted block.
type ElementType string

const (
	Function    ElementType = "function"
	Method      ElementType = "method"
	Class       ElementType = "class"
	ClassHeader ElementType = "class_header"
	Interface   ElementType = "interface"
	TypeAlias   ElementType = "type"
	Import      ElementType = "import"
	Variable    ElementType = "variable"
)

// Block is one extracted code element. Blocks are immutable after parsing;
// relevance scores live in a separate map owned by the scorer.
type Block struct {
	Content      string
	StartLine    int
	EndLine      int
	Type         ElementType
	Name         string
	Dependencies map[string]bool
	TokenCount   int
}

func newBlock(content string, start, end int, typ ElementType, name string, deps map[string]bool) Block {
	if deps == nil {
		deps = map[string]bool{}
	}
	return Block{
		Content:      content,
		StartLine:    start,
		EndLine:      end,
		Type:         typ,
		Name:         name,
		Dependencies: deps,
		TokenCount:   len(strings.Fields(content)),
	}
}

// NewSynthetic builds a block that has no backing source range, such as the
// class header scaffolding inserted by the completeness pass.
func NewSynthetic(content string, start, end int, typ ElementType, name string) Block {
	return newBlock(content, start, end, typ, name, nil)
}

// Key identifies a block for score maps: name plus position, since two
// elements may share a name (e.g. methods on different classes).
type Key struct {
	Name      string
	StartLine int
}

func (b Block) Key() Key { return Key{Name: b.Name, StartLine: b.StartLine} }

// Graph maps an element name to the set of names it references.
type Graph map[string]map[string]bool

// BuildGraph derives the dependency graph from parsed blocks.
func BuildGraph(blocks []Block) Graph {
	g := make(Graph, len(blocks))
	for _, b := range blocks {
		g[b.Name] = b.Dependencies
	}
	return g
}

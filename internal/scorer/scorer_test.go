// Copyright 2025 James Ross
package scorer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flyingrobots/aider-dispatch/internal/parser"
)

const pySource = `import os
from billing import charge_card

TAX_RATE = 0.2

def charge(amount):
    total = amount * (1 + TAX_RATE)
    return charge_card(total)

def checkout(cart):
    amount = sum_cart(cart)
    return charge(amount)

def sum_cart(cart):
    total = 0
    for item in cart:
        total = total + item.price
    return total

def unrelated_report():
    print_report()

class Invoice:
    def render(self):
        return "invoice"
`

func scored(t *testing.T) (map[parser.Key]int, []parser.Block, []parser.Block) {
	t.Helper()
	blocks, err := parser.ParsePython(pySource)
	require.NoError(t, err)
	targets := []parser.Block{}
	for _, b := range blocks {
		if b.Name == "charge" {
			targets = append(targets, b)
		}
	}
	require.Len(t, targets, 1)
	graph := parser.BuildGraph(blocks)
	return Score(blocks, targets, graph, 1), blocks, targets
}

func find(t *testing.T, blocks []parser.Block, name string) parser.Block {
	t.Helper()
	for _, b := range blocks {
		if b.Name == name {
			return b
		}
	}
	t.Fatalf("missing block %q", name)
	return parser.Block{}
}

func TestScoreTable(t *testing.T) {
	scores, blocks, _ := scored(t)

	assert.Equal(t, ScoreTarget, scores[find(t, blocks, "charge").Key()])
	// checkout calls the target
	assert.Equal(t, ScoreDirectCalls, scores[find(t, blocks, "checkout").Key()])
	// the target calls charge_card, imported from billing
	imp := parser.Block{}
	for _, b := range blocks {
		if b.Type == parser.Import && b.Dependencies["charge_card"] {
			imp = b
		}
	}
	require.NotEmpty(t, imp.Name)
	assert.Equal(t, ScoreImports, scores[imp.Key()])
	// sum_cart assigns "total", as does the target
	assert.Equal(t, ScoreSharedState, scores[find(t, blocks, "sum_cart").Key()])
	// unrelated function excluded entirely
	_, ok := scores[find(t, blocks, "unrelated_report").Key()]
	assert.False(t, ok)
}

func TestMinScoreFiltersOut(t *testing.T) {
	blocks, err := parser.ParsePython(pySource)
	require.NoError(t, err)
	var targets []parser.Block
	for _, b := range blocks {
		if b.Name == "charge" {
			targets = append(targets, b)
		}
	}
	graph := parser.BuildGraph(blocks)
	scores := Score(blocks, targets, graph, ScoreDirectCalls)
	for _, s := range scores {
		assert.GreaterOrEqual(t, s, ScoreDirectCalls)
	}
}

func TestClassContextScore(t *testing.T) {
	blocks, err := parser.ParsePython(pySource)
	require.NoError(t, err)
	var targets []parser.Block
	for _, b := range blocks {
		if b.Name == "render" && b.Type == parser.Method {
			targets = append(targets, b)
		}
	}
	require.Len(t, targets, 1)
	graph := parser.BuildGraph(blocks)
	scores := Score(blocks, targets, graph, 1)
	assert.Equal(t, ScoreClassContext, scores[find(t, blocks, "Invoice").Key()])
}

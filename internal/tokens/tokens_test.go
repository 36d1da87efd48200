// Copyright 2025 James Ross
package tokens

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCountNeverFails(t *testing.T) {
	assert.Equal(t, 0, Count("", "gpt-4.1-mini"))
	assert.Greater(t, Count("def login_user(): pass", "gpt-4.1-mini"), 0)
	// unknown model falls back to len/4
	text := strings.Repeat("a", 400)
	assert.Equal(t, 100, Count(text, "mystery-model"))
}

func TestCountScansPunctuation(t *testing.T) {
	// "f(x)" is four tokens under the scan: f ( x )
	assert.Equal(t, 4, Count("f(x)", "gpt-4.1-mini"))
}

func TestEstimateOutputRatios(t *testing.T) {
	cases := []struct {
		kind  string
		input int
		want  int
	}{
		{"code_generation", 1000, 2000},
		{"documentation", 1000, 1500},
		{"testing", 1000, 1200},
		{"refactor", 1000, 800},
		{"debug", 1000, 500},
		{"simple", 1000, 300},
		{"general", 1000, 1000},
		{"unheard_of", 1000, 1000},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, EstimateOutput(c.input, c.kind), c.kind)
	}
}

func TestEstimateOutputClamps(t *testing.T) {
	// floor: at least 100 tokens even for tiny inputs
	assert.Equal(t, 100, EstimateOutput(10, "simple"))
	// ceiling: 4000 caps moderate inputs
	assert.Equal(t, 4000, EstimateOutput(5000, "general"))
	// the input/10 floor dominates the 4000 ceiling for huge inputs
	assert.Equal(t, 10000, EstimateOutput(100000, "code_generation"))
	// ratio estimate passes through when inside the clamp window
	assert.Equal(t, 600, EstimateOutput(300, "code_generation"))
}

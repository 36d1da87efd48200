// Copyright 2025 James Ross

// Package tokens estimates token usage for prompt and file content. Counts
// are approximations good enough for budgeting; exact provider-side counts
// are out of scope.
package tokens

import (
	"strings"
	"unicode"
)

// Count approximates the number of tokens text would consume for model.
// Models from known families get a word-and-punctuation scan; anything else
// falls back to len/4. Count never fails.
func Count(text, model string) int {
	if text == "" {
		return 0
	}
	if knownFamily(model) {
		return scanCount(text)
	}
	return len(text) / 4
}

func knownFamily(model string) bool {
	m := strings.ToLower(model)
	for _, fam := range []string{"gpt", "claude", "gemini", "o1", "o3"} {
		if strings.Contains(m, fam) {
			return true
		}
	}
	return false
}

// scanCount splits on whitespace and counts punctuation runs separately,
// which tracks BPE tokenizers more closely than a plain word split.
func scanCount(text string) int {
	n := 0
	inWord := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			inWord = false
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			if !inWord {
				n++
				inWord = true
			}
		default:
			n++
			inWord = false
		}
	}
	if n == 0 {
		return len(text) / 4
	}
	return n
}

// outputRatios maps a task kind to the expected output/input token ratio.
var outputRatios = map[string]float64{
	"code_generation": 2.0,
	"documentation":   1.5,
	"testing":         1.2,
	"refactor":        0.8,
	"debug":           0.5,
	"simple":          0.3,
	"general":         1.0,
}

// EstimateOutput projects output tokens for a task of the given kind,
// clamped to [max(100, input/10), min(4000, input*3)].
func EstimateOutput(inputTokens int, kind string) int {
	ratio, ok := outputRatios[kind]
	if !ok {
		ratio = 1.0
	}
	est := int(float64(inputTokens) * ratio)

	lo := inputTokens / 10
	if lo < 100 {
		lo = 100
	}
	hi := inputTokens * 3
	if hi > 4000 {
		hi = 4000
	}
	if hi < lo {
		hi = lo
	}
	if est < lo {
		return lo
	}
	if est > hi {
		return hi
	}
	return est
}

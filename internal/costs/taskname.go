// Copyright 2025 James Ross
package costs

import (
	"regexp"
	"strings"
)

var nonWord = regexp.MustCompile(`[^\w\s]`)

var skipWords = map[string]bool{
	"create": true, "make": true, "build": true, "write": true, "generate": true,
	"add": true, "implement": true, "a": true, "an": true, "the": true,
	"for": true, "with": true, "that": true, "simple": true, "basic": true,
}

// TaskName derives a short ledger label from a prompt: up to four key words,
// capitalized, capped at 50 characters.
func TaskName(prompt string) string {
	clean := nonWord.ReplaceAllString(strings.ToLower(prompt), "")
	words := strings.Fields(clean)
	if len(words) > 10 {
		words = words[:10]
	}
	var key []string
	for _, w := range words {
		if skipWords[w] || len(w) <= 2 {
			continue
		}
		key = append(key, strings.ToUpper(w[:1])+w[1:])
		if len(key) == 4 {
			break
		}
	}
	if len(key) == 0 {
		return "Coding Task"
	}
	name := strings.Join(key, " ")
	if len(name) > 50 {
		name = name[:50]
	}
	return name
}

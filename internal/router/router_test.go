// Copyright 2025 James Ross
package router

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/flyingrobots/aider-dispatch/internal/config"
)

func testModels() config.Models {
	return config.Models{
		Default: "default-model",
		Categories: map[string]string{
			"debug":         "debug-model",
			"testing":       "testing-model",
			"documentation": "docs-model",
			"css":           "css-model",
		},
	}
}

func TestSelectPrecedence(t *testing.T) {
	t.Run("explicit argument wins", func(t *testing.T) {
		r := New(testModels(), nil)
		assert.Equal(t, "forced", r.Select("fix the bug", "forced"))
	})
	t.Run("global override beats category", func(t *testing.T) {
		m := testModels()
		m.Override = "override-model"
		r := New(m, nil)
		assert.Equal(t, "override-model", r.Select("fix the bug", ""))
	})
	t.Run("category match", func(t *testing.T) {
		r := New(testModels(), nil)
		assert.Equal(t, "debug-model", r.Select("fix the login bug", ""))
	})
	t.Run("missing category falls back to default", func(t *testing.T) {
		r := New(testModels(), nil)
		// classifies as refactor, which has no mapping
		assert.Equal(t, "default-model", r.Select("refactor the helpers", ""))
	})
	t.Run("no keywords falls back to default", func(t *testing.T) {
		r := New(testModels(), nil)
		assert.Equal(t, "default-model", r.Select("hello there", ""))
	})
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "debug", Classify("fix the login_user function"))
	assert.Equal(t, "testing", Classify("write a unittest with mock assertions"))
	assert.Equal(t, "css", Classify("adjust styling and animation layout"))
	assert.Equal(t, "", Classify("zzz"))
}

func TestClassifyTieBreaksByDeclarationOrder(t *testing.T) {
	// one hit each for documentation ("explain") and debug ("problem");
	// documentation is declared first
	assert.Equal(t, "documentation", Classify("explain that problem"))
}

func TestSelectIsDeterministic(t *testing.T) {
	r := New(testModels(), nil)
	prompt := "fix a bug in the css styling"
	first := r.Select(prompt, "")
	for i := 0; i < 20; i++ {
		assert.Equal(t, first, r.Select(prompt, ""))
	}
}

func TestTaskKind(t *testing.T) {
	assert.Equal(t, "debug", TaskKind("fix the bug"))
	assert.Equal(t, "testing", TaskKind("write a pytest spec"))
	assert.Equal(t, "general", TaskKind("zzz"))
	assert.Equal(t, "code_generation", TaskKind("build the api endpoint"))
}

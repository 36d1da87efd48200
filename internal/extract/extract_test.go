// Copyright 2025 James Ross
package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const authSource = `import os
from auth.tokens import issue_token

SESSION_TTL = 3600

def hash_password(raw):
    return os.urandom(16).hex() + raw

def login_user(username, password):
    hashed = hash_password(password)
    token = issue_token(username)
    return token

def unrelated_cleanup():
    purge_logs()

class SessionStore:
    def save(self, token):
        self.tokens.append(token)
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func defaultCfg() Config {
	return Config{MaxTokens: 4000, MinRelevanceScore: 3, IncludeImports: true, PreserveSyntax: true}
}

func TestExtractFocusedContext(t *testing.T) {
	path := writeFile(t, "auth.py", authSource)
	r := Extract(path, []string{"login_user"}, defaultCfg(), nil)

	assert.False(t, r.FallbackUsed)
	assert.Equal(t, []string{"login_user"}, r.TargetElements)
	assert.Equal(t, "python", r.Language)
	assert.Contains(t, r.FocusedContext, "def login_user")
	assert.Contains(t, r.FocusedContext, "def hash_password") // called by the target
	assert.Contains(t, r.FocusedContext, "issue_token")       // essential import
	assert.NotContains(t, r.FocusedContext, "unrelated_cleanup")

	assert.Less(t, r.Stats.ReductionRatio, 1.0)
	assert.Greater(t, r.Stats.TokenSavings, 0)
	assert.Equal(t, r.Stats.OriginalTokens-r.Stats.FocusedTokens, r.Stats.TokenSavings)
	require.NotEmpty(t, r.SuggestedEdits)
	assert.Equal(t, "login_user", r.SuggestedEdits[0].ElementName)
	assert.Contains(t, r.DependencyMap["login_user"], "hash_password")
}

func TestExtractBudgetCap(t *testing.T) {
	path := writeFile(t, "auth.py", authSource)
	cfg := defaultCfg()
	cfg.MaxTokens = 12
	r := Extract(path, []string{"login_user"}, cfg, nil)

	assert.False(t, r.FallbackUsed)
	focusedTokens := len(strings.Fields(r.FocusedContext))
	assert.LessOrEqual(t, float64(focusedTokens), float64(cfg.MaxTokens)*1.10)
}

func TestExtractMethodGetsClassHeader(t *testing.T) {
	path := writeFile(t, "auth.py", authSource)
	cfg := defaultCfg()
	// keep the full class body (score 3) out so the synthesized header is used
	cfg.MinRelevanceScore = 4
	r := Extract(path, []string{"SessionStore.save"}, cfg, nil)

	assert.False(t, r.FallbackUsed)
	assert.Contains(t, r.FocusedContext, "def save")
	assert.Contains(t, r.FocusedContext, "class SessionStore:")
	assert.Contains(t, r.FocusedContext, "# ... methods extracted below ...")
}

func TestExtractUnknownLanguageFallsBack(t *testing.T) {
	path := writeFile(t, "notes.xyz", "some opaque contents here")
	r := Extract(path, []string{"anything"}, defaultCfg(), nil)

	assert.True(t, r.FallbackUsed)
	assert.Equal(t, "some opaque contents here", r.FocusedContext)
	assert.Equal(t, 1.0, r.Stats.ReductionRatio)
	assert.Equal(t, "unknown", r.Language)
}

func TestExtractMissingTargetFallsBack(t *testing.T) {
	path := writeFile(t, "auth.py", authSource)
	r := Extract(path, []string{"does_not_exist"}, defaultCfg(), nil)
	assert.True(t, r.FallbackUsed)
	assert.Equal(t, authSource, r.FocusedContext)
}

func TestExtractUnreadableFile(t *testing.T) {
	r := Extract(filepath.Join(t.TempDir(), "absent.py"), []string{"x"}, defaultCfg(), nil)
	assert.NotEmpty(t, r.Err)
	assert.Contains(t, r.FocusedContext, "Error reading file")
}

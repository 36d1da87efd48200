// Copyright 2025 James Ross
package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectTargetsFromPrompt(t *testing.T) {
	cases := []struct {
		prompt string
		want   []string
	}{
		{"Fix the login_user function", []string{"login_user"}},
		{"Update UserManager class", []string{"UserManager"}},
		{"The calculate_sum function has a bug", []string{"calculate_sum"}},
		{"bug in the authenticate method", []string{"authenticate"}},
		{"call validate_input() before saving", []string{"validate_input"}},
		{"please review this change", nil},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, DetectTargets(c.prompt, nil, false), c.prompt)
	}
}

func TestDetectTargetsFiltersStopWordsAndShortNames(t *testing.T) {
	assert.Empty(t, DetectTargets("fix the the function", nil, false))
	assert.Empty(t, DetectTargets("fix the ab function", nil, false))
}

func TestDetectTargetsVerifiesAgainstFiles(t *testing.T) {
	content := "def login_user(username):\n    pass\n"
	got := DetectTargets("fix the login_user function and fix the ghost_func function", []string{content}, false)
	assert.Equal(t, []string{"login_user"}, got)

	// nothing declared in the files: empty result, no error
	got = DetectTargets("fix the ghost_func function", []string{"x = 1\n"}, false)
	assert.Empty(t, got)
}

func TestDetectTargetsExtendedCatalog(t *testing.T) {
	routeFile := "app.get('/users', listUsers)\n"
	// only the extended catalog recognizes route-handler registration
	assert.Empty(t, DetectTargets("fix the listUsers function", []string{routeFile}, false))
	assert.Equal(t, []string{"listUsers"}, DetectTargets("fix the listUsers function", []string{routeFile}, true))

	component := "class ProfileCard extends React.Component {\n}\n"
	assert.Equal(t, []string{"ProfileCard"}, DetectTargets("update ProfileCard class", []string{component}, true))
}

func TestDetectTargetsIsIdempotent(t *testing.T) {
	prompt := "fix the login_user function and debug the save_session method"
	first := DetectTargets(prompt, nil, false)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, DetectTargets(prompt, nil, false))
	}
}

package testutil

import "testing"

// Given, When and Then name nested subtests after the scenario step they
// describe, so failures read as "Given a partner/When it resolves/Then ...".
func Given(t *testing.T, context string, steps func(t *testing.T)) {
	t.Helper()
	step(t, "Given", context, steps)
}

func When(t *testing.T, action string, steps func(t *testing.T)) {
	t.Helper()
	step(t, "When", action, steps)
}

func Then(t *testing.T, outcome string, check func(t *testing.T)) {
	t.Helper()
	step(t, "Then", outcome, check)
}

func step(t *testing.T, keyword, text string, fn func(t *testing.T)) {
	t.Helper()
	t.Run(keyword+" "+text, fn)
}

package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePullRequestURL(t *testing.T) {
	owner, repo, number, err := parsePullRequestURL("https://github.com/octocat/hello-world/pull/123")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", repo)
	assert.Equal(t, 123, number)
}

func TestParsePullRequestURLInvalid(t *testing.T) {
	invalid := []string{
		"",
		"octocat/hello-world",
		"https://github.com/octocat/hello-world",
		"https://github.com/octocat/hello-world/issues/123",
		"https://gitlab.com/octocat/hello-world/pull/123",
		"https://github.com/octocat/hello-world/pull/abc",
	}
	for _, url := range invalid {
		_, _, _, err := parsePullRequestURL(url)
		assert.Error(t, err, "url %q should be rejected", url)
	}
}

func TestSplitFullName(t *testing.T) {
	owner, name, err := splitFullName("octocat/hello-world")
	require.NoError(t, err)
	assert.Equal(t, "octocat", owner)
	assert.Equal(t, "hello-world", name)

	for _, bad := range []string{"", "octocat", "octocat/", "/repo", "a/b/c"} {
		_, _, err := splitFullName(bad)
		assert.Error(t, err, "input %q should be rejected", bad)
	}
}

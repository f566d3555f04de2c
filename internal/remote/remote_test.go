package remote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseGitHub(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want GitHubRepo
	}{
		{name: "https with .git", url: "https://github.com/acme/widgets.git", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "https without .git", url: "https://github.com/acme/widgets", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "https trailing slash", url: "https://github.com/acme/widgets/", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "https with user", url: "https://token@github.com/acme/widgets.git", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "scp style", url: "git@github.com:acme/widgets.git", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "ssh url", url: "ssh://git@github.com/acme/widgets.git", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
		{name: "dotted repo", url: "git@github.com:acme/widgets.io.git", want: GitHubRepo{Owner: "acme", Repo: "widgets.io"}},
		{name: "surrounding whitespace", url: "  git@github.com:acme/widgets.git\n", want: GitHubRepo{Owner: "acme", Repo: "widgets"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseGitHub(tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseGitHubNoMatch(t *testing.T) {
	for _, url := range []string{
		"",
		"not a url",
		"https://gitlab.com/acme/widgets.git",
		"git@bitbucket.org:acme/widgets.git",
		"https://github.com/acme",
		"https://github.com/acme/.git",
		"https://github.com/acme/widgets/tree/main",
	} {
		t.Run(url, func(t *testing.T) {
			require.NotPanics(t, func() {
				_, ok := ParseGitHub(url)
				assert.False(t, ok)
			})
		})
	}
}

func TestParseBitbucket(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want BitbucketRepo
	}{
		{name: "https", url: "https://bitbucket.org/acme/widgets", want: BitbucketRepo{Workspace: "acme", Repo: "widgets"}},
		{name: "https with user and .git", url: "https://dev@bitbucket.org/acme/widgets.git", want: BitbucketRepo{Workspace: "acme", Repo: "widgets"}},
		{name: "scp style", url: "git@bitbucket.org:acme/widgets.git", want: BitbucketRepo{Workspace: "acme", Repo: "widgets"}},
		{name: "workspace only", url: "https://bitbucket.org/acme", want: BitbucketRepo{Workspace: "acme", Repo: WorkspacePlaceholder}},
		{name: "workspace only trailing slash", url: "https://bitbucket.org/acme/", want: BitbucketRepo{Workspace: "acme", Repo: WorkspacePlaceholder}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseBitbucket(tt.url)
			require.True(t, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseBitbucketNoMatch(t *testing.T) {
	for _, url := range []string{"", "https://github.com/acme/widgets", "git@bitbucket.org:acme", "ftp://bitbucket.org/acme/widgets"} {
		_, ok := ParseBitbucket(url)
		assert.False(t, ok, url)
	}
}

func TestDetect(t *testing.T) {
	p, ok := Detect("git@github.com:acme/widgets.git")
	require.True(t, ok)
	assert.Equal(t, ProviderGitHub, p)

	p, ok = Detect("https://bitbucket.org/acme/widgets")
	require.True(t, ok)
	assert.Equal(t, ProviderBitbucket, p)

	_, ok = Detect("https://example.com/acme/widgets")
	assert.False(t, ok)
}

func TestFullName(t *testing.T) {
	assert.Equal(t, "acme/widgets", GitHubRepo{Owner: "acme", Repo: "widgets"}.FullName())
	assert.Equal(t, "acme/widgets", BitbucketRepo{Workspace: "acme", Repo: "widgets"}.FullName())
}

// Package remote extracts hosting-provider identities from git remote URLs.
package remote

import (
	"regexp"
	"strings"
)

type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderBitbucket Provider = "bitbucket"
)

// WorkspacePlaceholder is the repo name assigned when a Bitbucket URL names
// only a workspace.
const WorkspacePlaceholder = "workspace"

// GitHubRepo identifies a repository on github.com.
type GitHubRepo struct {
	Owner string `json:"owner"`
	Repo  string `json:"repo"`
}

func (r GitHubRepo) FullName() string { return r.Owner + "/" + r.Repo }

// BitbucketRepo identifies a repository on bitbucket.org.
type BitbucketRepo struct {
	Workspace string `json:"workspace"`
	Repo      string `json:"repo"`
}

func (r BitbucketRepo) FullName() string { return r.Workspace + "/" + r.Repo }

var githubPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:[^@/]+@)?github\.com/([^/]+)/([^/]+?)/?$`),
	regexp.MustCompile(`^(?:ssh://)?git@github\.com[:/]([^/]+)/([^/]+?)/?$`),
}

var bitbucketPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^https?://(?:[^@/]+@)?bitbucket\.org/([^/]+)/([^/]+?)/?$`),
	regexp.MustCompile(`^(?:ssh://)?git@bitbucket\.org[:/]([^/]+)/([^/]+?)/?$`),
	// Loose fallback: workspace only.
	regexp.MustCompile(`^https?://(?:[^@/]+@)?bitbucket\.org/([^/]+)/?$`),
}

// ParseGitHub returns the owner and repository named by a github.com remote.
func ParseGitHub(url string) (GitHubRepo, bool) {
	first, second, ok := match(githubPatterns, url)
	if !ok {
		return GitHubRepo{}, false
	}
	return GitHubRepo{Owner: first, Repo: second}, true
}

// ParseBitbucket returns the workspace and repository named by a
// bitbucket.org remote. A workspace-only URL yields WorkspacePlaceholder as
// the repository.
func ParseBitbucket(url string) (BitbucketRepo, bool) {
	first, second, ok := match(bitbucketPatterns, url)
	if !ok {
		return BitbucketRepo{}, false
	}
	if second == "" {
		second = WorkspacePlaceholder
	}
	return BitbucketRepo{Workspace: first, Repo: second}, true
}

// Detect reports which provider grammar url matches.
func Detect(url string) (Provider, bool) {
	if _, ok := ParseGitHub(url); ok {
		return ProviderGitHub, true
	}
	if _, ok := ParseBitbucket(url); ok {
		return ProviderBitbucket, true
	}
	return "", false
}

func match(patterns []*regexp.Regexp, url string) (string, string, bool) {
	url = strings.TrimSpace(url)
	for _, re := range patterns {
		m := re.FindStringSubmatch(url)
		if m == nil {
			continue
		}
		second := ""
		if len(m) > 2 {
			second = strings.TrimSuffix(m[2], ".git")
		}
		if len(m) > 2 && second == "" {
			// "owner/.git" names no repository.
			continue
		}
		return m[1], second, true
	}
	return "", "", false
}

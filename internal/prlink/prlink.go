// Package prlink builds the browser URLs used to open and create pull requests.
package prlink

import (
	"strings"

	"github.com/gitpr/gitpr/internal/remote"
)

const (
	GitHubHost    = "github.com"
	BitbucketHost = "bitbucket.org"

	DefaultBase = "main"
)

// CompareURL returns the GitHub "quick pull" compare page for head against
// base, prefilled with title and body. Branch names are used verbatim.
func CompareURL(repo remote.GitHubRepo, base, head, title, body string) string {
	if base == "" {
		base = DefaultBase
	}
	var sb strings.Builder
	sb.WriteString("https://" + GitHubHost + "/")
	sb.WriteString(repo.Owner + "/" + repo.Repo)
	sb.WriteString("/compare/" + base + "..." + head)
	sb.WriteString("?quick_pull=1&title=" + EncodeComponent(title))
	sb.WriteString("&body=" + EncodeComponent(body))
	return sb.String()
}

// NewPullRequestURL returns the Bitbucket pull-request creation page for
// source into dest. Branch names are used verbatim.
func NewPullRequestURL(repo remote.BitbucketRepo, source, dest string) string {
	if dest == "" {
		dest = DefaultBase
	}
	return "https://" + BitbucketHost + "/" + repo.Workspace + "/" + repo.Repo +
		"/pull-requests/new?source=" + source + "&dest=" + dest
}

func GitHubRepositoryURL(repo remote.GitHubRepo) string {
	return "https://" + GitHubHost + "/" + repo.Owner + "/" + repo.Repo
}

func BitbucketRepositoryURL(repo remote.BitbucketRepo) string {
	return "https://" + BitbucketHost + "/" + repo.Workspace + "/" + repo.Repo
}

const upperhex = "0123456789ABCDEF"

// EncodeComponent percent-encodes s the way a URI component is encoded in
// browsers: everything except A-Z a-z 0-9 and -_.!~*'() is escaped as UTF-8
// bytes.
func EncodeComponent(s string) string {
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			sb.WriteByte(c)
			continue
		}
		sb.WriteByte('%')
		sb.WriteByte(upperhex[c>>4])
		sb.WriteByte(upperhex[c&15])
	}
	return sb.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')':
		return true
	}
	return false
}

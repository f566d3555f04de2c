package core

import (
	"fmt"
	"strings"
)

// Policy enforces repo and tool allowlists parsed from comma-separated env
// vars, plus path prefixes that may never be staged.
type Policy struct {
	allowedRepos          map[string]bool
	allowedTools          map[string]bool
	forbiddenPathPrefixes []string
}

// NewPolicy creates a Policy from comma-separated allowlist strings.
// An empty allowlist allows everything.
func NewPolicy(repoCSV, toolCSV string) *Policy {
	return &Policy{
		allowedRepos:          parseCSV(repoCSV),
		allowedTools:          parseCSV(toolCSV),
		forbiddenPathPrefixes: make([]string, 0),
	}
}

func (p *Policy) SetForbiddenPaths(forbiddenCSV string) {
	p.forbiddenPathPrefixes = parsePrefixesCSV(forbiddenCSV)
}

// CheckRepo returns an error if repo (owner/repo or workspace/repo) is not in
// a non-empty allowlist.
func (p *Policy) CheckRepo(repo string) error {
	if p == nil || len(p.allowedRepos) == 0 {
		return nil
	}
	if !p.allowedRepos[repo] {
		return fmt.Errorf("repo %q not in allowlist", repo)
	}
	return nil
}

// CheckTool returns an error if toolName is not in a non-empty allowlist.
func (p *Policy) CheckTool(toolName string) error {
	if p == nil || len(p.allowedTools) == 0 {
		return nil
	}
	if !p.allowedTools[toolName] {
		return fmt.Errorf("tool %q not in allowlist", toolName)
	}
	return nil
}

// CheckPaths rejects pathspecs under a forbidden prefix.
func (p *Policy) CheckPaths(paths []string) error {
	if p == nil {
		return nil
	}
	for _, raw := range paths {
		path := normalizePath(raw)
		for _, prefix := range p.forbiddenPathPrefixes {
			if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
				return fmt.Errorf("path %q forbidden by policy", raw)
			}
		}
	}
	return nil
}

func parseCSV(s string) map[string]bool {
	m := make(map[string]bool)
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			m[item] = true
		}
	}
	return m
}

func parsePrefixesCSV(s string) []string {
	out := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		item = normalizePath(item)
		if item != "" {
			out = append(out, item)
		}
	}
	return out
}

func normalizePath(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "./")
	s = strings.TrimPrefix(s, "/")
	return s
}

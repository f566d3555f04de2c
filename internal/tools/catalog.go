// Package tools defines the git and pull-request tools served over every
// transport.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/gitops"
	"github.com/gitpr/gitpr/internal/pullrequest"
)

const (
	GitStatus         = "git_status"
	GitAdd            = "git_add"
	GitCommit         = "git_commit"
	GitPush           = "git_push"
	GitPull           = "git_pull"
	GitBranch         = "git_branch"
	GitCheckout       = "git_checkout"
	GitLog            = "git_log"
	GitDiff           = "git_diff"
	CreatePR          = "create_pr"
	CreateBitbucketPR = "create_bitbucket_pr"
	BitbucketAuthPR   = "bitbucket_auth_pr"
	OpenRepo          = "open_repo"
	ClosePRSessions   = "close_pr_sessions"
)

const (
	defaultLogCount = 10
	maxLogCount     = 1000
)

type Runner interface {
	Run(ctx context.Context, dir string, args ...string) gitops.Result
	WorkDir() string
}

// Deps are the collaborators the catalog's handlers call.
type Deps struct {
	Runner Runner
	PRs    *pullrequest.Service
	Policy *core.Policy
}

// Catalog returns every tool in listing order.
func Catalog(deps Deps) []core.Tool {
	g := &gitTools{runner: deps.Runner, policy: deps.Policy}
	p := &prTools{svc: deps.PRs}
	return []core.Tool{
		tool(GitStatus, "Get git status (porcelain)", nil, nil, true, g.status),
		tool(GitAdd, "Add files to the index", map[string]*jsonschema.Schema{
			"files": core.Prop("string", "Whitespace-separated pathspecs", "."),
		}, nil, true, g.add),
		tool(GitCommit, "Commit staged changes", map[string]*jsonschema.Schema{
			"message": core.Prop("string", "Commit message", nil),
		}, []string{"message"}, true, g.commit),
		tool(GitPush, "Push to remote", nil, nil, true, g.push),
		tool(GitPull, "Pull from remote", nil, nil, true, g.pull),
		tool(GitBranch, "List branches, or create and switch to a new one", map[string]*jsonschema.Schema{
			"name": core.Prop("string", "Branch to create; omit to list branches", nil),
		}, nil, true, g.branch),
		tool(GitCheckout, "Checkout branch", map[string]*jsonschema.Schema{
			"branch": core.Prop("string", "Branch to switch to", nil),
		}, []string{"branch"}, true, g.checkout),
		tool(GitLog, "Show history", map[string]*jsonschema.Schema{
			"count": core.Prop("number", "Number of commits", defaultLogCount),
		}, nil, true, g.log),
		tool(GitDiff, "Show unstaged differences", nil, nil, true, g.diff),
		tool(CreatePR, "Push the current branch and open a prefilled GitHub pull request page", map[string]*jsonschema.Schema{
			"title": core.Prop("string", "Pull request title", nil),
			"body":  core.Prop("string", "Pull request description", nil),
			"base":  core.Prop("string", "Target branch", "main"),
		}, []string{"title"}, true, p.createGitHub),
		tool(CreateBitbucketPR, "Push the current branch and open a Bitbucket pull request in a signed-in browser", map[string]*jsonschema.Schema{
			"title": core.Prop("string", "Pull request title", nil),
			"body":  core.Prop("string", "Pull request description", nil),
			"base":  core.Prop("string", "Target branch", "main"),
		}, []string{"title"}, true, p.createBitbucket),
		tool(BitbucketAuthPR, "Sign in to Bitbucket and create a pull request for an explicit repository and branch", map[string]*jsonschema.Schema{
			"workspace": core.Prop("string", "Bitbucket workspace", nil),
			"repo":      core.Prop("string", "Repository slug", nil),
			"source":    core.Prop("string", "Source branch", nil),
			"dest":      core.Prop("string", "Destination branch", "main"),
			"title":     core.Prop("string", "Pull request title", nil),
			"body":      core.Prop("string", "Pull request description", nil),
		}, []string{"workspace", "repo", "source", "title"}, false, p.bitbucketAuth),
		tool(OpenRepo, "Open the repository page in the system browser", nil, nil, true, p.openRepo),
		tool(ClosePRSessions, "Close browser sessions left open by pull request tools", nil, nil, false, p.closeSessions),
	}
}

// tool builds a descriptor. withPath adds the optional working directory
// override.
func tool(name, desc string, props map[string]*jsonschema.Schema, required []string, withPath bool, h core.Handler) core.Tool {
	all := make(map[string]*jsonschema.Schema, len(props)+1)
	for k, v := range props {
		all[k] = v
	}
	if withPath {
		all["path"] = core.Prop("string", "Working directory; defaults to the server's", nil)
	}
	return core.Tool{
		Descriptor: core.ToolDescriptor{
			Name:        name,
			Description: desc,
			InputSchema: core.ObjectSchema(all, required...),
		},
		Handler: h,
	}
}

// resolveDir returns the absolute working directory named by the path
// argument, or "" for the runner's default.
func resolveDir(args core.Args) (string, error) {
	p := args.String("path")
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", &core.InputError{Msg: fmt.Sprintf("path %q: %v", p, err)}
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", &core.InputError{Msg: fmt.Sprintf("path %q does not exist", p)}
	}
	if !info.IsDir() {
		return "", &core.InputError{Msg: fmt.Sprintf("path %q is not a directory", p)}
	}
	return abs, nil
}

func failWith(err error) (core.ToolResult, error) {
	return core.ErrorResult(err.Error()), err
}

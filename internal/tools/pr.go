package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/gitpr/gitpr/internal/browser"
	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/prlink"
	"github.com/gitpr/gitpr/internal/pullrequest"
	"github.com/gitpr/gitpr/internal/remote"
)

type prTools struct {
	svc *pullrequest.Service
}

func (p *prTools) createGitHub(ctx context.Context, args core.Args) (core.ToolResult, error) {
	dir, err := resolveDir(args)
	if err != nil {
		return failWith(err)
	}
	out, err := p.svc.Create(ctx, dir, pullrequest.ModeQuickLink, pullrequest.Request{
		Title:        args.Raw("title"),
		Body:         args.Raw("body"),
		TargetBranch: args.StringOr("base", prlink.DefaultBase),
	}, pullrequest.SessionOptions{})
	if err != nil {
		return failWith(err)
	}
	return core.TextResult("PR page opened: " + out.URL), nil
}

func (p *prTools) createBitbucket(ctx context.Context, args core.Args) (core.ToolResult, error) {
	dir, err := resolveDir(args)
	if err != nil {
		return failWith(err)
	}
	out, err := p.svc.Create(ctx, dir, pullrequest.ModeAuthenticatedInteractive, pullrequest.Request{
		Title:        args.Raw("title"),
		Body:         args.Raw("body"),
		TargetBranch: args.StringOr("base", prlink.DefaultBase),
	}, pullrequest.SessionOptions{Submit: browser.SubmitOptional, Fields: browser.FieldsSilent})
	if err != nil {
		// Without an outcome nothing was pushed or opened; the error text is
		// the whole answer.
		if out == nil {
			return failWith(err)
		}
		return core.ErrorResult("Error creating Bitbucket PR: " + err.Error()), err
	}
	return core.TextResult(withWarnings("Bitbucket PR session opened: "+out.URL, out.Warnings())), nil
}

func (p *prTools) bitbucketAuth(ctx context.Context, args core.Args) (core.ToolResult, error) {
	repo := remote.BitbucketRepo{Workspace: args.String("workspace"), Repo: args.String("repo")}
	out, err := p.svc.CreateFor(ctx, repo, pullrequest.Request{
		Title:        args.Raw("title"),
		Body:         args.Raw("body"),
		SourceBranch: args.String("source"),
		TargetBranch: args.StringOr("dest", prlink.DefaultBase),
	}, pullrequest.SessionOptions{Submit: browser.SubmitRequired, Fields: browser.FieldsWarn})
	if err != nil {
		return core.ErrorResult("Error: " + err.Error()), err
	}
	return core.TextResult(withWarnings("PR created: "+out.URL, out.Warnings())), nil
}

func (p *prTools) openRepo(ctx context.Context, args core.Args) (core.ToolResult, error) {
	dir, err := resolveDir(args)
	if err != nil {
		return failWith(err)
	}
	url, err := p.svc.OpenRepository(ctx, dir)
	if err != nil {
		return failWith(err)
	}
	return core.TextResult("Repository opened: " + url), nil
}

func (p *prTools) closeSessions(_ context.Context, _ core.Args) (core.ToolResult, error) {
	n, err := p.svc.Sessions().CloseAll()
	if err != nil {
		return core.ErrorResult(fmt.Sprintf("Closed %d browser session(s) with errors: %v", n, err)), err
	}
	return core.TextResult(fmt.Sprintf("Closed %d browser session(s)", n)), nil
}

func withWarnings(text string, warnings []string) string {
	if len(warnings) == 0 {
		return text
	}
	return text + "\n" + strings.Join(warnings, "\n")
}

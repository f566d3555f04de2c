package tools

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/gitops"
)

type gitTools struct {
	runner Runner
	policy *core.Policy
}

// result maps a command outcome to the tool result: output on success, the
// failure message otherwise. A non-empty confirm replaces successful output.
func result(res gitops.Result, confirm string) (core.ToolResult, error) {
	if !res.Success {
		return core.ErrorResult(res.Err), errors.New(res.Err)
	}
	if confirm != "" {
		return core.TextResult(confirm), nil
	}
	return core.TextResult(res.Output), nil
}

func (g *gitTools) run(ctx context.Context, args core.Args, confirm string, gitArgs ...string) (core.ToolResult, error) {
	dir, err := resolveDir(args)
	if err != nil {
		return failWith(err)
	}
	return result(g.runner.Run(ctx, dir, gitArgs...), confirm)
}

func (g *gitTools) status(ctx context.Context, args core.Args) (core.ToolResult, error) {
	return g.run(ctx, args, "", "status", "--porcelain")
}

func (g *gitTools) add(ctx context.Context, args core.Args) (core.ToolResult, error) {
	files := strings.Fields(args.StringOr("files", "."))
	if err := g.policy.CheckPaths(files); err != nil {
		return failWith(err)
	}
	return g.run(ctx, args, "Files added", append([]string{"add", "--"}, files...)...)
}

func (g *gitTools) commit(ctx context.Context, args core.Args) (core.ToolResult, error) {
	return g.run(ctx, args, "", "commit", "-m", args.Raw("message"))
}

func (g *gitTools) push(ctx context.Context, args core.Args) (core.ToolResult, error) {
	return g.run(ctx, args, "Pushed successfully", "push")
}

func (g *gitTools) pull(ctx context.Context, args core.Args) (core.ToolResult, error) {
	return g.run(ctx, args, "", "pull")
}

func (g *gitTools) branch(ctx context.Context, args core.Args) (core.ToolResult, error) {
	name := args.String("name")
	if name == "" {
		return g.run(ctx, args, "", "branch")
	}
	if err := gitops.ValidateRef(name); err != nil {
		return failWith(&core.InputError{Msg: err.Error()})
	}
	return g.run(ctx, args, "", "checkout", "-b", name)
}

func (g *gitTools) checkout(ctx context.Context, args core.Args) (core.ToolResult, error) {
	branch := args.String("branch")
	if err := gitops.ValidateRef(branch); err != nil {
		return failWith(&core.InputError{Msg: err.Error()})
	}
	return g.run(ctx, args, "Branch switched", "checkout", branch)
}

func (g *gitTools) log(ctx context.Context, args core.Args) (core.ToolResult, error) {
	n := args.IntOr("count", defaultLogCount, maxLogCount)
	return g.run(ctx, args, "", "log", "--oneline", "-"+strconv.Itoa(n))
}

func (g *gitTools) diff(ctx context.Context, args core.Args) (core.ToolResult, error) {
	return g.run(ctx, args, "", "diff")
}

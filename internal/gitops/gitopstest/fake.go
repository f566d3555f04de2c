// Package gitopstest provides a scripted git runner for tests.
package gitopstest

import (
	"context"
	"strings"
	"sync"

	"github.com/gitpr/gitpr/internal/gitops"
)

// Call is one recorded Run invocation.
type Call struct {
	Dir  string
	Args []string
}

// Runner answers Run from Responses, keyed by the space-joined arguments.
// Unscripted commands succeed with empty output.
type Runner struct {
	mu sync.Mutex

	Dir       string
	Responses map[string]gitops.Result
	Calls     []Call
}

func NewRunner(dir string) *Runner {
	return &Runner{Dir: dir, Responses: make(map[string]gitops.Result)}
}

// On scripts a successful response for args.
func (r *Runner) On(args string, output string) *Runner {
	r.mu.Lock()
	r.Responses[args] = gitops.Result{Success: true, Output: output}
	r.mu.Unlock()
	return r
}

// Fail scripts a failed response for args.
func (r *Runner) Fail(args string, msg string) *Runner {
	r.mu.Lock()
	r.Responses[args] = gitops.Result{Success: false, Err: msg}
	r.mu.Unlock()
	return r
}

func (r *Runner) Run(_ context.Context, dir string, args ...string) gitops.Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Call{Dir: dir, Args: append([]string(nil), args...)})
	if res, ok := r.Responses[strings.Join(args, " ")]; ok {
		return res
	}
	return gitops.Result{Success: true}
}

func (r *Runner) WorkDir() string {
	return r.Dir
}

// Commands returns every recorded call as a space-joined argument string.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.Calls))
	for _, c := range r.Calls {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

// Ran reports whether a command with the given space-joined args was run.
func (r *Runner) Ran(args string) bool {
	for _, c := range r.Commands() {
		if c == args {
			return true
		}
	}
	return false
}

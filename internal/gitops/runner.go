// Package gitops runs git subprocesses on behalf of tool handlers.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/gitpr/gitpr/internal/telemetry"
)

var refNameRe = regexp.MustCompile(`^[A-Za-z0-9._/@{}~^-]+$`)

// Result is the outcome of one git command. Output is meaningful when Success
// is true, Err otherwise.
type Result struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Err     string `json:"error,omitempty"`
}

// Text returns Output for a successful command and Err for a failed one.
func (r Result) Text() string {
	if r.Success {
		return r.Output
	}
	return r.Err
}

type Config struct {
	WorkDir string
	GitBin  string
	// Timeout bounds a single command. Zero disables the bound.
	Timeout time.Duration
}

type Runner struct {
	cfg Config
}

func NewRunner(cfg Config) *Runner {
	if strings.TrimSpace(cfg.WorkDir) == "" {
		cfg.WorkDir = "."
	}
	if strings.TrimSpace(cfg.GitBin) == "" {
		cfg.GitBin = "git"
	}
	return &Runner{cfg: cfg}
}

// WorkDir returns the absolute default working directory.
func (r *Runner) WorkDir() string {
	abs, err := filepath.Abs(r.cfg.WorkDir)
	if err != nil {
		return r.cfg.WorkDir
	}
	return abs
}

// Run executes git with args in dir, or in the configured working directory
// when dir is empty. It never returns an error: failures are folded into the
// Result.
func (r *Runner) Run(ctx context.Context, dir string, args ...string) Result {
	if dir == "" {
		dir = r.WorkDir()
	}
	cmdline := "git " + strings.Join(args, " ")

	ctx, span := otel.Tracer("gitpr/gitops").Start(ctx, "git.command")
	defer span.End()
	span.SetAttributes(attribute.String("git.command", cmdline), attribute.String("git.workdir", dir))

	execCtx := ctx
	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, r.cfg.GitBin, args...)
	cmd.Dir = dir
	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	runErr := cmd.Run()
	if runErr == nil {
		return Result{Success: true, Output: strings.TrimSpace(stdoutBuf.String())}
	}

	detail := strings.TrimSpace(stderrBuf.String())
	if detail == "" {
		detail = strings.TrimSpace(stdoutBuf.String())
	}

	var msg string
	var exitErr *exec.ExitError
	switch {
	case errors.Is(execCtx.Err(), context.DeadlineExceeded):
		msg = fmt.Sprintf("Command failed: %s: timed out after %s", cmdline, r.cfg.Timeout)
	case errors.As(runErr, &exitErr):
		msg = fmt.Sprintf("Command failed: %s: exit status %d", cmdline, exitErr.ExitCode())
	default:
		msg = fmt.Sprintf("Command failed: %s: %v", cmdline, runErr)
	}
	if detail != "" {
		msg += "\n" + detail
	}

	telemetry.IncGitCommandFailure(firstArg(args))
	span.SetStatus(codes.Error, msg)
	return Result{Success: false, Err: msg}
}

// ValidateRef rejects values that git would parse as an option or that cannot
// be a ref name.
func ValidateRef(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("branch name is required")
	}
	if strings.HasPrefix(trimmed, "-") || strings.Contains(trimmed, "..") || !refNameRe.MatchString(trimmed) {
		return fmt.Errorf("invalid branch name: %q", name)
	}
	return nil
}

func firstArg(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[0]
}

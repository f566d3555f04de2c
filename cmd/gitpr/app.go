package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/gitpr/gitpr/internal/browser"
	"github.com/gitpr/gitpr/internal/config"
	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/db"
	"github.com/gitpr/gitpr/internal/gitops"
	"github.com/gitpr/gitpr/internal/pullrequest"
	"github.com/gitpr/gitpr/internal/telemetry"
	"github.com/gitpr/gitpr/internal/tools"
)

// app holds everything a transport needs, built once per process.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *core.Dispatcher
	tracker    *browser.Tracker
	store      *db.DB
	stopTrace  func(context.Context) error
}

// newLauncher builds the browser the Bitbucket tools drive.
var newLauncher = func(cfg *config.Config) browser.Launcher {
	return &browser.ChromeLauncher{Headless: cfg.Browser.Headless, ExecPath: cfg.Browser.Path}
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	lvl, err := config.ParseLevel(level)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}

// buildApp wires the dispatcher. helperOut receives output of the system
// browser helper.
func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, helperOut io.Writer) (*app, error) {
	stopTrace, err := telemetry.SetupTracing(ctx, telemetry.TracingConfig{
		Endpoint:    cfg.OTel.Endpoint,
		Insecure:    cfg.OTel.Insecure,
		ServiceName: "gitpr",
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, stopTrace: stopTrace, tracker: browser.NewTracker()}

	policy := core.NewPolicy(cfg.Policy.RepoAllowlist, cfg.Policy.ToolAllowlist)
	policy.SetForbiddenPaths(cfg.Policy.ForbiddenPaths)

	var auditor core.Auditor
	if cfg.DatabaseURL != "" {
		store, err := db.New(cfg.DatabaseURL)
		if err != nil {
			stopTrace(ctx)
			return nil, fmt.Errorf("database connection failed: %w", err)
		}
		a.store = store
		auditor = core.NewAuditService(store)
	}

	runner := gitops.NewRunner(gitops.Config{
		WorkDir: cfg.WorkDir,
		GitBin:  cfg.GitBin,
		Timeout: cfg.CommandTimeout(),
	})
	driver := browser.NewDriver(
		newLauncher(cfg),
		browser.DriverConfig{SignInTimeout: cfg.SignInTimeout(), SubmitTimeout: cfg.SubmitTimeout()},
		logger,
	)
	prs := pullrequest.NewService(runner, browser.NewSystemOpener(helperOut), driver, a.tracker, policy,
		pullrequest.Config{Remote: cfg.Remote}, logger)

	registry, err := core.NewRegistry(tools.Catalog(tools.Deps{Runner: runner, PRs: prs, Policy: policy})...)
	if err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("build tool registry: %w", err)
	}
	a.dispatcher = core.NewDispatcher(registry, policy, auditor, logger)

	logger.Info("effective config",
		"profile", cfg.Profile,
		"transport", cfg.Transport,
		"tools", registry.Len(),
		"workdir", runner.WorkDir(),
		"remote", cfg.Remote,
		"command_timeout_seconds", cfg.Timeouts.CommandSeconds,
		"sign_in_timeout_seconds", cfg.Timeouts.SignInSeconds,
		"browser_headless", cfg.Browser.Headless,
		"forbidden_paths", cfg.Policy.ForbiddenPaths,
		"audit", a.store != nil,
		"tracing", cfg.OTel.Endpoint != "",
	)
	return a, nil
}

// Close releases browser sessions, the audit store and the tracer provider.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if n, err := a.tracker.CloseAll(); n > 0 || err != nil {
		a.logger.Info("browser sessions closed", "count", n, "err", err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.stopTrace != nil {
		if err := a.stopTrace(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gitpr/gitpr/internal/config"
	"github.com/gitpr/gitpr/internal/core"
	httpsvr "github.com/gitpr/gitpr/internal/http"
	mcpsvr "github.com/gitpr/gitpr/internal/mcp"
	"github.com/gitpr/gitpr/internal/tools"
)

var (
	version   = ""
	gitCommit = ""
	buildTime = ""
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "gitpr",
		Short:         "gitpr - git and pull request tools for MCP agents",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&configPath, "config", "", "YAML config file (default $GITPR_CONFIG)")

	var transport string
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool catalog over stdio, tcp or http",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if transport != "" {
				cfg.Transport = transport
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runServe(cmd.Context(), cfg, stdout, stderr)
		},
	}
	serveCmd.Flags().StringVar(&transport, "transport", "", "stdio, tcp or http (overrides config)")

	toolsCmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tool catalog as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCatalog(stdout)
		},
	}

	var rawArgs string
	callCmd := &cobra.Command{
		Use:   "call <tool>",
		Short: "Invoke one tool and print its text result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return runCall(cmd.Context(), cfg, args[0], rawArgs, stdout, stderr)
		},
	}
	callCmd.Flags().StringVar(&rawArgs, "args", "", `tool arguments as a JSON object, e.g. '{"path":"."}'`)

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(stdout, "gitpr %s (commit %s, built %s)\n", orDefault(version, "dev"), orDefault(gitCommit, "unknown"), orDefault(buildTime, "unknown"))
		},
	}

	root.AddCommand(serveCmd, toolsCmd, callCmd, versionCmd)
	return root
}

func runServe(ctx context.Context, cfg *config.Config, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	// stdout carries protocol frames in stdio mode.
	logOut := stdout
	if cfg.Transport == config.TransportStdio {
		logOut = stderr
	}
	logger, err := newLogger(logOut, cfg.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("profile loaded", "profile", cfg.Profile)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, logger, stderr)
	if err != nil {
		logger.Error("startup failed", "err", err)
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("cleanup failed", "err", err)
		}
		logger.Info("shutdown complete")
	}()

	info := mcpsvr.Info{Name: "gitpr", Version: orDefault(version, "dev")}

	switch cfg.Transport {
	case config.TransportStdio:
		logger.Info("mcp stdio server starting")
		return mcpsvr.RunStdio(ctx, a.dispatcher, info, logger)

	case config.TransportTCP:
		srv := mcpsvr.NewServer(cfg.MCP.Listen, a.dispatcher, info, logger)
		return serveUntilDone(ctx, logger, srv.ListenAndServe, srv.Shutdown)

	default:
		var calls httpsvr.ToolCallStore
		if a.store != nil {
			calls = a.store
		}
		srv := httpsvr.NewServer(cfg.HTTP.Listen, a.dispatcher, calls, logger, httpsvr.Options{
			JWTSecret: cfg.HTTP.JWTSecret,
			Build:     httpsvr.BuildInfo{Version: version, GitCommit: gitCommit, BuildTime: buildTime},
		})
		return serveUntilDone(ctx, logger, srv.ListenAndServe, srv.Shutdown)
	}
}

func serveUntilDone(ctx context.Context, logger *slog.Logger, serve func() error, shutdown func(context.Context) error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- serve() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return shutdown(shutdownCtx)
}

func printCatalog(w io.Writer) error {
	registry, err := core.NewRegistry(tools.Catalog(tools.Deps{})...)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(mcpsvr.ToolDefinitions(registry.Descriptors()), "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

var errToolFailed = errors.New("tool reported an error")

func runCall(ctx context.Context, cfg *config.Config, name, rawArgs string, stdout, stderr io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	args := map[string]any{}
	if rawArgs != "" {
		if err := json.Unmarshal([]byte(rawArgs), &args); err != nil {
			return fmt.Errorf("invalid --args: %w", err)
		}
	}

	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return err
	}
	a, err := buildApp(ctx, cfg, logger, stderr)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			logger.Error("cleanup failed", "err", err)
		}
	}()

	res, err := a.dispatcher.Call(ctx, core.Invocation{Name: name, Arguments: args})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, res.Text())
	waitForSessions(ctx, a)
	if res.IsError {
		return errToolFailed
	}
	return nil
}

// waitForSessions blocks while the call left browser sessions open. The
// browser dies with this process, so it stays up until SIGINT or SIGTERM.
func waitForSessions(ctx context.Context, a *app) {
	n := a.tracker.Len()
	if n == 0 {
		return
	}
	a.logger.Info("browser sessions left open; press Ctrl-C to close them", "count", n)
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

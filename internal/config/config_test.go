package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var envKeys = []string{
	"GITPR_CONFIG", "GITPR_PROFILE", "GITPR_WORKDIR", "GITPR_REMOTE", "GITPR_GIT_BIN",
	"GITPR_TRANSPORT", "GITPR_MCP_LISTEN", "GITPR_HTTP_LISTEN", "GITPR_HTTP_JWT_SECRET",
	"GITPR_COMMAND_TIMEOUT_SECONDS", "GITPR_SIGNIN_TIMEOUT_SECONDS", "GITPR_SUBMIT_TIMEOUT_SECONDS",
	"GITPR_BROWSER_HEADLESS", "GITPR_BROWSER_PATH", "GITPR_FORBIDDEN_PATHS", "GITPR_LOG_LEVEL",
	"TOOL_ALLOWLIST", "REPO_ALLOWLIST", "DATABASE_URL",
	"OTEL_EXPORTER_OTLP_ENDPOINT", "OTEL_EXPORTER_OTLP_INSECURE",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gitpr.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Profile != "dev" {
		t.Errorf("profile = %q, want dev", cfg.Profile)
	}
	if cfg.Transport != TransportStdio {
		t.Errorf("transport = %q, want stdio", cfg.Transport)
	}
	if cfg.Remote != "origin" {
		t.Errorf("remote = %q, want origin", cfg.Remote)
	}
	if cfg.CommandTimeout() != 5*time.Minute {
		t.Errorf("command timeout = %v, want 5m", cfg.CommandTimeout())
	}
	if cfg.SignInTimeout() != 2*time.Minute {
		t.Errorf("sign-in timeout = %v, want 2m", cfg.SignInTimeout())
	}
	if cfg.SubmitTimeout() != time.Minute {
		t.Errorf("submit timeout = %v, want 1m", cfg.SubmitTimeout())
	}
	if cfg.Policy.ForbiddenPaths != ".git/" {
		t.Errorf("forbidden paths = %q", cfg.Policy.ForbiddenPaths)
	}
	if cfg.MCP.Listen != DefaultMCPListen || cfg.HTTP.Listen != DefaultHTTPListen {
		t.Errorf("unexpected listen addresses: %q %q", cfg.MCP.Listen, cfg.HTTP.Listen)
	}
}

func TestLoadFileOverridesProfile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
profile: prod
transport: http
remote: upstream
http:
  listen: 0.0.0.0:9000
  jwt_secret: abc
timeouts:
  sign_in_seconds: 30
browser:
  headless: true
  path: /usr/bin/chromium
policy:
  repo_allowlist: acme/widgets
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Profile != "prod" || cfg.LogLevel != "info" {
		t.Errorf("profile defaults not applied: %q %q", cfg.Profile, cfg.LogLevel)
	}
	if cfg.Transport != TransportHTTP || cfg.Remote != "upstream" {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.HTTP.Listen != "0.0.0.0:9000" || cfg.HTTP.JWTSecret != "abc" {
		t.Errorf("http section not applied: %+v", cfg.HTTP)
	}
	if cfg.Timeouts.SignInSeconds != 30 {
		t.Errorf("sign_in_seconds = %d, want 30", cfg.Timeouts.SignInSeconds)
	}
	// Unset keys keep the prod profile values.
	if cfg.Timeouts.CommandSeconds != 120 {
		t.Errorf("command_seconds = %d, want 120", cfg.Timeouts.CommandSeconds)
	}
	if cfg.Policy.ForbiddenPaths != ".git/,.env,secrets/" {
		t.Errorf("forbidden paths = %q", cfg.Policy.ForbiddenPaths)
	}
	if !cfg.Browser.Headless || cfg.Browser.Path != "/usr/bin/chromium" {
		t.Errorf("browser section not applied: %+v", cfg.Browser)
	}
	if cfg.Policy.RepoAllowlist != "acme/widgets" {
		t.Errorf("repo allowlist = %q", cfg.Policy.RepoAllowlist)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "transport: tcp\nremote: upstream\n")
	t.Setenv("GITPR_CONFIG", path)
	t.Setenv("GITPR_TRANSPORT", "http")
	t.Setenv("GITPR_SIGNIN_TIMEOUT_SECONDS", "45")
	t.Setenv("GITPR_BROWSER_HEADLESS", "true")
	t.Setenv("TOOL_ALLOWLIST", "git_status,create_pr")
	t.Setenv("DATABASE_URL", "postgres://localhost/gitpr")
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Transport != TransportHTTP {
		t.Errorf("transport = %q, want http", cfg.Transport)
	}
	if cfg.Remote != "upstream" {
		t.Errorf("remote = %q, want upstream from file", cfg.Remote)
	}
	if cfg.SignInTimeout() != 45*time.Second {
		t.Errorf("sign-in timeout = %v", cfg.SignInTimeout())
	}
	if !cfg.Browser.Headless {
		t.Error("expected headless from env")
	}
	if cfg.Policy.ToolAllowlist != "git_status,create_pr" {
		t.Errorf("tool allowlist = %q", cfg.Policy.ToolAllowlist)
	}
	if cfg.DatabaseURL == "" || cfg.OTel.Endpoint != "localhost:4318" {
		t.Errorf("env values not applied: %q %q", cfg.DatabaseURL, cfg.OTel.Endpoint)
	}
}

func TestLoadProfileFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("GITPR_PROFILE", "PROD")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Profile != "prod" || cfg.Timeouts.CommandSeconds != 120 {
		t.Errorf("prod profile not applied: %+v", cfg)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		wantErr string
	}{
		{name: "unknown profile", env: map[string]string{"GITPR_PROFILE": "staging"}, wantErr: "unknown profile"},
		{name: "unknown profile in file", file: "profile: staging\n", wantErr: "unknown profile"},
		{name: "bad transport", env: map[string]string{"GITPR_TRANSPORT": "grpc"}, wantErr: "unknown transport"},
		{name: "bad timeout env", env: map[string]string{"GITPR_COMMAND_TIMEOUT_SECONDS": "0"}, wantErr: "invalid GITPR_COMMAND_TIMEOUT_SECONDS"},
		{name: "non numeric timeout", env: map[string]string{"GITPR_SUBMIT_TIMEOUT_SECONDS": "soon"}, wantErr: "invalid GITPR_SUBMIT_TIMEOUT_SECONDS"},
		{name: "negative timeout in file", file: "timeouts:\n  submit_seconds: -1\n", wantErr: "submit_seconds must be positive"},
		{name: "bad headless", env: map[string]string{"GITPR_BROWSER_HEADLESS": "maybe"}, wantErr: "invalid GITPR_BROWSER_HEADLESS"},
		{name: "bad log level", env: map[string]string{"GITPR_LOG_LEVEL": "loud"}, wantErr: "unknown log level"},
		{name: "malformed yaml", file: "transport: [\n", wantErr: "parse config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.file != "" {
				path = writeConfig(t, tt.file)
			}
			_, err := Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error %q does not contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadMissingNamedFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil {
			t.Fatalf("ParseLevel(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

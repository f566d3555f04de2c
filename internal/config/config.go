// Package config loads gitpr settings: profile defaults, then an optional YAML
// file, then environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gitpr/gitpr/internal/core"
)

const (
	TransportStdio = "stdio"
	TransportTCP   = "tcp"
	TransportHTTP  = "http"

	DefaultMCPListen  = "127.0.0.1:8090"
	DefaultHTTPListen = "127.0.0.1:8080"
)

type Config struct {
	Profile     string         `yaml:"profile"`
	WorkDir     string         `yaml:"workdir"`
	Remote      string         `yaml:"remote"`
	GitBin      string         `yaml:"git_bin"`
	Transport   string         `yaml:"transport"`
	LogLevel    string         `yaml:"log_level"`
	DatabaseURL string         `yaml:"database_url"`
	MCP         MCPConfig      `yaml:"mcp"`
	HTTP        HTTPConfig     `yaml:"http"`
	Timeouts    TimeoutsConfig `yaml:"timeouts"`
	Browser     BrowserConfig  `yaml:"browser"`
	Policy      PolicyConfig   `yaml:"policy"`
	OTel        OTelConfig     `yaml:"otel"`
}

type MCPConfig struct {
	Listen string `yaml:"listen"`
}

type HTTPConfig struct {
	Listen    string `yaml:"listen"`
	JWTSecret string `yaml:"jwt_secret"`
}

type TimeoutsConfig struct {
	CommandSeconds int `yaml:"command_seconds"`
	SignInSeconds  int `yaml:"sign_in_seconds"`
	SubmitSeconds  int `yaml:"submit_seconds"`
}

type BrowserConfig struct {
	Headless bool   `yaml:"headless"`
	Path     string `yaml:"path"`
}

type PolicyConfig struct {
	ToolAllowlist  string `yaml:"tool_allowlist"`
	RepoAllowlist  string `yaml:"repo_allowlist"`
	ForbiddenPaths string `yaml:"forbidden_paths"`
}

type OTelConfig struct {
	Endpoint string `yaml:"endpoint"`
	Insecure bool   `yaml:"insecure"`
}

// Defaults returns the configuration of the named profile before any file or
// environment overrides.
func Defaults(profile string) (*Config, error) {
	p, err := core.LoadProfile(profile)
	if err != nil {
		return nil, err
	}
	return &Config{
		Profile:   p.Name,
		WorkDir:   ".",
		Remote:    "origin",
		GitBin:    "git",
		Transport: TransportStdio,
		LogLevel:  p.LogLevel,
		MCP:       MCPConfig{Listen: DefaultMCPListen},
		HTTP:      HTTPConfig{Listen: DefaultHTTPListen},
		Timeouts: TimeoutsConfig{
			CommandSeconds: p.CommandTimeoutSeconds,
			SignInSeconds:  p.SignInTimeoutSeconds,
			SubmitSeconds:  p.SubmitTimeoutSeconds,
		},
		Browser: BrowserConfig{Headless: p.BrowserHeadless},
		Policy:  PolicyConfig{ForbiddenPaths: p.ForbiddenPathPrefixes},
	}, nil
}

// Load builds the effective configuration. path may be empty, in which case
// GITPR_CONFIG is consulted; a missing file is only an error when named.
func Load(path string) (*Config, error) {
	if path == "" {
		path = strings.TrimSpace(os.Getenv("GITPR_CONFIG"))
	}

	var data []byte
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		data = b
	}

	var head struct {
		Profile string `yaml:"profile"`
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &head); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	profile := head.Profile
	if env := strings.TrimSpace(os.Getenv("GITPR_PROFILE")); env != "" {
		profile = env
	}

	cfg, err := Defaults(profile)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		cfg.Profile = strings.ToLower(strings.TrimSpace(cfg.Profile))
		if cfg.Profile == "" {
			cfg.Profile = "dev"
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := []struct {
		key string
		dst *string
	}{
		{"GITPR_PROFILE", &c.Profile},
		{"GITPR_WORKDIR", &c.WorkDir},
		{"GITPR_REMOTE", &c.Remote},
		{"GITPR_GIT_BIN", &c.GitBin},
		{"GITPR_TRANSPORT", &c.Transport},
		{"GITPR_MCP_LISTEN", &c.MCP.Listen},
		{"GITPR_HTTP_LISTEN", &c.HTTP.Listen},
		{"GITPR_HTTP_JWT_SECRET", &c.HTTP.JWTSecret},
		{"GITPR_BROWSER_PATH", &c.Browser.Path},
		{"GITPR_FORBIDDEN_PATHS", &c.Policy.ForbiddenPaths},
		{"GITPR_LOG_LEVEL", &c.LogLevel},
		{"TOOL_ALLOWLIST", &c.Policy.ToolAllowlist},
		{"REPO_ALLOWLIST", &c.Policy.RepoAllowlist},
		{"DATABASE_URL", &c.DatabaseURL},
		{"OTEL_EXPORTER_OTLP_ENDPOINT", &c.OTel.Endpoint},
	}
	for _, s := range strs {
		if v := strings.TrimSpace(os.Getenv(s.key)); v != "" {
			*s.dst = v
		}
	}
	c.Profile = strings.ToLower(c.Profile)

	ints := []struct {
		key string
		dst *int
	}{
		{"GITPR_COMMAND_TIMEOUT_SECONDS", &c.Timeouts.CommandSeconds},
		{"GITPR_SIGNIN_TIMEOUT_SECONDS", &c.Timeouts.SignInSeconds},
		{"GITPR_SUBMIT_TIMEOUT_SECONDS", &c.Timeouts.SubmitSeconds},
	}
	for _, i := range ints {
		raw := strings.TrimSpace(os.Getenv(i.key))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid %s: %q", i.key, raw)
		}
		*i.dst = v
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"GITPR_BROWSER_HEADLESS", &c.Browser.Headless},
		{"OTEL_EXPORTER_OTLP_INSECURE", &c.OTel.Insecure},
	}
	for _, b := range bools {
		raw := strings.TrimSpace(os.Getenv(b.key))
		if raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %q", b.key, raw)
		}
		*b.dst = v
	}
	return nil
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportTCP, TransportHTTP:
	default:
		return fmt.Errorf("unknown transport %q (valid: stdio, tcp, http)", c.Transport)
	}
	if c.Timeouts.CommandSeconds <= 0 {
		return fmt.Errorf("timeouts.command_seconds must be positive")
	}
	if c.Timeouts.SignInSeconds <= 0 {
		return fmt.Errorf("timeouts.sign_in_seconds must be positive")
	}
	if c.Timeouts.SubmitSeconds <= 0 {
		return fmt.Errorf("timeouts.submit_seconds must be positive")
	}
	if strings.TrimSpace(c.Remote) == "" {
		return fmt.Errorf("remote must not be empty")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Timeouts.CommandSeconds) * time.Second
}

func (c *Config) SignInTimeout() time.Duration {
	return time.Duration(c.Timeouts.SignInSeconds) * time.Second
}

func (c *Config) SubmitTimeout() time.Duration {
	return time.Duration(c.Timeouts.SubmitSeconds) * time.Second
}

// ParseLevel maps a log level name to slog. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

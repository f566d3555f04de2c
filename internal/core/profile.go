package core

import (
	"fmt"
	"strings"
)

// ProfileDefaults holds environment-specific default configuration values.
// Profiles provide defaults only; the config file and env vars override them.
type ProfileDefaults struct {
	Name                  string
	CommandTimeoutSeconds int
	SignInTimeoutSeconds  int
	SubmitTimeoutSeconds  int
	BrowserHeadless       bool
	ForbiddenPathPrefixes string
	LogLevel              string
}

var profiles = map[string]*ProfileDefaults{
	"dev": {
		Name:                  "dev",
		CommandTimeoutSeconds: 300,
		SignInTimeoutSeconds:  120,
		SubmitTimeoutSeconds:  60,
		BrowserHeadless:       false,
		ForbiddenPathPrefixes: ".git/",
		LogLevel:              "debug",
	},
	"prod": {
		Name:                  "prod",
		CommandTimeoutSeconds: 120,
		SignInTimeoutSeconds:  120,
		SubmitTimeoutSeconds:  60,
		BrowserHeadless:       false,
		ForbiddenPathPrefixes: ".git/,.env,secrets/",
		LogLevel:              "info",
	},
}

// LoadProfile returns profile defaults for the given name.
// Empty name defaults to "dev". Unknown names return an error.
func LoadProfile(name string) (*ProfileDefaults, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if name == "" {
		name = "dev"
	}
	p, ok := profiles[name]
	if !ok {
		return nil, fmt.Errorf("unknown profile %q (valid: dev, prod)", name)
	}
	copy := *p
	return &copy, nil
}

//go:build !short

package config

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"testing"
)

func TestDocDrift_EnvVarsInExample(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file location")
	}
	dir := filepath.Dir(file)
	src, err := os.ReadFile(filepath.Join(dir, "config.go"))
	if err != nil {
		t.Fatalf("cannot read config.go: %v", err)
	}
	example, err := os.ReadFile(filepath.Join(dir, "..", "..", ".env.example"))
	if err != nil {
		t.Fatalf("cannot read .env.example: %v", err)
	}

	reKey := regexp.MustCompile(`(?:os\.Getenv\(|\{)"([A-Z][A-Z0-9_]+)"`)
	codeVars := make(map[string]bool)
	for _, m := range reKey.FindAllStringSubmatch(string(src), -1) {
		codeVars[m[1]] = true
	}
	if len(codeVars) == 0 {
		t.Fatal("no env vars found in config.go")
	}

	reEnvLine := regexp.MustCompile(`^([A-Z][A-Z0-9_]*)=`)
	exampleVars := make(map[string]bool)
	for _, line := range strings.Split(string(example), "\n") {
		if m := reEnvLine.FindStringSubmatch(line); m != nil {
			exampleVars[m[1]] = true
		}
	}

	var missing []string
	for v := range codeVars {
		if !exampleVars[v] {
			missing = append(missing, v)
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		t.Errorf("env vars read in config.go but missing from .env.example:\n  %s",
			strings.Join(missing, "\n  "))
	}
}

//go:build !short

package http

import (
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strings"
	"testing"
)

func TestDocDrift_HTTPEndpointsInREADME(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatal("cannot determine test file location")
	}
	dir := filepath.Dir(file)
	src, err := os.ReadFile(filepath.Join(dir, "server.go"))
	if err != nil {
		t.Fatalf("cannot read server.go: %v", err)
	}
	readme, err := os.ReadFile(filepath.Join(dir, "..", "..", "README.md"))
	if err != nil {
		t.Fatalf("cannot read README.md: %v", err)
	}

	reRoute := regexp.MustCompile(`HandleFunc\("(?:GET|POST) (/[^"]+)"`)
	var missing []string
	for _, m := range reRoute.FindAllStringSubmatch(string(src), -1) {
		if !strings.Contains(string(readme), m[1]) {
			missing = append(missing, m[1])
		}
	}
	sort.Strings(missing)
	if len(missing) > 0 {
		t.Errorf("HTTP routes not found in README.md:\n  %s", strings.Join(missing, "\n  "))
	}
}

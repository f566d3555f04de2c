package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

var defaultRegistry = newRegistry()

var durationBuckets = []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120}

type registry struct {
	mu                  sync.Mutex
	toolCalls           map[string]map[string]int64
	toolDurationBuckets map[string][]int64
	gitCommandFailures  map[string]int64
	browserSessions     map[string]int64
	signInTimeouts      int64
}

func newRegistry() *registry {
	return &registry{
		toolCalls:           make(map[string]map[string]int64),
		toolDurationBuckets: make(map[string][]int64),
		gitCommandFailures:  make(map[string]int64),
		browserSessions:     make(map[string]int64),
	}
}

func IncToolCall(toolName, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.toolCalls[toolName]; !ok {
		defaultRegistry.toolCalls[toolName] = make(map[string]int64)
	}
	defaultRegistry.toolCalls[toolName][status]++
}

func ObserveToolDuration(toolName string, d time.Duration) {
	sec := d.Seconds()

	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.toolDurationBuckets[toolName]; !ok {
		defaultRegistry.toolDurationBuckets[toolName] = make([]int64, len(durationBuckets)+1)
	}
	idx := len(durationBuckets)
	for i, b := range durationBuckets {
		if sec <= b {
			idx = i
			break
		}
	}
	defaultRegistry.toolDurationBuckets[toolName][idx]++
}

// IncGitCommandFailure counts failed git invocations by subcommand.
func IncGitCommandFailure(subcommand string) {
	if subcommand == "" {
		subcommand = "unknown"
	}
	defaultRegistry.mu.Lock()
	defaultRegistry.gitCommandFailures[subcommand]++
	defaultRegistry.mu.Unlock()
}

// IncBrowserSession counts browser sessions by the state they ended in.
func IncBrowserSession(state string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.browserSessions[state]++
	defaultRegistry.mu.Unlock()
}

func IncSignInTimeout() {
	defaultRegistry.mu.Lock()
	defaultRegistry.signInTimeouts++
	defaultRegistry.mu.Unlock()
}

func RenderPrometheus() string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# TYPE gitpr_tool_calls_total counter\n")
	for _, tool := range sortedKeys(defaultRegistry.toolCalls) {
		for _, status := range sortedKeys(defaultRegistry.toolCalls[tool]) {
			sb.WriteString(fmt.Sprintf("gitpr_tool_calls_total{tool=\"%s\",status=\"%s\"} %d\n", tool, status, defaultRegistry.toolCalls[tool][status]))
		}
	}

	sb.WriteString("# TYPE gitpr_tool_duration_seconds_bucket counter\n")
	bucketLabels := make([]string, 0, len(durationBuckets)+1)
	for _, b := range durationBuckets {
		bucketLabels = append(bucketLabels, fmt.Sprintf("%g", b))
	}
	bucketLabels = append(bucketLabels, "+Inf")
	for _, tool := range sortedKeys(defaultRegistry.toolDurationBuckets) {
		for i, v := range defaultRegistry.toolDurationBuckets[tool] {
			sb.WriteString(fmt.Sprintf("gitpr_tool_duration_seconds_bucket{tool=\"%s\",le=\"%s\"} %d\n", tool, bucketLabels[i], v))
		}
	}

	sb.WriteString("# TYPE gitpr_git_command_failures_total counter\n")
	for _, sub := range sortedKeys(defaultRegistry.gitCommandFailures) {
		sb.WriteString(fmt.Sprintf("gitpr_git_command_failures_total{subcommand=\"%s\"} %d\n", sub, defaultRegistry.gitCommandFailures[sub]))
	}

	sb.WriteString("# TYPE gitpr_browser_sessions_total counter\n")
	for _, state := range sortedKeys(defaultRegistry.browserSessions) {
		sb.WriteString(fmt.Sprintf("gitpr_browser_sessions_total{state=\"%s\"} %d\n", state, defaultRegistry.browserSessions[state]))
	}

	sb.WriteString("# TYPE gitpr_signin_timeouts_total counter\n")
	sb.WriteString(fmt.Sprintf("gitpr_signin_timeouts_total %d\n", defaultRegistry.signInTimeouts))

	return sb.String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// InputError is an argument that failed schema validation.
type InputError struct {
	Msg string
}

func (e *InputError) Error() string     { return "invalid input: " + e.Msg }
func (e *InputError) ErrorCode() string { return "input_invalid" }

func inputErrorf(format string, a ...any) error {
	return &InputError{Msg: fmt.Sprintf(format, a...)}
}

// Args are the validated arguments of one call.
type Args map[string]any

// String returns the trimmed string value of name, or "" when absent.
func (a Args) String(name string) string {
	v, ok := a[name].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

// StringOr returns the string value of name, or def when absent or blank.
func (a Args) StringOr(name, def string) string {
	if v := a.String(name); v != "" {
		return v
	}
	return def
}

// Raw returns the untrimmed string value of name.
func (a Args) Raw(name string) string {
	v, _ := a[name].(string)
	return v
}

// IntOr returns the integer value of name, or def when absent or not
// positive. Values above limit are clamped to limit.
func (a Args) IntOr(name string, def, limit int) int {
	f, ok := toFloat(a[name])
	if !ok || f <= 0 || math.IsNaN(f) {
		return def
	}
	if f >= float64(limit) {
		return limit
	}
	return int(f)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

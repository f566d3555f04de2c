package core

import "github.com/google/jsonschema-go/jsonschema"

// ToolResult is the response of every tool call, used by all transports.
// It always carries exactly one text item.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError"`
}

type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func TextResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}}
}

func ErrorResult(text string) ToolResult {
	return ToolResult{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

// Text returns the single text item, or "" for a zero result.
func (r ToolResult) Text() string {
	if len(r.Content) == 0 {
		return ""
	}
	return r.Content[0].Text
}

// Invocation is one tool call request as received from a transport.
type Invocation struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolDescriptor is what tools/list advertises for a tool.
type ToolDescriptor struct {
	Name        string             `json:"name"`
	Description string             `json:"description"`
	InputSchema *jsonschema.Schema `json:"inputSchema"`
}

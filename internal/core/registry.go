package core

import (
	"context"
	"fmt"
	"strings"
)

// Handler runs one tool. A non-nil error with a zero result becomes an error
// result carrying the error text; a non-nil error alongside a result keeps the
// result text and only classifies the failure.
type Handler func(ctx context.Context, args Args) (ToolResult, error)

type Tool struct {
	Descriptor ToolDescriptor
	Handler    Handler

	input *inputSchema
}

// Registry is the immutable set of tools a dispatcher routes to.
type Registry struct {
	tools []Tool
	index map[string]int
}

// NewRegistry validates and indexes tools. Registration order is kept for
// listing.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(tools))}
	for _, t := range tools {
		name := t.Descriptor.Name
		if strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, dup := r.index[name]; dup {
			return nil, fmt.Errorf("duplicate tool %q", name)
		}
		if t.Handler == nil {
			return nil, fmt.Errorf("tool %q has no handler", name)
		}
		in, err := resolveInput(t.Descriptor.InputSchema)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", name, err)
		}
		t.input = in
		r.index[name] = len(r.tools)
		r.tools = append(r.tools, t)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	i, ok := r.index[name]
	if !ok {
		return Tool{}, false
	}
	return r.tools[i], true
}

func (r *Registry) Descriptors() []ToolDescriptor {
	out := make([]ToolDescriptor, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t.Descriptor)
	}
	return out
}

func (r *Registry) Len() int {
	return len(r.tools)
}

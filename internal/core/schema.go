package core

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
)

// ObjectSchema is the input schema of a tool taking props.
func ObjectSchema(props map[string]*jsonschema.Schema, required ...string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "object", Properties: props, Required: required}
}

// Prop declares one argument. def is advertised as its default when non-nil.
func Prop(typ, description string, def any) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: typ, Description: description}
	if def != nil {
		if raw, err := json.Marshal(def); err == nil {
			s.Default = raw
		}
	}
	return s
}

// inputSchema is a tool's input schema resolved for validation.
type inputSchema struct {
	schema *jsonschema.Schema
	root   *jsonschema.Resolved
	props  map[string]*jsonschema.Resolved
}

func resolveInput(s *jsonschema.Schema) (*inputSchema, error) {
	if s == nil {
		return nil, fmt.Errorf("input schema is required")
	}
	if s.Type != "object" {
		return nil, fmt.Errorf("input schema type must be object")
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return nil, fmt.Errorf("required argument %q is not declared", req)
		}
	}

	root, err := s.Resolve(&jsonschema.ResolveOptions{ValidateDefaults: true})
	if err != nil {
		return nil, fmt.Errorf("resolve input schema: %w", err)
	}
	in := &inputSchema{schema: s, root: root, props: make(map[string]*jsonschema.Resolved, len(s.Properties))}
	for name, prop := range s.Properties {
		rs, err := prop.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("resolve argument %q: %w", name, err)
		}
		in.props[name] = rs
	}
	return in, nil
}

// validate checks required presence and declared JSON types. Unknown
// arguments are ignored.
func (in *inputSchema) validate(args map[string]any) error {
	for _, name := range in.schema.Required {
		v, ok := args[name]
		if !ok || v == nil {
			return inputErrorf("%s is required", name)
		}
		if s, isStr := v.(string); isStr && strings.TrimSpace(s) == "" {
			return inputErrorf("%s must not be empty", name)
		}
	}

	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		rs, declared := in.props[name]
		v := args[name]
		if !declared || v == nil {
			continue
		}
		if err := rs.Validate(v); err != nil {
			if typ := in.schema.Properties[name].Type; typ != "" {
				return inputErrorf("%s must be a %s", name, typ)
			}
			return inputErrorf("%s: %v", name, err)
		}
	}

	present := make(map[string]any, len(args))
	for name, v := range args {
		if v != nil {
			present[name] = v
		}
	}
	if err := in.root.Validate(present); err != nil {
		return inputErrorf("%v", err)
	}
	return nil
}

package main

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/tools"
)

func main() {
	if err := render(os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func render(w io.Writer) error {
	registry, err := core.NewRegistry(tools.Catalog(tools.Deps{})...)
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "# MCP Tools (Generated)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "This file is generated from `internal/tools/catalog.go`.")
	fmt.Fprintln(w)

	for _, d := range registry.Descriptors() {
		fmt.Fprintf(w, "- `%s`\n", d.Name)
		if d.Description != "" {
			fmt.Fprintf(w, "  - Description: %s\n", d.Description)
		}

		requiredSet := make(map[string]bool, len(d.InputSchema.Required))
		for _, r := range d.InputSchema.Required {
			requiredSet[r] = true
		}

		keys := make([]string, 0, len(d.InputSchema.Properties))
		for k := range d.InputSchema.Properties {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		if len(keys) > 0 {
			fmt.Fprintln(w, "  - Input:")
			for _, k := range keys {
				p := d.InputSchema.Properties[k]
				req := "optional"
				if requiredSet[k] {
					req = "required"
				}
				line := fmt.Sprintf("    - `%s` (%s, %s)", k, p.Type, req)
				if len(p.Default) > 0 {
					line += fmt.Sprintf(", default `%s`", p.Default)
				}
				if p.Description != "" {
					line += ": " + p.Description
				}
				fmt.Fprintln(w, line)
			}
		}
		fmt.Fprintln(w)
	}
	return nil
}

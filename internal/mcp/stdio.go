package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/gitpr/gitpr/internal/core"
)

// NewSDKServer registers every tool of caller on an SDK server. The SDK
// answers unknown tool names itself.
func NewSDKServer(caller Caller, info Info, logger *slog.Logger) *mcpsdk.Server {
	if logger == nil {
		logger = slog.Default()
	}
	server := mcpsdk.NewServer(&mcpsdk.Implementation{Name: info.Name, Version: info.Version}, nil)
	for _, d := range caller.List() {
		name := d.Name
		server.AddTool(&mcpsdk.Tool{
			Name:        name,
			Description: d.Description,
			InputSchema: d.InputSchema,
		}, func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
			args, err := decodeArguments(req.Params.Arguments)
			if err != nil {
				return &mcpsdk.CallToolResult{
					Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: "invalid input: " + err.Error()}},
					IsError: true,
				}, nil
			}
			ctx = core.WithTraceID(ctx, uuid.New().String())
			res, err := caller.Call(ctx, core.Invocation{Name: name, Arguments: args})
			if err != nil {
				logger.Error("mcp stdio call failed", "tool_name", name, "err", err)
				return nil, err
			}
			return toSDKResult(res), nil
		})
	}
	return server
}

// RunStdio serves caller on stdin/stdout until ctx is done or the client
// disconnects.
func RunStdio(ctx context.Context, caller Caller, info Info, logger *slog.Logger) error {
	server := NewSDKServer(caller, info, logger)
	if err := server.Run(ctx, &mcpsdk.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("mcp stdio: %w", err)
	}
	return nil
}

func decodeArguments(raw json.RawMessage) (map[string]any, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return args, nil
}

func toSDKResult(res core.ToolResult) *mcpsdk.CallToolResult {
	out := &mcpsdk.CallToolResult{IsError: res.IsError}
	for _, c := range res.Content {
		out.Content = append(out.Content, &mcpsdk.TextContent{Text: c.Text})
	}
	return out
}

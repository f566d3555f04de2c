package core

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/gitpr/gitpr/internal/db"
)

type fakeAuditor struct {
	mu      sync.Mutex
	records []RecordInput
	err     error
}

func (f *fakeAuditor) Record(_ context.Context, in RecordInput) (*db.ToolCall, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records = append(f.records, in)
	if f.err != nil {
		return nil, f.err
	}
	return &db.ToolCall{ToolName: in.ToolName}, nil
}

func echoTool() Tool {
	return Tool{
		Descriptor: ToolDescriptor{
			Name:        "echo",
			Description: "Echo a message",
			InputSchema: ObjectSchema(map[string]*jsonschema.Schema{
				"message": Prop("string", "", nil),
				"count":   Prop("number", "", nil),
			}, "message"),
		},
		Handler: func(_ context.Context, args Args) (ToolResult, error) {
			return TextResult(strings.Repeat(args.String("message"), args.IntOr("count", 1, 100))), nil
		},
	}
}

func newTestDispatcher(t *testing.T, policy *Policy, audit Auditor, tools ...Tool) (*Dispatcher, *bytes.Buffer) {
	t.Helper()
	reg, err := NewRegistry(tools...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	return NewDispatcher(reg, policy, audit, logger), &logs
}

func TestDispatcherUnknownToolIsHardError(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, nil, echoTool())

	_, err := d.Call(context.Background(), Invocation{Name: "nope"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Fatalf("want ErrUnknownTool, got %v", err)
	}
	if !strings.Contains(err.Error(), "nope") {
		t.Fatalf("error should name the tool: %v", err)
	}
}

func TestDispatcherSuccess(t *testing.T) {
	audit := &fakeAuditor{}
	d, logs := newTestDispatcher(t, nil, audit, echoTool())

	res, err := d.Call(context.Background(), Invocation{Name: "echo", Arguments: map[string]any{"message": "ab", "count": float64(2)}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if res.IsError || res.Text() != "abab" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(res.Content) != 1 || res.Content[0].Type != "text" {
		t.Fatalf("want exactly one text item, got %+v", res.Content)
	}

	if len(audit.records) != 1 || audit.records[0].Failed || audit.records[0].Response != "abab" {
		t.Fatalf("unexpected audit records: %+v", audit.records)
	}
	if audit.records[0].TraceID == "" {
		t.Fatal("expected a generated trace id")
	}

	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(logs.Bytes()), &line); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, logs.String())
	}
	if line["msg"] != "tool call completed" || line["tool_name"] != "echo" || line["status"] != "ok" {
		t.Fatalf("unexpected log line: %v", line)
	}
	for _, k := range []string{"trace_id", "duration_ms", "code"} {
		if _, ok := line[k]; !ok {
			t.Fatalf("log line missing %q: %v", k, line)
		}
	}
}

func TestDispatcherKeepsTraceIDFromContext(t *testing.T) {
	audit := &fakeAuditor{}
	d, _ := newTestDispatcher(t, nil, audit, echoTool())

	ctx := WithTraceID(context.Background(), "trace-123")
	if _, err := d.Call(ctx, Invocation{Name: "echo", Arguments: map[string]any{"message": "x"}}); err != nil {
		t.Fatalf("Call: %v", err)
	}
	if audit.records[0].TraceID != "trace-123" {
		t.Fatalf("trace id = %q", audit.records[0].TraceID)
	}
}

func TestDispatcherValidation(t *testing.T) {
	called := false
	tool := echoTool()
	inner := tool.Handler
	tool.Handler = func(ctx context.Context, args Args) (ToolResult, error) {
		called = true
		return inner(ctx, args)
	}
	d, _ := newTestDispatcher(t, nil, nil, tool)

	tests := []struct {
		name string
		args map[string]any
		want string
	}{
		{name: "missing", args: nil, want: "invalid input: message is required"},
		{name: "null", args: map[string]any{"message": nil}, want: "invalid input: message is required"},
		{name: "blank", args: map[string]any{"message": "  "}, want: "invalid input: message must not be empty"},
		{name: "wrong type", args: map[string]any{"message": 3.0}, want: "invalid input: message must be a string"},
		{name: "wrong optional type", args: map[string]any{"message": "x", "count": "ten"}, want: "invalid input: count must be a number"},
		{name: "array for string", args: map[string]any{"message": []any{"a"}}, want: "invalid input: message must be a string"},
		{name: "object for number", args: map[string]any{"message": "x", "count": map[string]any{}}, want: "invalid input: count must be a number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called = false
			res, err := d.Call(context.Background(), Invocation{Name: "echo", Arguments: tt.args})
			if err != nil {
				t.Fatalf("validation failures must not be protocol errors: %v", err)
			}
			if !res.IsError || res.Text() != tt.want {
				t.Fatalf("got %+v, want error text %q", res, tt.want)
			}
			if called {
				t.Fatal("handler must not run on invalid input")
			}
		})
	}
}

func TestDispatcherToolPolicy(t *testing.T) {
	audit := &fakeAuditor{}
	d, _ := newTestDispatcher(t, NewPolicy("", "other"), audit, echoTool())

	res, err := d.Call(context.Background(), Invocation{Name: "echo", Arguments: map[string]any{"message": "x"}})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if !res.IsError || !strings.Contains(res.Text(), "not in allowlist") {
		t.Fatalf("unexpected result: %+v", res)
	}
	if audit.records[0].ErrorCode != "tool_not_allowed" {
		t.Fatalf("error code = %q", audit.records[0].ErrorCode)
	}
}

func TestDispatcherHandlerErrors(t *testing.T) {
	failing := Tool{
		Descriptor: ToolDescriptor{Name: "fail", InputSchema: ObjectSchema(nil)},
		Handler: func(context.Context, Args) (ToolResult, error) {
			return ToolResult{}, errors.New("Command failed: git push: exit status 1")
		},
	}
	texted := Tool{
		Descriptor: ToolDescriptor{Name: "texted", InputSchema: ObjectSchema(nil)},
		Handler: func(context.Context, Args) (ToolResult, error) {
			return TextResult("Error: boom"), errors.New("launch browser: boom")
		},
	}
	panics := Tool{
		Descriptor: ToolDescriptor{Name: "panics", InputSchema: ObjectSchema(nil)},
		Handler: func(context.Context, Args) (ToolResult, error) {
			panic("kaboom")
		},
	}
	audit := &fakeAuditor{}
	d, _ := newTestDispatcher(t, nil, audit, failing, texted, panics)

	res, err := d.Call(context.Background(), Invocation{Name: "fail"})
	if err != nil || !res.IsError || res.Text() != "Command failed: git push: exit status 1" {
		t.Fatalf("fail: res=%+v err=%v", res, err)
	}

	res, err = d.Call(context.Background(), Invocation{Name: "texted"})
	if err != nil || !res.IsError || res.Text() != "Error: boom" {
		t.Fatalf("texted: res=%+v err=%v", res, err)
	}

	res, err = d.Call(context.Background(), Invocation{Name: "panics"})
	if err != nil || !res.IsError || !strings.Contains(res.Text(), "kaboom") {
		t.Fatalf("panics: res=%+v err=%v", res, err)
	}

	codes := []string{audit.records[0].ErrorCode, audit.records[1].ErrorCode, audit.records[2].ErrorCode}
	want := []string{"command_failed", "browser_failed", "internal_error"}
	for i := range want {
		if codes[i] != want[i] {
			t.Fatalf("codes = %v, want %v", codes, want)
		}
	}
}

func TestDispatcherAuditFailureDoesNotFailCall(t *testing.T) {
	d, logs := newTestDispatcher(t, nil, &fakeAuditor{err: errors.New("db down")}, echoTool())

	res, err := d.Call(context.Background(), Invocation{Name: "echo", Arguments: map[string]any{"message": "x"}})
	if err != nil || res.IsError {
		t.Fatalf("res=%+v err=%v", res, err)
	}
	if !strings.Contains(logs.String(), "audit record failed") {
		t.Fatalf("expected audit failure to be logged: %s", logs.String())
	}
}

func TestDispatcherListKeepsOrder(t *testing.T) {
	b := echoTool()
	b.Descriptor.Name = "b"
	a := echoTool()
	a.Descriptor.Name = "a"
	d, _ := newTestDispatcher(t, nil, nil, b, a)

	list := d.List()
	if len(list) != 2 || list[0].Name != "b" || list[1].Name != "a" {
		t.Fatalf("unexpected order: %+v", list)
	}
}

func TestDispatcherConcurrentCalls(t *testing.T) {
	d, _ := newTestDispatcher(t, nil, &fakeAuditor{}, echoTool())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := d.Call(context.Background(), Invocation{Name: "echo", Arguments: map[string]any{"message": "x"}})
			if err != nil || res.Text() != "x" {
				t.Errorf("res=%+v err=%v", res, err)
			}
		}()
	}
	wg.Wait()
}

package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gitpr/gitpr/internal/db"
	"github.com/gitpr/gitpr/internal/telemetry"
)

// ErrUnknownTool is the only failure that escapes Call as an error.
var ErrUnknownTool = errors.New("unknown tool")

type ctxKey string

const ctxKeyTraceID ctxKey = "trace_id"

// WithTraceID attaches a trace id to ctx.
func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, ctxKeyTraceID, traceID)
}

// TraceID returns the trace id attached to ctx, or "".
func TraceID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyTraceID).(string)
	return id
}

// Auditor records tool calls. *AuditService implements it.
type Auditor interface {
	Record(ctx context.Context, in RecordInput) (*db.ToolCall, error)
}

type Dispatcher struct {
	registry *Registry
	policy   *Policy
	audit    Auditor
	logger   *slog.Logger
}

// NewDispatcher routes calls to registry. policy and audit may be nil.
func NewDispatcher(registry *Registry, policy *Policy, audit Auditor, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{registry: registry, policy: policy, audit: audit, logger: logger}
}

// List returns tool descriptors in registration order.
func (d *Dispatcher) List() []ToolDescriptor {
	return d.registry.Descriptors()
}

// Call validates and runs one invocation. Every outcome other than an unknown
// tool name is reported through the returned ToolResult.
func (d *Dispatcher) Call(ctx context.Context, inv Invocation) (ToolResult, error) {
	tool, ok := d.registry.Lookup(inv.Name)
	if !ok {
		return ToolResult{}, fmt.Errorf("%w: %s", ErrUnknownTool, inv.Name)
	}

	traceID := TraceID(ctx)
	if traceID == "" {
		traceID = uuid.New().String()
		ctx = WithTraceID(ctx, traceID)
	}

	ctx, span := otel.Tracer("gitpr/core").Start(ctx, "tool.call", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(attribute.String("tool.name", inv.Name), attribute.String("trace.id", traceID))

	start := time.Now()
	res, err := d.invoke(ctx, tool, inv)
	duration := time.Since(start)

	status := "ok"
	code := ""
	if res.IsError || err != nil {
		status = "fail"
		code = MapError(errOrText(err, res), 500).Code
		span.SetStatus(codes.Error, res.Text())
	}
	span.SetAttributes(attribute.String("tool.status", status))

	telemetry.IncToolCall(inv.Name, status)
	telemetry.ObserveToolDuration(inv.Name, duration)

	if d.audit != nil {
		if _, auditErr := d.audit.Record(ctx, RecordInput{
			TraceID:   traceID,
			ToolName:  inv.Name,
			Request:   inv.Arguments,
			Response:  res.Text(),
			Failed:    status == "fail",
			ErrorCode: code,
		}); auditErr != nil {
			d.logger.Error("audit record failed", "trace_id", traceID, "tool_name", inv.Name, "err", auditErr)
		}
	}

	d.logger.Info("tool call completed",
		"trace_id", traceID,
		"tool_name", inv.Name,
		"status", status,
		"code", code,
		"duration_ms", duration.Milliseconds(),
	)
	return res, nil
}

// invoke applies policy and validation, then runs the handler. The returned
// result is always populated.
func (d *Dispatcher) invoke(ctx context.Context, tool Tool, inv Invocation) (res ToolResult, err error) {
	if err := d.policy.CheckTool(inv.Name); err != nil {
		return ErrorResult(err.Error()), err
	}

	args := inv.Arguments
	if args == nil {
		args = map[string]any{}
	}
	if err := tool.input.validate(args); err != nil {
		return ErrorResult(err.Error()), err
	}

	defer func() {
		if p := recover(); p != nil {
			d.logger.Error("tool handler panic", "trace_id", TraceID(ctx), "tool_name", inv.Name, "panic", fmt.Sprint(p), "stack", string(debug.Stack()))
			err = fmt.Errorf("internal error in %s: %v", inv.Name, p)
			res = ErrorResult(err.Error())
		}
	}()

	res, err = tool.Handler(ctx, Args(args))
	if len(res.Content) == 0 {
		if err != nil {
			return ErrorResult(err.Error()), err
		}
		return TextResult(""), nil
	}
	if err != nil {
		res.IsError = true
	}
	return res, err
}

func errOrText(err error, res ToolResult) error {
	if err != nil {
		return err
	}
	return errors.New(res.Text())
}

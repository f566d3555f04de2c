package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gitpr/gitpr/internal/db"
)

// ToolCallStore persists audit rows. *db.DB implements it.
type ToolCallStore interface {
	InsertToolCall(ctx context.Context, tc *db.ToolCall) error
}

// AuditService records every tool invocation with its request, response text
// and a SHA-256 evidence hash for tamper detection.
type AuditService struct {
	store ToolCallStore
	now   func() time.Time
}

func NewAuditService(store ToolCallStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// RecordInput captures what is needed to log a tool call.
type RecordInput struct {
	TraceID   string
	ToolName  string
	Request   any
	Response  string
	Failed    bool
	ErrorCode string
}

// Record persists one tool call.
func (a *AuditService) Record(ctx context.Context, in RecordInput) (*db.ToolCall, error) {
	reqJSON, err := json.Marshal(in.Request)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	status := "ok"
	if in.Failed {
		status = "fail"
	}
	var code *string
	if in.ErrorCode != "" {
		c := in.ErrorCode
		code = &c
	}

	tc := &db.ToolCall{
		ToolCallID:   uuid.New().String(),
		TraceID:      in.TraceID,
		ToolName:     in.ToolName,
		Status:       status,
		ErrorCode:    code,
		RequestJSON:  string(reqJSON),
		ResponseText: in.Response,
		EvidenceHash: EvidenceHash(reqJSON, in.Response),
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.InsertToolCall(ctx, tc); err != nil {
		return nil, fmt.Errorf("insert tool_call: %w", err)
	}
	return tc, nil
}

// EvidenceHash is the hex SHA-256 of the request JSON followed by the
// response text.
func EvidenceHash(reqJSON []byte, response string) string {
	sum := sha256.Sum256(append(append([]byte(nil), reqJSON...), response...))
	return hex.EncodeToString(sum[:])
}

// Package db provides PostgreSQL persistence for the tool-call audit trail.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the underlying *sql.DB and provides typed query methods.
type DB struct {
	conn *sql.DB
}

// New opens a PostgreSQL connection, verifies connectivity and applies
// pending migrations.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks the connection is still usable.
func (d *DB) Ping(ctx context.Context) error {
	return d.conn.PingContext(ctx)
}

// ToolCall is one audited tool invocation.
type ToolCall struct {
	ToolCallID   string    `json:"tool_call_id"`
	TraceID      string    `json:"trace_id"`
	ToolName     string    `json:"tool_name"`
	Status       string    `json:"status"`
	ErrorCode    *string   `json:"error_code,omitempty"`
	RequestJSON  string    `json:"request_json"`
	ResponseText string    `json:"response_text"`
	EvidenceHash string    `json:"evidence_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

// InsertToolCall creates a new tool call record.
func (d *DB) InsertToolCall(ctx context.Context, tc *ToolCall) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO tool_calls (tool_call_id, trace_id, tool_name, status, error_code, request_json, response_text, evidence_hash, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tc.ToolCallID, tc.TraceID, tc.ToolName, tc.Status, tc.ErrorCode, tc.RequestJSON, tc.ResponseText, tc.EvidenceHash, tc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tool_call: %w", err)
	}
	return nil
}

// GetToolCall retrieves a tool call by ID.
func (d *DB) GetToolCall(ctx context.Context, toolCallID string) (*ToolCall, error) {
	tc := &ToolCall{}
	err := d.conn.QueryRowContext(ctx,
		`SELECT tool_call_id, trace_id, tool_name, status, error_code, request_json, response_text, evidence_hash, created_at
		 FROM tool_calls WHERE tool_call_id = $1`, toolCallID,
	).Scan(&tc.ToolCallID, &tc.TraceID, &tc.ToolName, &tc.Status, &tc.ErrorCode, &tc.RequestJSON, &tc.ResponseText, &tc.EvidenceHash, &tc.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tool_call: %w", err)
	}
	return tc, nil
}

// ToolCallFilters narrows ListToolCalls. Zero values match everything.
type ToolCallFilters struct {
	Status        string
	ToolName      string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}

// ListToolCalls returns matching tool calls, most recent first.
func (d *DB) ListToolCalls(ctx context.Context, f ToolCallFilters) ([]*ToolCall, error) {
	if f.Limit <= 0 || f.Limit > 500 {
		f.Limit = 50
	}

	var (
		where []string
		args  []any
	)
	add := func(clause string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.ToolName != "" {
		add("tool_name = $%d", f.ToolName)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at <= $%d", *f.CreatedBefore)
	}

	query := `SELECT tool_call_id, trace_id, tool_name, status, error_code, request_json, response_text, evidence_hash, created_at FROM tool_calls`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))

	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tool_calls: %w", err)
	}
	defer rows.Close()

	var tcs []*ToolCall
	for rows.Next() {
		tc := &ToolCall{}
		if err := rows.Scan(&tc.ToolCallID, &tc.TraceID, &tc.ToolName, &tc.Status, &tc.ErrorCode, &tc.RequestJSON, &tc.ResponseText, &tc.EvidenceHash, &tc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tool_call: %w", err)
		}
		tcs = append(tcs, tc)
	}
	return tcs, rows.Err()
}

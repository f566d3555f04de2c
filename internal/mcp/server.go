// Package mcp serves the tool catalog over the Model Context Protocol: line
// delimited JSON-RPC over TCP, and the official SDK over stdio.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/gitpr/gitpr/internal/core"
)

const ProtocolVersion = "2024-11-05"

// Caller is the dispatcher surface the transports need.
type Caller interface {
	List() []core.ToolDescriptor
	Call(ctx context.Context, inv core.Invocation) (core.ToolResult, error)
}

type Info struct {
	Name    string
	Version string
}

// Server is the TCP transport.
type Server struct {
	caller Caller
	info   Info
	addr   string
	logger *slog.Logger

	ln     net.Listener
	mu     sync.Mutex
	closed bool
	conns  sync.WaitGroup
}

func NewServer(addr string, caller Caller, info Info, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{caller: caller, info: info, addr: addr, logger: logger}
}

type jsonRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type jsonRPCResponse struct {
	JSONRPC string    `json:"jsonrpc"`
	ID      any       `json:"id"`
	Result  any       `json:"result,omitempty"`
	Error   *rpcError `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()

	s.logger.Info("mcp server starting", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("mcp accept error", "err", err)
			continue
		}
		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.handleConn(conn)
		}()
	}
}

// Shutdown stops accepting connections and waits for open ones to finish or
// ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	var err error
	if s.ln != nil {
		err = s.ln.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req jsonRPCRequest
		if err := json.Unmarshal(line, &req); err != nil {
			s.writeResponse(conn, jsonRPCResponse{
				JSONRPC: "2.0",
				ID:      nil,
				Error:   &rpcError{Code: -32700, Message: "parse error"},
			})
			continue
		}
		if req.ID == nil && strings.HasPrefix(req.Method, "notifications/") {
			continue
		}

		traceID := uuid.New().String()
		ctx := core.WithTraceID(context.Background(), traceID)
		resp := s.dispatch(ctx, req)
		s.writeResponse(conn, resp)
	}
}

func (s *Server) writeResponse(w io.Writer, resp jsonRPCResponse) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	w.Write(data)
}

func (s *Server) dispatch(ctx context.Context, req jsonRPCRequest) jsonRPCResponse {
	base := jsonRPCResponse{JSONRPC: "2.0", ID: req.ID}

	switch req.Method {
	case "initialize":
		base.Result = map[string]any{
			"protocolVersion": ProtocolVersion,
			"capabilities":    map[string]any{"tools": map[string]any{"listChanged": false}},
			"serverInfo":      map[string]any{"name": s.info.Name, "version": s.info.Version},
		}
		return base

	case "ping":
		base.Result = map[string]any{}
		return base

	case "tools/list":
		base.Result = map[string]any{"tools": ToolDefinitions(s.caller.List())}
		return base

	case "tools/call":
		return s.handleToolCall(ctx, req, base)

	default:
		base.Error = &rpcError{Code: -32601, Message: fmt.Sprintf("method not found: %s", req.Method)}
		return base
	}
}

func (s *Server) handleToolCall(ctx context.Context, req jsonRPCRequest, base jsonRPCResponse) jsonRPCResponse {
	var params toolCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		base.Error = &rpcError{Code: -32602, Message: "invalid params: " + err.Error()}
		return base
	}

	res, err := s.caller.Call(ctx, core.Invocation{Name: params.Name, Arguments: params.Arguments})
	if err != nil {
		if errors.Is(err, core.ErrUnknownTool) {
			base.Error = &rpcError{Code: -32602, Message: fmt.Sprintf("unknown tool: %s", params.Name)}
			return base
		}
		base.Error = &rpcError{Code: -32603, Message: err.Error()}
		return base
	}
	base.Result = res
	return base
}

// ToolDefinitions renders descriptors the way tools/list returns them.
func ToolDefinitions(descs []core.ToolDescriptor) []map[string]any {
	out := make([]map[string]any, 0, len(descs))
	for _, d := range descs {
		out = append(out, map[string]any{
			"name":        d.Name,
			"description": d.Description,
			"inputSchema": d.InputSchema,
		})
	}
	return out
}

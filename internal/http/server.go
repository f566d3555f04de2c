package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/gitpr/gitpr/internal/core"
	"github.com/gitpr/gitpr/internal/db"
	"github.com/gitpr/gitpr/internal/telemetry"
)

// Caller is the dispatcher surface served over HTTP.
type Caller interface {
	List() []core.ToolDescriptor
	Call(ctx context.Context, inv core.Invocation) (core.ToolResult, error)
}

// ToolCallStore reads the audit trail. Nil disables the tool-calls routes and
// the database health check. *db.DB implements it.
type ToolCallStore interface {
	ListToolCalls(ctx context.Context, f db.ToolCallFilters) ([]*db.ToolCall, error)
	GetToolCall(ctx context.Context, toolCallID string) (*db.ToolCall, error)
	Ping(ctx context.Context) error
}

type BuildInfo struct {
	Version   string
	GitCommit string
	BuildTime string
}

type Options struct {
	// JWTSecret enables HS256 bearer authentication on /api routes.
	JWTSecret string
	Build     BuildInfo
}

type Server struct {
	caller Caller
	calls  ToolCallStore
	opts   Options
	srv    *http.Server
	logger *slog.Logger
}

const (
	maxRequestBodyBytes = 1 << 20
	healthPingTimeout   = 2 * time.Second
)

func NewServer(addr string, caller Caller, calls ToolCallStore, logger *slog.Logger, opts Options) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		caller: caller,
		calls:  calls,
		opts:   opts,
		logger: logger,
	}

	api := http.NewServeMux()
	api.HandleFunc("GET /api/v1/tools", s.handleListTools)
	api.HandleFunc("POST /api/v1/tools/{name}", s.handleCallTool)
	api.HandleFunc("GET /api/v1/tool-calls", s.handleListToolCalls)
	api.HandleFunc("GET /api/v1/tool-calls/{id}", s.handleGetToolCall)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /version", s.handleVersion)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", withBearerAuth(opts.JWTSecret, api))

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) ListenAndServe() error {
	s.logger.Info("http server starting", "addr", s.srv.Addr)
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.srv.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
	defer cancel()
	if err := s.calls.Ping(ctx); err != nil {
		s.logger.Warn("database health check failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "database": "unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"version":    s.opts.Build.Version,
		"git_commit": s.opts.Build.GitCommit,
		"build_time": s.opts.Build.BuildTime,
	})
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, telemetry.RenderPrometheus())
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tools": s.caller.List()})
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var args map[string]any
	if r.ContentLength != 0 {
		if err := decodeJSONBody(w, r, &args); err != nil {
			writeErr(w, http.StatusBadRequest, "invalid json: "+err.Error())
			return
		}
	}

	ctx := core.WithTraceID(r.Context(), uuid.New().String())
	res, err := s.caller.Call(ctx, core.Invocation{Name: name, Arguments: args})
	if err != nil {
		info := core.MapError(err, http.StatusInternalServerError)
		writeJSON(w, info.HTTPStatus, map[string]string{"error": info.Message, "code": info.Code})
		return
	}
	w.Header().Set("X-Trace-Id", core.TraceID(ctx))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListToolCalls(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeErr(w, http.StatusServiceUnavailable, "audit trail is not configured")
		return
	}
	filters, err := parseToolCallListFilters(r)
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	calls, err := s.calls.ListToolCalls(r.Context(), filters)
	if err != nil {
		s.logger.Error("list tool calls failed", "err", err)
		writeErr(w, http.StatusInternalServerError, "list tool calls failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tool_calls": calls})
}

func (s *Server) handleGetToolCall(w http.ResponseWriter, r *http.Request) {
	if s.calls == nil {
		writeErr(w, http.StatusServiceUnavailable, "audit trail is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if _, err := uuid.Parse(id); err != nil {
		writeErr(w, http.StatusBadRequest, "tool call id must be a UUID")
		return
	}
	tc, err := s.calls.GetToolCall(r.Context(), id)
	if err != nil {
		s.logger.Error("get tool call failed", "tool_call_id", id, "err", err)
		writeErr(w, http.StatusInternalServerError, "get tool call failed")
		return
	}
	if tc == nil {
		writeErr(w, http.StatusNotFound, "tool call not found")
		return
	}
	writeJSON(w, http.StatusOK, tc)
}

func parseToolCallListFilters(r *http.Request) (db.ToolCallFilters, error) {
	q := r.URL.Query()
	f := db.ToolCallFilters{
		Status:   strings.TrimSpace(q.Get("status")),
		ToolName: strings.TrimSpace(q.Get("tool_name")),
	}
	if f.Status != "" && f.Status != "ok" && f.Status != "fail" {
		return f, fmt.Errorf("status must be ok or fail")
	}
	for _, p := range []struct {
		key string
		dst **time.Time
	}{
		{"created_after", &f.CreatedAfter},
		{"created_before", &f.CreatedBefore},
	} {
		raw := strings.TrimSpace(q.Get(p.key))
		if raw == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return f, fmt.Errorf("%s must be RFC3339", p.key)
		}
		*p.dst = &t
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return f, fmt.Errorf("created_after must not be after created_before")
	}
	if raw := strings.TrimSpace(q.Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}

// withBearerAuth requires an HS256 token signed with secret. An empty secret
// disables the check.
func withBearerAuth(secret string, next http.Handler) http.Handler {
	if secret == "" {
		return next
	}
	key := []byte(secret)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			writeErr(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), &jwt.RegisteredClaims{}, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
			}
			return key, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithLeeway(5*time.Second))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			writeErr(w, http.StatusUnauthorized, msg)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(sw, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration", fmt.Sprintf("%dms", time.Since(start).Milliseconds()),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

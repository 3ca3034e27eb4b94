// Package toolserver exposes a tool set over HTTP so that remote tools
// configured in briefing can be served from another process or container.
package toolserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/docker/briefing/pkg/tools"
)

// Server serves the tools of a single set.
type Server struct {
	set    *tools.Set
	logger *slog.Logger
}

// Definition is what GET /tools reports for each tool.
type Definition struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Parameters  any    `json:"parameters,omitempty"`
}

func New(set *tools.Set, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{set: set, logger: logger}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{tool}", s.handleCallTool)
	return mux
}

// Serve starts the HTTP server on the given listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	server := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.WithoutCancel(ctx))
	}()

	s.logger.Info("Tool server listening", "addr", ln.Addr().String(), "tools", s.set.Names())
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	defs := []Definition{}
	for _, t := range s.set.Tools() {
		defs = append(defs, Definition{Name: t.Name, Description: t.Description, Parameters: t.Parameters})
	}
	writeJSON(w, http.StatusOK, defs)
}

func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool")

	tool, ok := s.set.Lookup(name)
	if !ok || tool.Handler == nil {
		writeJSON(w, http.StatusNotFound, tools.ErrorResponse{Error: fmt.Sprintf("tool %q not found", name)})
		return
	}

	var req tools.CallToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, tools.ErrorResponse{Error: fmt.Sprintf("invalid request body: %v", err)})
		return
	}

	var args json.RawMessage
	if req.Arguments != "" {
		if !json.Valid([]byte(req.Arguments)) {
			writeJSON(w, http.StatusBadRequest, tools.ErrorResponse{Error: "arguments are not valid JSON"})
			return
		}
		args = json.RawMessage(req.Arguments)
	}

	result := tools.Invoke(r.Context(), tool, tools.Call{ID: "toolserver-call", Name: name, Arguments: args})
	if result.IsError {
		s.logger.Debug("Tool call failed", "tool", name, "error", result.Output)
	}

	writeJSON(w, http.StatusOK, tools.CallToolResponse{
		Output:  result.Output,
		IsError: result.IsError,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

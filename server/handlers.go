package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hunt-labs/huntgate/tools"
)

// handleRoot returns the static service descriptor.
func (s *Server) handleRoot(w http.ResponseWriter, _ *http.Request) {
	payload := map[string]any{
		"service": s.serverName,
		"version": s.version,
		"status":  "running",
		"endpoints": map[string]string{
			"/":                  "Service information",
			"/health":            "Health check",
			"/sse/":              "Server-Sent Events stream",
			"/tools":             "List available tools",
			"/tools/{tool_name}": "Execute a tool",
		},
		"timestamp": s.now().Format(time.RFC3339),
	}
	if s.probe != nil {
		if last, ok := s.probe.Last(); ok {
			payload["upstream"] = last
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleHealth reports readiness. Registry and credential states are
// reported independently so either precondition failure is visible.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	registryState := "initialized"
	if s.reg == nil || !s.reg.Ready() {
		registryState = "pending"
	}
	credentialState := "configured"
	if !s.credentialConfigured() {
		credentialState = "missing"
	}

	payload := map[string]any{
		"timestamp":  s.now().Format(time.RFC3339),
		"registry":   registryState,
		"credential": credentialState,
	}
	if s.probe != nil {
		if last, ok := s.probe.Last(); ok {
			payload["upstream"] = last
		}
	}

	switch {
	case registryState != "initialized":
		payload["status"] = "unhealthy"
		payload["detail"] = "tool registry not initialized"
		writeJSON(w, http.StatusServiceUnavailable, payload)
	case credentialState != "configured":
		payload["status"] = "unhealthy"
		payload["detail"] = s.credentialEnv + " not configured"
		writeJSON(w, http.StatusServiceUnavailable, payload)
	default:
		payload["status"] = "healthy"
		writeJSON(w, http.StatusOK, payload)
	}
}

// handleListTools returns the registry snapshot.
func (s *Server) handleListTools(w http.ResponseWriter, _ *http.Request) {
	if s.reg == nil || !s.reg.Ready() {
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "tool registry not initialized")
		return
	}

	snapshot := s.reg.Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"tools":     snapshot,
		"count":     len(snapshot),
		"timestamp": s.now().Format(time.RFC3339),
	})
}

// handleExecuteTool validates the tool name against the registry and runs
// it. Unknown names are rejected rather than echoed back as successes.
func (s *Server) handleExecuteTool(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("tool_name")

	if s.reg == nil || !s.reg.Ready() {
		writeError(w, http.StatusServiceUnavailable, "NOT_READY", "tool registry not initialized")
		return
	}

	input := map[string]any{}
	if r.Body != nil && r.ContentLength != 0 {
		if err := decodeJSONBody(r, &input); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
			return
		}
	}

	if !s.reg.Has(name) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("tool %q not found", name))
		return
	}

	start := s.now()
	result, err := s.runner.Run(r.Context(), name, input)
	elapsed := s.now().Sub(start)

	if err != nil {
		s.logger.Error("tool execution failed", "tool", name, "error", err)
		s.recordInvocation(r, name, input, "failed", elapsed)
		if errors.Is(err, tools.ErrUnknownTool) {
			// Registered descriptor without a bound runner.
			writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "TOOL_EXECUTION",
			fmt.Sprintf("tool execution failed: %v", err))
		return
	}

	s.recordInvocation(r, name, input, "executed", elapsed)
	writeJSON(w, http.StatusOK, map[string]any{
		"tool":      name,
		"status":    "executed",
		"input":     input,
		"result":    result,
		"timestamp": s.now().Format(time.RFC3339),
		"message":   fmt.Sprintf("Tool %s executed successfully", name),
	})
}

// recordInvocation writes an audit record, best effort.
func (s *Server) recordInvocation(r *http.Request, name string, input map[string]any, status string, elapsed time.Duration) {
	if s.invocations == nil {
		return
	}
	rec := InvocationRecord{
		ID:        uuid.New().String(),
		Tool:      name,
		Input:     input,
		Status:    status,
		ElapsedMS: elapsed.Milliseconds(),
		CreatedAt: s.now(),
	}
	if err := s.invocations.Append(r.Context(), rec); err != nil {
		s.logger.Warn("invocation audit write failed", "tool", name, "error", err)
	}
}

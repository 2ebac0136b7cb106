// Package server implements the HuntGate HTTP API: service descriptor,
// health and readiness checks, tool listing, tool execution, and the SSE
// stream mount. Handlers receive their dependencies explicitly; there is no
// package-level server state.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/hunt-labs/huntgate/phclient"
	"github.com/hunt-labs/huntgate/registry"
)

// ToolRunner executes a named tool. The tools package provides the real
// implementation; tests substitute stubs.
type ToolRunner interface {
	Run(ctx context.Context, name string, input map[string]any) (any, error)
}

// Config configures a Server instance.
type Config struct {
	Registry *registry.Registry
	Runner   ToolRunner

	// Stream handles GET /sse/. Required for the stream route.
	Stream http.Handler

	// Invocations records tool execution outcomes. Optional; recording
	// failures are logged and never fail a request.
	Invocations InvocationStore

	// Probe supplies the last upstream check for / and /health. Optional.
	Probe *UpstreamProbe

	ServerName string
	Version    string

	// CredentialEnv names the environment variable holding the upstream
	// access token (default phclient.TokenEnv).
	CredentialEnv string

	CORSOrigin string
	MaxBody    int64
	Logger     *slog.Logger

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Server is the HuntGate HTTP API server.
type Server struct {
	reg           *registry.Registry
	runner        ToolRunner
	stream        http.Handler
	invocations   InvocationStore
	probe         *UpstreamProbe
	serverName    string
	version       string
	credentialEnv string
	corsOrigin    string
	maxBody       int64
	logger        *slog.Logger
	now           func() time.Time
}

// NewServer creates a new Server with the given configuration.
func NewServer(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	corsOrigin := cfg.CORSOrigin
	if corsOrigin == "" {
		corsOrigin = "*"
	}
	maxBody := cfg.MaxBody
	if maxBody <= 0 {
		maxBody = 1 << 20 // 1 MB default
	}
	credentialEnv := strings.TrimSpace(cfg.CredentialEnv)
	if credentialEnv == "" {
		credentialEnv = phclient.TokenEnv
	}
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = "HuntGate"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Server{
		reg:           cfg.Registry,
		runner:        cfg.Runner,
		stream:        cfg.Stream,
		invocations:   cfg.Invocations,
		probe:         cfg.Probe,
		serverName:    serverName,
		version:       version,
		credentialEnv: credentialEnv,
		corsOrigin:    corsOrigin,
		maxBody:       maxBody,
		logger:        logger,
		now:           now,
	}
}

// Handler returns an http.Handler with all routes and middleware wired.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	var handler http.Handler = mux
	handler = s.corsMiddleware(handler)
	handler = s.maxBodyMiddleware(handler)

	return handler
}

// RegisterRoutes mounts gateway routes onto an existing mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /tools", s.handleListTools)
	mux.HandleFunc("POST /tools/{tool_name}", s.handleExecuteTool)
	if s.stream != nil {
		mux.Handle("GET /sse/", s.stream)
	}
}

// --- Middleware ---

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.corsOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) maxBodyMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)
		next.ServeHTTP(w, r)
	})
}

// credentialConfigured reports whether the upstream access token is present
// in the process environment.
func (s *Server) credentialConfigured() bool {
	return strings.TrimSpace(os.Getenv(s.credentialEnv)) != ""
}

// --- JSON helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// apiError is the standard error envelope.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{
		Error: apiErrorBody{
			Code:    code,
			Message: message,
		},
	})
}

func decodeJSONBody(r *http.Request, target any) error {
	if target == nil {
		return errors.New("decode target is nil")
	}
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		return err
	}
	if decoder.More() {
		return errors.New("request body must contain a single JSON object")
	}
	return nil
}

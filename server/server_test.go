package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hunt-labs/huntgate/registry"
	"github.com/hunt-labs/huntgate/tools"
)

type stubRunner struct {
	result any
	err    error

	lastName  string
	lastInput map[string]any
}

func (r *stubRunner) Run(_ context.Context, name string, input map[string]any) (any, error) {
	r.lastName = name
	r.lastInput = input
	if r.err != nil {
		return nil, r.err
	}
	return r.result, nil
}

func readyRegistry(t *testing.T, names ...string) *registry.Registry {
	t.Helper()
	reg := registry.New()
	for _, n := range names {
		reg.Register(n, n+" tool")
	}
	reg.MarkReady()
	return reg
}

func newTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	}
	return NewServer(cfg)
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, rr.Body.String())
	}
	return body
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	body := decodeBody(t, rr)
	errObj, ok := body["error"].(map[string]any)
	if !ok {
		t.Fatalf("expected error envelope, got %s", rr.Body.String())
	}
	code, _ := errObj["code"].(string)
	return code
}

func TestRootDescriptor(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry:   readyRegistry(t, "get_posts"),
		Runner:     &stubRunner{},
		ServerName: "HuntGate",
		Version:    "1.2.3",
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["service"] != "HuntGate" {
		t.Errorf("service = %v, want HuntGate", body["service"])
	}
	if body["version"] != "1.2.3" {
		t.Errorf("version = %v, want 1.2.3", body["version"])
	}
	if body["status"] != "running" {
		t.Errorf("status = %v, want running", body["status"])
	}
	endpoints, ok := body["endpoints"].(map[string]any)
	if !ok {
		t.Fatalf("endpoints missing: %v", body)
	}
	for _, path := range []string{"/", "/health", "/sse/", "/tools", "/tools/{tool_name}"} {
		if _, ok := endpoints[path]; !ok {
			t.Errorf("endpoints missing %q", path)
		}
	}
}

func TestRootOnlyMatchesExactPath(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("GET /nope status = %d, want 404", rr.Code)
	}
}

func TestHealthReady(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "tok")

	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["status"] != "healthy" {
		t.Errorf("status = %v, want healthy", body["status"])
	}
	if body["registry"] != "initialized" {
		t.Errorf("registry = %v, want initialized", body["registry"])
	}
	if body["credential"] != "configured" {
		t.Errorf("credential = %v, want configured", body["credential"])
	}
}

func TestHealthRegistryNotReady(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "tok")

	reg := registry.New() // never marked ready
	srv := newTestServer(t, Config{Registry: reg, Runner: &stubRunner{}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["status"] != "unhealthy" {
		t.Errorf("status = %v, want unhealthy", body["status"])
	}
	if body["registry"] != "pending" {
		t.Errorf("registry = %v, want pending", body["registry"])
	}
	// Credential state is reported independently of registry state.
	if body["credential"] != "configured" {
		t.Errorf("credential = %v, want configured", body["credential"])
	}
}

func TestHealthCredentialMissing(t *testing.T) {
	t.Setenv("PRODUCT_HUNT_TOKEN", "")

	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["credential"] != "missing" {
		t.Errorf("credential = %v, want missing", body["credential"])
	}
	if body["registry"] != "initialized" {
		t.Errorf("registry = %v, want initialized", body["registry"])
	}
	detail, _ := body["detail"].(string)
	if !strings.Contains(detail, "PRODUCT_HUNT_TOKEN") {
		t.Errorf("detail = %q, want mention of PRODUCT_HUNT_TOKEN", detail)
	}
}

func TestListToolsBeforeReady(t *testing.T) {
	srv := newTestServer(t, Config{Registry: registry.New(), Runner: &stubRunner{}})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_READY" {
		t.Errorf("error code = %q, want NOT_READY", code)
	}
}

func TestListTools(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts", "get_topics", "get_user"),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["count"] != float64(3) {
		t.Errorf("count = %v, want 3", body["count"])
	}
	list, ok := body["tools"].([]any)
	if !ok || len(list) != 3 {
		t.Fatalf("tools = %v, want 3 entries", body["tools"])
	}
	first, _ := list[0].(map[string]any)
	if first["name"] != "get_posts" {
		t.Errorf("first tool = %v, want get_posts (registration order)", first["name"])
	}
}

func TestExecuteToolUnknownName(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/definitely_not_a_tool", strings.NewReader(`{}`))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("error code = %q, want NOT_FOUND", code)
	}
}

func TestExecuteToolSuccess(t *testing.T) {
	runner := &stubRunner{result: map[string]any{"posts": []any{}}}
	store := NewMemInvocationStore()
	srv := newTestServer(t, Config{
		Registry:    readyRegistry(t, "get_posts"),
		Runner:      runner,
		Invocations: store,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(`{"first": 5}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rr.Code, rr.Body.String())
	}
	body := decodeBody(t, rr)
	if body["tool"] != "get_posts" {
		t.Errorf("tool = %v, want get_posts", body["tool"])
	}
	if body["status"] != "executed" {
		t.Errorf("status = %v, want executed", body["status"])
	}
	input, _ := body["input"].(map[string]any)
	if input["first"] != float64(5) {
		t.Errorf("input echo = %v, want first=5", body["input"])
	}
	if runner.lastName != "get_posts" {
		t.Errorf("runner invoked with %q, want get_posts", runner.lastName)
	}

	recs, err := store.List(context.Background(), "get_posts", 0)
	if err != nil {
		t.Fatalf("list invocations: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("invocation records = %d, want 1", len(recs))
	}
	if recs[0].Status != "executed" {
		t.Errorf("record status = %q, want executed", recs[0].Status)
	}
	if recs[0].ID == "" {
		t.Error("record ID is empty")
	}
}

func TestExecuteToolEmptyBody(t *testing.T) {
	runner := &stubRunner{result: "ok"}
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "check_server_status"),
		Runner:   runner,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/check_server_status", nil)
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\nbody: %s", rr.Code, rr.Body.String())
	}
	if runner.lastInput == nil {
		t.Fatal("runner input is nil, want empty map")
	}
	if len(runner.lastInput) != 0 {
		t.Errorf("runner input = %v, want empty", runner.lastInput)
	}
}

func TestExecuteToolMalformedJSON(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(`{not json`))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
	if code := errorCode(t, rr); code != "INVALID_JSON" {
		t.Errorf("error code = %q, want INVALID_JSON", code)
	}
}

func TestExecuteToolRunnerFailure(t *testing.T) {
	runner := &stubRunner{err: errors.New("upstream exploded")}
	store := NewMemInvocationStore()
	srv := newTestServer(t, Config{
		Registry:    readyRegistry(t, "get_posts"),
		Runner:      runner,
		Invocations: store,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(`{}`))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rr.Code)
	}
	if code := errorCode(t, rr); code != "TOOL_EXECUTION" {
		t.Errorf("error code = %q, want TOOL_EXECUTION", code)
	}

	recs, err := store.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list invocations: %v", err)
	}
	if len(recs) != 1 || recs[0].Status != "failed" {
		t.Errorf("records = %+v, want one failed record", recs)
	}
}

func TestExecuteToolUnboundRunner(t *testing.T) {
	runner := &stubRunner{err: tools.ErrUnknownTool}
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   runner,
	})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(`{}`))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestExecuteToolBeforeReady(t *testing.T) {
	srv := newTestServer(t, Config{Registry: registry.New(), Runner: &stubRunner{}})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(`{}`))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_READY" {
		t.Errorf("error code = %q, want NOT_READY", code)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
	})
	handler := srv.Handler()

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/tools", nil))
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}

	// Preflight short-circuits before routing.
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodOptions, "/tools/get_posts", nil))
	if rr.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", rr.Code)
	}
	if got := rr.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, "POST") {
		t.Errorf("Access-Control-Allow-Methods = %q, want POST included", got)
	}
}

func TestCORSConfigurableOrigin(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry:   readyRegistry(t),
		Runner:     &stubRunner{},
		CORSOrigin: "https://app.example.com",
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Errorf("Access-Control-Allow-Origin = %q, want configured origin", got)
	}
}

func TestMaxBodyLimit(t *testing.T) {
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t, "get_posts"),
		Runner:   &stubRunner{},
		MaxBody:  64,
	})

	big := `{"pad": "` + strings.Repeat("x", 256) + `"}`
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/tools/get_posts", strings.NewReader(big))
	srv.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400 for oversized body", rr.Code)
	}
}

func TestStreamMount(t *testing.T) {
	stream := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
	})
	srv := newTestServer(t, Config{
		Registry: readyRegistry(t),
		Runner:   &stubRunner{},
		Stream:   stream,
	})

	rr := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sse/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", got)
	}
}

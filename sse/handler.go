// Package sse provides the Server-Sent Events session manager for HuntGate.
// Each client connection gets one session: a deterministic startup batch of
// typed events (connection, server_info, tools snapshot, sample data)
// followed by an indefinite heartbeat cadence until the client disconnects.
package sse

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/hunt-labs/huntgate/registry"
)

// DefaultHeartbeatInterval is the default pause between heartbeat events.
const DefaultHeartbeatInterval = 30 * time.Second

// Observer receives session lifecycle notifications. Implementations must
// be safe for concurrent use; sessions run on independent goroutines.
type Observer interface {
	SessionOpened(sessionID string)
	EventEmitted(sessionID string, eventType EventType)
	SessionClosed(sessionID string, duration time.Duration)
}

type nopObserver struct{}

func (nopObserver) SessionOpened(string)                {}
func (nopObserver) EventEmitted(string, EventType)      {}
func (nopObserver) SessionClosed(string, time.Duration) {}

// HandlerConfig configures a Handler.
type HandlerConfig struct {
	// Registry supplies the tools snapshot. Required.
	Registry *registry.Registry

	// ServerName and Version fill the server_info event.
	ServerName string
	Version    string

	// HeartbeatInterval overrides DefaultHeartbeatInterval.
	HeartbeatInterval time.Duration

	Logger   *slog.Logger
	Observer Observer

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Handler serves the SSE stream. One session per request; sessions are
// fully independent and share only the read-only registry.
type Handler struct {
	reg        *registry.Registry
	serverName string
	version    string
	heartbeat  time.Duration
	logger     *slog.Logger
	observer   Observer
	now        func() time.Time
}

// NewHandler creates a Handler from the given configuration.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	observer := cfg.Observer
	if observer == nil {
		observer = nopObserver{}
	}
	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	serverName := cfg.ServerName
	if serverName == "" {
		serverName = "HuntGate"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}
	return &Handler{
		reg:        cfg.Registry,
		serverName: serverName,
		version:    version,
		heartbeat:  heartbeat,
		logger:     logger,
		observer:   observer,
		now:        now,
	}
}

// ServeHTTP implements http.Handler. It drives one session until the client
// disconnects or an unrecoverable fault occurs. Faults are converted into a
// single terminal error event; a disconnect is normal closure and produces
// no error event.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Headers", "*")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	sessionID := uuid.New().String()
	started := h.now()
	ctx := r.Context()

	h.observer.SessionOpened(sessionID)
	h.logger.Info("sse session opened", "session_id", sessionID, "remote", r.RemoteAddr)

	err := h.runSession(ctx, w, flusher, sessionID)
	switch {
	case err == nil || ctx.Err() != nil:
		// Normal closure: the client went away or the server is draining.
		h.logger.Info("sse session closed", "session_id", sessionID)
	default:
		// Session fault: emit one terminal error event, best effort.
		h.logger.Error("sse session fault", "session_id", sessionID, "error", err)
		_ = h.emit(w, flusher, sessionID, Event{
			Type:    EventError,
			Message: err.Error(),
		})
	}

	h.observer.SessionClosed(sessionID, h.now().Sub(started))
}

// runSession emits the startup batch, then heartbeats until cancellation.
// A nil return means normal closure.
func (h *Handler) runSession(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, sessionID string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("sse: session panic: %v", rec)
		}
	}()

	if err := h.emit(w, flusher, sessionID, Event{
		Type:    EventConnection,
		Message: "Connected to " + h.serverName,
	}); err != nil {
		return err
	}

	if err := h.emit(w, flusher, sessionID, Event{
		Type: EventServerInfo,
		Data: map[string]any{
			"name":    h.serverName,
			"version": h.version,
			"status":  "ready",
		},
	}); err != nil {
		return err
	}

	// The tools snapshot is skipped, not failed, when registration has not
	// completed: the session is still useful for heartbeats.
	if h.reg != nil && h.reg.Ready() {
		if err := h.emit(w, flusher, sessionID, Event{
			Type: EventTools,
			Data: h.reg.Snapshot(),
		}); err != nil {
			return err
		}
	}

	if err := h.emit(w, flusher, sessionID, Event{
		Type: EventSampleData,
		Data: map[string]any{
			"message": h.serverName + " is ready",
			"available_tools": []string{
				"get_posts", "get_post_details", "search_topics",
				"get_user", "get_collections", "get_comments",
			},
			"status": "operational",
		},
	}); err != nil {
		return err
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := h.emit(w, flusher, sessionID, Event{
				Type:   EventHeartbeat,
				Status: "alive",
			}); err != nil {
				return err
			}
		}
	}
}

// emit stamps the event with the current time, writes it in SSE format, and
// flushes. Timestamps are taken here so they reflect emission, not queueing.
func (h *Handler) emit(w http.ResponseWriter, flusher http.Flusher, sessionID string, evt Event) error {
	evt.Timestamp = h.now().Format(time.RFC3339Nano)

	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("sse: marshal %s event: %w", evt.Type, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data); err != nil {
		return fmt.Errorf("sse: write %s event: %w", evt.Type, err)
	}
	flusher.Flush()

	h.observer.EventEmitted(sessionID, evt.Type)
	return nil
}

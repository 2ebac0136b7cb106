package sse

// EventType tags a stream event.
type EventType string

// Event types emitted over a session, in startup order followed by the
// heartbeat cadence. Error is terminal.
const (
	EventConnection EventType = "connection"
	EventServerInfo EventType = "server_info"
	EventTools      EventType = "tools"
	EventSampleData EventType = "product_hunt_data"
	EventHeartbeat  EventType = "heartbeat"
	EventError      EventType = "error"
)

// Event is the JSON-serializable message sent over the SSE stream. The
// timestamp is stamped at emission time, never at construction time.
type Event struct {
	Type      EventType `json:"type"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	Status    string    `json:"status,omitempty"`
	Timestamp string    `json:"timestamp"`
}

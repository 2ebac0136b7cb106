package server

import (
	"context"
	"time"
)

// InvocationRecord captures one tool execution outcome for the audit log.
type InvocationRecord struct {
	ID        string         `json:"id"`
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"input"`
	Status    string         `json:"status"`
	ElapsedMS int64          `json:"elapsed_ms"`
	CreatedAt time.Time      `json:"created_at"`
}

// InvocationStore records tool execution outcomes. Implementations must be
// safe for concurrent use.
type InvocationStore interface {
	Append(ctx context.Context, rec InvocationRecord) error

	// List returns records for a tool name, newest first. An empty tool
	// name matches all records. limit <= 0 means no limit.
	List(ctx context.Context, tool string, limit int) ([]InvocationRecord, error)

	Close() error
}

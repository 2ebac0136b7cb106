package server

import (
	"context"
	"sync"
)

// MemInvocationStore is an in-memory InvocationStore for tests and
// development runs without a database.
type MemInvocationStore struct {
	mu   sync.RWMutex
	recs []InvocationRecord
}

// NewMemInvocationStore creates an empty in-memory store.
func NewMemInvocationStore() *MemInvocationStore {
	return &MemInvocationStore{}
}

// Append stores a record.
func (s *MemInvocationStore) Append(_ context.Context, rec InvocationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
	return nil
}

// List returns matching records, newest first.
func (s *MemInvocationStore) List(_ context.Context, tool string, limit int) ([]InvocationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []InvocationRecord
	for i := len(s.recs) - 1; i >= 0; i-- {
		if tool != "" && s.recs[i].Tool != tool {
			continue
		}
		out = append(out, s.recs[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// Close is a no-op.
func (s *MemInvocationStore) Close() error { return nil }

// Compile-time interface check.
var _ InvocationStore = (*MemInvocationStore)(nil)

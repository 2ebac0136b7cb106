// Package registry provides the tool registry for HuntGate. It maps tool
// names to descriptors (name + description) used by the HTTP API, the SSE
// stream's tools snapshot, and the execution endpoint's name validation.
package registry

import "sync"

// ToolDescriptor describes a registered Product Hunt query tool.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Registry holds all registered tools. It is populated by the domain
// registration modules during startup and marked ready before the HTTP
// server accepts traffic; after that point it is effectively read-only.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolDescriptor
	order []string // preserves registration order
	ready bool
}

// New creates an empty, not-yet-ready registry.
func New() *Registry {
	return &Registry{
		tools: make(map[string]ToolDescriptor),
	}
}

// Register adds a tool descriptor. Registering the same name again
// overwrites the description; last write wins and no error is reported.
func (r *Registry) Register(name, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; !exists {
		r.order = append(r.order, name)
	}
	r.tools[name] = ToolDescriptor{Name: name, Description: description}
}

// Get returns a descriptor by tool name.
func (r *Registry) Get(name string) (ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.tools[name]
	return desc, ok
}

// Has returns true if the tool name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Snapshot returns all descriptors in registration order. The returned
// slice is a copy; callers cannot mutate registry state through it.
func (r *Registry) Snapshot() []ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]ToolDescriptor, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, r.tools[name])
	}
	return result
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// MarkReady records that startup registration has completed.
func (r *Registry) MarkReady() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ready = true
}

// Ready reports whether startup registration has completed. Health and
// readiness checks tolerate a false value rather than faulting.
func (r *Registry) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ready
}

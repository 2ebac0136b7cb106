// Package tools defines the Product Hunt query tools exposed by the gateway.
// Each domain (posts, comments, collections, topics, users, server meta) has
// its own registration routine that adds descriptors to the registry and
// binds a runner executing the underlying GraphQL query.
package tools

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hunt-labs/huntgate/phclient"
	"github.com/hunt-labs/huntgate/registry"
)

// ErrUnknownTool is returned by Run for names without a bound runner.
var ErrUnknownTool = errors.New("tools: unknown tool")

// RunnerFunc executes one tool invocation.
type RunnerFunc func(ctx context.Context, input map[string]any) (any, error)

// Toolset binds registry descriptors to their runners. It is populated by
// the Register* routines during startup and read-only afterwards.
type Toolset struct {
	reg    *registry.Registry
	client phclient.Doer

	mu      sync.RWMutex
	runners map[string]RunnerFunc
}

// NewToolset creates an empty toolset over the given registry and client.
func NewToolset(reg *registry.Registry, client phclient.Doer) *Toolset {
	return &Toolset{
		reg:     reg,
		client:  client,
		runners: make(map[string]RunnerFunc),
	}
}

// register adds a descriptor and its runner. Last registration wins,
// matching registry semantics.
func (ts *Toolset) register(name, description string, fn RunnerFunc) {
	ts.reg.Register(name, description)
	ts.mu.Lock()
	ts.runners[name] = fn
	ts.mu.Unlock()
}

// Run executes the named tool with the given input.
func (ts *Toolset) Run(ctx context.Context, name string, input map[string]any) (any, error) {
	ts.mu.RLock()
	fn, ok := ts.runners[name]
	ts.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	return fn(ctx, input)
}

// RegisterAll runs every domain registration routine and marks the
// registry ready. Call once during startup, before serving traffic.
func RegisterAll(ts *Toolset) {
	RegisterServerTools(ts)
	RegisterPostTools(ts)
	RegisterCommentTools(ts)
	RegisterCollectionTools(ts)
	RegisterTopicTools(ts)
	RegisterUserTools(ts)
	ts.reg.MarkReady()
}

// Package toolregistry holds the fixed tool catalog handed to the engine and
// the executor decorators layered around individual tools.
package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	"fixpoint/internal/agent/ports"
)

// Registry implements ports.ToolRegistry. Built-in tools are sealed: they can
// never be unregistered, so the tool union stays closed for the whole task.
type Registry struct {
	builtin map[string]ports.ToolExecutor
	extra   map[string]ports.ToolExecutor
	mu      sync.RWMutex
}

var _ ports.ToolRegistry = (*Registry)(nil)

// NewRegistry returns an empty registry. Callers seal the built-in set with
// RegisterBuiltin before handing the registry to the engine.
func NewRegistry() *Registry {
	return &Registry{
		builtin: make(map[string]ports.ToolExecutor),
		extra:   make(map[string]ports.ToolExecutor),
	}
}

// RegisterBuiltin adds a sealed built-in tool. Duplicate names fail.
func (r *Registry) RegisterBuiltin(tool ports.ToolExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if _, exists := r.builtin[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.builtin[name] = tool
	return nil
}

// Register adds a non-builtin tool.
func (r *Registry) Register(tool ports.ToolExecutor) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := tool.Metadata().Name
	if _, exists := r.builtin[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	if _, exists := r.extra[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.extra[name] = tool
	return nil
}

func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if tool, ok := r.builtin[name]; ok {
		return tool, nil
	}
	if tool, ok := r.extra[name]; ok {
		return tool, nil
	}
	return nil, fmt.Errorf("tool not found: %s", name)
}

// List returns the tool schemas sorted by name so prompts are deterministic.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ports.ToolDefinition, 0, len(r.builtin)+len(r.extra))
	for _, tool := range r.builtin {
		defs = append(defs, tool.Definition())
	}
	for _, tool := range r.extra {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builtin[name]; ok {
		return fmt.Errorf("cannot unregister built-in tool: %s", name)
	}
	delete(r.extra, name)
	return nil
}

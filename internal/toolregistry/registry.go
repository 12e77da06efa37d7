// Package toolregistry holds the action catalogue and the dispatcher that
// routes oracle-proposed calls to registered executors.
package toolregistry

import (
	"fmt"
	"sort"
	"sync"

	"otto/internal/domain/ports"
)

// Registry is the default ToolRegistry implementation.
type Registry struct {
	tools map[string]ports.ToolExecutor
	mu    sync.RWMutex
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]ports.ToolExecutor)}
}

func (r *Registry) Register(tool ports.ToolExecutor) error {
	if tool == nil {
		return fmt.Errorf("tool cannot be nil")
	}
	name := tool.Metadata().Name
	if name == "" {
		return fmt.Errorf("tool has empty name")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool already exists: %s", name)
	}
	r.tools[name] = tool
	return nil
}

func (r *Registry) Get(name string) (ports.ToolExecutor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	return tool, nil
}

// List returns all tool definitions sorted by name so the oracle sees a
// stable catalogue across iterations.
func (r *Registry) List() []ports.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	defs := make([]ports.ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		defs = append(defs, tool.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Names returns the sorted registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ReadOnlyView returns a registry view restricted to tools whose metadata
// marks them read-only. Control actions stay visible so a restricted run
// can still terminate itself.
func (r *Registry) ReadOnlyView() ports.ToolRegistry {
	return &filteredRegistry{parent: r, keep: func(meta ports.ToolMetadata) bool {
		return meta.ReadOnly || meta.Category == "control"
	}}
}

type filteredRegistry struct {
	parent *Registry
	keep   func(ports.ToolMetadata) bool
}

func (f *filteredRegistry) Register(ports.ToolExecutor) error {
	return fmt.Errorf("filtered registry is read-only")
}

func (f *filteredRegistry) Get(name string) (ports.ToolExecutor, error) {
	tool, err := f.parent.Get(name)
	if err != nil {
		return nil, err
	}
	if !f.keep(tool.Metadata()) {
		return nil, fmt.Errorf("tool not available: %s", name)
	}
	return tool, nil
}

func (f *filteredRegistry) List() []ports.ToolDefinition {
	f.parent.mu.RLock()
	defer f.parent.mu.RUnlock()
	defs := make([]ports.ToolDefinition, 0, len(f.parent.tools))
	for _, tool := range f.parent.tools {
		if f.keep(tool.Metadata()) {
			defs = append(defs, tool.Definition())
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

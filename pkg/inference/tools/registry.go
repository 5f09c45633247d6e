package tools

import (
	"sort"
	"sync"

	"github.com/go-go-golems/planexec/pkg/inference/engine"
	"github.com/pkg/errors"
)

// ErrToolNotFound is returned when a tool name does not resolve in a registry.
var ErrToolNotFound = errors.New("tool not found")

// ToolRegistry manages available tools with thread-safe operations
type ToolRegistry interface {
	RegisterTool(name string, def ToolDefinition) error
	GetTool(name string) (*ToolDefinition, error)
	ListTools() []ToolDefinition
	UnregisterTool(name string) error

	Clone() ToolRegistry
	Merge(other ToolRegistry) ToolRegistry
}

// InMemoryToolRegistry is a thread-safe in-memory implementation of ToolRegistry
type InMemoryToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolDefinition
}

func NewInMemoryToolRegistry() *InMemoryToolRegistry {
	return &InMemoryToolRegistry{
		tools: make(map[string]ToolDefinition),
	}
}

// RegisterTool registers a tool under name. The definition's name, when set,
// must match.
func (r *InMemoryToolRegistry) RegisterTool(name string, def ToolDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return errors.New("tool name cannot be empty")
	}

	if def.Name != "" && def.Name != name {
		return errors.Errorf("tool definition name (%s) does not match registry name (%s)", def.Name, name)
	}

	def.Name = name
	if def.ResultKind == "" {
		def.ResultKind = ResultKindText
	}
	r.tools[name] = def
	return nil
}

// Register is a shorthand for RegisterTool(def.Name, *def).
func (r *InMemoryToolRegistry) Register(defs ...*ToolDefinition) error {
	for _, def := range defs {
		if def == nil {
			continue
		}
		if err := r.RegisterTool(def.Name, *def); err != nil {
			return err
		}
	}
	return nil
}

// GetTool retrieves a tool by name. Unknown names yield an error wrapping
// ErrToolNotFound.
func (r *InMemoryToolRegistry) GetTool(name string) (*ToolDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, exists := r.tools[name]
	if !exists {
		return nil, errors.Wrapf(ErrToolNotFound, "%q", name)
	}

	// Return a copy to prevent external modifications
	toolCopy := tool
	return &toolCopy, nil
}

// ListTools returns all registered tools ordered by name.
func (r *InMemoryToolRegistry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]ToolDefinition, 0, len(r.tools))
	for _, tool := range r.tools {
		tools = append(tools, tool)
	}
	sort.Slice(tools, func(i, j int) bool { return tools[i].Name < tools[j].Name })

	return tools
}

func (r *InMemoryToolRegistry) UnregisterTool(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[name]; !exists {
		return errors.Wrapf(ErrToolNotFound, "%q", name)
	}

	delete(r.tools, name)
	return nil
}

func (r *InMemoryToolRegistry) Clone() ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cloned := NewInMemoryToolRegistry()
	for name, tool := range r.tools {
		cloned.tools[name] = tool
	}

	return cloned
}

// Merge creates a new registry that contains tools from both registries
// If there are conflicts, tools from the other registry take precedence
func (r *InMemoryToolRegistry) Merge(other ToolRegistry) ToolRegistry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	merged := NewInMemoryToolRegistry()

	for name, tool := range r.tools {
		merged.tools[name] = tool
	}

	for _, tool := range other.ListTools() {
		merged.tools[tool.Name] = tool
	}

	return merged
}

func (r *InMemoryToolRegistry) HasTool(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.tools[name]
	return exists
}

func (r *InMemoryToolRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.tools)
}

// ToolSpecs returns the engine-facing description of every tool in reg that
// cfg allows, ordered by name.
func ToolSpecs(reg ToolRegistry, cfg ToolConfig) []engine.ToolSpec {
	if reg == nil {
		return nil
	}
	defs := cfg.FilterTools(reg.ListTools())
	specs := make([]engine.ToolSpec, 0, len(defs))
	for _, def := range defs {
		specs = append(specs, def.Spec())
	}
	return specs
}

// Names returns the registered tool names, ordered.
func Names(reg ToolRegistry) []string {
	if reg == nil {
		return nil
	}
	defs := reg.ListTools()
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		names = append(names, def.Name)
	}
	return names
}

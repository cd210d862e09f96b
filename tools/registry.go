package tools

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/registry"
)

// ============================================================================
// TOOL REGISTRY
// ============================================================================

// ToolInfo is the listing view of a registered tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Backend     string         `json:"backend,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// Registry holds tool definitions and the backends that serve them.
// Registration is last-write-wins: re-registering a name replaces the
// previous definition.
type Registry struct {
	tools    *registry.BaseRegistry[Definition]
	mu       sync.RWMutex
	backends map[string]Backend
	logger   *slog.Logger
}

// NewRegistry creates an empty tool registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:    registry.NewBaseRegistry[Definition](),
		backends: make(map[string]Backend),
		logger:   logger,
	}
}

// Register adds or replaces a tool definition.
func (r *Registry) Register(def Definition) error {
	if def.Name == "" {
		return core.NewValidationError("tools", "name", "tool name cannot be empty")
	}
	if def.Handler == nil && def.Backend == "" {
		return core.NewValidationError("tools", def.Name, "tool must have a handler or a backend")
	}
	if _, exists := r.tools.Get(def.Name); exists {
		r.logger.Debug("Replacing tool registration", "tool", def.Name)
	}
	r.tools.Put(def.Name, def)
	return nil
}

// RegisterBackend registers a backend and every tool it serves.
func (r *Registry) RegisterBackend(b Backend) error {
	if b == nil {
		return core.NewValidationError("tools", "backend", "backend cannot be nil")
	}
	r.mu.Lock()
	r.backends[b.Name()] = b
	r.mu.Unlock()

	for _, def := range b.Tools() {
		def.Backend = b.Name()
		if err := r.Register(def); err != nil {
			return fmt.Errorf("failed to register tool %q from backend %q: %w", def.Name, b.Name(), err)
		}
	}
	r.logger.Debug("Registered tool backend", "backend", b.Name(), "tools", len(b.Tools()))
	return nil
}

// Unregister removes a tool. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	_ = r.tools.Remove(name)
}

// Get returns a tool definition by name.
func (r *Registry) Get(name string) (Definition, error) {
	def, exists := r.tools.Get(name)
	if !exists {
		return Definition{}, core.NewNotFoundError("tool", name)
	}
	return def, nil
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	_, exists := r.tools.Get(name)
	return exists
}

// List returns all registered tools sorted by name.
func (r *Registry) List() []ToolInfo {
	names := r.tools.Names()
	sort.Strings(names)
	infos := make([]ToolInfo, 0, len(names))
	for _, name := range names {
		def, exists := r.tools.Get(name)
		if !exists {
			continue
		}
		infos = append(infos, ToolInfo{
			Name:        def.Name,
			Description: def.Description,
			Backend:     def.Backend,
			InputSchema: def.InputSchema,
		})
	}
	return infos
}

// Count returns the number of registered tools.
func (r *Registry) Count() int {
	return r.tools.Count()
}

// Execute dispatches a tool call to its handler or backend. The returned
// result always carries the tool name and wall-clock execution time, even
// when the call fails.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (ToolResult, error) {
	def, exists := r.tools.Get(name)
	if !exists {
		return ToolResult{ToolName: name}, core.NewNotFoundError("tool", name)
	}

	if def.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, def.Timeout)
		defer cancel()
	}

	start := time.Now()
	var result ToolResult
	var execErr error

	switch {
	case def.Handler != nil:
		result, execErr = def.Handler(ctx, args)
	default:
		r.mu.RLock()
		backend, ok := r.backends[def.Backend]
		r.mu.RUnlock()
		if !ok {
			return ToolResult{ToolName: name, ExecutionTime: time.Since(start)},
				core.NewBackendNotFoundError(def.Backend, name)
		}
		result, execErr = backend.Execute(ctx, name, args)
	}

	result.ToolName = name
	result.ExecutionTime = time.Since(start)
	if execErr != nil {
		result.Success = false
		if result.Error == "" {
			result.Error = execErr.Error()
		}
	}
	return result, execErr
}

// Backends returns the registered backends sorted by name.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Backend, 0, len(names))
	for _, name := range names {
		out = append(out, r.backends[name])
	}
	return out
}

// Close shuts down backends that hold resources.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, b := range r.backends {
		if closer, ok := b.(Closer); ok {
			if err := closer.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close backend %q: %w", name, err)
			}
		}
	}
	return firstErr
}

package tools

import (
	"context"
	"time"
)

// ============================================================================
// CORE TYPES
// ============================================================================

// ToolResult is the outcome of a single tool invocation.
type ToolResult struct {
	ToolName      string         `json:"tool_name"`
	Success       bool           `json:"success"`
	Content       string         `json:"content,omitempty"`
	Error         string         `json:"error,omitempty"`
	ExecutionTime time.Duration  `json:"execution_time"`
	Metadata      map[string]any `json:"metadata,omitempty"`
}

// HandlerFunc executes a tool directly in-process.
type HandlerFunc func(ctx context.Context, args map[string]any) (ToolResult, error)

// Definition describes a callable tool. A tool is served either by a local
// Handler or by a named Backend; Handler wins when both are set.
type Definition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
	Backend     string         `json:"backend,omitempty"`
	Handler     HandlerFunc    `json:"-"`
	Timeout     time.Duration  `json:"-"`
}

// ============================================================================
// BACKEND INTERFACE
// ============================================================================

// Backend is an adapter that serves one or more tools. Backends self-describe
// their tool definitions so the registry can expose them uniformly.
type Backend interface {
	// Name returns the backend identifier used in tool definitions.
	Name() string

	// Tools returns the definitions this backend serves.
	Tools() []Definition

	// Execute runs the named tool with the given arguments.
	Execute(ctx context.Context, tool string, args map[string]any) (ToolResult, error)

	// HealthCheck reports whether the backend is usable.
	HealthCheck(ctx context.Context) error
}

// Closer is implemented by backends that hold resources.
type Closer interface {
	Close() error
}

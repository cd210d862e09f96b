// Package config provides configuration types and utilities for the
// orchestration engine. This file contains the component configuration types.
package config

import (
	"fmt"
)

// ============================================================================
// ORCHESTRATOR SETTINGS
// ============================================================================

// OrchestratorConfig holds engine-level settings.
type OrchestratorConfig struct {
	// MaxConcurrentWorkflows caps how many workflow executions may be
	// in flight at once.
	MaxConcurrentWorkflows int `yaml:"max_concurrent_workflows"`

	// DefaultStepTimeout is the per-step timeout in seconds used when a
	// workflow step declares none.
	DefaultStepTimeout int `yaml:"default_step_timeout"`

	// TaskTimeout is the timeout in seconds for a single orchestrated task.
	TaskTimeout int `yaml:"task_timeout"`

	// Runner selects the orchestrated-task runner backend.
	// Currently: "simulated".
	Runner string `yaml:"runner"`

	// EventBufferSize is the per-subscriber event channel capacity.
	EventBufferSize int `yaml:"event_buffer_size"`
}

// Validate implements Config.Validate for OrchestratorConfig.
func (c *OrchestratorConfig) Validate() error {
	if c.MaxConcurrentWorkflows < 0 {
		return fmt.Errorf("max_concurrent_workflows cannot be negative")
	}
	if c.DefaultStepTimeout < 0 {
		return fmt.Errorf("default_step_timeout cannot be negative")
	}
	if c.TaskTimeout < 0 {
		return fmt.Errorf("task_timeout cannot be negative")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for OrchestratorConfig.
func (c *OrchestratorConfig) SetDefaults() {
	if c.MaxConcurrentWorkflows == 0 {
		c.MaxConcurrentWorkflows = 4
	}
	if c.DefaultStepTimeout == 0 {
		c.DefaultStepTimeout = 300
	}
	if c.TaskTimeout == 0 {
		c.TaskTimeout = 300
	}
	if c.Runner == "" {
		c.Runner = "simulated"
	}
	if c.EventBufferSize == 0 {
		c.EventBufferSize = 256
	}
}

// ============================================================================
// SUPERVISION SETTINGS
// ============================================================================

// RetryPolicyConfig declares how failed agent work may be retried.
type RetryPolicyConfig struct {
	MaxRetries      int      `yaml:"max_retries"`
	RetryDelay      int      `yaml:"retry_delay"`      // seconds
	Exponential     bool     `yaml:"exponential"`      // exponential backoff
	RetryableErrors []string `yaml:"retryable_errors"` // error tags eligible for retry
}

// SetDefaults implements Config.SetDefaults for RetryPolicyConfig.
func (c *RetryPolicyConfig) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = 1
	}
}

// BackoffConfig declares the delay growth between retries.
type BackoffConfig struct {
	Type       string  `yaml:"type"`        // "exponential", "linear", "fixed"
	BaseDelay  int     `yaml:"base_delay"`  // seconds
	MaxDelay   int     `yaml:"max_delay"`   // seconds
	Multiplier float64 `yaml:"multiplier"`
}

// Validate implements Config.Validate for BackoffConfig.
func (c *BackoffConfig) Validate() error {
	switch c.Type {
	case "", "exponential", "linear", "fixed":
	default:
		return fmt.Errorf("unsupported backoff type: %s", c.Type)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for BackoffConfig.
func (c *BackoffConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = "exponential"
	}
	if c.BaseDelay == 0 {
		c.BaseDelay = 1
	}
	if c.MaxDelay == 0 {
		c.MaxDelay = 30
	}
	if c.Multiplier == 0 {
		c.Multiplier = 2.0
	}
}

// SupervisionConfig is the per-agent supervision policy. It can be supplied
// per spawn request; the documented defaults apply otherwise.
type SupervisionConfig struct {
	Enabled             bool              `yaml:"enabled"`
	MaxConcurrentTasks  int               `yaml:"max_concurrent_tasks"`
	HeartbeatInterval   int               `yaml:"heartbeat_interval"`    // seconds
	Timeout             int               `yaml:"timeout"`               // seconds
	HealthCheckInterval int               `yaml:"health_check_interval"` // seconds
	RetryPolicy         RetryPolicyConfig `yaml:"retry_policy"`
	Backoff             BackoffConfig     `yaml:"backoff"`
}

// Validate implements Config.Validate for SupervisionConfig.
func (c *SupervisionConfig) Validate() error {
	if c.MaxConcurrentTasks < 0 {
		return fmt.Errorf("max_concurrent_tasks cannot be negative")
	}
	if err := c.Backoff.Validate(); err != nil {
		return fmt.Errorf("backoff validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for SupervisionConfig.
// Defaults: 3 concurrent tasks, 30s heartbeat, 60s timeout, 3 retries with
// exponential backoff from 1s capped at 30s.
func (c *SupervisionConfig) SetDefaults() {
	if c.MaxConcurrentTasks == 0 {
		c.MaxConcurrentTasks = 3
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = 30
	}
	if c.Timeout == 0 {
		c.Timeout = 60
	}
	if c.HealthCheckInterval == 0 {
		c.HealthCheckInterval = 30
	}
	c.RetryPolicy.SetDefaults()
	c.Backoff.SetDefaults()
}

// ============================================================================
// TOOL SETTINGS
// ============================================================================

// ToolConfig configures a single tool backend.
type ToolConfig struct {
	Type    string `yaml:"type"` // "file", "command", "memory", "web", "database"
	Enabled bool   `yaml:"enabled"`

	// File backend
	WorkspaceRoot string `yaml:"workspace_root,omitempty"`
	MaxFileSize   int64  `yaml:"max_file_size,omitempty"` // bytes

	// Command backend
	AllowedCommands  []string `yaml:"allowed_commands,omitempty"`
	WorkingDirectory string   `yaml:"working_directory,omitempty"`
	MaxExecutionTime int      `yaml:"max_execution_time,omitempty"` // seconds

	// Memory backend
	DefaultTTL int `yaml:"default_ttl,omitempty"` // seconds, 0 = no expiry

	// Web backend
	RequestTimeout   int     `yaml:"request_timeout,omitempty"` // seconds
	MaxResponseBytes int64   `yaml:"max_response_bytes,omitempty"`
	RequestsPerSec   float64 `yaml:"requests_per_sec,omitempty"`
	MaxRetries       int     `yaml:"max_retries,omitempty"`

	// Database backend
	Driver string `yaml:"driver,omitempty"` // "sqlite", "postgres", "mysql"
	DSN    string `yaml:"dsn,omitempty"`
}

// Validate implements Config.Validate for ToolConfig.
func (c *ToolConfig) Validate() error {
	switch c.Type {
	case "file", "command", "memory", "web", "database":
	default:
		return fmt.Errorf("unsupported tool type: %s", c.Type)
	}
	if c.Type == "database" && c.Enabled && c.DSN == "" {
		return fmt.Errorf("database tool requires a dsn")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for ToolConfig.
func (c *ToolConfig) SetDefaults() {
	switch c.Type {
	case "file":
		if c.WorkspaceRoot == "" {
			c.WorkspaceRoot = "."
		}
		if c.MaxFileSize == 0 {
			c.MaxFileSize = 10 * 1024 * 1024
		}
	case "command":
		if c.MaxExecutionTime == 0 {
			c.MaxExecutionTime = 60
		}
		if c.WorkingDirectory == "" {
			c.WorkingDirectory = "."
		}
	case "memory":
		if c.DefaultTTL == 0 {
			c.DefaultTTL = 3600
		}
	case "web":
		if c.RequestTimeout == 0 {
			c.RequestTimeout = 30
		}
		if c.MaxResponseBytes == 0 {
			c.MaxResponseBytes = 5 * 1024 * 1024
		}
		if c.RequestsPerSec == 0 {
			c.RequestsPerSec = 2
		}
	case "database":
		if c.Driver == "" {
			c.Driver = "sqlite"
		}
	}
}

// ToolConfigs maps tool backend names to their configuration.
type ToolConfigs map[string]ToolConfig

// Validate implements Config.Validate for ToolConfigs.
func (c ToolConfigs) Validate() error {
	for name, tool := range c {
		if err := tool.Validate(); err != nil {
			return fmt.Errorf("tool '%s' validation failed: %w", name, err)
		}
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for ToolConfigs.
func (c ToolConfigs) SetDefaults() {
	for name := range c {
		tool := c[name]
		tool.SetDefaults()
		c[name] = tool
	}
}

// ============================================================================
// WORKFLOW SETTINGS
// ============================================================================

// WorkflowStepConfig declares a single workflow step.
type WorkflowStepConfig struct {
	ID        string   `yaml:"id"`
	Agent     string   `yaml:"agent"`
	Prompt    string   `yaml:"prompt"`
	DependsOn []string `yaml:"depends_on,omitempty"`
	Timeout   int      `yaml:"timeout,omitempty"` // seconds
	Tools     []string `yaml:"tools,omitempty"`
}

// WorkflowConfig declares a named workflow.
type WorkflowConfig struct {
	Name        string               `yaml:"name"`
	Description string               `yaml:"description,omitempty"`
	Mode        string               `yaml:"mode"` // "sequential" or "dag"
	MaxParallel int                  `yaml:"max_parallel,omitempty"`
	Steps       []WorkflowStepConfig `yaml:"steps"`
}

// Validate implements Config.Validate for WorkflowConfig.
func (c *WorkflowConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("workflow name is required")
	}
	if len(c.Steps) == 0 {
		return fmt.Errorf("workflow must have at least one step")
	}
	switch c.Mode {
	case "", "sequential", "dag":
	default:
		return fmt.Errorf("unsupported workflow mode: %s", c.Mode)
	}
	for i, step := range c.Steps {
		if step.Agent == "" {
			return fmt.Errorf("step at index %d has no agent", i)
		}
		if step.Prompt == "" {
			return fmt.Errorf("step at index %d has no prompt", i)
		}
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for WorkflowConfig.
func (c *WorkflowConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = "sequential"
	}
	if c.MaxParallel == 0 {
		c.MaxParallel = 4
	}
	for i := range c.Steps {
		if c.Steps[i].ID == "" {
			c.Steps[i].ID = fmt.Sprintf("step-%d", i+1)
		}
	}
}

// ============================================================================
// STORAGE SETTINGS
// ============================================================================

// StorageConfig configures the optional execution-history store.
type StorageConfig struct {
	Enabled bool   `yaml:"enabled"`
	Driver  string `yaml:"driver"` // "sqlite", "postgres", "mysql"
	DSN     string `yaml:"dsn"`
}

// Validate implements Config.Validate for StorageConfig.
func (c *StorageConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Driver {
	case "sqlite", "sqlite3", "postgres", "mysql":
	default:
		return fmt.Errorf("unsupported storage driver: %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("storage requires a dsn")
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for StorageConfig.
func (c *StorageConfig) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
}

// ============================================================================
// SERVER SETTINGS
// ============================================================================

// ServerConfig configures the HTTP API surface.
type ServerConfig struct {
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	ReadTimeout     int    `yaml:"read_timeout"`     // seconds
	WriteTimeout    int    `yaml:"write_timeout"`    // seconds
	ShutdownTimeout int    `yaml:"shutdown_timeout"` // seconds
}

// Validate implements Config.Validate for ServerConfig.
func (c *ServerConfig) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for ServerConfig.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8420
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 120
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10
	}
}

// Package config provides configuration types and utilities for the
// orchestration engine. This file contains the main unified entry point.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// MAIN UNIFIED CONFIGURATION
// ============================================================================

// ObservabilityConfig configures tracing and metrics export.
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// TracingConfig configures the OTLP trace exporter.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	EndpointURL  string  `yaml:"endpoint_url"`
	SamplingRate float64 `yaml:"sampling_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// MetricsConfig configures the Prometheus metrics exporter.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// SetDefaults implements Config.SetDefaults for ObservabilityConfig.
func (c *ObservabilityConfig) SetDefaults() {
	if c.Tracing.SamplingRate == 0 {
		c.Tracing.SamplingRate = 1.0
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "conductor"
	}
}

// Config is the complete configuration. Like docker-compose.yml, a single
// YAML file is the entry point for everything the engine needs.
type Config struct {
	// Version and metadata
	Version     string            `yaml:"version,omitempty"`
	Name        string            `yaml:"name,omitempty"`
	Description string            `yaml:"description,omitempty"`
	Metadata    map[string]string `yaml:"metadata,omitempty"`

	// Engine settings
	Orchestrator OrchestratorConfig `yaml:"orchestrator,omitempty"`

	// Default supervision policy applied when a spawn request carries none
	Supervision SupervisionConfig `yaml:"supervision,omitempty"`

	// Tool backend configurations
	Tools ToolConfigs `yaml:"tools,omitempty"`

	// Workflow definitions loaded at startup
	Workflows map[string]WorkflowConfig `yaml:"workflows,omitempty"`

	// Execution-history store
	Storage StorageConfig `yaml:"storage,omitempty"`

	// HTTP API
	Server ServerConfig `yaml:"server,omitempty"`

	// Tracing and metrics
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// Validate implements Config.Validate for Config.
func (c *Config) Validate() error {
	if err := c.Orchestrator.Validate(); err != nil {
		return fmt.Errorf("orchestrator validation failed: %w", err)
	}
	if err := c.Supervision.Validate(); err != nil {
		return fmt.Errorf("supervision validation failed: %w", err)
	}
	if err := c.Tools.Validate(); err != nil {
		return fmt.Errorf("tools validation failed: %w", err)
	}
	for name, workflow := range c.Workflows {
		if err := workflow.Validate(); err != nil {
			return fmt.Errorf("workflow '%s' validation failed: %w", name, err)
		}
	}
	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("storage validation failed: %w", err)
	}
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server validation failed: %w", err)
	}
	return nil
}

// SetDefaults implements Config.SetDefaults for Config.
func (c *Config) SetDefaults() {
	c.Orchestrator.SetDefaults()
	c.Supervision.SetDefaults()

	if c.Tools == nil {
		c.Tools = DefaultToolConfigs()
	}
	c.Tools.SetDefaults()

	if c.Workflows == nil {
		c.Workflows = make(map[string]WorkflowConfig)
	}
	for name := range c.Workflows {
		workflow := c.Workflows[name]
		if workflow.Name == "" {
			workflow.Name = name
		}
		workflow.SetDefaults()
		c.Workflows[name] = workflow
	}

	c.Storage.SetDefaults()
	c.Server.SetDefaults()
	c.Observability.SetDefaults()
}

// DefaultToolConfigs returns the built-in tool backend set: filesystem,
// terminal, memory and web, all enabled with their defaults. The database
// backend is opt-in because it needs a DSN.
func DefaultToolConfigs() ToolConfigs {
	return ToolConfigs{
		"filesystem": {Type: "file", Enabled: true},
		"terminal":   {Type: "command", Enabled: true, AllowedCommands: []string{"ls", "cat", "echo", "git", "go", "npm"}},
		"memory":     {Type: "memory", Enabled: true},
		"web":        {Type: "web", Enabled: true},
	}
}

// Default returns a fully defaulted configuration without reading any file.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// LoadConfig reads, expands and validates a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path cannot be empty")
	}

	// .env files layer under the process environment
	if err := LoadEnvFiles(); err != nil {
		return nil, fmt.Errorf("failed to load env files: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return ParseConfig(data)
}

// ParseConfig parses raw YAML bytes into a validated Config.
// Environment variables are expanded before decoding.
func ParseConfig(data []byte) (*Config, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	expanded := ExpandEnvVarsInData(raw)

	// Re-encode so the typed unmarshal sees the expanded values
	normalized, err := yaml.Marshal(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(normalized, cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

package tools

import (
	"fmt"
	"log/slog"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

// NewRegistryFromConfig builds a registry with one backend per enabled
// tool configuration entry.
func NewRegistryFromConfig(cfgs config.ToolConfigs, logger *slog.Logger) (*Registry, error) {
	reg := NewRegistry(logger)
	for name, cfg := range cfgs {
		if !cfg.Enabled {
			continue
		}
		backend, err := newBackend(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to build tool backend %q: %w", name, err)
		}
		if err := reg.RegisterBackend(backend); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

func newBackend(cfg config.ToolConfig) (Backend, error) {
	switch cfg.Type {
	case "file":
		return NewFileBackend(cfg)
	case "command":
		return NewCommandBackend(cfg), nil
	case "memory":
		return NewMemoryBackend(cfg), nil
	case "web":
		return NewWebBackend(cfg), nil
	case "database":
		return NewDatabaseBackend(cfg)
	default:
		return nil, core.NewValidationError("tools", "type",
			fmt.Sprintf("unknown tool backend type: %s", cfg.Type))
	}
}

package agent

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver-os/conductor/core"
)

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()

	t.Run("contains the full roster", func(t *testing.T) {
		assert.Equal(t, 9, catalog.Count())

		for _, id := range []string{
			"code-generator",
			"bureaucracy-disruptor",
			"thought-processor",
			"collaboration-coordinator",
			"frontend-specialist",
			"backend-specialist",
			"database-architect",
			"ai-specialist",
			"integration-specialist",
		} {
			assert.True(t, catalog.Has(id), "missing agent type %s", id)
		}
	})

	t.Run("Get returns the definition", func(t *testing.T) {
		def, err := catalog.Get("code-generator")
		require.NoError(t, err)
		assert.Equal(t, "Code Generator", def.DisplayName)
		assert.Contains(t, def.ToolNames, "write_file")
	})

	t.Run("Get for unknown type is a not-found error", func(t *testing.T) {
		_, err := catalog.Get("nonexistent")
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("List is sorted by id", func(t *testing.T) {
		defs := catalog.List()
		require.Len(t, defs, 9)
		for i := 1; i < len(defs); i++ {
			assert.Less(t, defs[i-1].ID, defs[i].ID)
		}
	})

	t.Run("ByCapability groups definitions", func(t *testing.T) {
		gen := catalog.ByCapability(CapCodeGeneration)
		ids := make([]string, 0, len(gen))
		for _, def := range gen {
			ids = append(ids, def.ID)
		}
		assert.ElementsMatch(t, []string{"code-generator", "frontend-specialist", "backend-specialist"}, ids)

		assert.Empty(t, catalog.ByCapability(Capability("unknown")))
	})

	t.Run("spawnable agents reference real types", func(t *testing.T) {
		for _, def := range catalog.List() {
			for _, child := range def.SpawnableAgents {
				assert.True(t, catalog.Has(child), "%s spawns unknown type %s", def.ID, child)
			}
		}
	})
}

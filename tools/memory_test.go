package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
)

func newTestMemoryBackend(t *testing.T) *MemoryBackend {
	t.Helper()
	b := NewMemoryBackend(config.ToolConfig{Type: "memory", DefaultTTL: 3600})
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestMemoryBackendStoreRetrieve(t *testing.T) {
	b := newTestMemoryBackend(t)
	ctx := context.Background()

	res, err := b.Execute(ctx, "store_memory", map[string]any{
		"key":   "greeting",
		"value": "hello",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)

	res, err = b.Execute(ctx, "retrieve_memory", map[string]any{"key": "greeting"})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Content)

	t.Run("unknown key is not found", func(t *testing.T) {
		_, err := b.Execute(ctx, "retrieve_memory", map[string]any{"key": "missing"})
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("store overwrites", func(t *testing.T) {
		_, err := b.Execute(ctx, "store_memory", map[string]any{"key": "greeting", "value": "hi"})
		require.NoError(t, err)
		res, err := b.Execute(ctx, "retrieve_memory", map[string]any{"key": "greeting"})
		require.NoError(t, err)
		assert.Equal(t, "hi", res.Content)
	})
}

func TestMemoryBackendExpiry(t *testing.T) {
	b := newTestMemoryBackend(t)
	ctx := context.Background()

	_, err := b.Execute(ctx, "store_memory", map[string]any{
		"key":         "ephemeral",
		"value":       "short-lived",
		"ttl_seconds": 60,
	})
	require.NoError(t, err)

	// Force the entry into the past instead of sleeping.
	b.mu.Lock()
	entry := b.entries["ephemeral"]
	entry.ExpiresAt = time.Now().Add(-time.Second)
	b.entries["ephemeral"] = entry
	b.mu.Unlock()

	_, err = b.Execute(ctx, "retrieve_memory", map[string]any{"key": "ephemeral"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))

	t.Run("negative ttl never expires", func(t *testing.T) {
		_, err := b.Execute(ctx, "store_memory", map[string]any{
			"key":         "pinned",
			"value":       "forever",
			"ttl_seconds": -1,
		})
		require.NoError(t, err)

		b.mu.RLock()
		assert.True(t, b.entries["pinned"].ExpiresAt.IsZero())
		b.mu.RUnlock()
	})
}

func TestMemoryBackendSearch(t *testing.T) {
	b := newTestMemoryBackend(t)
	ctx := context.Background()

	for key, value := range map[string]string{
		"project:alpha": "orchestration engine",
		"project:beta":  "billing service",
		"owner":         "Platform Team",
	} {
		_, err := b.Execute(ctx, "store_memory", map[string]any{"key": key, "value": value})
		require.NoError(t, err)
	}

	res, err := b.Execute(ctx, "search_memory", map[string]any{"query": "project"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Metadata["matches"])
	assert.Contains(t, res.Content, "project:alpha: orchestration engine")

	t.Run("matching is case-insensitive over values", func(t *testing.T) {
		res, err := b.Execute(ctx, "search_memory", map[string]any{"query": "platform"})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Metadata["matches"])
	})

	t.Run("no matches yields empty content", func(t *testing.T) {
		res, err := b.Execute(ctx, "search_memory", map[string]any{"query": "zzz"})
		require.NoError(t, err)
		assert.Equal(t, 0, res.Metadata["matches"])
		assert.Empty(t, res.Content)
	})
}

func TestMemoryBackendDelete(t *testing.T) {
	b := newTestMemoryBackend(t)
	ctx := context.Background()

	_, err := b.Execute(ctx, "store_memory", map[string]any{"key": "doomed", "value": "x"})
	require.NoError(t, err)

	_, err = b.Execute(ctx, "delete_memory", map[string]any{"key": "doomed"})
	require.NoError(t, err)

	_, err = b.Execute(ctx, "delete_memory", map[string]any{"key": "doomed"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrNotFound))
}

func TestMemoryBackendClose(t *testing.T) {
	b := NewMemoryBackend(config.ToolConfig{Type: "memory"})
	require.NoError(t, b.HealthCheck(context.Background()))
	require.NoError(t, b.Close())
	require.NoError(t, b.Close())
	require.Error(t, b.HealthCheck(context.Background()))
}

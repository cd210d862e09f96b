package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBaseRegistry(t *testing.T) {
	t.Run("Register rejects duplicates", func(t *testing.T) {
		r := NewBaseRegistry[int]()
		require.NoError(t, r.Register("a", 1))
		err := r.Register("a", 2)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "already registered")

		v, ok := r.Get("a")
		require.True(t, ok)
		assert.Equal(t, 1, v)
	})

	t.Run("Register rejects empty names", func(t *testing.T) {
		r := NewBaseRegistry[string]()
		require.Error(t, r.Register("", "x"))
	})

	t.Run("Put is last-write-wins", func(t *testing.T) {
		r := NewBaseRegistry[string]()
		r.Put("key", "first")
		r.Put("key", "second")

		v, ok := r.Get("key")
		require.True(t, ok)
		assert.Equal(t, "second", v)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("Remove unknown name fails", func(t *testing.T) {
		r := NewBaseRegistry[int]()
		require.Error(t, r.Remove("missing"))

		r.Put("present", 1)
		require.NoError(t, r.Remove("present"))
		assert.Equal(t, 0, r.Count())
	})

	t.Run("Names and List cover all entries", func(t *testing.T) {
		r := NewBaseRegistry[int]()
		r.Put("a", 1)
		r.Put("b", 2)
		r.Put("c", 3)

		assert.ElementsMatch(t, []string{"a", "b", "c"}, r.Names())
		assert.ElementsMatch(t, []int{1, 2, 3}, r.List())
	})

	t.Run("Clear empties the registry", func(t *testing.T) {
		r := NewBaseRegistry[int]()
		r.Put("a", 1)
		r.Clear()
		assert.Equal(t, 0, r.Count())
	})
}

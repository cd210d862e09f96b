package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver-os/conductor/core"
)

func TestNewDepGraphValidation(t *testing.T) {
	tests := []struct {
		name  string
		steps []Step
	}{
		{
			name: "duplicate step id",
			steps: []Step{
				{ID: "a"},
				{ID: "a"},
			},
		},
		{
			name: "unknown dependency",
			steps: []Step{
				{ID: "a", Dependencies: []string{"ghost"}},
			},
		},
		{
			name: "self dependency",
			steps: []Step{
				{ID: "a", Dependencies: []string{"a"}},
			},
		},
		{
			name: "two step cycle",
			steps: []Step{
				{ID: "a", Dependencies: []string{"b"}},
				{ID: "b", Dependencies: []string{"a"}},
			},
		},
		{
			name: "three step cycle",
			steps: []Step{
				{ID: "a", Dependencies: []string{"c"}},
				{ID: "b", Dependencies: []string{"a"}},
				{ID: "c", Dependencies: []string{"b"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newDepGraph(tt.steps)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrValidation))
		})
	}

	t.Run("valid diamond passes", func(t *testing.T) {
		_, err := newDepGraph([]Step{
			{ID: "fetch"},
			{ID: "analyze", Dependencies: []string{"fetch"}},
			{ID: "summarize", Dependencies: []string{"fetch"}},
			{ID: "report", Dependencies: []string{"analyze", "summarize"}},
		})
		require.NoError(t, err)
	})
}

func TestDepGraphReadiness(t *testing.T) {
	g, err := newDepGraph([]Step{
		{ID: "fetch"},
		{ID: "analyze", Dependencies: []string{"fetch"}},
		{ID: "summarize", Dependencies: []string{"fetch"}},
		{ID: "report", Dependencies: []string{"analyze", "summarize"}},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"fetch"}, g.Ready(nil))

	g.MarkComplete("fetch")
	assert.Equal(t, []string{"analyze", "summarize"}, g.Ready(nil))

	g.MarkComplete("analyze")
	assert.Equal(t, []string{"summarize"}, g.Ready(nil))

	g.MarkComplete("summarize")
	assert.Equal(t, []string{"report"}, g.Ready(nil))

	g.MarkComplete("report")
	assert.Empty(t, g.Ready(nil))

	t.Run("excluded steps never become ready", func(t *testing.T) {
		g2, err := newDepGraph([]Step{
			{ID: "a"},
			{ID: "b", Dependencies: []string{"a"}},
		})
		require.NoError(t, err)
		g2.MarkComplete("a")
		assert.Empty(t, g2.Ready(map[string]bool{"b": true}))
	})
}

func TestTransitiveDependents(t *testing.T) {
	g, err := newDepGraph([]Step{
		{ID: "root"},
		{ID: "mid", Dependencies: []string{"root"}},
		{ID: "leaf-a", Dependencies: []string{"mid"}},
		{ID: "leaf-b", Dependencies: []string{"mid"}},
		{ID: "isolated"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"leaf-a", "leaf-b", "mid"}, g.TransitiveDependents("root"))
	assert.Equal(t, []string{"leaf-a", "leaf-b"}, g.TransitiveDependents("mid"))
	assert.Empty(t, g.TransitiveDependents("leaf-a"))
	assert.Empty(t, g.TransitiveDependents("isolated"))
}

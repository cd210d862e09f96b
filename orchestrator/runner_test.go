package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulatedRunner(t *testing.T) {
	t.Run("reports progress up to 100", func(t *testing.T) {
		r := NewSimulatedRunner()
		var reported []float64

		result, err := r.Run(context.Background(), RunRequest{
			Agent:  "code-generator",
			Prompt: "build the thing",
			Handle: func(p float64) { reported = append(reported, p) },
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []float64{25, 50, 75, 100}, reported)
	})

	t.Run("output varies by agent type", func(t *testing.T) {
		r := NewSimulatedRunner()

		gen, err := r.Run(context.Background(), RunRequest{Agent: "code-generator", Prompt: "x"})
		require.NoError(t, err)
		assert.Contains(t, gen.Output, "Generated code")
		assert.NotEmpty(t, gen.Artifacts)

		db, err := r.Run(context.Background(), RunRequest{Agent: "database-architect", Prompt: "x"})
		require.NoError(t, err)
		assert.Contains(t, db.Output, "Designed schema")

		other, err := r.Run(context.Background(), RunRequest{Agent: "something-else", Prompt: "x"})
		require.NoError(t, err)
		assert.Contains(t, other.Output, "Completed")
	})

	t.Run("long prompts are truncated in the summary", func(t *testing.T) {
		r := NewSimulatedRunner()
		long := strings.Repeat("a", 200)

		result, err := r.Run(context.Background(), RunRequest{Agent: "code-generator", Prompt: long})
		require.NoError(t, err)
		assert.Contains(t, result.Output, strings.Repeat("a", 60)+"...")
		assert.NotContains(t, result.Output, strings.Repeat("a", 61))
	})

	t.Run("cancelled context aborts the run", func(t *testing.T) {
		r := &SimulatedRunner{}
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Run(ctx, RunRequest{Agent: "code-generator", Prompt: "x"})
		require.Error(t, err)
	})
}

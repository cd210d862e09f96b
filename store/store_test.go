package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/distributor"
	"github.com/oliver-os/conductor/workflow"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(config.StorageConfig{
		Enabled: true,
		Driver:  "sqlite",
		DSN:     filepath.Join(t.TempDir(), "history.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStoreTaskProgress(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	progress := &distributor.TaskProgress{
		TaskID:         "task-abc",
		Name:           "Build API",
		Status:         distributor.StatusInProgress,
		AssignedAgents: []string{"backend-specialist"},
		AgentProgress: map[string]distributor.AgentProgress{
			"backend-specialist": {AgentType: "backend-specialist", Progress: 40},
		},
		OverallProgress: 40,
		StartedAt:       time.Now().UTC(),
	}

	require.NoError(t, s.SaveTaskProgress(ctx, progress))

	t.Run("round-trips the payload", func(t *testing.T) {
		got, err := s.GetTaskProgress(ctx, "task-abc")
		require.NoError(t, err)
		assert.Equal(t, progress.Name, got.Name)
		assert.Equal(t, progress.Status, got.Status)
		assert.Equal(t, 40.0, got.AgentProgress["backend-specialist"].Progress)
	})

	t.Run("re-saving updates in place", func(t *testing.T) {
		progress.Status = distributor.StatusCompleted
		progress.OverallProgress = 100
		require.NoError(t, s.SaveTaskProgress(ctx, progress))

		got, err := s.GetTaskProgress(ctx, "task-abc")
		require.NoError(t, err)
		assert.Equal(t, distributor.StatusCompleted, got.Status)
		assert.Equal(t, 100.0, got.OverallProgress)
	})

	t.Run("unknown id is a not-found error", func(t *testing.T) {
		_, err := s.GetTaskProgress(ctx, "task-missing")
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("nil progress is rejected", func(t *testing.T) {
		require.Error(t, s.SaveTaskProgress(ctx, nil))
	})
}

func TestStoreExecutions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC()
	for i, status := range []workflow.Status{workflow.StatusCompleted, workflow.StatusFailed} {
		exec := &workflow.Execution{
			ID:          []string{"exec-1", "exec-2"}[i],
			WorkflowID:  "wf-1",
			Status:      status,
			StartedAt:   base.Add(time.Duration(i) * time.Minute),
			CompletedAt: base.Add(time.Duration(i)*time.Minute + 30*time.Second),
			Steps: []workflow.StepExecution{
				{StepID: "step-1", Agent: "code-generator", Status: workflow.StepCompleted},
			},
		}
		require.NoError(t, s.SaveExecution(ctx, exec))
	}

	t.Run("lists executions oldest first", func(t *testing.T) {
		execs, err := s.ListExecutions(ctx, "wf-1")
		require.NoError(t, err)
		require.Len(t, execs, 2)
		assert.Equal(t, "exec-1", execs[0].ID)
		assert.Equal(t, workflow.StatusFailed, execs[1].Status)
		require.Len(t, execs[0].Steps, 1)
		assert.Equal(t, workflow.StepCompleted, execs[0].Steps[0].Status)
	})

	t.Run("other workflows are not returned", func(t *testing.T) {
		execs, err := s.ListExecutions(ctx, "wf-other")
		require.NoError(t, err)
		assert.Empty(t, execs)
	})

	t.Run("re-saving an execution updates its status", func(t *testing.T) {
		exec := &workflow.Execution{
			ID:         "exec-1",
			WorkflowID: "wf-1",
			Status:     workflow.StatusFailed,
			StartedAt:  base,
		}
		require.NoError(t, s.SaveExecution(ctx, exec))

		execs, err := s.ListExecutions(ctx, "wf-1")
		require.NoError(t, err)
		assert.Equal(t, workflow.StatusFailed, execs[0].Status)
	})
}

func TestNewDialects(t *testing.T) {
	t.Run("unsupported dialect is rejected", func(t *testing.T) {
		s := newTestStore(t)
		_, err := New(s.db, "oracle")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unsupported dialect")
	})

	t.Run("sqlite3 normalizes to sqlite", func(t *testing.T) {
		s := newTestStore(t)
		again, err := New(s.db, "sqlite3")
		require.NoError(t, err)
		assert.Equal(t, "sqlite", again.dialect)
	})

	t.Run("nil connection is rejected", func(t *testing.T) {
		_, err := New(nil, "sqlite")
		require.Error(t, err)
	})
}

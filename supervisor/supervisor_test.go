package supervisor

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oliver-os/conductor/agent"
	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/events"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *events.Bus) {
	t.Helper()
	bus := events.NewBus(64)
	s := New(agent.DefaultCatalog(), config.SupervisionConfig{}, bus, nil)
	t.Cleanup(func() {
		s.Shutdown()
		bus.Close()
	})
	return s, bus
}

func TestSpawnAgent(t *testing.T) {
	s, bus := newTestSupervisor(t)
	ctx := context.Background()

	t.Run("spawned agents start active with unique ids", func(t *testing.T) {
		idPattern := regexp.MustCompile(`^agent-\d+-[0-9a-f]{6}$`)
		seen := make(map[string]bool)

		for i := 0; i < 5; i++ {
			status, err := s.SpawnAgent(ctx, "code-generator", nil)
			require.NoError(t, err)
			assert.Regexp(t, idPattern, status.ID)
			assert.False(t, seen[status.ID], "duplicate agent id %s", status.ID)
			seen[status.ID] = true
			assert.Equal(t, StateActive, status.State)
			assert.True(t, status.Healthy)
			assert.False(t, status.SpawnedAt.IsZero())
		}
		assert.Equal(t, 5, s.Count())
	})

	t.Run("unknown agent type is a not-found error", func(t *testing.T) {
		_, err := s.SpawnAgent(ctx, "nonexistent-agent", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})

	t.Run("spawn publishes an event", func(t *testing.T) {
		sub := bus.Subscribe(events.EventAgentSpawned)
		defer bus.Unsubscribe(sub)

		status, err := s.SpawnAgent(ctx, "thought-processor", nil)
		require.NoError(t, err)

		ev := <-sub.C()
		spawned, ok := ev.(events.AgentSpawned)
		require.True(t, ok)
		assert.Equal(t, status.ID, spawned.AgentID)
		assert.Equal(t, "thought-processor", spawned.AgentType)
	})
}

func TestAgentLifecycle(t *testing.T) {
	s, _ := newTestSupervisor(t)
	ctx := context.Background()

	status, err := s.SpawnAgent(ctx, "backend-specialist", nil)
	require.NoError(t, err)
	id := status.ID

	t.Run("task accounting drives state", func(t *testing.T) {
		require.NoError(t, s.RecordTaskStart(id, "implement endpoint"))
		got, err := s.GetAgentStatus(id)
		require.NoError(t, err)
		assert.Equal(t, StateActive, got.State)
		assert.Equal(t, "implement endpoint", got.CurrentTask)
		assert.Equal(t, 1, got.ActiveTasks)

		require.NoError(t, s.UpdateProgress(id, 50))
		got, _ = s.GetAgentStatus(id)
		assert.Equal(t, 50.0, got.Progress)

		require.NoError(t, s.RecordTaskDone(id, true))
		got, _ = s.GetAgentStatus(id)
		assert.Equal(t, StateIdle, got.State)
		assert.Equal(t, 1, got.CompletedTasks)
		assert.Empty(t, got.CurrentTask)
		assert.Equal(t, 0.0, got.Progress)
	})

	t.Run("progress is clamped", func(t *testing.T) {
		require.NoError(t, s.UpdateProgress(id, 150))
		got, _ := s.GetAgentStatus(id)
		assert.Equal(t, 100.0, got.Progress)

		require.NoError(t, s.UpdateProgress(id, -10))
		got, _ = s.GetAgentStatus(id)
		assert.Equal(t, 0.0, got.Progress)
	})

	t.Run("agent at the concurrency limit reports busy", func(t *testing.T) {
		// Default policy allows three concurrent tasks.
		require.NoError(t, s.RecordTaskStart(id, "a"))
		require.NoError(t, s.RecordTaskStart(id, "b"))
		require.NoError(t, s.RecordTaskStart(id, "c"))
		got, _ := s.GetAgentStatus(id)
		assert.Equal(t, StateBusy, got.State)

		require.NoError(t, s.RecordTaskDone(id, true))
		got, _ = s.GetAgentStatus(id)
		assert.Equal(t, StateActive, got.State)

		require.NoError(t, s.RecordTaskDone(id, true))
		require.NoError(t, s.RecordTaskDone(id, true))
	})

	t.Run("failure moves the agent to error state", func(t *testing.T) {
		require.NoError(t, s.RecordTaskStart(id, "doomed"))
		require.NoError(t, s.RecordTaskDone(id, false))
		got, _ := s.GetAgentStatus(id)
		assert.Equal(t, StateError, got.State)
		assert.Equal(t, 1, got.FailedTasks)
	})

	t.Run("unknown agent id is a not-found error", func(t *testing.T) {
		_, err := s.GetAgentStatus("agent-0-000000")
		assert.True(t, errors.Is(err, core.ErrNotFound))
		assert.True(t, errors.Is(s.Heartbeat("agent-0-000000"), core.ErrNotFound))
		assert.True(t, errors.Is(s.TerminateAgent("agent-0-000000"), core.ErrNotFound))
	})
}

func TestTerminateAgent(t *testing.T) {
	s, _ := newTestSupervisor(t)
	ctx := context.Background()

	status, err := s.SpawnAgent(ctx, "frontend-specialist", nil)
	require.NoError(t, err)

	require.NoError(t, s.TerminateAgent(status.ID))

	t.Run("terminated agents stay queryable", func(t *testing.T) {
		got, err := s.GetAgentStatus(status.ID)
		require.NoError(t, err)
		assert.Equal(t, StateTerminated, got.State)
		assert.False(t, got.Healthy)
	})

	t.Run("terminate is idempotent", func(t *testing.T) {
		require.NoError(t, s.TerminateAgent(status.ID))
	})

	t.Run("terminated agents refuse new work", func(t *testing.T) {
		require.Error(t, s.RecordTaskStart(status.ID, "x"))
		require.Error(t, s.Heartbeat(status.ID))
	})

	t.Run("FindByType skips terminated agents", func(t *testing.T) {
		assert.Empty(t, s.FindByType("frontend-specialist"))

		live, err := s.SpawnAgent(ctx, "frontend-specialist", nil)
		require.NoError(t, err)
		found := s.FindByType("frontend-specialist")
		require.Len(t, found, 1)
		assert.Equal(t, live.ID, found[0].ID)
	})

	t.Run("ListAgents includes every agent ever spawned", func(t *testing.T) {
		assert.Len(t, s.ListAgents(), 2)
	})
}

func TestCheckHealth(t *testing.T) {
	s, _ := newTestSupervisor(t)
	ctx := context.Background()

	status, err := s.SpawnAgent(ctx, "ai-specialist", nil)
	require.NoError(t, err)

	t.Run("healthy agent passes all probes", func(t *testing.T) {
		s.CheckHealth()
		got, _ := s.GetAgentStatus(status.ID)
		assert.True(t, got.Healthy)
		for probe, ok := range got.Probes {
			assert.True(t, ok, "probe %s failed", probe)
		}
	})

	t.Run("a failing probe marks the agent unhealthy", func(t *testing.T) {
		s.RegisterProbe(failingProbe{})
		s.CheckHealth()
		got, _ := s.GetAgentStatus(status.ID)
		assert.False(t, got.Healthy)
		assert.Equal(t, StateError, got.State)
		assert.False(t, got.Probes["always-fails"])
	})
}

type failingProbe struct{}

func (failingProbe) Name() string { return "always-fails" }

func (failingProbe) Check(*AgentStatus, *config.SupervisionConfig) error {
	return errors.New("probe failure")
}

type switchProbe struct{ fail *atomic.Bool }

func (switchProbe) Name() string { return "switchable" }

func (p switchProbe) Check(*AgentStatus, *config.SupervisionConfig) error {
	if p.fail.Load() {
		return errors.New("probe failure")
	}
	return nil
}

func TestAgentRecovery(t *testing.T) {
	s, _ := newTestSupervisor(t)
	status, err := s.SpawnAgent(context.Background(), "backend-specialist", nil)
	require.NoError(t, err)

	var fail atomic.Bool
	fail.Store(true)
	s.RegisterProbe(switchProbe{fail: &fail})

	s.CheckHealth()
	got, _ := s.GetAgentStatus(status.ID)
	require.Equal(t, StateError, got.State)
	require.False(t, got.Healthy)

	fail.Store(false)
	s.CheckHealth()
	got, _ = s.GetAgentStatus(status.ID)
	assert.True(t, got.Healthy)
	assert.Equal(t, StateActive, got.State)
}

func TestPerAgentHealthTimer(t *testing.T) {
	s, _ := newTestSupervisor(t)
	ctx := context.Background()

	var fail atomic.Bool
	fail.Store(true)
	s.RegisterProbe(switchProbe{fail: &fail})

	policy := config.SupervisionConfig{Enabled: true, HealthCheckInterval: 1}
	status, err := s.SpawnAgent(ctx, "code-generator", &policy)
	require.NoError(t, err)

	t.Run("enabled supervision checks on its own timer", func(t *testing.T) {
		require.Eventually(t, func() bool {
			got, err := s.GetAgentStatus(status.ID)
			return err == nil && got.State == StateError
		}, 3*time.Second, 50*time.Millisecond)

		fail.Store(false)
		require.Eventually(t, func() bool {
			got, err := s.GetAgentStatus(status.ID)
			return err == nil && got.Healthy && got.State == StateActive
		}, 3*time.Second, 50*time.Millisecond)
	})

	t.Run("disabled supervision starts no timer", func(t *testing.T) {
		quiet, err := s.SpawnAgent(ctx, "code-generator", &config.SupervisionConfig{Enabled: false})
		require.NoError(t, err)

		s.mu.RLock()
		defer s.mu.RUnlock()
		assert.Nil(t, s.agents[quiet.ID].stopProbe)
		assert.NotNil(t, s.agents[status.ID].stopProbe)
	})
}

func TestShutdown(t *testing.T) {
	bus := events.NewBus(64)
	defer bus.Close()
	s := New(agent.DefaultCatalog(), config.SupervisionConfig{}, bus, nil)

	_, err := s.SpawnAgent(context.Background(), "code-generator", nil)
	require.NoError(t, err)

	s.Shutdown()
	s.Shutdown()

	for _, status := range s.ListAgents() {
		assert.Equal(t, StateTerminated, status.State)
	}
}

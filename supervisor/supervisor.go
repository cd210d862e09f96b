// Package supervisor manages the lifecycle of spawned agents: spawn,
// heartbeat tracking, health probing, task accounting, and termination.
package supervisor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oliver-os/conductor/agent"
	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/events"
)

// ============================================================================
// AGENT STATE
// ============================================================================

// AgentState is the lifecycle state of a managed agent.
type AgentState string

const (
	StateIdle       AgentState = "idle"
	StateActive     AgentState = "active"
	StateBusy       AgentState = "busy"
	StateError      AgentState = "error"
	StateTerminated AgentState = "terminated"
)

// AgentStatus is a point-in-time snapshot of a managed agent.
type AgentStatus struct {
	ID             string          `json:"id"`
	Type           string          `json:"type"`
	State          AgentState      `json:"state"`
	CurrentTask    string          `json:"current_task,omitempty"`
	Progress       float64         `json:"progress"`
	SpawnedAt      time.Time       `json:"spawned_at"`
	LastHeartbeat  time.Time       `json:"last_heartbeat"`
	ActiveTasks    int             `json:"active_tasks"`
	CompletedTasks int             `json:"completed_tasks"`
	FailedTasks    int             `json:"failed_tasks"`
	Healthy        bool            `json:"healthy"`
	Probes         map[string]bool `json:"probes,omitempty"`
	Metadata       map[string]any  `json:"metadata,omitempty"`
}

type managedAgent struct {
	status      AgentStatus
	supervision config.SupervisionConfig
	stopProbe   chan struct{}
}

// ============================================================================
// SUPERVISOR
// ============================================================================

// Supervisor spawns agents from the catalog and supervises them until
// shutdown. Terminated agents remain queryable.
type Supervisor struct {
	catalog  *agent.Catalog
	defaults config.SupervisionConfig
	bus      *events.Bus
	logger   *slog.Logger

	mu     sync.RWMutex
	agents map[string]*managedAgent
	probes []Probe

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a supervisor with the default probe set. Health-check
// timers start per agent at spawn when the agent's supervision policy
// enables them.
func New(catalog *agent.Catalog, defaults config.SupervisionConfig, bus *events.Bus, logger *slog.Logger) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	defaults.SetDefaults()
	return &Supervisor{
		catalog:  catalog,
		defaults: defaults,
		bus:      bus,
		logger:   logger,
		agents:   make(map[string]*managedAgent),
		probes: []Probe{
			&HeartbeatProbe{},
			&TaskQueueProbe{},
			&ResourceProbe{},
		},
		stop: make(chan struct{}),
	}
}

// RegisterProbe adds a health probe. Probes registered under an existing
// name replace the previous one.
func (s *Supervisor) RegisterProbe(p Probe) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.probes {
		if existing.Name() == p.Name() {
			s.probes[i] = p
			return
		}
	}
	s.probes = append(s.probes, p)
}

// SpawnAgent creates a managed agent of the given catalog type. The
// supervision policy falls back to the supervisor defaults when nil.
// When the policy enables supervision, a recurring health-check timer
// starts for the agent at its configured interval.
func (s *Supervisor) SpawnAgent(ctx context.Context, agentType string, supervision *config.SupervisionConfig) (AgentStatus, error) {
	def, err := s.catalog.Get(agentType)
	if err != nil {
		return AgentStatus{}, core.NewNotFoundError("agent type", agentType)
	}

	policy := s.defaults
	if supervision != nil {
		policy = *supervision
		policy.SetDefaults()
	}

	now := time.Now()
	status := AgentStatus{
		ID:            core.NewAgentID(),
		Type:          def.ID,
		State:         StateActive,
		SpawnedAt:     now,
		LastHeartbeat: now,
		Healthy:       true,
	}

	ma := &managedAgent{status: status, supervision: policy}
	if policy.Enabled {
		ma.stopProbe = make(chan struct{})
		s.wg.Add(1)
		go s.agentHealthLoop(status.ID, time.Duration(policy.HealthCheckInterval)*time.Second, ma.stopProbe)
	}

	s.mu.Lock()
	s.agents[status.ID] = ma
	s.mu.Unlock()

	s.logger.Info("Spawned agent", "agent_id", status.ID, "agent_type", def.ID)
	s.bus.Publish(events.NewAgentSpawned(status.ID, def.ID))
	return status, nil
}

// TerminateAgent moves an agent to the terminated state. The agent stays
// queryable afterwards.
func (s *Supervisor) TerminateAgent(id string) error {
	s.mu.Lock()
	ma, ok := s.agents[id]
	if !ok {
		s.mu.Unlock()
		return core.NewNotFoundError("agent", id)
	}
	if ma.status.State == StateTerminated {
		s.mu.Unlock()
		return nil
	}
	ma.status.State = StateTerminated
	ma.status.Healthy = false
	ma.status.ActiveTasks = 0
	if ma.stopProbe != nil {
		close(ma.stopProbe)
		ma.stopProbe = nil
	}
	agentType := ma.status.Type
	s.mu.Unlock()

	s.logger.Info("Terminated agent", "agent_id", id, "agent_type", agentType)
	s.bus.Publish(events.NewAgentTerminated(id, agentType))
	return nil
}

// GetAgentStatus returns the snapshot of a single agent.
func (s *Supervisor) GetAgentStatus(id string) (AgentStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ma, ok := s.agents[id]
	if !ok {
		return AgentStatus{}, core.NewNotFoundError("agent", id)
	}
	return ma.snapshot(), nil
}

// ListAgents returns every managed agent, terminated ones included,
// sorted by spawn time then ID.
func (s *Supervisor) ListAgents() []AgentStatus {
	s.mu.RLock()
	out := make([]AgentStatus, 0, len(s.agents))
	for _, ma := range s.agents {
		out = append(out, ma.snapshot())
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].SpawnedAt.Equal(out[j].SpawnedAt) {
			return out[i].SpawnedAt.Before(out[j].SpawnedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// FindByType returns non-terminated agents of the given type.
func (s *Supervisor) FindByType(agentType string) []AgentStatus {
	var out []AgentStatus
	for _, status := range s.ListAgents() {
		if status.Type == agentType && status.State != StateTerminated {
			out = append(out, status)
		}
	}
	return out
}

// Heartbeat records a liveness signal from an agent.
func (s *Supervisor) Heartbeat(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[id]
	if !ok {
		return core.NewNotFoundError("agent", id)
	}
	if ma.status.State == StateTerminated {
		return fmt.Errorf("agent %s is terminated", id)
	}
	ma.status.LastHeartbeat = time.Now()
	return nil
}

// RecordTaskStart accounts a task assignment and advances the agent state.
// Agents at their concurrency limit report busy.
func (s *Supervisor) RecordTaskStart(id, taskDescription string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[id]
	if !ok {
		return core.NewNotFoundError("agent", id)
	}
	if ma.status.State == StateTerminated {
		return fmt.Errorf("agent %s is terminated", id)
	}
	ma.status.ActiveTasks++
	ma.status.CurrentTask = taskDescription
	ma.status.Progress = 0
	ma.status.LastHeartbeat = time.Now()
	if ma.status.ActiveTasks >= ma.supervision.MaxConcurrentTasks {
		ma.status.State = StateBusy
	} else {
		ma.status.State = StateActive
	}
	return nil
}

// UpdateProgress records an agent's self-reported progress percentage,
// clamped to [0,100].
func (s *Supervisor) UpdateProgress(id string, progress float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[id]
	if !ok {
		return core.NewNotFoundError("agent", id)
	}
	if progress < 0 {
		progress = 0
	} else if progress > 100 {
		progress = 100
	}
	ma.status.Progress = progress
	ma.status.LastHeartbeat = time.Now()
	return nil
}

// RecordTaskDone accounts a task completion or failure and advances the
// agent state back toward idle.
func (s *Supervisor) RecordTaskDone(id string, success bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[id]
	if !ok {
		return core.NewNotFoundError("agent", id)
	}
	if ma.status.ActiveTasks > 0 {
		ma.status.ActiveTasks--
	}
	if success {
		ma.status.CompletedTasks++
	} else {
		ma.status.FailedTasks++
	}
	ma.status.LastHeartbeat = time.Now()
	if ma.status.ActiveTasks == 0 {
		ma.status.CurrentTask = ""
		ma.status.Progress = 0
	}
	if ma.status.State != StateTerminated {
		switch {
		case !success:
			ma.status.State = StateError
		case ma.status.ActiveTasks == 0:
			ma.status.State = StateIdle
		case ma.status.ActiveTasks >= ma.supervision.MaxConcurrentTasks:
			ma.status.State = StateBusy
		default:
			ma.status.State = StateActive
		}
	}
	return nil
}

// Count returns the number of managed agents, terminated ones included.
func (s *Supervisor) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.agents)
}

// Shutdown terminates every agent and stops the health loop. Safe to call
// more than once.
func (s *Supervisor) Shutdown() {
	s.stopOnce.Do(func() {
		close(s.stop)
		for _, status := range s.ListAgents() {
			if status.State != StateTerminated {
				_ = s.TerminateAgent(status.ID)
			}
		}
	})
	s.wg.Wait()
}

func (ma *managedAgent) snapshot() AgentStatus {
	out := ma.status
	if ma.status.Probes != nil {
		out.Probes = make(map[string]bool, len(ma.status.Probes))
		for k, v := range ma.status.Probes {
			out.Probes[k] = v
		}
	}
	if ma.status.Metadata != nil {
		out.Metadata = make(map[string]any, len(ma.status.Metadata))
		for k, v := range ma.status.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// ============================================================================
// HEALTH LOOP
// ============================================================================

// agentHealthLoop runs the recurring check for one agent. It exits when
// the agent is terminated or the supervisor shuts down.
func (s *Supervisor) agentHealthLoop(id string, interval time.Duration, stopProbe <-chan struct{}) {
	defer s.wg.Done()
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-stopProbe:
			return
		case <-ticker.C:
			s.CheckAgent(id)
		}
	}
}

// CheckAgent runs every probe against a single agent. Unknown or
// terminated agents are ignored.
func (s *Supervisor) CheckAgent(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ma, ok := s.agents[id]
	if !ok || ma.status.State == StateTerminated {
		return
	}
	s.checkAgentLocked(id, ma)
}

// CheckHealth runs every probe against every non-terminated agent and
// records the aggregate. An agent is healthy only when all probes pass.
func (s *Supervisor) CheckHealth() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, ma := range s.agents {
		if ma.status.State == StateTerminated {
			continue
		}
		s.checkAgentLocked(id, ma)
	}
}

func (s *Supervisor) checkAgentLocked(id string, ma *managedAgent) {
	results := make(map[string]bool, len(s.probes))
	healthy := true
	for _, probe := range s.probes {
		err := probe.Check(&ma.status, &ma.supervision)
		results[probe.Name()] = err == nil
		if err != nil {
			healthy = false
			s.logger.Warn("Agent health probe failed",
				"agent_id", id, "probe", probe.Name(), "error", err)
		}
	}
	ma.status.Probes = results
	ma.status.Healthy = healthy
	if !healthy {
		ma.status.State = StateError
	} else if ma.status.State == StateError {
		// All probes pass again, the agent rejoins the active pool.
		ma.status.State = StateActive
		s.logger.Info("Agent recovered", "agent_id", id)
	}
}

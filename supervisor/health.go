package supervisor

import (
	"fmt"
	"runtime"
	"time"

	"github.com/oliver-os/conductor/config"
)

// ============================================================================
// HEALTH PROBES
// ============================================================================

// Probe checks one aspect of a managed agent's health. The supervisor
// aggregates probes with AND: every probe must pass for the agent to be
// considered healthy.
type Probe interface {
	Name() string
	Check(status *AgentStatus, policy *config.SupervisionConfig) error
}

// HeartbeatProbe fails when the agent has not reported within the
// supervision timeout.
type HeartbeatProbe struct{}

func (p *HeartbeatProbe) Name() string { return "heartbeat" }

func (p *HeartbeatProbe) Check(status *AgentStatus, policy *config.SupervisionConfig) error {
	timeout := time.Duration(policy.Timeout) * time.Second
	if timeout <= 0 {
		return nil
	}
	elapsed := time.Since(status.LastHeartbeat)
	if elapsed > timeout {
		return fmt.Errorf("no heartbeat for %s (timeout %s)", elapsed.Round(time.Second), timeout)
	}
	return nil
}

// TaskQueueProbe fails when the agent carries more tasks than its
// concurrency limit allows.
type TaskQueueProbe struct{}

func (p *TaskQueueProbe) Name() string { return "task-queue" }

func (p *TaskQueueProbe) Check(status *AgentStatus, policy *config.SupervisionConfig) error {
	if policy.MaxConcurrentTasks > 0 && status.ActiveTasks > policy.MaxConcurrentTasks {
		return fmt.Errorf("%d active tasks exceeds limit %d", status.ActiveTasks, policy.MaxConcurrentTasks)
	}
	return nil
}

// ResourceProbe fails when the process itself is under memory pressure.
// Agents share the process, so the check is global.
type ResourceProbe struct {
	// MaxHeapBytes bounds the live heap. Zero means 1 GiB.
	MaxHeapBytes uint64
}

func (p *ResourceProbe) Name() string { return "resources" }

func (p *ResourceProbe) Check(status *AgentStatus, policy *config.SupervisionConfig) error {
	limit := p.MaxHeapBytes
	if limit == 0 {
		limit = 1 << 30
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	if ms.HeapAlloc > limit {
		return fmt.Errorf("heap %d bytes exceeds limit %d", ms.HeapAlloc, limit)
	}
	return nil
}

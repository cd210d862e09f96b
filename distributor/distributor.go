// Package distributor matches task definitions against the agent catalog,
// tracks per-agent progress, and emits task lifecycle events.
package distributor

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/oliver-os/conductor/agent"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/events"
)

// ============================================================================
// TASK TYPES
// ============================================================================

// TaskStatus is the lifecycle status of a distributed task.
type TaskStatus string

const (
	StatusPending    TaskStatus = "pending"
	StatusInProgress TaskStatus = "in-progress"
	StatusCompleted  TaskStatus = "completed"
	StatusFailed     TaskStatus = "failed"
)

// Complexity tiers drive the completion estimate.
const (
	ComplexityLow    = "low"
	ComplexityMedium = "medium"
	ComplexityHigh   = "high"
)

// TaskDefinition is a caller-supplied unit of work. The engine never
// mutates it.
type TaskDefinition struct {
	Name           string         `json:"name"`
	Description    string         `json:"description"`
	AssignedAgents []string       `json:"assigned_agents"`
	Complexity     string         `json:"complexity,omitempty"`
	Subtasks       []string       `json:"subtasks,omitempty"`
	Dependencies   []string       `json:"dependencies,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// AgentProgress is one agent's self-reported progress on a task.
type AgentProgress struct {
	AgentType string    `json:"agent_type"`
	Progress  float64   `json:"progress"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TaskProgress is the mutable progress record of a distributed task.
// Overall progress is the arithmetic mean of per-agent entries, clamped
// to [0,100], recomputed on every report.
type TaskProgress struct {
	TaskID              string                   `json:"task_id"`
	Name                string                   `json:"name"`
	Status              TaskStatus               `json:"status"`
	AssignedAgents      []string                 `json:"assigned_agents"`
	AgentProgress       map[string]AgentProgress `json:"agent_progress"`
	OverallProgress     float64                  `json:"overall_progress"`
	StartedAt           time.Time                `json:"started_at"`
	CompletedAt         time.Time                `json:"completed_at,omitzero"`
	EstimatedCompletion time.Time                `json:"estimated_completion"`
}

func (p *TaskProgress) clone() *TaskProgress {
	out := *p
	out.AssignedAgents = append([]string(nil), p.AssignedAgents...)
	out.AgentProgress = make(map[string]AgentProgress, len(p.AgentProgress))
	for k, v := range p.AgentProgress {
		out.AgentProgress[k] = v
	}
	return &out
}

// ============================================================================
// DISTRIBUTOR
// ============================================================================

// Distributor validates tasks against the catalog and owns their
// progress records. Records are retained after completion.
type Distributor struct {
	catalog *agent.Catalog
	bus     *events.Bus
	logger  *slog.Logger

	mu    sync.RWMutex
	tasks map[string]*TaskProgress
}

// New creates a task distributor.
func New(catalog *agent.Catalog, bus *events.Bus, logger *slog.Logger) *Distributor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Distributor{
		catalog: catalog,
		bus:     bus,
		logger:  logger,
		tasks:   make(map[string]*TaskProgress),
	}
}

// DistributeTask validates the definition, creates its progress record,
// and announces the distribution. At least one assigned agent type must
// exist in the catalog; unknown types are dropped from the assignment.
func (d *Distributor) DistributeTask(task TaskDefinition) (string, error) {
	if task.Name == "" {
		return "", core.NewValidationError("distributor", "name", "task name cannot be empty")
	}
	if len(task.AssignedAgents) == 0 {
		return "", core.NewValidationError("distributor", "assigned_agents",
			"task must name at least one agent type")
	}

	var resolved []string
	for _, agentType := range task.AssignedAgents {
		if d.catalog.Has(agentType) {
			resolved = append(resolved, agentType)
		} else {
			d.logger.Warn("Dropping unknown agent type from task assignment",
				"task", task.Name, "agent_type", agentType)
		}
	}
	if len(resolved) == 0 {
		return "", core.NewValidationError("distributor", "assigned_agents",
			fmt.Sprintf("no resolvable agent types in %v", task.AssignedAgents))
	}

	now := time.Now()
	progress := &TaskProgress{
		TaskID:              core.NewTaskID(),
		Name:                task.Name,
		Status:              StatusInProgress,
		AssignedAgents:      resolved,
		AgentProgress:       make(map[string]AgentProgress, len(resolved)),
		StartedAt:           now,
		EstimatedCompletion: now.Add(estimateDuration(task.Complexity, len(resolved))),
	}
	for _, agentType := range resolved {
		progress.AgentProgress[agentType] = AgentProgress{
			AgentType: agentType,
			UpdatedAt: now,
		}
	}

	d.mu.Lock()
	d.tasks[progress.TaskID] = progress
	d.mu.Unlock()

	d.logger.Info("Distributed task",
		"task_id", progress.TaskID, "name", task.Name, "agents", resolved)
	d.bus.Publish(events.NewTaskDistributed(progress.TaskID, events.TaskSnapshot{
		Name:         task.Name,
		Description:  task.Description,
		Complexity:   task.Complexity,
		Subtasks:     append([]string(nil), task.Subtasks...),
		Dependencies: append([]string(nil), task.Dependencies...),
		Metadata:     task.Metadata,
	}, resolved))
	return progress.TaskID, nil
}

// ReportProgress records one agent's progress on a task and recomputes
// the overall mean.
func (d *Distributor) ReportProgress(taskID, agentType string, percent float64) error {
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}

	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return core.NewNotFoundError("task", taskID)
	}
	if _, assigned := task.AgentProgress[agentType]; !assigned {
		d.mu.Unlock()
		return core.NewValidationError("distributor", "agent_type",
			fmt.Sprintf("agent type %q is not assigned to task %s", agentType, taskID))
	}
	task.AgentProgress[agentType] = AgentProgress{
		AgentType: agentType,
		Progress:  percent,
		UpdatedAt: time.Now(),
	}
	task.OverallProgress = overallMean(task.AgentProgress)
	overall := task.OverallProgress
	d.mu.Unlock()

	d.bus.Publish(events.NewTaskProgressed(taskID, agentType, percent, overall))
	return nil
}

// CompleteTask marks a task finished. A failure reason marks it failed
// instead.
func (d *Distributor) CompleteTask(taskID string, failureReason string) error {
	d.mu.Lock()
	task, ok := d.tasks[taskID]
	if !ok {
		d.mu.Unlock()
		return core.NewNotFoundError("task", taskID)
	}
	now := time.Now()
	task.CompletedAt = now
	duration := now.Sub(task.StartedAt)
	if failureReason == "" {
		task.Status = StatusCompleted
		task.OverallProgress = 100
		for agentType, ap := range task.AgentProgress {
			ap.Progress = 100
			ap.UpdatedAt = now
			task.AgentProgress[agentType] = ap
		}
	} else {
		task.Status = StatusFailed
	}
	d.mu.Unlock()

	if failureReason == "" {
		d.bus.Publish(events.NewTaskCompleted(taskID, duration))
	} else {
		d.bus.Publish(events.NewTaskFailed(taskID, failureReason))
	}
	return nil
}

// GetTaskProgress returns the latest snapshot of a task, or a not-found
// error for unknown ids. Callers must not treat the error as zero
// progress.
func (d *Distributor) GetTaskProgress(taskID string) (*TaskProgress, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	task, ok := d.tasks[taskID]
	if !ok {
		return nil, core.NewNotFoundError("task", taskID)
	}
	return task.clone(), nil
}

// ListTasks returns every tracked task sorted by start time then id.
func (d *Distributor) ListTasks() []*TaskProgress {
	d.mu.RLock()
	out := make([]*TaskProgress, 0, len(d.tasks))
	for _, task := range d.tasks {
		out = append(out, task.clone())
	}
	d.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].StartedAt.Before(out[j].StartedAt)
		}
		return out[i].TaskID < out[j].TaskID
	})
	return out
}

// ActiveCount returns how many tasks are still in progress.
func (d *Distributor) ActiveCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, task := range d.tasks {
		if task.Status == StatusPending || task.Status == StatusInProgress {
			n++
		}
	}
	return n
}

// Count returns the total number of tracked tasks.
func (d *Distributor) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.tasks)
}

func overallMean(progress map[string]AgentProgress) float64 {
	if len(progress) == 0 {
		return 0
	}
	var sum float64
	for _, ap := range progress {
		sum += ap.Progress
	}
	mean := sum / float64(len(progress))
	if mean < 0 {
		return 0
	}
	if mean > 100 {
		return 100
	}
	return mean
}

// estimateDuration maps a complexity tier to a base duration, scaled up
// modestly per additional assigned agent to account for coordination.
func estimateDuration(complexity string, agents int) time.Duration {
	var base time.Duration
	switch complexity {
	case ComplexityHigh:
		base = 30 * time.Minute
	case ComplexityMedium:
		base = 10 * time.Minute
	default:
		base = 3 * time.Minute
	}
	if agents > 1 {
		base += time.Duration(agents-1) * base / 4
	}
	return base
}

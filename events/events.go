// Package events defines the typed lifecycle events emitted by the
// orchestration engine and the in-process bus that delivers them.
package events

import (
	"time"
)

// EventType identifies an event payload kind.
type EventType string

const (
	EventInitialized     EventType = "initialized"
	EventAgentSpawned    EventType = "agent_spawned"
	EventAgentTerminated EventType = "agent_terminated"
	EventTaskDistributed EventType = "task:distributed"
	EventTaskProgress    EventType = "task:progress"
	EventTaskCompleted   EventType = "task:completed"
	EventTaskFailed      EventType = "task:failed"
	EventToolCalled      EventType = "tool_called"
	EventWorkflowStarted EventType = "workflow:started"
	EventWorkflowDone    EventType = "workflow:completed"
	EventWorkflowFailed  EventType = "workflow:failed"
	EventStepStarted     EventType = "step:started"
	EventStepCompleted   EventType = "step:completed"
	EventStepFailed      EventType = "step:failed"
)

// Event is the interface implemented by every payload struct.
type Event interface {
	Type() EventType
	OccurredAt() time.Time
}

// base carries the timestamp shared by all payloads.
type base struct {
	Timestamp time.Time `json:"timestamp"`
}

func (b base) OccurredAt() time.Time { return b.Timestamp }

func now() base { return base{Timestamp: time.Now()} }

// Initialized is published once when the orchestrator finishes startup.
type Initialized struct {
	base
	AgentTypes int `json:"agent_types"`
	Tools      int `json:"tools"`
	Workflows  int `json:"workflows"`
}

func (Initialized) Type() EventType { return EventInitialized }

// NewInitialized creates an Initialized event.
func NewInitialized(agentTypes, tools, workflows int) Initialized {
	return Initialized{base: now(), AgentTypes: agentTypes, Tools: tools, Workflows: workflows}
}

// AgentSpawned is published after an agent instance is installed.
type AgentSpawned struct {
	base
	AgentID   string `json:"agent_id"`
	AgentType string `json:"agent_type"`
}

func (AgentSpawned) Type() EventType { return EventAgentSpawned }

// NewAgentSpawned creates an AgentSpawned event.
func NewAgentSpawned(agentID, agentType string) AgentSpawned {
	return AgentSpawned{base: now(), AgentID: agentID, AgentType: agentType}
}

// AgentTerminated is published when an agent transitions to terminated.
type AgentTerminated struct {
	base
	AgentID   string `json:"agent_id"`
	AgentType string `json:"agent_type"`
}

func (AgentTerminated) Type() EventType { return EventAgentTerminated }

// NewAgentTerminated creates an AgentTerminated event.
func NewAgentTerminated(agentID, agentType string) AgentTerminated {
	return AgentTerminated{base: now(), AgentID: agentID, AgentType: agentType}
}

// TaskSnapshot is the caller-supplied task definition as it was accepted,
// carried whole on distribution events.
type TaskSnapshot struct {
	Name         string         `json:"name"`
	Description  string         `json:"description,omitempty"`
	Complexity   string         `json:"complexity,omitempty"`
	Subtasks     []string       `json:"subtasks,omitempty"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

// TaskDistributed is published when a task is accepted and assigned.
type TaskDistributed struct {
	base
	TaskID         string       `json:"task_id"`
	Task           TaskSnapshot `json:"task"`
	AssignedAgents []string     `json:"assigned_agents"`
}

func (TaskDistributed) Type() EventType { return EventTaskDistributed }

// NewTaskDistributed creates a TaskDistributed event.
func NewTaskDistributed(taskID string, task TaskSnapshot, assigned []string) TaskDistributed {
	return TaskDistributed{base: now(), TaskID: taskID, Task: task, AssignedAgents: assigned}
}

// TaskProgressed is published every time an agent reports progress.
type TaskProgressed struct {
	base
	TaskID          string  `json:"task_id"`
	AgentType       string  `json:"agent_type"`
	AgentProgress   float64 `json:"agent_progress"`
	OverallProgress float64 `json:"overall_progress"`
}

func (TaskProgressed) Type() EventType { return EventTaskProgress }

// NewTaskProgressed creates a TaskProgressed event.
func NewTaskProgressed(taskID, agentType string, agentProgress, overall float64) TaskProgressed {
	return TaskProgressed{base: now(), TaskID: taskID, AgentType: agentType, AgentProgress: agentProgress, OverallProgress: overall}
}

// TaskCompleted is published when a task reaches completed status.
type TaskCompleted struct {
	base
	TaskID   string        `json:"task_id"`
	Duration time.Duration `json:"duration"`
}

func (TaskCompleted) Type() EventType { return EventTaskCompleted }

// NewTaskCompleted creates a TaskCompleted event.
func NewTaskCompleted(taskID string, duration time.Duration) TaskCompleted {
	return TaskCompleted{base: now(), TaskID: taskID, Duration: duration}
}

// TaskFailed is published when a task reaches failed status.
type TaskFailed struct {
	base
	TaskID string `json:"task_id"`
	Reason string `json:"reason"`
}

func (TaskFailed) Type() EventType { return EventTaskFailed }

// NewTaskFailed creates a TaskFailed event.
func NewTaskFailed(taskID, reason string) TaskFailed {
	return TaskFailed{base: now(), TaskID: taskID, Reason: reason}
}

// ToolCalled is published after every tool dispatch.
type ToolCalled struct {
	base
	Tool     string        `json:"tool"`
	Success  bool          `json:"success"`
	Duration time.Duration `json:"duration"`
}

func (ToolCalled) Type() EventType { return EventToolCalled }

// NewToolCalled creates a ToolCalled event.
func NewToolCalled(tool string, success bool, duration time.Duration) ToolCalled {
	return ToolCalled{base: now(), Tool: tool, Success: success, Duration: duration}
}

// WorkflowStarted is published when an execution begins.
type WorkflowStarted struct {
	base
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	Steps       int    `json:"steps"`
}

func (WorkflowStarted) Type() EventType { return EventWorkflowStarted }

// NewWorkflowStarted creates a WorkflowStarted event.
func NewWorkflowStarted(workflowID, executionID string, steps int) WorkflowStarted {
	return WorkflowStarted{base: now(), WorkflowID: workflowID, ExecutionID: executionID, Steps: steps}
}

// WorkflowCompleted is published when every step of an execution succeeded.
type WorkflowCompleted struct {
	base
	WorkflowID  string        `json:"workflow_id"`
	ExecutionID string        `json:"execution_id"`
	Duration    time.Duration `json:"duration"`
}

func (WorkflowCompleted) Type() EventType { return EventWorkflowDone }

// NewWorkflowCompleted creates a WorkflowCompleted event.
func NewWorkflowCompleted(workflowID, executionID string, duration time.Duration) WorkflowCompleted {
	return WorkflowCompleted{base: now(), WorkflowID: workflowID, ExecutionID: executionID, Duration: duration}
}

// WorkflowFailed is published when an execution aborts.
type WorkflowFailed struct {
	base
	WorkflowID  string `json:"workflow_id"`
	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	Reason      string `json:"reason"`
}

func (WorkflowFailed) Type() EventType { return EventWorkflowFailed }

// NewWorkflowFailed creates a WorkflowFailed event.
func NewWorkflowFailed(workflowID, executionID, stepID, reason string) WorkflowFailed {
	return WorkflowFailed{base: now(), WorkflowID: workflowID, ExecutionID: executionID, StepID: stepID, Reason: reason}
}

// StepStarted is published before a step's task is invoked.
type StepStarted struct {
	base
	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	Agent       string `json:"agent"`
}

func (StepStarted) Type() EventType { return EventStepStarted }

// NewStepStarted creates a StepStarted event.
func NewStepStarted(executionID, stepID, agent string) StepStarted {
	return StepStarted{base: now(), ExecutionID: executionID, StepID: stepID, Agent: agent}
}

// StepCompleted is published after a step's task returned success.
type StepCompleted struct {
	base
	ExecutionID string        `json:"execution_id"`
	StepID      string        `json:"step_id"`
	Agent       string        `json:"agent"`
	Duration    time.Duration `json:"duration"`
}

func (StepCompleted) Type() EventType { return EventStepCompleted }

// NewStepCompleted creates a StepCompleted event.
func NewStepCompleted(executionID, stepID, agent string, duration time.Duration) StepCompleted {
	return StepCompleted{base: now(), ExecutionID: executionID, StepID: stepID, Agent: agent, Duration: duration}
}

// StepFailed is published after a step's task returned failure.
type StepFailed struct {
	base
	ExecutionID string `json:"execution_id"`
	StepID      string `json:"step_id"`
	Agent       string `json:"agent"`
	Reason      string `json:"reason"`
}

func (StepFailed) Type() EventType { return EventStepFailed }

// NewStepFailed creates a StepFailed event.
func NewStepFailed(executionID, stepID, agent, reason string) StepFailed {
	return StepFailed{base: now(), ExecutionID: executionID, StepID: stepID, Agent: agent, Reason: reason}
}

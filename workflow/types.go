// Package workflow implements workflow definitions and their execution:
// sequential runs in declaration order with fail-fast semantics, and DAG
// runs that honor declared step dependencies with bounded parallelism.
package workflow

import (
	"time"
)

// ============================================================================
// STATUS TYPES
// ============================================================================

// Status is the lifecycle status of a workflow definition.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StepStatus is the status of one step within an execution.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// ExecutionMode selects how steps are scheduled.
type ExecutionMode string

const (
	// ModeSequential runs steps strictly in declaration order and
	// fails fast. Declared dependencies are recorded but do not
	// reorder execution.
	ModeSequential ExecutionMode = "sequential"

	// ModeDAG schedules steps by dependency readiness with bounded
	// fan-out. A failed step marks its dependents skipped.
	ModeDAG ExecutionMode = "dag"
)

// ============================================================================
// DEFINITION TYPES
// ============================================================================

// Step is one unit of a workflow bound to a single agent.
type Step struct {
	ID           string        `json:"id"`
	Agent        string        `json:"agent"`
	Prompt       string        `json:"prompt"`
	Dependencies []string      `json:"dependencies,omitempty"`
	Timeout      time.Duration `json:"timeout,omitempty"`
	Tools        []string      `json:"tools,omitempty"`
}

// Definition is a named, ordered list of steps plus its execution
// history. History is append-only; past executions are never mutated.
type Definition struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Mode        ExecutionMode `json:"mode"`
	MaxParallel int           `json:"max_parallel,omitempty"`
	Steps       []Step        `json:"steps"`
	Status      Status        `json:"status"`
	History     []*Execution  `json:"history,omitempty"`
	CreatedAt   time.Time     `json:"created_at"`
}

// ============================================================================
// EXECUTION TYPES
// ============================================================================

// Artifact is a named output carried forward from a step for
// aggregation.
type Artifact struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"`
	Content string `json:"content,omitempty"`
}

// StepExecution records one step's run within an execution.
type StepExecution struct {
	StepID      string        `json:"step_id"`
	Agent       string        `json:"agent"`
	Status      StepStatus    `json:"status"`
	StartedAt   time.Time     `json:"started_at,omitzero"`
	CompletedAt time.Time     `json:"completed_at,omitzero"`
	Duration    time.Duration `json:"duration"`
	Output      string        `json:"output,omitempty"`
	Error       string        `json:"error,omitempty"`
}

// Execution is one run of a workflow definition. It is immutable once
// the run ends.
type Execution struct {
	ID          string          `json:"id"`
	WorkflowID  string          `json:"workflow_id"`
	Status      Status          `json:"status"`
	StartedAt   time.Time       `json:"started_at"`
	CompletedAt time.Time       `json:"completed_at,omitzero"`
	Duration    time.Duration   `json:"duration"`
	Steps       []StepExecution `json:"steps"`
	Artifacts   []Artifact      `json:"artifacts,omitempty"`
	Events      []string        `json:"events,omitempty"`
}

// Result is the aggregate outcome returned to the caller of Execute:
// concatenated step outputs plus every collected artifact.
type Result struct {
	ExecutionID string        `json:"execution_id"`
	Success     bool          `json:"success"`
	Output      string        `json:"output"`
	Artifacts   []Artifact    `json:"artifacts,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// StepResult is what the orchestrated-task primitive returns for one
// step.
type StepResult struct {
	Success   bool       `json:"success"`
	Output    string     `json:"output,omitempty"`
	Error     string     `json:"error,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

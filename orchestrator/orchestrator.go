// Package orchestrator is the high-level facade over the orchestration
// engine: it composes the agent catalog, supervisor, task distributor,
// workflow runner, tool registry, event bus, and optional history store,
// and exposes the entry points consumers call.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/oliver-os/conductor/agent"
	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/distributor"
	"github.com/oliver-os/conductor/events"
	"github.com/oliver-os/conductor/observability"
	"github.com/oliver-os/conductor/store"
	"github.com/oliver-os/conductor/supervisor"
	"github.com/oliver-os/conductor/tools"
	"github.com/oliver-os/conductor/workflow"
)

// ============================================================================
// ORCHESTRATOR
// ============================================================================

// Orchestrator owns one isolated engine instance. All registries are
// scoped to the instance; two orchestrators never share state.
type Orchestrator struct {
	cfg     *config.Config
	logger  *slog.Logger
	catalog *agent.Catalog
	bus     *events.Bus
	tools   *tools.Registry
	sup     *supervisor.Supervisor
	dist    *distributor.Distributor
	wf      *workflow.Runner
	runner  TaskRunner
	obs     *observability.Manager
	history *store.Store

	// wfSem bounds concurrent workflow executions.
	wfSem chan struct{}

	startedAt time.Time
	closeOnce sync.Once
}

// Option customizes orchestrator construction.
type Option func(*Orchestrator)

// WithTaskRunner replaces the default simulated runner.
func WithTaskRunner(r TaskRunner) Option {
	return func(o *Orchestrator) { o.runner = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// WithHistoryStore attaches a SQL history store.
func WithHistoryStore(s *store.Store) Option {
	return func(o *Orchestrator) { o.history = s }
}

// New builds an orchestrator from configuration. The context covers
// observability initialization only.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Orchestrator, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &Orchestrator{
		cfg:       cfg,
		logger:    slog.Default(),
		catalog:   agent.DefaultCatalog(),
		startedAt: time.Now(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.runner == nil {
		o.runner = NewSimulatedRunner()
	}

	o.bus = events.NewBus(cfg.Orchestrator.EventBufferSize)

	toolReg, err := tools.NewRegistryFromConfig(cfg.Tools, o.logger)
	if err != nil {
		return nil, err
	}
	o.tools = toolReg

	o.obs = observability.NewManager(cfg.Observability)
	if err := o.obs.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}

	o.sup = supervisor.New(o.catalog, cfg.Supervision, o.bus, o.logger)
	o.dist = distributor.New(o.catalog, o.bus, o.logger)

	stepTimeout := time.Duration(cfg.Orchestrator.DefaultStepTimeout) * time.Second
	o.wf = workflow.NewRunner(o.runStep, o.bus, stepTimeout, o.logger)
	o.wf.SetTracer(o.obs.GetTracer("conductor/workflow"))

	if o.history == nil && cfg.Storage.Enabled {
		s, err := store.Open(cfg.Storage)
		if err != nil {
			return nil, err
		}
		o.history = s
	}

	o.wfSem = make(chan struct{}, cfg.Orchestrator.MaxConcurrentWorkflows)

	// Pre-registered workflows from configuration, named by map key
	// unless the definition carries its own name.
	for name, wc := range cfg.Workflows {
		if wc.Name == "" {
			wc.Name = name
		}
		if _, err := o.wf.CreateWorkflow(wc); err != nil {
			return nil, fmt.Errorf("failed to create workflow %q: %w", wc.Name, err)
		}
	}

	o.logger.Info("Orchestrator initialized",
		"agent_types", o.catalog.Count(),
		"tools", o.tools.Count(),
		"workflows", o.wf.Count())
	o.bus.Publish(events.NewInitialized(o.catalog.Count(), o.tools.Count(), o.wf.Count()))
	return o, nil
}

// Subscribe exposes the event bus to consumers.
func (o *Orchestrator) Subscribe(types ...events.EventType) *events.Subscription {
	return o.bus.Subscribe(types...)
}

// Unsubscribe detaches a subscription.
func (o *Orchestrator) Unsubscribe(sub *events.Subscription) {
	o.bus.Unsubscribe(sub)
}

// Catalog returns the static agent catalog.
func (o *Orchestrator) Catalog() *agent.Catalog { return o.catalog }

// Tools returns the tool registry.
func (o *Orchestrator) Tools() *tools.Registry { return o.tools }

// Tracer returns a named tracer from the engine's tracer provider. It is
// a no-op tracer unless tracing is enabled in the configuration.
func (o *Orchestrator) Tracer(name string) trace.Tracer {
	return o.obs.GetTracer(name)
}

// Shutdown stops every component. Safe to call more than once; in-flight
// step invocations are not interrupted.
func (o *Orchestrator) Shutdown(ctx context.Context) {
	o.closeOnce.Do(func() {
		o.sup.Shutdown()
		o.bus.Close()
		if err := o.tools.Close(); err != nil {
			o.logger.Warn("Failed to close tool backends", "error", err)
		}
		if o.history != nil {
			if err := o.history.Close(); err != nil {
				o.logger.Warn("Failed to close history store", "error", err)
			}
		}
		if err := o.obs.Shutdown(ctx); err != nil {
			o.logger.Warn("Failed to shut down observability", "error", err)
		}
		o.logger.Info("Orchestrator stopped", "uptime", time.Since(o.startedAt).Round(time.Second))
	})
}

// ============================================================================
// AGENT OPERATIONS
// ============================================================================

// SpawnAgent creates a supervised agent of a catalog type.
func (o *Orchestrator) SpawnAgent(ctx context.Context, agentType string, supervision *config.SupervisionConfig) (supervisor.AgentStatus, error) {
	status, err := o.sup.SpawnAgent(ctx, agentType, supervision)
	if err != nil {
		return supervisor.AgentStatus{}, err
	}
	o.obs.GetMetrics().RecordAgentSpawn(ctx, agentType)
	return status, nil
}

// GetAgentStatus returns one agent's snapshot.
func (o *Orchestrator) GetAgentStatus(id string) (supervisor.AgentStatus, error) {
	return o.sup.GetAgentStatus(id)
}

// ListAgents returns every ever-spawned agent, terminated ones included.
func (o *Orchestrator) ListAgents() []supervisor.AgentStatus {
	return o.sup.ListAgents()
}

// TerminateAgent moves an agent to the terminated state.
func (o *Orchestrator) TerminateAgent(id string) error {
	return o.sup.TerminateAgent(id)
}

// ============================================================================
// TASK OPERATIONS
// ============================================================================

// TaskResult is the recovered outcome of RunTask. Lookup and validation
// failures land here as Success=false instead of propagating.
type TaskResult struct {
	TaskID   string        `json:"task_id,omitempty"`
	Success  bool          `json:"success"`
	Output   string        `json:"output,omitempty"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RunTask distributes a task, runs it on an agent of the first resolvable
// assigned type, and records progress throughout. Failures are recovered
// into the result; RunTask never returns an error to the caller.
func (o *Orchestrator) RunTask(ctx context.Context, task distributor.TaskDefinition) TaskResult {
	start := time.Now()
	fail := func(taskID string, err error) TaskResult {
		if taskID != "" {
			_ = o.dist.CompleteTask(taskID, err.Error())
		}
		return TaskResult{
			TaskID:   taskID,
			Success:  false,
			Error:    err.Error(),
			Duration: time.Since(start),
		}
	}

	taskID, err := o.dist.DistributeTask(task)
	if err != nil {
		return fail("", err)
	}
	o.obs.GetMetrics().RecordTaskDistributed(ctx, len(task.AssignedAgents))

	progress, err := o.dist.GetTaskProgress(taskID)
	if err != nil {
		return fail(taskID, err)
	}
	agentType := progress.AssignedAgents[0]

	agentStatus, err := o.leaseAgent(ctx, agentType)
	if err != nil {
		return fail(taskID, err)
	}
	if err := o.sup.RecordTaskStart(agentStatus.ID, task.Name); err != nil {
		return fail(taskID, err)
	}

	timeout := time.Duration(o.cfg.Orchestrator.TaskTimeout) * time.Second
	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := o.runner.Run(runCtx, RunRequest{
		Agent:  agentType,
		Prompt: task.Description,
		Tools:  o.catalogTools(agentType),
		Handle: func(p float64) {
			_ = o.dist.ReportProgress(taskID, agentType, p)
			_ = o.sup.UpdateProgress(agentStatus.ID, p)
		},
	})
	duration := time.Since(start)
	o.obs.GetMetrics().RecordTaskRun(ctx, agentType, duration, err)

	switch {
	case err != nil:
		_ = o.sup.RecordTaskDone(agentStatus.ID, false)
		return fail(taskID, err)
	case !result.Success:
		_ = o.sup.RecordTaskDone(agentStatus.ID, false)
		return fail(taskID, fmt.Errorf("%s", result.Error))
	}

	_ = o.sup.RecordTaskDone(agentStatus.ID, true)
	_ = o.dist.CompleteTask(taskID, "")
	o.persistTask(ctx, taskID)

	return TaskResult{
		TaskID:   taskID,
		Success:  true,
		Output:   result.Output,
		Duration: duration,
	}
}

// DistributeTask exposes validation-and-track without running anything.
func (o *Orchestrator) DistributeTask(ctx context.Context, task distributor.TaskDefinition) (string, error) {
	taskID, err := o.dist.DistributeTask(task)
	if err != nil {
		return "", err
	}
	o.obs.GetMetrics().RecordTaskDistributed(ctx, len(task.AssignedAgents))
	return taskID, nil
}

// GetTaskProgress returns a task's latest snapshot.
func (o *Orchestrator) GetTaskProgress(taskID string) (*distributor.TaskProgress, error) {
	return o.dist.GetTaskProgress(taskID)
}

// ListTasks returns every tracked task.
func (o *Orchestrator) ListTasks() []*distributor.TaskProgress {
	return o.dist.ListTasks()
}

// leaseAgent reuses an existing non-terminated agent of the type or
// spawns one.
func (o *Orchestrator) leaseAgent(ctx context.Context, agentType string) (supervisor.AgentStatus, error) {
	existing := o.sup.FindByType(agentType)
	for _, status := range existing {
		if status.State == supervisor.StateIdle || status.State == supervisor.StateActive {
			return status, nil
		}
	}
	return o.SpawnAgent(ctx, agentType, nil)
}

func (o *Orchestrator) catalogTools(agentType string) []string {
	def, err := o.catalog.Get(agentType)
	if err != nil {
		return nil
	}
	return def.ToolNames
}

func (o *Orchestrator) persistTask(ctx context.Context, taskID string) {
	if o.history == nil {
		return
	}
	progress, err := o.dist.GetTaskProgress(taskID)
	if err != nil {
		return
	}
	if err := o.history.SaveTaskProgress(ctx, progress); err != nil {
		o.logger.Warn("Failed to persist task progress", "task_id", taskID, "error", err)
	}
}

// ============================================================================
// WORKFLOW OPERATIONS
// ============================================================================

// CreateWorkflow validates and registers a workflow definition.
func (o *Orchestrator) CreateWorkflow(cfg config.WorkflowConfig) (*workflow.Definition, error) {
	return o.wf.CreateWorkflow(cfg)
}

// GetWorkflow returns a workflow definition.
func (o *Orchestrator) GetWorkflow(id string) (*workflow.Definition, error) {
	return o.wf.GetWorkflow(id)
}

// ListWorkflows returns every registered workflow.
func (o *Orchestrator) ListWorkflows() []*workflow.Definition {
	return o.wf.ListWorkflows()
}

// ExecuteWorkflow runs a workflow, holding a slot in the concurrency
// semaphore for the duration. Step failures propagate as errors.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, workflowID string) (*workflow.Result, error) {
	select {
	case o.wfSem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-o.wfSem }()

	start := time.Now()
	result, err := o.wf.Execute(ctx, workflowID)
	o.obs.GetMetrics().RecordWorkflowExecution(ctx, workflowID, time.Since(start), err)
	o.persistExecutions(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) persistExecutions(ctx context.Context, workflowID string) {
	if o.history == nil {
		return
	}
	def, err := o.wf.GetWorkflow(workflowID)
	if err != nil || len(def.History) == 0 {
		return
	}
	latest := def.History[len(def.History)-1]
	if err := o.history.SaveExecution(ctx, latest); err != nil {
		o.logger.Warn("Failed to persist execution",
			"workflow_id", workflowID, "execution_id", latest.ID, "error", err)
	}
}

// runStep adapts the task runner to the workflow step contract.
func (o *Orchestrator) runStep(ctx context.Context, step workflow.Step) (workflow.StepResult, error) {
	toolNames := step.Tools
	if len(toolNames) == 0 {
		toolNames = o.catalogTools(step.Agent)
	}
	if !o.catalog.Has(step.Agent) {
		return workflow.StepResult{}, core.NewNotFoundError("agent type", step.Agent)
	}

	result, err := o.runner.Run(ctx, RunRequest{
		Agent:  step.Agent,
		Prompt: step.Prompt,
		Tools:  toolNames,
	})
	if err != nil {
		return workflow.StepResult{}, err
	}
	return workflow.StepResult{
		Success:   result.Success,
		Output:    result.Output,
		Error:     result.Error,
		Artifacts: result.Artifacts,
	}, nil
}

// ============================================================================
// TOOL OPERATIONS
// ============================================================================

// ExecuteTool dispatches a tool call and records the outcome.
func (o *Orchestrator) ExecuteTool(ctx context.Context, name string, args map[string]any) (tools.ToolResult, error) {
	result, err := o.tools.Execute(ctx, name, args)
	o.obs.GetMetrics().RecordToolExecution(ctx, name, result.ExecutionTime, err)
	o.bus.Publish(events.NewToolCalled(name, result.Success, result.ExecutionTime))
	return result, err
}

// ListTools returns every registered tool.
func (o *Orchestrator) ListTools() []tools.ToolInfo {
	return o.tools.List()
}

// ============================================================================
// STATUS
// ============================================================================

// Status is a point-in-time snapshot of the engine.
type Status struct {
	Uptime           time.Duration `json:"uptime"`
	AgentTypes       int           `json:"agent_types"`
	Agents           int           `json:"agents"`
	ActiveTasks      int           `json:"active_tasks"`
	TotalTasks       int           `json:"total_tasks"`
	Workflows        int           `json:"workflows"`
	ActiveExecutions int           `json:"active_executions"`
	Tools            int           `json:"tools"`
	EventsDropped    uint64        `json:"events_dropped"`
}

// Status reports engine-wide counters.
func (o *Orchestrator) Status() Status {
	return Status{
		Uptime:           time.Since(o.startedAt),
		AgentTypes:       o.catalog.Count(),
		Agents:           o.sup.Count(),
		ActiveTasks:      o.dist.ActiveCount(),
		TotalTasks:       o.dist.Count(),
		Workflows:        o.wf.Count(),
		ActiveExecutions: o.wf.ActiveExecutions(),
		Tools:            o.tools.Count(),
		EventsDropped:    o.bus.DroppedCount(),
	}
}

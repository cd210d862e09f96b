package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/events"
)

// RunStepFunc invokes the orchestrated-task primitive for one step and
// blocks until it returns.
type RunStepFunc func(ctx context.Context, step Step) (StepResult, error)

// ============================================================================
// RUNNER
// ============================================================================

// Runner owns workflow definitions and runs their executions. Each
// execution is tracked in the active map only while in flight; the
// entry is removed on every exit path.
type Runner struct {
	run             RunStepFunc
	bus             *events.Bus
	logger          *slog.Logger
	tracer          trace.Tracer
	defaultStepTime time.Duration

	mu        sync.RWMutex
	workflows map[string]*Definition
	active    map[string]*Execution
}

// NewRunner creates a workflow runner. defaultStepTimeout applies to
// steps that declare none.
func NewRunner(run RunStepFunc, bus *events.Bus, defaultStepTimeout time.Duration, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		run:             run,
		bus:             bus,
		logger:          logger,
		tracer:          noop.NewTracerProvider().Tracer("workflow"),
		defaultStepTime: defaultStepTimeout,
		workflows:       make(map[string]*Definition),
		active:          make(map[string]*Execution),
	}
}

// SetTracer replaces the no-op tracer so executions and steps record
// spans.
func (r *Runner) SetTracer(tracer trace.Tracer) {
	if tracer != nil {
		r.tracer = tracer
	}
}

// CreateWorkflow validates a workflow configuration and registers the
// definition. Dependency references are checked for both modes, so an
// unknown or cyclic reference fails at creation rather than mid-run.
func (r *Runner) CreateWorkflow(cfg config.WorkflowConfig) (*Definition, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, core.NewValidationError("workflow", "definition", err.Error())
	}

	steps := make([]Step, 0, len(cfg.Steps))
	for _, sc := range cfg.Steps {
		steps = append(steps, Step{
			ID:           sc.ID,
			Agent:        sc.Agent,
			Prompt:       sc.Prompt,
			Dependencies: append([]string(nil), sc.DependsOn...),
			Timeout:      time.Duration(sc.Timeout) * time.Second,
			Tools:        append([]string(nil), sc.Tools...),
		})
	}
	if _, err := newDepGraph(steps); err != nil {
		return nil, err
	}

	def := &Definition{
		ID:          core.NewWorkflowID(),
		Name:        cfg.Name,
		Description: cfg.Description,
		Mode:        ExecutionMode(cfg.Mode),
		MaxParallel: cfg.MaxParallel,
		Steps:       steps,
		Status:      StatusIdle,
		CreatedAt:   time.Now(),
	}
	if def.Mode == "" {
		def.Mode = ModeSequential
	}

	r.mu.Lock()
	r.workflows[def.ID] = def
	r.mu.Unlock()

	r.logger.Info("Created workflow",
		"workflow_id", def.ID, "name", def.Name, "mode", def.Mode, "steps", len(steps))
	return def, nil
}

// GetWorkflow returns a definition by id.
func (r *Runner) GetWorkflow(id string) (*Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.workflows[id]
	if !ok {
		return nil, core.NewNotFoundError("workflow", id)
	}
	return def, nil
}

// ListWorkflows returns every definition sorted by creation time.
func (r *Runner) ListWorkflows() []*Definition {
	r.mu.RLock()
	out := make([]*Definition, 0, len(r.workflows))
	for _, def := range r.workflows {
		out = append(out, def)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ActiveExecutions returns how many executions are in flight.
func (r *Runner) ActiveExecutions() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.active)
}

// Count returns the number of registered workflows.
func (r *Runner) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workflows)
}

// Execute runs a workflow to completion. Step failures fail the whole
// workflow and propagate as an error; the failed execution is still
// recorded in the definition's history.
func (r *Runner) Execute(ctx context.Context, workflowID string) (*Result, error) {
	r.mu.Lock()
	def, ok := r.workflows[workflowID]
	if !ok {
		r.mu.Unlock()
		return nil, core.NewNotFoundError("workflow", workflowID)
	}
	exec := &Execution{
		ID:         core.NewExecutionID(),
		WorkflowID: workflowID,
		Status:     StatusRunning,
		StartedAt:  time.Now(),
	}
	def.Status = StatusRunning
	r.active[exec.ID] = exec
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.active, exec.ID)
		r.mu.Unlock()
	}()

	ctx, span := r.tracer.Start(ctx, "workflow.execute",
		trace.WithAttributes(
			attribute.String("workflow.id", workflowID),
			attribute.String("workflow.execution_id", exec.ID),
			attribute.String("workflow.mode", string(def.Mode)),
		),
	)
	defer span.End()

	r.logger.Info("Starting workflow execution",
		"workflow_id", workflowID, "execution_id", exec.ID, "mode", def.Mode)
	r.bus.Publish(events.NewWorkflowStarted(workflowID, exec.ID, len(def.Steps)))

	var runErr error
	switch def.Mode {
	case ModeDAG:
		runErr = r.executeDAG(ctx, def, exec)
	default:
		runErr = r.executeSequential(ctx, def, exec)
	}

	exec.CompletedAt = time.Now()
	exec.Duration = exec.CompletedAt.Sub(exec.StartedAt)

	r.mu.Lock()
	if runErr != nil {
		exec.Status = StatusFailed
		def.Status = StatusFailed
	} else {
		exec.Status = StatusCompleted
		def.Status = StatusCompleted
	}
	def.History = append(def.History, exec)
	r.mu.Unlock()

	if runErr != nil {
		span.RecordError(runErr)
		span.SetStatus(codes.Error, runErr.Error())
		return nil, runErr
	}

	r.bus.Publish(events.NewWorkflowCompleted(workflowID, exec.ID, exec.Duration))
	var outputs []string
	for _, se := range exec.Steps {
		if se.Output != "" {
			outputs = append(outputs, se.Output)
		}
	}
	return &Result{
		ExecutionID: exec.ID,
		Success:     true,
		Output:      strings.Join(outputs, "\n"),
		Artifacts:   exec.Artifacts,
		Duration:    exec.Duration,
	}, nil
}

// ============================================================================
// SEQUENTIAL EXECUTION
// ============================================================================

// executeSequential runs steps strictly in declaration order. On the
// first failure no further steps execute and no records are created for
// them.
func (r *Runner) executeSequential(ctx context.Context, def *Definition, exec *Execution) error {
	for _, step := range def.Steps {
		se, artifacts := r.runStep(ctx, exec, step)
		exec.Steps = append(exec.Steps, se)
		exec.Artifacts = append(exec.Artifacts, artifacts...)
		if se.Status != StepCompleted {
			r.bus.Publish(events.NewWorkflowFailed(def.ID, exec.ID, step.ID, se.Error))
			return core.NewStepExecutionError(def.ID, step.ID, step.Agent, fmt.Errorf("%s", se.Error))
		}
	}
	return nil
}

// ============================================================================
// DAG EXECUTION
// ============================================================================

// executeDAG schedules steps by dependency readiness with at most
// MaxParallel steps in flight. The first failure skips every transitive
// dependent and fails the workflow once in-flight steps drain.
func (r *Runner) executeDAG(ctx context.Context, def *Definition, exec *Execution) error {
	graph, err := newDepGraph(def.Steps)
	if err != nil {
		return err
	}
	stepsByID := make(map[string]Step, len(def.Steps))
	for _, step := range def.Steps {
		stepsByID[step.ID] = step
	}

	maxParallel := def.MaxParallel
	if maxParallel <= 0 {
		maxParallel = 1
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		sem       = make(chan struct{}, maxParallel)
		scheduled = make(map[string]bool, len(def.Steps))
		skipped   = make(map[string]bool)
		firstFail *StepExecution
	)

	for {
		mu.Lock()
		failed := firstFail != nil
		mu.Unlock()
		if failed {
			break
		}

		ready := graph.Ready(mergeSets(scheduled, skipped))
		if len(ready) == 0 {
			mu.Lock()
			pending := len(exec.Steps)+len(skipped) < len(def.Steps)
			mu.Unlock()
			if !pending {
				break
			}
			// In-flight steps must finish before more become ready.
			wg.Wait()
			ready = graph.Ready(mergeSets(scheduled, skipped))
			if len(ready) == 0 {
				break
			}
		}

		for _, id := range ready {
			scheduled[id] = true
			step := stepsByID[id]
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				se, artifacts := r.runStep(ctx, exec, step)
				mu.Lock()
				exec.Steps = append(exec.Steps, se)
				exec.Artifacts = append(exec.Artifacts, artifacts...)
				if se.Status == StepCompleted {
					graph.MarkComplete(step.ID)
				} else if firstFail == nil {
					firstFail = &se
					for _, dep := range graph.TransitiveDependents(step.ID) {
						skipped[dep] = true
					}
				}
				mu.Unlock()
			}()
		}
		wg.Wait()
	}
	wg.Wait()

	for id := range skipped {
		step := stepsByID[id]
		exec.Steps = append(exec.Steps, StepExecution{
			StepID: step.ID,
			Agent:  step.Agent,
			Status: StepSkipped,
		})
	}

	if firstFail != nil {
		r.bus.Publish(events.NewWorkflowFailed(def.ID, exec.ID, firstFail.StepID, firstFail.Error))
		return core.NewStepExecutionError(def.ID, firstFail.StepID, firstFail.Agent,
			fmt.Errorf("%s", firstFail.Error))
	}
	return nil
}

func mergeSets(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// ============================================================================
// STEP EXECUTION
// ============================================================================

func (r *Runner) runStep(ctx context.Context, exec *Execution, step Step) (StepExecution, []Artifact) {
	ctx, span := r.tracer.Start(ctx, "workflow.step",
		trace.WithAttributes(
			attribute.String("step.id", step.ID),
			attribute.String("step.agent", step.Agent),
		),
	)
	defer span.End()

	se := StepExecution{
		StepID:    step.ID,
		Agent:     step.Agent,
		Status:    StepRunning,
		StartedAt: time.Now(),
	}
	r.bus.Publish(events.NewStepStarted(exec.ID, step.ID, step.Agent))

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = r.defaultStepTime
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := r.run(stepCtx, step)
	se.CompletedAt = time.Now()
	se.Duration = se.CompletedAt.Sub(se.StartedAt)

	var artifacts []Artifact
	switch {
	case err != nil:
		se.Status = StepFailed
		se.Error = err.Error()
	case !result.Success:
		se.Status = StepFailed
		se.Error = result.Error
		if se.Error == "" {
			se.Error = fmt.Sprintf("step %s reported failure", step.ID)
		}
	default:
		se.Status = StepCompleted
		se.Output = result.Output
		artifacts = result.Artifacts
	}

	if se.Status == StepCompleted {
		r.logger.Debug("Step completed",
			"execution_id", exec.ID, "step", step.ID, "duration", se.Duration)
		r.bus.Publish(events.NewStepCompleted(exec.ID, step.ID, step.Agent, se.Duration))
	} else {
		span.SetStatus(codes.Error, se.Error)
		r.logger.Warn("Step failed",
			"execution_id", exec.ID, "step", step.ID, "error", se.Error)
		r.bus.Publish(events.NewStepFailed(exec.ID, step.ID, step.Agent, se.Error))
	}
	return se, artifacts
}

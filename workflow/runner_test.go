package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/oliver-os/conductor/config"
	"github.com/oliver-os/conductor/core"
	"github.com/oliver-os/conductor/events"
)

// ============================================================================
// TEST HELPERS
// ============================================================================

// recordingRun tracks step invocations and fails specific steps.
type recordingRun struct {
	mu      sync.Mutex
	calls   []string
	failing map[string]bool
}

func (r *recordingRun) run(ctx context.Context, step Step) (StepResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, step.ID)
	fail := r.failing[step.ID]
	r.mu.Unlock()
	if fail {
		return StepResult{Success: false, Error: "simulated step failure"}, nil
	}
	return StepResult{
		Success: true,
		Output:  fmt.Sprintf("output of %s", step.ID),
		Artifacts: []Artifact{
			{Name: step.ID + ".txt", Type: "text", Content: "artifact"},
		},
	}, nil
}

func (r *recordingRun) called() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func newTestRunner(t *testing.T, run RunStepFunc) (*Runner, *events.Bus) {
	t.Helper()
	bus := events.NewBus(128)
	t.Cleanup(bus.Close)
	return NewRunner(run, bus, 10*time.Second, nil), bus
}

func sequentialConfig(name string, stepCount int) config.WorkflowConfig {
	cfg := config.WorkflowConfig{Name: name, Mode: "sequential"}
	for i := 1; i <= stepCount; i++ {
		cfg.Steps = append(cfg.Steps, config.WorkflowStepConfig{
			ID:     fmt.Sprintf("step-%d", i),
			Agent:  "code-generator",
			Prompt: fmt.Sprintf("do part %d", i),
		})
	}
	return cfg
}

// ============================================================================
// CREATE
// ============================================================================

func TestCreateWorkflow(t *testing.T) {
	rec := &recordingRun{}
	r, _ := newTestRunner(t, rec.run)

	t.Run("valid config registers a definition", func(t *testing.T) {
		def, err := r.CreateWorkflow(sequentialConfig("build", 3))
		require.NoError(t, err)
		assert.NotEmpty(t, def.ID)
		assert.Equal(t, ModeSequential, def.Mode)
		assert.Equal(t, StatusIdle, def.Status)
		assert.Len(t, def.Steps, 3)
		assert.Equal(t, 1, r.Count())
	})

	t.Run("missing name fails validation", func(t *testing.T) {
		_, err := r.CreateWorkflow(config.WorkflowConfig{
			Steps: []config.WorkflowStepConfig{{Agent: "code-generator", Prompt: "x"}},
		})
		assert.True(t, errors.Is(err, core.ErrValidation))
	})

	t.Run("cyclic dependencies fail at creation", func(t *testing.T) {
		_, err := r.CreateWorkflow(config.WorkflowConfig{
			Name: "cyclic",
			Mode: "dag",
			Steps: []config.WorkflowStepConfig{
				{ID: "a", Agent: "code-generator", Prompt: "x", DependsOn: []string{"b"}},
				{ID: "b", Agent: "code-generator", Prompt: "x", DependsOn: []string{"a"}},
			},
		})
		assert.True(t, errors.Is(err, core.ErrValidation))
	})

	t.Run("unknown dependency fails even in sequential mode", func(t *testing.T) {
		_, err := r.CreateWorkflow(config.WorkflowConfig{
			Name: "dangling",
			Steps: []config.WorkflowStepConfig{
				{ID: "a", Agent: "code-generator", Prompt: "x", DependsOn: []string{"ghost"}},
			},
		})
		assert.True(t, errors.Is(err, core.ErrValidation))
	})
}

// ============================================================================
// SEQUENTIAL EXECUTION
// ============================================================================

func TestExecuteSequential(t *testing.T) {
	t.Run("all steps run in declaration order", func(t *testing.T) {
		rec := &recordingRun{}
		r, _ := newTestRunner(t, rec.run)
		def, err := r.CreateWorkflow(sequentialConfig("ordered", 4))
		require.NoError(t, err)

		result, err := r.Execute(context.Background(), def.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, []string{"step-1", "step-2", "step-3", "step-4"}, rec.called())
		assert.Contains(t, result.Output, "output of step-1")
		assert.Len(t, result.Artifacts, 4)

		got, err := r.GetWorkflow(def.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, got.Status)
		require.Len(t, got.History, 1)
		assert.Equal(t, StatusCompleted, got.History[0].Status)
		assert.Len(t, got.History[0].Steps, 4)
	})

	t.Run("failure at step k stops the run with k records", func(t *testing.T) {
		rec := &recordingRun{failing: map[string]bool{"step-2": true}}
		r, bus := newTestRunner(t, rec.run)
		sub := bus.Subscribe(events.EventWorkflowFailed)
		defer bus.Unsubscribe(sub)

		def, err := r.CreateWorkflow(sequentialConfig("fragile", 4))
		require.NoError(t, err)

		_, err = r.Execute(context.Background(), def.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrStepExecution))
		assert.Equal(t, []string{"step-1", "step-2"}, rec.called())

		got, _ := r.GetWorkflow(def.ID)
		assert.Equal(t, StatusFailed, got.Status)
		require.Len(t, got.History, 1)
		exec := got.History[0]
		assert.Equal(t, StatusFailed, exec.Status)
		require.Len(t, exec.Steps, 2)
		assert.Equal(t, StepCompleted, exec.Steps[0].Status)
		assert.Equal(t, StepFailed, exec.Steps[1].Status)
		assert.Equal(t, "simulated step failure", exec.Steps[1].Error)

		ev := <-sub.C()
		failed, ok := ev.(events.WorkflowFailed)
		require.True(t, ok)
		assert.Equal(t, "step-2", failed.StepID)
	})

	t.Run("unknown workflow id is a not-found error", func(t *testing.T) {
		rec := &recordingRun{}
		r, _ := newTestRunner(t, rec.run)
		_, err := r.Execute(context.Background(), "wf-unknown")
		assert.True(t, errors.Is(err, core.ErrNotFound))
	})
}

// ============================================================================
// DAG EXECUTION
// ============================================================================

func diamondConfig(name string) config.WorkflowConfig {
	return config.WorkflowConfig{
		Name:        name,
		Mode:        "dag",
		MaxParallel: 2,
		Steps: []config.WorkflowStepConfig{
			{ID: "fetch", Agent: "integration-specialist", Prompt: "fetch data"},
			{ID: "analyze", Agent: "thought-processor", Prompt: "analyze", DependsOn: []string{"fetch"}},
			{ID: "summarize", Agent: "ai-specialist", Prompt: "summarize", DependsOn: []string{"fetch"}},
			{ID: "report", Agent: "code-generator", Prompt: "report", DependsOn: []string{"analyze", "summarize"}},
		},
	}
}

func TestExecuteDAG(t *testing.T) {
	t.Run("diamond runs every step respecting dependencies", func(t *testing.T) {
		rec := &recordingRun{}
		r, _ := newTestRunner(t, rec.run)
		def, err := r.CreateWorkflow(diamondConfig("diamond"))
		require.NoError(t, err)

		result, err := r.Execute(context.Background(), def.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)

		calls := rec.called()
		require.Len(t, calls, 4)
		assert.Equal(t, "fetch", calls[0])
		assert.Equal(t, "report", calls[3])
		assert.ElementsMatch(t, []string{"analyze", "summarize"}, calls[1:3])
	})

	t.Run("failed step skips its transitive dependents", func(t *testing.T) {
		rec := &recordingRun{failing: map[string]bool{"analyze": true}}
		r, _ := newTestRunner(t, rec.run)
		def, err := r.CreateWorkflow(diamondConfig("broken-diamond"))
		require.NoError(t, err)

		_, err = r.Execute(context.Background(), def.ID)
		require.Error(t, err)
		assert.True(t, errors.Is(err, core.ErrStepExecution))
		assert.NotContains(t, rec.called(), "report")

		got, _ := r.GetWorkflow(def.ID)
		require.Len(t, got.History, 1)
		byID := make(map[string]StepStatus)
		for _, se := range got.History[0].Steps {
			byID[se.StepID] = se.Status
		}
		assert.Equal(t, StepCompleted, byID["fetch"])
		assert.Equal(t, StepFailed, byID["analyze"])
		assert.Equal(t, StepSkipped, byID["report"])
	})

	t.Run("independent chains keep running after a failure elsewhere", func(t *testing.T) {
		rec := &recordingRun{failing: map[string]bool{"left": true}}
		r, _ := newTestRunner(t, rec.run)
		def, err := r.CreateWorkflow(config.WorkflowConfig{
			Name:        "parallel-chains",
			Mode:        "dag",
			MaxParallel: 2,
			Steps: []config.WorkflowStepConfig{
				{ID: "left", Agent: "code-generator", Prompt: "x"},
				{ID: "right", Agent: "code-generator", Prompt: "x"},
				{ID: "left-child", Agent: "code-generator", Prompt: "x", DependsOn: []string{"left"}},
			},
		})
		require.NoError(t, err)

		_, err = r.Execute(context.Background(), def.ID)
		require.Error(t, err)

		// left and right are scheduled in the same batch; left-child is
		// skipped because its only dependency failed.
		calls := rec.called()
		assert.Contains(t, calls, "right")
		assert.NotContains(t, calls, "left-child")
	})
}

// ============================================================================
// BOOKKEEPING
// ============================================================================

func TestRunnerBookkeeping(t *testing.T) {
	rec := &recordingRun{}
	r, _ := newTestRunner(t, rec.run)

	first, err := r.CreateWorkflow(sequentialConfig("first", 1))
	require.NoError(t, err)
	_, err = r.CreateWorkflow(sequentialConfig("second", 1))
	require.NoError(t, err)

	listed := r.ListWorkflows()
	require.Len(t, listed, 2)
	assert.Equal(t, "first", listed[0].Name)

	assert.Equal(t, 0, r.ActiveExecutions())

	_, err = r.Execute(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, r.ActiveExecutions())

	_, err = r.Execute(context.Background(), first.ID)
	require.NoError(t, err)
	got, _ := r.GetWorkflow(first.ID)
	assert.Len(t, got.History, 2)
}

// ============================================================================
// TRACING
// ============================================================================

func TestExecuteTracing(t *testing.T) {
	rec := &recordingRun{}
	r, _ := newTestRunner(t, rec.run)

	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	r.SetTracer(tp.Tracer("test"))

	def, err := r.CreateWorkflow(sequentialConfig("traced", 2))
	require.NoError(t, err)
	_, err = r.Execute(context.Background(), def.ID)
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)

	names := make(map[string]int)
	for _, span := range spans {
		names[span.Name()]++
	}
	assert.Equal(t, 2, names["workflow.step"])
	assert.Equal(t, 1, names["workflow.execute"])

	// Step spans end before the execution span and parent under it.
	last := spans[len(spans)-1]
	assert.Equal(t, "workflow.execute", last.Name())
	for _, span := range spans[:2] {
		assert.Equal(t, last.SpanContext().SpanID(), span.Parent().SpanID())
	}
}

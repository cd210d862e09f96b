package orchestrator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/oliver-os/conductor/workflow"
)

// ============================================================================
// TASK RUNNER BOUNDARY
// ============================================================================

// RunRequest is one invocation of the orchestrated-task primitive.
type RunRequest struct {
	Agent  string
	Prompt string
	Tools  []string

	// Handle receives intermediate progress in [0,100] while the run
	// is in flight. May be nil.
	Handle func(progress float64)
}

// RunResult is what the primitive returns. Error is set when Success is
// false.
type RunResult struct {
	Success   bool
	Output    string
	Error     string
	Artifacts []workflow.Artifact
}

// TaskRunner executes a single agent prompt. The engine treats it as an
// opaque external collaborator.
type TaskRunner interface {
	Run(ctx context.Context, req RunRequest) (*RunResult, error)
}

// ============================================================================
// SIMULATED RUNNER
// ============================================================================

// SimulatedRunner produces canned per-agent-type results without calling
// an external service. Latency, when set, spreads progress reports over
// the run.
type SimulatedRunner struct {
	Latency time.Duration
}

// NewSimulatedRunner creates a runner with no artificial latency.
func NewSimulatedRunner() *SimulatedRunner {
	return &SimulatedRunner{}
}

// Run implements TaskRunner.
func (r *SimulatedRunner) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	steps := []float64{25, 50, 75, 100}
	pause := r.Latency / time.Duration(len(steps))
	for _, p := range steps {
		if pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(pause):
			}
		}
		if req.Handle != nil {
			req.Handle(p)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	output, artifacts := simulatedOutput(req.Agent, req.Prompt)
	return &RunResult{
		Success:   true,
		Output:    output,
		Artifacts: artifacts,
	}, nil
}

func simulatedOutput(agentType, prompt string) (string, []workflow.Artifact) {
	summary := prompt
	if len(summary) > 60 {
		summary = summary[:60] + "..."
	}

	switch agentType {
	case "code-generator":
		return fmt.Sprintf("Generated code for: %s (2 files, ~200 lines, test coverage 85%%)", summary),
			[]workflow.Artifact{
				{Name: "src/generated/example.go", Type: "code"},
				{Name: "src/generated/example_test.go", Type: "code"},
			}
	case "bureaucracy-disruptor":
		return fmt.Sprintf("Identified 2 inefficiencies for: %s (redundant approvals, manual data entry); projected 40%% improvement", summary),
			[]workflow.Artifact{
				{Name: "inefficiency-report", Type: "report"},
			}
	case "thought-processor":
		return fmt.Sprintf("Processed thought: %s (sentiment positive, 2 concepts extracted, confidence 0.92)", summary),
			[]workflow.Artifact{
				{Name: "thought-analysis", Type: "analysis"},
			}
	case "collaboration-coordinator":
		return fmt.Sprintf("Coordinated workflow for: %s (3 active agents, 7 tasks completed, 25%% efficiency gain)", summary),
			nil
	case "frontend-specialist":
		return fmt.Sprintf("Built UI components for: %s", summary),
			[]workflow.Artifact{
				{Name: "components/View.tsx", Type: "code"},
			}
	case "backend-specialist":
		return fmt.Sprintf("Implemented API endpoints for: %s", summary),
			[]workflow.Artifact{
				{Name: "api/handlers.go", Type: "code"},
			}
	case "database-architect":
		return fmt.Sprintf("Designed schema for: %s (3 tables, 2 indexes)", summary),
			[]workflow.Artifact{
				{Name: "migrations/001_init.sql", Type: "schema"},
			}
	case "ai-specialist":
		return fmt.Sprintf("Configured model pipeline for: %s", summary),
			[]workflow.Artifact{
				{Name: "pipeline-config", Type: "config"},
			}
	case "integration-specialist":
		return fmt.Sprintf("Wired integrations for: %s", summary),
			nil
	default:
		return fmt.Sprintf("Completed: %s", strings.TrimSpace(summary)), nil
	}
}

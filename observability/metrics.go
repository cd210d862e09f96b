package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/oliver-os/conductor/config"
)

func InitMetrics(ctx context.Context, cfg config.MetricsConfig) (Metrics, error) {
	if !cfg.Enabled {
		return NoopMetrics{}, nil
	}

	promExporter, err := prometheus.New()
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(promExporter),
	)

	meter := meterProvider.Meter("conductor")

	tasksDistributed, err := meter.Int64Counter(
		"conductor_tasks_distributed_total",
		metric.WithDescription("Total tasks distributed to agents"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks distributed counter: %w", err)
	}

	taskDuration, err := meter.Float64Histogram(
		"conductor_task_duration_seconds",
		metric.WithDescription("Orchestrated task duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task duration histogram: %w", err)
	}

	taskErrors, err := meter.Int64Counter(
		"conductor_task_errors_total",
		metric.WithDescription("Total failed orchestrated tasks"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task errors counter: %w", err)
	}

	toolDuration, err := meter.Float64Histogram(
		"conductor_tool_execution_duration_seconds",
		metric.WithDescription("Tool execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool duration histogram: %w", err)
	}

	toolCalls, err := meter.Int64Counter(
		"conductor_tool_calls_total",
		metric.WithDescription("Total tool calls"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool calls counter: %w", err)
	}

	toolErrors, err := meter.Int64Counter(
		"conductor_tool_errors_total",
		metric.WithDescription("Total tool errors"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool errors counter: %w", err)
	}

	workflowDuration, err := meter.Float64Histogram(
		"conductor_workflow_duration_seconds",
		metric.WithDescription("Workflow execution duration in seconds"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow duration histogram: %w", err)
	}

	workflowRuns, err := meter.Int64Counter(
		"conductor_workflow_executions_total",
		metric.WithDescription("Total workflow executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow executions counter: %w", err)
	}

	workflowErrors, err := meter.Int64Counter(
		"conductor_workflow_errors_total",
		metric.WithDescription("Total failed workflow executions"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create workflow errors counter: %w", err)
	}

	agentsSpawned, err := meter.Int64Counter(
		"conductor_agents_spawned_total",
		metric.WithDescription("Total agents spawned"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create agents spawned counter: %w", err)
	}

	return NewPrometheusMetrics(
		tasksDistributed,
		taskDuration,
		taskErrors,
		toolDuration,
		toolCalls,
		toolErrors,
		workflowDuration,
		workflowRuns,
		workflowErrors,
		agentsSpawned,
	), nil
}

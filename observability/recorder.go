package observability

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	globalMetrics Metrics = NoopMetrics{}
	metricsMu     sync.RWMutex
)

// Metrics records engine-level measurements. Implementations must be
// safe for concurrent use.
type Metrics interface {
	RecordTaskDistributed(ctx context.Context, agents int)
	RecordTaskRun(ctx context.Context, agentType string, duration time.Duration, err error)
	RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error)
	RecordWorkflowExecution(ctx context.Context, workflow string, duration time.Duration, err error)
	RecordAgentSpawn(ctx context.Context, agentType string)
}

type PrometheusMetrics struct {
	tasksDistributed metric.Int64Counter
	taskDuration     metric.Float64Histogram
	taskErrorsTotal  metric.Int64Counter

	toolDuration    metric.Float64Histogram
	toolCallsTotal  metric.Int64Counter
	toolErrorsTotal metric.Int64Counter

	workflowDuration    metric.Float64Histogram
	workflowRunsTotal   metric.Int64Counter
	workflowErrorsTotal metric.Int64Counter

	agentsSpawnedTotal metric.Int64Counter
}

func NewPrometheusMetrics(
	tasksDistributed metric.Int64Counter,
	taskDuration metric.Float64Histogram,
	taskErrorsTotal metric.Int64Counter,
	toolDuration metric.Float64Histogram,
	toolCallsTotal metric.Int64Counter,
	toolErrorsTotal metric.Int64Counter,
	workflowDuration metric.Float64Histogram,
	workflowRunsTotal metric.Int64Counter,
	workflowErrorsTotal metric.Int64Counter,
	agentsSpawnedTotal metric.Int64Counter,
) *PrometheusMetrics {
	return &PrometheusMetrics{
		tasksDistributed:    tasksDistributed,
		taskDuration:        taskDuration,
		taskErrorsTotal:     taskErrorsTotal,
		toolDuration:        toolDuration,
		toolCallsTotal:      toolCallsTotal,
		toolErrorsTotal:     toolErrorsTotal,
		workflowDuration:    workflowDuration,
		workflowRunsTotal:   workflowRunsTotal,
		workflowErrorsTotal: workflowErrorsTotal,
		agentsSpawnedTotal:  agentsSpawnedTotal,
	}
}

func (m *PrometheusMetrics) RecordTaskDistributed(ctx context.Context, agents int) {
	if m == nil || m.tasksDistributed == nil {
		return
	}
	m.tasksDistributed.Add(ctx, 1,
		metric.WithAttributes(attribute.Int("agents", agents)))
}

func (m *PrometheusMetrics) RecordTaskRun(ctx context.Context, agentType string, duration time.Duration, err error) {
	if m == nil || m.taskDuration == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("agent_type", agentType),
	}
	m.taskDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	if err != nil && m.taskErrorsTotal != nil {
		m.taskErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
	if m == nil || m.toolDuration == nil || m.toolCallsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("tool", tool),
	}
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.toolCallsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil && m.toolErrorsTotal != nil {
		m.toolErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordWorkflowExecution(ctx context.Context, workflow string, duration time.Duration, err error) {
	if m == nil || m.workflowDuration == nil || m.workflowRunsTotal == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("workflow", workflow),
	}
	m.workflowDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
	m.workflowRunsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	if err != nil && m.workflowErrorsTotal != nil {
		m.workflowErrorsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}

func (m *PrometheusMetrics) RecordAgentSpawn(ctx context.Context, agentType string) {
	if m == nil || m.agentsSpawnedTotal == nil {
		return
	}
	m.agentsSpawnedTotal.Add(ctx, 1,
		metric.WithAttributes(attribute.String("agent_type", agentType)))
}

func SetGlobalMetrics(m Metrics) {
	metricsMu.Lock()
	defer metricsMu.Unlock()
	globalMetrics = m
}

func GetGlobalMetrics() Metrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return globalMetrics
}

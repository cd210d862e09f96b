package observability

import (
	"context"
	"time"
)

// NoopMetrics satisfies Metrics without recording anything. Used when
// metrics are disabled.
type NoopMetrics struct{}

func (NoopMetrics) RecordTaskDistributed(ctx context.Context, agents int) {}

func (NoopMetrics) RecordTaskRun(ctx context.Context, agentType string, duration time.Duration, err error) {
}

func (NoopMetrics) RecordToolExecution(ctx context.Context, tool string, duration time.Duration, err error) {
}

func (NoopMetrics) RecordWorkflowExecution(ctx context.Context, workflow string, duration time.Duration, err error) {
}

func (NoopMetrics) RecordAgentSpawn(ctx context.Context, agentType string) {}

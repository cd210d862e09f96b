package core

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// NewAgentID generates a process-unique agent instance identifier of the
// form agent-<unix millis>-<random hex>.
func NewAgentID() string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		// Fall back to a uuid suffix; rand.Read failing is effectively fatal
		// everywhere else anyway.
		return fmt.Sprintf("agent-%d-%s", time.Now().UnixMilli(), uuid.NewString()[:6])
	}
	return fmt.Sprintf("agent-%d-%s", time.Now().UnixMilli(), hex.EncodeToString(buf))
}

// NewTaskID generates a task identifier.
func NewTaskID() string {
	return "task-" + uuid.NewString()
}

// NewWorkflowID generates a workflow identifier.
func NewWorkflowID() string {
	return "workflow-" + uuid.NewString()
}

// NewExecutionID generates a workflow execution identifier.
func NewExecutionID() string {
	return "exec-" + uuid.NewString()
}

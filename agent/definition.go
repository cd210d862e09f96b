// Package agent defines the immutable agent catalog: the specialized worker
// types the orchestrator can spawn and the capabilities they declare.
package agent

// Capability is an enumerated agent capability tag. Matching is done against
// these typed values, never by substring comparison on free-form strings.
type Capability string

const (
	CapCodeGeneration     Capability = "code-generation"
	CapFrontend           Capability = "frontend"
	CapBackend            Capability = "backend"
	CapDatabase           Capability = "database"
	CapAIProcessing       Capability = "ai-processing"
	CapIntegration        Capability = "integration"
	CapThoughtAnalysis    Capability = "thought-analysis"
	CapPatternRecognition Capability = "pattern-recognition"
	CapCoordination       Capability = "coordination"
	CapProcessAutomation  Capability = "process-automation"
)

// Definition is the immutable template for one agent type. Definitions come
// from the static catalog at process start and are never mutated.
type Definition struct {
	ID                string       `json:"id"`
	DisplayName       string       `json:"display_name"`
	Model             string       `json:"model"`
	Instructions      string       `json:"instructions"`
	ToolNames         []string     `json:"tool_names"`
	SpawnableAgents   []string     `json:"spawnable_agents"`
	Capabilities      []Capability `json:"capabilities"`
	IntegrationPoints []string     `json:"integration_points"`
}

// HasCapability reports whether the definition declares the capability.
func (d *Definition) HasCapability(c Capability) bool {
	for _, cap := range d.Capabilities {
		if cap == c {
			return true
		}
	}
	return false
}

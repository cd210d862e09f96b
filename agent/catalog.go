package agent

import (
	"sort"

	"github.com/oliver-os/conductor/core"
)

// Catalog is the static set of agent definitions consumed at startup.
// It is read-only after construction; one catalog instance backs one
// orchestrator.
type Catalog struct {
	defs         map[string]*Definition
	byCapability map[Capability][]*Definition
}

// NewCatalog builds a catalog from explicit definitions.
func NewCatalog(defs []*Definition) *Catalog {
	c := &Catalog{
		defs:         make(map[string]*Definition, len(defs)),
		byCapability: make(map[Capability][]*Definition),
	}
	for _, def := range defs {
		c.defs[def.ID] = def
		for _, cap := range def.Capabilities {
			c.byCapability[cap] = append(c.byCapability[cap], def)
		}
	}
	return c
}

// DefaultCatalog returns the built-in agent roster.
func DefaultCatalog() *Catalog {
	return NewCatalog(coreDefinitions())
}

// Get returns the definition for an agent type.
func (c *Catalog) Get(agentType string) (*Definition, error) {
	def, ok := c.defs[agentType]
	if !ok {
		return nil, core.NewNotFoundError("agent type", agentType)
	}
	return def, nil
}

// Has reports whether the agent type exists.
func (c *Catalog) Has(agentType string) bool {
	_, ok := c.defs[agentType]
	return ok
}

// List returns all definitions sorted by id.
func (c *Catalog) List() []*Definition {
	defs := make([]*Definition, 0, len(c.defs))
	for _, def := range c.defs {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// ByCapability returns the definitions declaring the capability.
func (c *Catalog) ByCapability(cap Capability) []*Definition {
	return c.byCapability[cap]
}

// Count returns the number of agent types.
func (c *Catalog) Count() int {
	return len(c.defs)
}

// coreDefinitions is the agent roster. IDs are stable identifiers used by
// task definitions and workflow steps.
func coreDefinitions() []*Definition {
	return []*Definition{
		{
			ID:                "code-generator",
			DisplayName:       "Code Generator",
			Model:             "openai/gpt-4",
			Instructions:      "Generate high-quality, maintainable code and accompanying tests.",
			ToolNames:         []string{"read_file", "write_file", "execute_command"},
			SpawnableAgents:   []string{"frontend-specialist", "backend-specialist"},
			Capabilities:      []Capability{CapCodeGeneration},
			IntegrationPoints: []string{"version-control", "ci-pipeline"},
		},
		{
			ID:                "bureaucracy-disruptor",
			DisplayName:       "Bureaucracy Disruptor",
			Model:             "openai/gpt-4",
			Instructions:      "Identify and eliminate inefficiencies in processes and workflows.",
			ToolNames:         []string{"retrieve_memory", "store_memory"},
			SpawnableAgents:   []string{"integration-specialist"},
			Capabilities:      []Capability{CapProcessAutomation},
			IntegrationPoints: []string{"workflow-engine"},
		},
		{
			ID:                "thought-processor",
			DisplayName:       "Thought Processor",
			Model:             "openai/gpt-4",
			Instructions:      "Process and analyze thoughts to extract meaningful insights and patterns.",
			ToolNames:         []string{"store_memory", "retrieve_memory", "search_memory"},
			SpawnableAgents:   []string{"ai-specialist"},
			Capabilities:      []Capability{CapThoughtAnalysis, CapPatternRecognition},
			IntegrationPoints: []string{"knowledge-graph", "memory-service"},
		},
		{
			ID:                "collaboration-coordinator",
			DisplayName:       "Collaboration Coordinator",
			Model:             "openai/gpt-4",
			Instructions:      "Coordinate multiple agents and manage collaborative workflows.",
			ToolNames:         []string{"store_memory", "retrieve_memory"},
			SpawnableAgents:   []string{"code-generator", "thought-processor", "bureaucracy-disruptor"},
			Capabilities:      []Capability{CapCoordination},
			IntegrationPoints: []string{"workflow-engine", "event-bus"},
		},
		{
			ID:                "frontend-specialist",
			DisplayName:       "Frontend Specialist",
			Model:             "openai/gpt-4",
			Instructions:      "Build user interface components and client-side application logic.",
			ToolNames:         []string{"read_file", "write_file", "execute_command", "fetch_url"},
			SpawnableAgents:   nil,
			Capabilities:      []Capability{CapFrontend, CapCodeGeneration},
			IntegrationPoints: []string{"design-system", "api-gateway"},
		},
		{
			ID:                "backend-specialist",
			DisplayName:       "Backend Specialist",
			Model:             "openai/gpt-4",
			Instructions:      "Implement server-side services, APIs and business logic.",
			ToolNames:         []string{"read_file", "write_file", "execute_command", "run_query"},
			SpawnableAgents:   []string{"database-architect"},
			Capabilities:      []Capability{CapBackend, CapCodeGeneration},
			IntegrationPoints: []string{"api-gateway", "message-broker"},
		},
		{
			ID:                "database-architect",
			DisplayName:       "Database Architect",
			Model:             "openai/gpt-4",
			Instructions:      "Design schemas, write migrations and optimize queries.",
			ToolNames:         []string{"run_query", "execute_statement", "read_file", "write_file"},
			SpawnableAgents:   nil,
			Capabilities:      []Capability{CapDatabase},
			IntegrationPoints: []string{"primary-database"},
		},
		{
			ID:                "ai-specialist",
			DisplayName:       "AI Specialist",
			Model:             "openai/gpt-4",
			Instructions:      "Handle model-driven processing: extraction, classification, summarization.",
			ToolNames:         []string{"store_memory", "retrieve_memory", "search_memory", "fetch_url"},
			SpawnableAgents:   nil,
			Capabilities:      []Capability{CapAIProcessing, CapPatternRecognition},
			IntegrationPoints: []string{"model-provider", "memory-service"},
		},
		{
			ID:                "integration-specialist",
			DisplayName:       "Integration Specialist",
			Model:             "openai/gpt-4",
			Instructions:      "Connect third-party services and keep external contracts healthy.",
			ToolNames:         []string{"fetch_url", "read_file", "write_file"},
			SpawnableAgents:   nil,
			Capabilities:      []Capability{CapIntegration},
			IntegrationPoints: []string{"third-party-apis", "webhook-relay"},
		},
	}
}

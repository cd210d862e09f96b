package workflow

import (
	"fmt"
	"sort"
	"sync"

	"github.com/oliver-os/conductor/core"
)

// ============================================================================
// DEPENDENCY GRAPH
// ============================================================================

// depGraph tracks step dependencies and readiness during a DAG run.
// Validation catches unknown references and cycles before any step
// executes.
type depGraph struct {
	mu         sync.Mutex
	deps       map[string][]string // step -> prerequisites
	dependents map[string][]string // step -> steps that depend on it
	completed  map[string]bool
	order      []string // declaration order, keeps Ready deterministic
}

// newDepGraph builds and validates the graph for a step list.
func newDepGraph(steps []Step) (*depGraph, error) {
	g := &depGraph{
		deps:       make(map[string][]string, len(steps)),
		dependents: make(map[string][]string, len(steps)),
		completed:  make(map[string]bool, len(steps)),
		order:      make([]string, 0, len(steps)),
	}
	known := make(map[string]bool, len(steps))
	for _, step := range steps {
		if known[step.ID] {
			return nil, core.NewValidationError("workflow", "steps",
				fmt.Sprintf("duplicate step id %q", step.ID))
		}
		known[step.ID] = true
		g.order = append(g.order, step.ID)
	}
	for _, step := range steps {
		for _, dep := range step.Dependencies {
			if !known[dep] {
				return nil, core.NewValidationError("workflow", "dependencies",
					fmt.Sprintf("step %q depends on unknown step %q", step.ID, dep))
			}
			if dep == step.ID {
				return nil, core.NewValidationError("workflow", "dependencies",
					fmt.Sprintf("step %q depends on itself", step.ID))
			}
			g.deps[step.ID] = append(g.deps[step.ID], dep)
			g.dependents[dep] = append(g.dependents[dep], step.ID)
		}
	}
	if cycle := g.findCycle(); cycle != nil {
		return nil, core.NewValidationError("workflow", "dependencies",
			fmt.Sprintf("dependency cycle: %v", cycle))
	}
	return g, nil
}

// findCycle runs a three-color DFS over the dependency edges and returns the
// first cycle found, or nil.
func (g *depGraph) findCycle() []string {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(g.order))
	var cycle []string

	var visit func(id string, path []string) bool
	visit = func(id string, path []string) bool {
		color[id] = gray
		path = append(path, id)
		for _, dep := range g.deps[id] {
			switch color[dep] {
			case gray:
				cycle = append(append([]string(nil), path...), dep)
				return true
			case white:
				if visit(dep, path) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range g.order {
		if color[id] == white {
			if visit(id, nil) {
				return cycle
			}
		}
	}
	return nil
}

// Ready returns the steps whose prerequisites have all completed and
// that are not themselves completed or excluded, in declaration order.
func (g *depGraph) Ready(exclude map[string]bool) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var ready []string
	for _, id := range g.order {
		if g.completed[id] || exclude[id] {
			continue
		}
		ok := true
		for _, dep := range g.deps[id] {
			if !g.completed[dep] {
				ok = false
				break
			}
		}
		if ok {
			ready = append(ready, id)
		}
	}
	return ready
}

// MarkComplete records a finished step.
func (g *depGraph) MarkComplete(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.completed[id] = true
}

// TransitiveDependents returns every step that directly or indirectly
// depends on the given step, sorted for stable reporting.
func (g *depGraph) TransitiveDependents(id string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	seen := make(map[string]bool)
	var walk func(string)
	walk = func(cur string) {
		for _, dep := range g.dependents[cur] {
			if !seen[dep] {
				seen[dep] = true
				walk(dep)
			}
		}
	}
	walk(id)
	out := make([]string, 0, len(seen))
	for dep := range seen {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out
}

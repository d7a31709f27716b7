// Package dag builds and validates the dependency graph of job instances.
//
// The graph is an arena: instances live in a slice and edges are adjacency
// lists of indices. Construction resolves template-level dependency names
// with fan-out semantics (a dependency on a matrix template waits on all of
// its instances), then rejects dangling references and cycles. A Graph that
// survives Build is immutable.
package dag

import (
	"context"

	"github.com/vk/pipewright/internal/ctxlog"
	"github.com/vk/pipewright/internal/matrix"
)

// Graph is the validated, immutable DAG of job instances.
type Graph struct {
	instances []*matrix.Instance
	index     map[string]int
	deps      [][]int
	dependents [][]int
}

// Build constructs the graph from the expanded instances. Template-level
// dependency declarations are resolved against the set of templates that
// produced the instances; every declared name must match at least one
// instance's template.
func Build(ctx context.Context, instances []*matrix.Instance) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	g := &Graph{
		instances:  instances,
		index:      make(map[string]int, len(instances)),
		deps:       make([][]int, len(instances)),
		dependents: make([][]int, len(instances)),
	}

	byTemplate := make(map[string][]int)
	for i, inst := range instances {
		g.index[inst.ID] = i
		byTemplate[inst.Template.Name] = append(byTemplate[inst.Template.Name], i)
	}
	logger.Debug("Graph arena populated.", "instance_count", len(instances))

	for i, inst := range instances {
		for _, depName := range inst.Template.DependsOn {
			targets, ok := byTemplate[depName]
			if !ok {
				return nil, &UnknownDependencyError{Instance: inst.ID, Dependency: depName}
			}
			// Fan-out: one declared name links to every instance of
			// that template.
			for _, t := range targets {
				g.deps[i] = append(g.deps[i], t)
				g.dependents[t] = append(g.dependents[t], i)
			}
		}
	}
	logger.Debug("Dependency linking complete.")

	if err := g.detectCycles(); err != nil {
		return nil, err
	}
	logger.Debug("Cycle detection passed.")

	return g, nil
}

// Len returns the number of instances in the graph.
func (g *Graph) Len() int { return len(g.instances) }

// Instance returns the instance stored at arena index i.
func (g *Graph) Instance(i int) *matrix.Instance { return g.instances[i] }

// IndexOf returns the arena index for an instance identifier.
func (g *Graph) IndexOf(id string) (int, bool) {
	i, ok := g.index[id]
	return i, ok
}

// Deps returns the arena indices the given instance depends on.
func (g *Graph) Deps(i int) []int { return g.deps[i] }

// Dependents returns the arena indices that depend on the given instance.
func (g *Graph) Dependents(i int) []int { return g.dependents[i] }

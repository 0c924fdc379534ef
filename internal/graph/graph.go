package graph

import (
	"context"

	"github.com/vk/bootflow/internal/ctxlog"
	"github.com/vk/bootflow/internal/workflow"
)

// Graph is the validated, immutable dependency graph of one workflow. Edges
// point from a job to the jobs it depends on. All accessors are safe for
// concurrent use because nothing mutates the graph after Build returns.
type Graph struct {
	jobs       map[string]*workflow.Job
	order      []string            // ids in document order
	deps       map[string][]string // job id -> ids it depends on
	dependents map[string][]string // job id -> ids depending on it
	topo       []string
}

// Build validates the workflow's dependency relation and constructs the
// graph. It fails with ErrNoJobs, *DuplicateJobIDError, *UnknownDependencyError
// or *CyclicDependencyError before any job could execute.
func Build(ctx context.Context, wf *workflow.Workflow) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)

	if len(wf.Jobs) == 0 {
		return nil, ErrNoJobs
	}

	g := &Graph{
		jobs:       make(map[string]*workflow.Job, len(wf.Jobs)),
		deps:       make(map[string][]string, len(wf.Jobs)),
		dependents: make(map[string][]string, len(wf.Jobs)),
	}

	for _, job := range wf.Jobs {
		if _, dup := g.jobs[job.ID]; dup {
			return nil, &DuplicateJobIDError{ID: job.ID}
		}
		g.jobs[job.ID] = job
		g.order = append(g.order, job.ID)
	}

	for _, job := range wf.Jobs {
		seen := make(map[string]struct{}, len(job.Needs))
		for _, need := range job.Needs {
			if _, ok := g.jobs[need]; !ok {
				return nil, &UnknownDependencyError{JobID: job.ID, Missing: need}
			}
			// Repeated `needs` entries collapse into one edge so the
			// scheduler's dependency counters stay exact.
			if _, ok := seen[need]; ok {
				continue
			}
			seen[need] = struct{}{}
			g.deps[job.ID] = append(g.deps[job.ID], need)
			g.dependents[need] = append(g.dependents[need], job.ID)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	g.topo = g.topoSort()
	logger.Debug("Dependency graph validated.", "jobs", len(g.order), "edges", g.edgeCount())
	return g, nil
}

// Job returns the definition for the given id.
func (g *Graph) Job(id string) (*workflow.Job, bool) {
	job, ok := g.jobs[id]
	return job, ok
}

// Jobs returns all job ids in document order.
func (g *Graph) Jobs() []string {
	return g.order
}

// Dependencies returns the ids the given job depends on.
func (g *Graph) Dependencies(id string) []string {
	return g.deps[id]
}

// Dependents returns the ids of jobs that depend on the given job.
func (g *Graph) Dependents(id string) []string {
	return g.dependents[id]
}

// TopoOrder returns a topological ordering of all job ids, tie-broken by
// document order. The scheduler uses it only to make dispatch deterministic
// among jobs that become ready at the same instant.
func (g *Graph) TopoOrder() []string {
	return g.topo
}

// Len returns the number of jobs in the graph.
func (g *Graph) Len() int {
	return len(g.order)
}

func (g *Graph) edgeCount() int {
	n := 0
	for _, d := range g.deps {
		n += len(d)
	}
	return n
}

const (
	white = iota // unvisited
	grey         // on the current traversal path
	black        // fully explored, known cycle-free
)

// findCycle runs a three-color depth-first traversal over the dependency
// edges with an explicit stack, so stack usage stays bounded for large
// workflows. It returns the ordered cycle path, or nil if the graph is
// acyclic. A self-dependency yields a single-element cycle.
func (g *Graph) findCycle() []string {
	color := make(map[string]int, len(g.order))

	type frame struct {
		id   string
		next int // index of the next dependency edge to explore
	}

	for _, start := range g.order {
		if color[start] != white {
			continue
		}

		stack := []frame{{id: start}}
		path := []string{start}
		color[start] = grey

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			deps := g.deps[top.id]

			if top.next < len(deps) {
				dep := deps[top.next]
				top.next++

				switch color[dep] {
				case grey:
					// The cycle is the path suffix starting at dep.
					for i, id := range path {
						if id == dep {
							return append([]string{}, path[i:]...)
						}
					}
				case white:
					color[dep] = grey
					stack = append(stack, frame{id: dep})
					path = append(path, dep)
				}
				continue
			}

			color[top.id] = black
			stack = stack[:len(stack)-1]
			path = path[:len(path)-1]
		}
	}
	return nil
}

// topoSort produces a Kahn ordering with document order as the tie-break.
// Only called on a graph already known to be acyclic.
func (g *Graph) topoSort() []string {
	docIndex := make(map[string]int, len(g.order))
	for i, id := range g.order {
		docIndex[id] = i
	}

	remaining := make(map[string]int, len(g.order))
	var ready []string
	for _, id := range g.order {
		remaining[id] = len(g.deps[id])
		if remaining[id] == 0 {
			ready = append(ready, id)
		}
	}

	topo := make([]string, 0, len(g.order))
	for len(ready) > 0 {
		// Pick the ready job that appears earliest in the document.
		min := 0
		for i := 1; i < len(ready); i++ {
			if docIndex[ready[i]] < docIndex[ready[min]] {
				min = i
			}
		}
		id := ready[min]
		ready = append(ready[:min], ready[min+1:]...)
		topo = append(topo, id)

		for _, dependent := range g.dependents[id] {
			remaining[dependent]--
			if remaining[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}
	return topo
}

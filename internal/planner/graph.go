package planner

import (
	"fmt"
	"sort"
	"strings"
)

// JobGraph is the DAG of jobs linked by passed constraints, with cycle
// detection and topological sorting.
type JobGraph struct {
	deps map[string][]string
}

// NewJobGraph creates a graph from each job's upstream jobs. Jobs only
// mentioned as dependencies are added as nodes without dependencies.
func NewJobGraph(deps map[string][]string) *JobGraph {
	g := &JobGraph{deps: make(map[string][]string, len(deps))}
	for job, upstream := range deps {
		g.deps[job] = append([]string(nil), upstream...)
		for _, dep := range upstream {
			if _, ok := deps[dep]; !ok {
				g.deps[dep] = nil
			}
		}
	}
	return g
}

// DetectCycles performs DFS cycle detection and names the cycle it finds.
func (g *JobGraph) DetectCycles() error {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	var stack []string

	var visit func(job string) []string
	visit = func(job string) []string {
		visited[job] = true
		onStack[job] = true
		stack = append(stack, job)

		for _, dep := range sortedCopy(g.deps[job]) {
			if onStack[dep] {
				for i, j := range stack {
					if j == dep {
						return append(append([]string(nil), stack[i:]...), dep)
					}
				}
			}
			if !visited[dep] {
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}

		onStack[job] = false
		stack = stack[:len(stack)-1]
		return nil
	}

	for _, job := range g.jobs() {
		if visited[job] {
			continue
		}
		if cycle := visit(job); cycle != nil {
			return fmt.Errorf("cycle detected in job dependencies: %s", strings.Join(cycle, " -> "))
		}
	}
	return nil
}

// TopologicalSort orders jobs so every job comes after its dependencies,
// using Kahn's algorithm. Ties are broken by name so the order is stable.
func (g *JobGraph) TopologicalSort() ([]string, error) {
	dependents := make(map[string][]string)
	inDegree := make(map[string]int)

	for job, deps := range g.deps {
		inDegree[job] += 0
		for _, dep := range deps {
			dependents[dep] = append(dependents[dep], job)
			inDegree[job]++
		}
	}

	var queue []string
	for job, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, job)
		}
	}
	sort.Strings(queue)

	sorted := make([]string, 0, len(g.deps))
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		sorted = append(sorted, current)

		var ready []string
		for _, dependent := range dependents[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
		queue = append(queue, ready...)
		sort.Strings(queue)
	}

	if len(sorted) != len(g.deps) {
		if err := g.DetectCycles(); err != nil {
			return nil, fmt.Errorf("failed to topologically sort: %w", err)
		}
		return nil, fmt.Errorf("failed to topologically sort: possible cycle detected")
	}
	return sorted, nil
}

func (g *JobGraph) jobs() []string {
	jobs := make([]string, 0, len(g.deps))
	for job := range g.deps {
		jobs = append(jobs, job)
	}
	sort.Strings(jobs)
	return jobs
}

func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}

package analyze

import (
	"sort"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/normalize"
)

// DependencyResolver answers questions about jobs linked by passed
// constraints.
type DependencyResolver struct {
	deps map[string][]string
}

// NewDependencyResolver collects the upstream jobs of every job.
func NewDependencyResolver(p *model.Pipeline) *DependencyResolver {
	dr := &DependencyResolver{deps: make(map[string][]string, len(p.Jobs))}
	for _, job := range p.Jobs {
		seen := make(map[string]bool)
		visit := func(s *model.Step) {
			for _, passed := range s.Passed {
				seen[passed] = true
			}
		}
		for i := range job.Plan {
			normalize.Walk(&job.Plan[i], visit)
		}
		dr.deps[job.Name] = setToSorted(seen)
	}
	return dr
}

// Graph returns the upstream jobs of every job.
func (dr *DependencyResolver) Graph() map[string][]string {
	out := make(map[string][]string, len(dr.deps))
	for job, deps := range dr.deps {
		out[job] = append([]string{}, deps...)
	}
	return out
}

// Dependencies returns the direct upstream jobs of job.
func (dr *DependencyResolver) Dependencies(job string) []string {
	return append([]string{}, dr.deps[job]...)
}

// Dependents returns the jobs that directly require job to have passed.
func (dr *DependencyResolver) Dependents(job string) []string {
	dependents := make([]string, 0)
	for name, deps := range dr.deps {
		for _, dep := range deps {
			if dep == job {
				dependents = append(dependents, name)
				break
			}
		}
	}
	sort.Strings(dependents)
	return dependents
}

// TransitiveDependencies returns every job upstream of job.
func (dr *DependencyResolver) TransitiveDependencies(job string) []string {
	return dr.traverse(job, dr.Dependencies)
}

// TransitiveDependents returns every job downstream of job.
func (dr *DependencyResolver) TransitiveDependents(job string) []string {
	return dr.traverse(job, dr.Dependents)
}

func (dr *DependencyResolver) traverse(job string, next func(string) []string) []string {
	result := make(map[string]bool)
	visited := make(map[string]bool)

	var walk func(string)
	walk = func(name string) {
		if visited[name] {
			return
		}
		visited[name] = true
		for _, n := range next(name) {
			if n != job {
				result[n] = true
			}
			walk(n)
		}
	}

	walk(job)
	return setToSorted(result)
}

// ResolveJobSet returns the selected jobs together with everything
// upstream of them, so a partial run still has versions to consume.
func (dr *DependencyResolver) ResolveJobSet(selected []string) map[string]bool {
	included := make(map[string]bool, len(selected))
	for _, job := range selected {
		included[job] = true
		for _, dep := range dr.TransitiveDependencies(job) {
			included[dep] = true
		}
	}
	return included
}

func setToSorted(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for item := range set {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Package analyze summarises the jobs and resources of a pipeline for the
// listing commands and orders jobs for multi-job runs.
package analyze

import (
	"fmt"
	"sort"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/normalize"
	"github.com/jtarchie/station/internal/planner"
)

// JobSummary describes what a job consumes and produces.
type JobSummary struct {
	Name         string   `json:"name" yaml:"name"`
	Gets         []string `json:"gets" yaml:"gets"`
	Puts         []string `json:"puts" yaml:"puts"`
	Tasks        []string `json:"tasks" yaml:"tasks"`
	Triggers     []string `json:"triggers" yaml:"triggers"`
	Dependencies []string `json:"dependencies" yaml:"dependencies"`
	Dependents   []string `json:"dependents" yaml:"dependents"`
	Serial       bool     `json:"serial" yaml:"serial"`
}

// ResourceSummary describes which jobs use a resource.
type ResourceSummary struct {
	Name       string   `json:"name" yaml:"name"`
	Type       string   `json:"type" yaml:"type"`
	FetchedBy  []string `json:"fetchedBy" yaml:"fetchedBy"`
	PushedBy   []string `json:"pushedBy" yaml:"pushedBy"`
	TriggersOn []string `json:"triggers" yaml:"triggers"`
	CustomType bool     `json:"customType" yaml:"customType"`
}

// Analyzer provides analysis of a normalised pipeline.
type Analyzer struct {
	pipeline *model.Pipeline
	resolver *DependencyResolver
}

// NewAnalyzer creates an analyzer for p.
func NewAnalyzer(p *model.Pipeline) *Analyzer {
	return &Analyzer{pipeline: p, resolver: NewDependencyResolver(p)}
}

// Resolver exposes the job dependency resolver.
func (a *Analyzer) Resolver() *DependencyResolver {
	return a.resolver
}

// Job returns the summary of one job.
func (a *Analyzer) Job(name string) (*JobSummary, error) {
	job, ok := a.pipeline.Job(name)
	if !ok {
		return nil, fmt.Errorf("job not found: %s", name)
	}

	gets := make(map[string]bool)
	puts := make(map[string]bool)
	tasks := make(map[string]bool)
	triggers := make(map[string]bool)
	visit := func(s *model.Step) {
		switch s.Kind() {
		case model.KindGet:
			gets[s.ResourceName()] = true
			if s.Trigger {
				triggers[s.ResourceName()] = true
			}
		case model.KindPut:
			puts[s.ResourceName()] = true
		case model.KindTask:
			tasks[s.Task] = true
		}
	}
	for i := range job.Plan {
		normalize.Walk(&job.Plan[i], visit)
	}
	for _, hook := range []*model.Step{job.OnSuccess, job.OnFailure, job.OnAbort, job.Ensure} {
		if hook != nil {
			normalize.Walk(hook, visit)
		}
	}

	return &JobSummary{
		Name:         job.Name,
		Gets:         setToSorted(gets),
		Puts:         setToSorted(puts),
		Tasks:        setToSorted(tasks),
		Triggers:     setToSorted(triggers),
		Dependencies: a.resolver.Dependencies(job.Name),
		Dependents:   a.resolver.Dependents(job.Name),
		Serial:       job.Serial,
	}, nil
}

// Jobs lists every job in declaration order.
func (a *Analyzer) Jobs() ([]*JobSummary, error) {
	out := make([]*JobSummary, 0, len(a.pipeline.Jobs))
	for _, job := range a.pipeline.Jobs {
		summary, err := a.Job(job.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, summary)
	}
	return out, nil
}

// Resources lists every declared resource sorted by name.
func (a *Analyzer) Resources() ([]*ResourceSummary, error) {
	jobs, err := a.Jobs()
	if err != nil {
		return nil, err
	}

	custom := make(map[string]bool, len(a.pipeline.ResourceTypes))
	for _, rt := range a.pipeline.ResourceTypes {
		custom[rt.Name] = true
	}

	out := make([]*ResourceSummary, 0, len(a.pipeline.Resources))
	for _, r := range a.pipeline.Resources {
		summary := &ResourceSummary{
			Name:       r.Name,
			Type:       r.Type,
			FetchedBy:  []string{},
			PushedBy:   []string{},
			TriggersOn: []string{},
			CustomType: custom[r.Type],
		}
		for _, job := range jobs {
			if contains(job.Gets, r.Name) {
				summary.FetchedBy = append(summary.FetchedBy, job.Name)
			}
			if contains(job.Puts, r.Name) {
				summary.PushedBy = append(summary.PushedBy, job.Name)
			}
			if contains(job.Triggers, r.Name) {
				summary.TriggersOn = append(summary.TriggersOn, job.Name)
			}
		}
		out = append(out, summary)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// RunOrder returns the jobs to run in dependency order. With no selection
// every job runs; otherwise the selected jobs and their upstream jobs.
func (a *Analyzer) RunOrder(selected ...string) ([]string, error) {
	for _, name := range selected {
		if _, ok := a.pipeline.Job(name); !ok {
			return nil, fmt.Errorf("job not found: %s", name)
		}
	}

	graph := planner.NewJobGraph(a.resolver.Graph())
	if err := graph.DetectCycles(); err != nil {
		return nil, err
	}
	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, err
	}
	if len(selected) == 0 {
		return sorted, nil
	}

	included := a.resolver.ResolveJobSet(selected)
	order := make([]string, 0, len(included))
	for _, job := range sorted {
		if included[job] {
			order = append(order, job)
		}
	}
	return order, nil
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}

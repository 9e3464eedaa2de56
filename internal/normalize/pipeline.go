// Package normalize fills pipeline defaults and checks the references
// between jobs and resources that the schema cannot express.
package normalize

import (
	"errors"
	"fmt"

	"github.com/jtarchie/station/internal/model"
)

const defaultCheckEvery = "1m"

// Pipeline applies defaults in place and returns every reference error
// found, joined.
func Pipeline(p *model.Pipeline) error {
	if p == nil {
		return fmt.Errorf("pipeline cannot be nil")
	}

	for i := range p.Resources {
		r := &p.Resources[i]
		if r.Source == nil {
			r.Source = make(map[string]interface{})
		}
		if r.Version == nil {
			r.Version = model.Version{}
		}
		if r.CheckEvery == "" {
			r.CheckEvery = defaultCheckEvery
		}
		if r.Tags == nil {
			r.Tags = []string{}
		}
	}

	for i := range p.ResourceTypes {
		rt := &p.ResourceTypes[i]
		if rt.Source == nil {
			rt.Source = make(map[string]interface{})
		}
		if rt.Params == nil {
			rt.Params = make(map[string]interface{})
		}
		if rt.CheckEvery == "" {
			rt.CheckEvery = defaultCheckEvery
		}
		if rt.Tags == nil {
			rt.Tags = []string{}
		}
	}

	for i := range p.Jobs {
		job := &p.Jobs[i]
		if job.SerialGroups == nil {
			job.SerialGroups = []string{}
		}
		for j := range job.Plan {
			step(&job.Plan[j])
		}
		for _, hook := range []*model.Step{job.OnSuccess, job.OnFailure, job.OnAbort, job.Ensure} {
			if hook != nil {
				step(hook)
			}
		}
	}

	return check(p)
}

func step(s *model.Step) {
	switch s.Kind() {
	case model.KindGet, model.KindPut:
		if s.Resource == "" {
			s.Resource = s.ResourceName()
		}
	case model.KindTask:
		if s.Config != nil {
			for i := range s.Config.Inputs {
				if s.Config.Inputs[i].Path == "" {
					s.Config.Inputs[i].Path = s.Config.Inputs[i].Name
				}
			}
			for i := range s.Config.Outputs {
				if s.Config.Outputs[i].Path == "" {
					s.Config.Outputs[i].Path = s.Config.Outputs[i].Name
				}
			}
		}
	}
	if s.Attempts < 1 {
		s.Attempts = 1
	}

	for i := range s.Do {
		step(&s.Do[i])
	}
	for i := range s.Aggregate {
		step(&s.Aggregate[i])
	}
	if s.Try != nil {
		step(s.Try)
	}
	for _, hook := range s.Hooks() {
		step(hook)
	}
}

func check(p *model.Pipeline) error {
	var errs []error

	resources := make(map[string]bool, len(p.Resources))
	for _, r := range p.Resources {
		if resources[r.Name] {
			errs = append(errs, fmt.Errorf("resource %q is declared more than once", r.Name))
		}
		resources[r.Name] = true
	}

	types := make(map[string]bool, len(p.ResourceTypes))
	for _, rt := range p.ResourceTypes {
		if types[rt.Name] {
			errs = append(errs, fmt.Errorf("resource type %q is declared more than once", rt.Name))
		}
		types[rt.Name] = true
	}

	jobs := make(map[string]bool, len(p.Jobs))
	for _, job := range p.Jobs {
		if jobs[job.Name] {
			errs = append(errs, fmt.Errorf("job %q is declared more than once", job.Name))
		}
		jobs[job.Name] = true
	}

	for _, job := range p.Jobs {
		visit := func(s *model.Step) {
			switch s.Kind() {
			case model.KindGet, model.KindPut:
				if !resources[s.ResourceName()] {
					errs = append(errs, fmt.Errorf("job %s: %s %s references undeclared resource %q", job.Name, s.Kind(), s.Name(), s.ResourceName()))
				}
			case model.KindTask:
				if s.Config == nil {
					errs = append(errs, fmt.Errorf("job %s: task %s has no config", job.Name, s.Task))
				}
			}
			for _, passed := range s.Passed {
				if !jobs[passed] {
					errs = append(errs, fmt.Errorf("job %s: %s passed references unknown job %q", job.Name, s.Name(), passed))
				}
				if passed == job.Name {
					errs = append(errs, fmt.Errorf("job %s: %s cannot require its own job in passed", job.Name, s.Name()))
				}
			}
		}
		for i := range job.Plan {
			Walk(&job.Plan[i], visit)
		}
		for _, hook := range []*model.Step{job.OnSuccess, job.OnFailure, job.OnAbort, job.Ensure} {
			if hook != nil {
				Walk(hook, visit)
			}
		}
	}

	return errors.Join(errs...)
}

// Walk visits s and every nested step, hooks included.
func Walk(s *model.Step, fn func(*model.Step)) {
	fn(s)
	for i := range s.Do {
		Walk(&s.Do[i], fn)
	}
	for i := range s.Aggregate {
		Walk(&s.Aggregate[i], fn)
	}
	if s.Try != nil {
		Walk(s.Try, fn)
	}
	for _, name := range []string{"on_success", "on_failure", "on_abort", "ensure"} {
		if hook, ok := s.Hooks()[name]; ok {
			Walk(hook, fn)
		}
	}
}

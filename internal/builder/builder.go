// Package builder compiles the jobs of a pipeline into scheduler step trees.
package builder

import (
	"errors"
	"fmt"
	"time"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
)

// ErrUnknownJob is returned when a job is not part of the pipeline.
var ErrUnknownJob = errors.New("unknown job")

// Builder compiles jobs of one pipeline.
type Builder struct {
	pipeline *model.Pipeline
}

// New creates a builder for pipeline. The pipeline is expected to be
// normalised already.
func New(pipeline *model.Pipeline) *Builder {
	return &Builder{pipeline: pipeline}
}

// Plans compiles every job, keyed by job name.
func (b *Builder) Plans() (map[string]planner.Step, error) {
	plans := make(map[string]planner.Step, len(b.pipeline.Jobs))
	for _, job := range b.pipeline.Jobs {
		plan, err := b.Plan(job.Name)
		if err != nil {
			return nil, err
		}
		plans[job.Name] = plan
	}
	return plans, nil
}

// Plan compiles one job into a Serial of its plan steps, carrying the job
// level hooks.
func (b *Builder) Plan(jobName string) (planner.Step, error) {
	job, ok := b.pipeline.Job(jobName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownJob, jobName)
	}

	c := &compiler{pipeline: b.pipeline, job: job.Name}
	steps, err := c.steps(job.Plan, job.Name+"/plan")
	if err != nil {
		return nil, fmt.Errorf("failed to build job %s: %w", job.Name, err)
	}

	opts, err := c.hooks(job.Name, job.OnSuccess, job.OnFailure, job.Ensure)
	if err != nil {
		return nil, fmt.Errorf("failed to build job %s: %w", job.Name, err)
	}
	return planner.NewSerial(steps, opts...), nil
}

type compiler struct {
	pipeline *model.Pipeline
	job      string
}

func (c *compiler) steps(steps []model.Step, prefix string) ([]planner.Step, error) {
	compiled := make([]planner.Step, 0, len(steps))
	for i := range steps {
		step, err := c.step(&steps[i], fmt.Sprintf("%s[%d]", prefix, i))
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, step)
	}
	return compiled, nil
}

// step compiles one plan entry. path locates the entry in the job and is
// the prefix of every leaf identity underneath it.
func (c *compiler) step(s *model.Step, path string) (planner.Step, error) {
	timeout, err := parseTimeout(s.Timeout)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var body []planner.Step
	base := path

	switch s.Kind() {
	case model.KindGet:
		base = fmt.Sprintf("%s/get:%s", path, s.Get)
		body, err = c.get(s, base, timeout)
	case model.KindPut:
		base = fmt.Sprintf("%s/put:%s", path, s.Put)
		body, err = c.put(s, base, timeout)
	case model.KindTask:
		base = fmt.Sprintf("%s/task:%s", path, s.Task)
		body, err = c.task(s, base, timeout)
	case model.KindDo:
		base = path + "/do"
		body, err = c.steps(s.Do, base)
	case model.KindAggregate:
		base = path + "/aggregate"
		var children []planner.Step
		children, err = c.steps(s.Aggregate, base)
		if err != nil {
			return nil, err
		}
		opts, err := c.options(s, base)
		if err != nil {
			return nil, err
		}
		return planner.NewParallel(children, opts...), nil
	case model.KindTry:
		base = path + "/try"
		inner, err := c.step(s.Try, base)
		if err != nil {
			return nil, err
		}
		wrapped := planner.NewTry(inner)
		if s.Attempts <= 1 && len(s.Hooks()) == 0 {
			return wrapped, nil
		}
		body = []planner.Step{wrapped}
	default:
		return nil, fmt.Errorf("%s: step has no get, put, task, do, aggregate or try", path)
	}
	if err != nil {
		return nil, err
	}

	opts, err := c.options(s, base)
	if err != nil {
		return nil, err
	}
	return planner.NewSerial(body, opts...), nil
}

func (c *compiler) options(s *model.Step, base string) ([]planner.Option, error) {
	opts, err := c.hooks(base, s.OnSuccess, s.OnFailure, s.Ensure)
	if err != nil {
		return nil, err
	}
	if s.Attempts > 1 {
		opts = append(opts, planner.WithAttempts(s.Attempts))
	}
	return opts, nil
}

// hooks compiles on_success, on_failure and ensure. on_abort is not
// compiled: an aborted run stops dispatching altogether.
func (c *compiler) hooks(base string, onSuccess, onFailure, ensure *model.Step) ([]planner.Option, error) {
	var opts []planner.Option
	for _, hook := range []struct {
		name string
		step *model.Step
		opt  func(planner.Step) planner.Option
	}{
		{"on_success", onSuccess, planner.WithOnSuccess},
		{"on_failure", onFailure, planner.WithOnFailure},
		{"ensure", ensure, planner.WithOnFinally},
	} {
		if hook.step == nil {
			continue
		}
		compiled, err := c.step(hook.step, base+"/"+hook.name)
		if err != nil {
			return nil, err
		}
		opts = append(opts, hook.opt(compiled))
	}
	return opts, nil
}

func (c *compiler) resource(s *model.Step) (model.Resource, error) {
	r, ok := c.pipeline.Resource(s.ResourceName())
	if !ok {
		return model.Resource{}, fmt.Errorf("%s references undeclared resource %q", s.Name(), s.ResourceName())
	}
	return *r, nil
}

func (c *compiler) get(s *model.Step, base string, timeout time.Duration) ([]planner.Step, error) {
	resource, err := c.resource(s)
	if err != nil {
		return nil, err
	}

	var leaves []planner.Step
	if s.Trigger {
		leaves = append(leaves, planner.NewLeaf(base+"/trigger", &actions.TriggerResource{
			Resource: resource,
			Passed:   s.Passed,
		}))
	}
	leaves = append(leaves,
		planner.NewLeaf(base+"/check", &actions.CheckResource{
			Resource: resource,
			Timeout:  timeout,
		}),
		planner.NewLeaf(base+"/get", &actions.GetResource{
			Name:     s.Get,
			Job:      c.job,
			Resource: resource,
			Params:   s.Params,
			Passed:   s.Passed,
			Version:  s.Version,
			Timeout:  timeout,
		}),
	)
	return leaves, nil
}

func (c *compiler) put(s *model.Step, base string, timeout time.Duration) ([]planner.Step, error) {
	resource, err := c.resource(s)
	if err != nil {
		return nil, err
	}
	return []planner.Step{
		planner.NewLeaf(base+"/put", &actions.PutResource{
			Name:      s.Put,
			Job:       c.job,
			Resource:  resource,
			Params:    s.Params,
			GetParams: s.GetParams,
			Timeout:   timeout,
		}),
	}, nil
}

func (c *compiler) task(s *model.Step, base string, timeout time.Duration) ([]planner.Step, error) {
	if s.Config == nil {
		return nil, fmt.Errorf("task %s has no config", s.Task)
	}
	return []planner.Step{
		planner.NewLeaf(base+"/task", &actions.Task{
			Name:          s.Task,
			Job:           c.job,
			Config:        *s.Config,
			Privileged:    s.Privileged,
			Params:        s.Params,
			Image:         s.Image,
			InputMapping:  s.InputMapping,
			OutputMapping: s.OutputMapping,
			Timeout:       timeout,
		}),
	}, nil
}

func parseTimeout(timeout string) (time.Duration, error) {
	if timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", timeout, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("invalid timeout %q: must not be negative", timeout)
	}
	return d, nil
}

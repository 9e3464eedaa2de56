package actions

import (
	"context"
	"fmt"
	"path"

	"github.com/jtarchie/station/internal/runner"
)

// TaskResult is the outcome of a task container.
type TaskResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Succeeded reports whether the task exited cleanly.
func (r *TaskResult) Succeeded() bool {
	return r.ExitCode == 0
}

// ImageRef returns the docker image the task runs in.
func (a *Task) ImageRef() (string, error) {
	if a.Image != "" {
		return a.Image, nil
	}
	ir := a.Config.ImageResource
	if ir == nil {
		return "", fmt.Errorf("%s: %w", a.Name, ErrNoImage)
	}
	repository, _ := ir.Source["repository"].(string)
	if repository == "" {
		return "", fmt.Errorf("%s: image_resource has no repository: %w", a.Name, ErrNoImage)
	}
	tag := "latest"
	if t, ok := ir.Source["tag"]; ok && fmt.Sprint(t) != "" {
		tag = fmt.Sprint(t)
	}
	return repository + ":" + tag, nil
}

// Volumes mounts every input that an earlier step produced and allocates a
// directory for every output. A required input nobody produced fails with
// ErrMissingInput before anything is allocated.
func (a *Task) Volumes(src VolumeSource) ([]runner.Volume, error) {
	var volumes []runner.Volume

	for _, input := range a.Config.Inputs {
		artifact := mapped(a.InputMapping, input.Name)
		dir, ok := src.Lookup(artifact)
		if !ok {
			if input.Optional {
				continue
			}
			return nil, fmt.Errorf("task %s input %q: %w", a.Name, artifact, ErrMissingInput)
		}
		volumes = append(volumes, runner.Volume{From: dir, To: path.Join(taskDir, pathOr(input.Path, input.Name))})
	}

	for _, output := range a.Config.Outputs {
		artifact := mapped(a.OutputMapping, output.Name)
		dir, err := src.For(artifact)
		if err != nil {
			return nil, fmt.Errorf("task %s output %q: %w", a.Name, artifact, err)
		}
		volumes = append(volumes, runner.Volume{From: dir, To: path.Join(taskDir, pathOr(output.Path, output.Name))})
	}

	for i, cache := range a.Config.Caches {
		dir, err := src.For(fmt.Sprintf("%s/%s/cache-%d", a.Job, a.Name, i))
		if err != nil {
			return nil, fmt.Errorf("task %s cache %q: %w", a.Name, cache.Path, err)
		}
		volumes = append(volumes, runner.Volume{From: dir, To: path.Join(taskDir, cache.Path)})
	}

	return volumes, nil
}

// Env merges config params with the step's params, the latter winning.
func (a *Task) Env() map[string]string {
	env := make(map[string]string, len(a.Config.Params)+len(a.Params))
	for k, v := range a.Config.Params {
		env[k] = fmt.Sprint(v)
	}
	for k, v := range a.Params {
		env[k] = fmt.Sprint(v)
	}
	return env
}

// Spec builds the task container.
func (a *Task) Spec(volumes []runner.Volume) (runner.Spec, error) {
	if a.Config.Run == nil || a.Config.Run.Path == "" {
		return runner.Spec{}, fmt.Errorf("task %s has no run path", a.Name)
	}
	image, err := a.ImageRef()
	if err != nil {
		return runner.Spec{}, err
	}

	return runner.Spec{
		Image:      image,
		Command:    append([]string{a.Config.Run.Path}, a.Config.Run.Args...),
		Volumes:    volumes,
		WorkingDir: path.Join(taskDir, a.Config.Run.Dir),
		User:       a.Config.Run.User,
		Env:        a.Env(),
		Privileged: a.Privileged,
	}, nil
}

// Perform mounts artifacts and runs the task.
func (a *Task) Perform(ctx context.Context, r runner.Runner, src VolumeSource) (*TaskResult, error) {
	volumes, err := a.Volumes(src)
	if err != nil {
		return nil, err
	}
	spec, err := a.Spec(volumes)
	if err != nil {
		return nil, err
	}

	res, err := r.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to run task %s: %w", a.Name, err)
	}
	return &TaskResult{
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		ExitCode: res.ExitCode,
	}, nil
}

func mapped(mapping map[string]string, name string) string {
	if m, ok := mapping[name]; ok && m != "" {
		return m
	}
	return name
}

func pathOr(p, name string) string {
	if p != "" {
		return p
	}
	return name
}

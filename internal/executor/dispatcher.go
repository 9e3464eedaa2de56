package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/ctxlog"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/runner"
	"github.com/jtarchie/station/internal/versions"
	"github.com/jtarchie/station/internal/volumes"
)

// Dispatcher is the production Strategy. It runs actions as containers and
// keeps the versions store and artifact volumes up to date as a side effect.
type Dispatcher struct {
	Runner   runner.Runner
	Types    *actions.ResourceTypes
	Versions *versions.Store
	Volumes  *volumes.Allocator

	// StepTimeout bounds actions that do not set their own timeout. Zero
	// means unbounded.
	StepTimeout time.Duration

	mu    sync.Mutex
	locks map[string]*semaphore.Weighted
}

// NewDispatcher wires the collaborators shared by every action.
func NewDispatcher(r runner.Runner, types *actions.ResourceTypes, store *versions.Store, vols *volumes.Allocator) *Dispatcher {
	return &Dispatcher{
		Runner:   r,
		Types:    types,
		Versions: store,
		Volumes:  vols,
		locks:    make(map[string]*semaphore.Weighted),
	}
}

// Execute performs the leaf's action.
func (d *Dispatcher) Execute(ctx context.Context, r planner.Runnable) (Outcome, error) {
	ctx = ctxlog.WithLogger(ctx, ctxlog.FromContext(ctx).With("leaf", r.Leaf.ID, "attempt", r.Attempt))

	switch a := r.Leaf.Action.(type) {
	case *actions.TriggerResource:
		if ok, reason := a.Ready(d.Versions); !ok {
			return Failed("%s", reason), nil
		}
		return Succeeded(), nil
	case *actions.CheckResource:
		return d.exclusive(ctx, a.Resource.Name, a.Timeout, func(ctx context.Context) (Outcome, error) {
			return d.check(ctx, a)
		})
	case *actions.GetResource:
		return d.exclusive(ctx, a.Resource.Name, a.Timeout, func(ctx context.Context) (Outcome, error) {
			return d.get(ctx, a)
		})
	case *actions.PutResource:
		return d.exclusive(ctx, a.Resource.Name, a.Timeout, func(ctx context.Context) (Outcome, error) {
			return d.put(ctx, a)
		})
	case *actions.Task:
		return d.bounded(ctx, a.Timeout, func(ctx context.Context) (Outcome, error) {
			return d.task(ctx, a)
		})
	}
	return Outcome{}, fmt.Errorf("%T: %w", r.Leaf.Action, ErrUnsupportedAction)
}

func (d *Dispatcher) check(ctx context.Context, a *actions.CheckResource) (Outcome, error) {
	last, _ := d.Versions.Latest(a.Resource.Name)
	res, err := a.Perform(ctx, d.Runner, d.Types, last)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Succeeded() {
		return Failed("check of %s exited with code %d", a.Resource.Name, res.ExitCode), nil
	}

	d.Versions.Add(a.Resource.Name, res.Versions...)
	ctxlog.FromContext(ctx).Debug("checked resource", "resource", a.Resource.Name, "versions", len(res.Versions))
	return Succeeded(), nil
}

func (d *Dispatcher) get(ctx context.Context, a *actions.GetResource) (Outcome, error) {
	version, reason := d.resolve(a)
	if reason != "" {
		return Failed("%s", reason), nil
	}

	dest, err := d.Volumes.For(a.Name)
	if err != nil {
		return Outcome{}, err
	}
	res, err := a.Perform(ctx, d.Runner, d.Types, version, dest)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Succeeded() {
		return Failed("get of %s exited with code %d", a.Name, res.ExitCode), nil
	}

	fetched := res.Version
	if len(fetched) == 0 {
		fetched = version
	}
	// An empty version is still recorded so passed constraints downstream
	// hold for resources that report none, as in a dry run.
	d.Versions.Pass(a.Resource.Name, fetched, a.Job)
	return Succeeded(), nil
}

// resolve picks the version a get fetches: a pinned step version, then the
// resource's own pin, then the latest version that passed the upstream
// jobs, then the latest version. The reason is set when passed constraints
// cannot be met.
func (d *Dispatcher) resolve(a *actions.GetResource) (model.Version, string) {
	if a.Version != nil && len(a.Version.Pinned) > 0 {
		return a.Version.Pinned, ""
	}
	if len(a.Resource.Version) > 0 {
		return a.Resource.Version, ""
	}
	if len(a.Passed) > 0 {
		v, ok := d.Versions.LatestPassed(a.Resource.Name, a.Passed)
		if !ok {
			return nil, fmt.Sprintf("no version of %s has passed %v", a.Resource.Name, a.Passed)
		}
		return v, ""
	}
	v, _ := d.Versions.Latest(a.Resource.Name)
	return v, ""
}

func (d *Dispatcher) put(ctx context.Context, a *actions.PutResource) (Outcome, error) {
	artifacts := make(map[string]string)
	for _, name := range d.Volumes.Names() {
		if dir, ok := d.Volumes.Lookup(name); ok {
			artifacts[name] = dir
		}
	}

	res, err := a.Perform(ctx, d.Runner, d.Types, artifacts)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Succeeded() {
		return Failed("put to %s exited with code %d", a.Name, res.ExitCode), nil
	}
	if len(res.Version) == 0 {
		return Succeeded(), nil
	}
	d.Versions.Pass(a.Resource.Name, res.Version, a.Job)

	// The produced version is fetched back so later steps can use it as an
	// input under the put's name.
	dest, err := d.Volumes.For(a.Name)
	if err != nil {
		return Outcome{}, err
	}
	get := &actions.GetResource{Name: a.Name, Job: a.Job, Resource: a.Resource, Params: a.GetParams}
	fetched, err := get.Perform(ctx, d.Runner, d.Types, res.Version, dest)
	if err != nil {
		return Outcome{}, err
	}
	if !fetched.Succeeded() {
		return Failed("get after put to %s exited with code %d", a.Name, fetched.ExitCode), nil
	}
	return Succeeded(), nil
}

func (d *Dispatcher) task(ctx context.Context, a *actions.Task) (Outcome, error) {
	res, err := a.Perform(ctx, d.Runner, d.Volumes)
	if err != nil {
		return Outcome{}, err
	}
	if !res.Succeeded() {
		return Failed("task %s exited with code %d", a.Name, res.ExitCode), nil
	}
	return Succeeded(), nil
}

// exclusive serialises containers touching the same resource.
func (d *Dispatcher) exclusive(ctx context.Context, resource string, timeout time.Duration, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	sem := d.lock(resource)
	if err := sem.Acquire(ctx, 1); err != nil {
		return Outcome{}, fmt.Errorf("waiting for %s: %w", resource, err)
	}
	defer sem.Release(1)

	return d.bounded(ctx, timeout, fn)
}

func (d *Dispatcher) lock(resource string) *semaphore.Weighted {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.locks == nil {
		d.locks = make(map[string]*semaphore.Weighted)
	}
	sem, ok := d.locks[resource]
	if !ok {
		sem = semaphore.NewWeighted(1)
		d.locks[resource] = sem
	}
	return sem
}

// bounded applies the step timeout and turns action errors into failed
// outcomes. Only cancellation of the run itself is returned as an error.
func (d *Dispatcher) bounded(ctx context.Context, timeout time.Duration, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	if timeout <= 0 {
		timeout = d.StepTimeout
	}
	stepCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	outcome, err := fn(stepCtx)
	if err == nil {
		return outcome, nil
	}
	if ctx.Err() != nil {
		return Outcome{}, err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return Failed("timed out after %s", timeout), nil
	}
	ctxlog.FromContext(ctx).Warn("step errored", "error", err)
	return Failed("%s", err.Error()), nil
}

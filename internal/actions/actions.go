// Package actions implements the work behind each leaf of a compiled job:
// checking, fetching and publishing resources, and running tasks, all as
// containers speaking the concourse resource protocol.
package actions

import (
	"errors"
	"time"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/runner"
)

// Kind identifies an action type.
type Kind string

const (
	KindCheck   Kind = "check"
	KindGet     Kind = "get"
	KindPut     Kind = "put"
	KindTask    Kind = "task"
	KindTrigger Kind = "trigger"
)

var (
	// ErrMissingInput is returned when a task needs an artifact no earlier
	// step produced.
	ErrMissingInput = errors.New("missing required input")
	// ErrNoImage is returned when a task does not say which image to run.
	ErrNoImage = errors.New("task has no image")
)

// Container paths used by the resource protocol.
const (
	checkDir = "/tmp/build/check"
	getDir   = "/tmp/build/get"
	putDir   = "/tmp/build/put"
	taskDir  = "/tmp/build/task"
)

// CheckResource discovers new versions of a resource.
type CheckResource struct {
	Resource model.Resource
	Timeout  time.Duration
}

// GetResource fetches a version of a resource into the artifact named Name.
type GetResource struct {
	Name     string
	Job      string
	Resource model.Resource
	Params   map[string]interface{}
	Passed   []string
	Version  *model.VersionSpec
	Timeout  time.Duration
}

// PutResource publishes a new version of a resource from the artifacts
// produced so far.
type PutResource struct {
	Name      string
	Job       string
	Resource  model.Resource
	Params    map[string]interface{}
	GetParams map[string]interface{}
	Timeout   time.Duration
}

// Task runs a command in a container with artifacts mounted as inputs and
// outputs.
type Task struct {
	Name          string
	Job           string
	Config        model.TaskConfig
	Privileged    bool
	Params        map[string]interface{}
	Image         string
	InputMapping  map[string]string
	OutputMapping map[string]string
	Timeout       time.Duration
}

// TriggerResource gates a job on a version of a resource having passed
// upstream jobs.
type TriggerResource struct {
	Resource model.Resource
	Passed   []string
}

func (*CheckResource) Kind() Kind   { return KindCheck }
func (*GetResource) Kind() Kind     { return KindGet }
func (*PutResource) Kind() Kind     { return KindPut }
func (*Task) Kind() Kind            { return KindTask }
func (*TriggerResource) Kind() Kind { return KindTrigger }

// Action is implemented by every action type.
type Action interface {
	Kind() Kind
}

// KindOf returns the kind of an opaque leaf action, or "" when it is not an
// action of this package.
func KindOf(action interface{}) Kind {
	if a, ok := action.(Action); ok {
		return a.Kind()
	}
	return ""
}

// VolumeSource hands out artifact directories.
type VolumeSource interface {
	Lookup(name string) (string, bool)
	For(name string) (string, error)
}

// VersionSource answers version queries.
type VersionSource interface {
	LatestPassed(resource string, jobs []string) (model.Version, bool)
}

// Result is the outcome of a container-backed action.
type Result struct {
	Version  model.Version
	Metadata []MetadataField
	Stdout   string
	Stderr   string
	ExitCode int
}

// Succeeded reports whether the container exited cleanly.
func (r *Result) Succeeded() bool {
	return r.ExitCode == 0
}

// CheckResult carries the versions a check reported.
type CheckResult struct {
	Result
	Versions []model.Version
}

func toResult(res *runner.Result) Result {
	return Result{
		Stdout:   string(res.Stdout),
		Stderr:   string(res.Stderr),
		ExitCode: res.ExitCode,
	}
}

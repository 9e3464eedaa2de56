package model

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// StepKind names the variant a Step holds.
type StepKind string

const (
	KindGet       StepKind = "get"
	KindPut       StepKind = "put"
	KindTask      StepKind = "task"
	KindDo        StepKind = "do"
	KindAggregate StepKind = "aggregate"
	KindTry       StepKind = "try"
)

// Step is one entry of a job plan. Exactly one of Get, Put, Task, Do,
// Aggregate or Try is set; the remaining fields apply to some kinds only.
type Step struct {
	Get       string `yaml:"get,omitempty" json:"get,omitempty"`
	Put       string `yaml:"put,omitempty" json:"put,omitempty"`
	Task      string `yaml:"task,omitempty" json:"task,omitempty"`
	Do        []Step `yaml:"do,omitempty" json:"do,omitempty"`
	Aggregate []Step `yaml:"aggregate,omitempty" json:"aggregate,omitempty"`
	Try       *Step  `yaml:"try,omitempty" json:"try,omitempty"`

	// get and put
	Resource  string                 `yaml:"resource,omitempty" json:"resource,omitempty"`
	Params    map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Version   *VersionSpec           `yaml:"version,omitempty" json:"version,omitempty"`
	Passed    []string               `yaml:"passed,omitempty" json:"passed,omitempty"`
	Trigger   bool                   `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	GetParams map[string]interface{} `yaml:"get_params,omitempty" json:"get_params,omitempty"`

	// task
	Config        *TaskConfig       `yaml:"config,omitempty" json:"config,omitempty"`
	Privileged    bool              `yaml:"privileged,omitempty" json:"privileged,omitempty"`
	Image         string            `yaml:"image,omitempty" json:"image,omitempty"`
	InputMapping  map[string]string `yaml:"input_mapping,omitempty" json:"input_mapping,omitempty"`
	OutputMapping map[string]string `yaml:"output_mapping,omitempty" json:"output_mapping,omitempty"`

	OnSuccess *Step    `yaml:"on_success,omitempty" json:"on_success,omitempty"`
	OnFailure *Step    `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	OnAbort   *Step    `yaml:"on_abort,omitempty" json:"on_abort,omitempty"`
	Ensure    *Step    `yaml:"ensure,omitempty" json:"ensure,omitempty"`
	Tags      []string `yaml:"tags,omitempty" json:"tags,omitempty"`
	Timeout   string   `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Attempts  int      `yaml:"attempts,omitempty" json:"attempts,omitempty"`
}

// Kind reports which variant the step holds, or "" when none is set.
func (s *Step) Kind() StepKind {
	switch {
	case s.Get != "":
		return KindGet
	case s.Put != "":
		return KindPut
	case s.Task != "":
		return KindTask
	case s.Do != nil:
		return KindDo
	case s.Aggregate != nil:
		return KindAggregate
	case s.Try != nil:
		return KindTry
	}
	return ""
}

// Name is the step's own name: the get/put alias or the task name.
func (s *Step) Name() string {
	switch s.Kind() {
	case KindGet:
		return s.Get
	case KindPut:
		return s.Put
	case KindTask:
		return s.Task
	}
	return string(s.Kind())
}

// ResourceName is the resource a get or put refers to; the step name
// doubles as the resource name when no explicit resource is given.
func (s *Step) ResourceName() string {
	if s.Resource != "" {
		return s.Resource
	}
	switch s.Kind() {
	case KindGet:
		return s.Get
	case KindPut:
		return s.Put
	}
	return ""
}

// Children returns the nested body steps of do, aggregate and try.
func (s *Step) Children() []Step {
	switch s.Kind() {
	case KindDo:
		return s.Do
	case KindAggregate:
		return s.Aggregate
	case KindTry:
		return []Step{*s.Try}
	}
	return nil
}

// Hooks returns the hook steps that are set, keyed by their field name.
func (s *Step) Hooks() map[string]*Step {
	hooks := make(map[string]*Step)
	for name, hook := range map[string]*Step{
		"on_success": s.OnSuccess,
		"on_failure": s.OnFailure,
		"on_abort":   s.OnAbort,
		"ensure":     s.Ensure,
	} {
		if hook != nil {
			hooks[name] = hook
		}
	}
	return hooks
}

// TaskConfig describes the container a task runs in.
type TaskConfig struct {
	Platform      string                 `yaml:"platform" json:"platform"`
	ImageResource *ImageResource         `yaml:"image_resource,omitempty" json:"image_resource,omitempty"`
	Params        map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Run           *TaskRun               `yaml:"run,omitempty" json:"run,omitempty"`
	Inputs        []TaskInput            `yaml:"inputs,omitempty" json:"inputs,omitempty"`
	Outputs       []TaskOutput           `yaml:"outputs,omitempty" json:"outputs,omitempty"`
	Caches        []TaskCache            `yaml:"caches,omitempty" json:"caches,omitempty"`
}

// ImageResource selects the task image.
type ImageResource struct {
	Type    string                 `yaml:"type" json:"type"`
	Source  map[string]interface{} `yaml:"source" json:"source"`
	Params  map[string]interface{} `yaml:"params,omitempty" json:"params,omitempty"`
	Version Version                `yaml:"version,omitempty" json:"version,omitempty"`
}

// TaskRun is the command a task executes.
type TaskRun struct {
	Path string   `yaml:"path" json:"path"`
	Args []string `yaml:"args" json:"args"`
	Dir  string   `yaml:"dir,omitempty" json:"dir,omitempty"`
	User string   `yaml:"user,omitempty" json:"user,omitempty"`
}

type TaskInput struct {
	Name     string `yaml:"name" json:"name"`
	Path     string `yaml:"path,omitempty" json:"path,omitempty"`
	Optional bool   `yaml:"optional" json:"optional"`
}

type TaskOutput struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

type TaskCache struct {
	Path string `yaml:"path" json:"path"`
}

// VersionSpec is the version field of a get step: "latest", "every" or a
// pinned version.
type VersionSpec struct {
	Every  bool
	Pinned Version
}

// UnmarshalYAML accepts either a keyword or a mapping.
func (v *VersionSpec) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		switch node.Value {
		case "latest":
			*v = VersionSpec{}
		case "every":
			*v = VersionSpec{Every: true}
		default:
			return fmt.Errorf("unknown version %q, expected latest, every or a version", node.Value)
		}
		return nil
	case yaml.MappingNode:
		var pinned Version
		if err := node.Decode(&pinned); err != nil {
			return fmt.Errorf("failed to decode pinned version: %w", err)
		}
		*v = VersionSpec{Pinned: pinned}
		return nil
	}
	return fmt.Errorf("version must be a string or a mapping")
}

// MarshalYAML writes the version back in its input form.
func (v VersionSpec) MarshalYAML() (interface{}, error) {
	return v.value(), nil
}

// MarshalJSON mirrors MarshalYAML.
func (v VersionSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.value())
}

func (v VersionSpec) value() interface{} {
	switch {
	case v.Pinned != nil:
		return v.Pinned
	case v.Every:
		return "every"
	}
	return "latest"
}

func (v VersionSpec) String() string {
	return fmt.Sprint(v.value())
}

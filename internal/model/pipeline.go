package model

// Pipeline is the declarative description of resources and the jobs that
// consume and produce them.
type Pipeline struct {
	Resources     []Resource     `yaml:"resources" json:"resources"`
	ResourceTypes []ResourceType `yaml:"resource_types" json:"resource_types"`
	Jobs          []Job          `yaml:"jobs" json:"jobs"`
}

// Resource is an external versioned artifact: a git repo, an image, a file
// in a bucket.
type Resource struct {
	Name         string                 `yaml:"name" json:"name"`
	Type         string                 `yaml:"type" json:"type"`
	Source       map[string]interface{} `yaml:"source" json:"source"`
	Version      Version                `yaml:"version,omitempty" json:"version,omitempty"`
	CheckEvery   string                 `yaml:"check_every" json:"check_every"`
	Tags         []string               `yaml:"tags" json:"tags"`
	WebhookToken string                 `yaml:"webhook_token,omitempty" json:"webhook_token,omitempty"`
}

// ResourceType overrides the image used for a resource type.
type ResourceType struct {
	Name       string                 `yaml:"name" json:"name"`
	Type       string                 `yaml:"type" json:"type"`
	Source     map[string]interface{} `yaml:"source" json:"source"`
	Privileged bool                   `yaml:"privileged" json:"privileged"`
	Params     map[string]interface{} `yaml:"params" json:"params"`
	CheckEvery string                 `yaml:"check_every" json:"check_every"`
	Tags       []string               `yaml:"tags" json:"tags"`
}

// Job is a named plan of steps.
type Job struct {
	Name                 string   `yaml:"name" json:"name"`
	Plan                 []Step   `yaml:"plan" json:"plan"`
	Serial               bool     `yaml:"serial" json:"serial"`
	BuildLogsToRetain    int      `yaml:"build_logs_to_retain,omitempty" json:"build_logs_to_retain,omitempty"`
	SerialGroups         []string `yaml:"serial_groups" json:"serial_groups"`
	MaxInFlight          int      `yaml:"max_in_flight,omitempty" json:"max_in_flight,omitempty"`
	Public               bool     `yaml:"public" json:"public"`
	DisableManualTrigger bool     `yaml:"disable_manual_trigger" json:"disable_manual_trigger"`
	Interruptible        bool     `yaml:"interruptible" json:"interruptible"`

	OnSuccess *Step `yaml:"on_success,omitempty" json:"on_success,omitempty"`
	OnFailure *Step `yaml:"on_failure,omitempty" json:"on_failure,omitempty"`
	OnAbort   *Step `yaml:"on_abort,omitempty" json:"on_abort,omitempty"`
	Ensure    *Step `yaml:"ensure,omitempty" json:"ensure,omitempty"`
}

// Version identifies one concrete version of a resource.
type Version map[string]string

// Equal reports whether both versions hold the same keys and values.
func (v Version) Equal(other Version) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		if o, ok := other[k]; !ok || o != val {
			return false
		}
	}
	return true
}

// Resource returns the resource with the given name.
func (p *Pipeline) Resource(name string) (*Resource, bool) {
	for i := range p.Resources {
		if p.Resources[i].Name == name {
			return &p.Resources[i], true
		}
	}
	return nil, false
}

// Job returns the job with the given name.
func (p *Pipeline) Job(name string) (*Job, bool) {
	for i := range p.Jobs {
		if p.Jobs[i].Name == name {
			return &p.Jobs[i], true
		}
	}
	return nil, false
}

// JobNames returns job names in declaration order.
func (p *Pipeline) JobNames() []string {
	names := make([]string, 0, len(p.Jobs))
	for _, job := range p.Jobs {
		names = append(names, job.Name)
	}
	return names
}

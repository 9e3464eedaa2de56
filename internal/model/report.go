package model

import "time"

// RunReport is the outcome of one `station run` invocation.
type RunReport struct {
	APIVersion string      `json:"apiVersion" yaml:"apiVersion"`
	Kind       string      `json:"kind" yaml:"kind"`
	RunID      string      `json:"runId" yaml:"runId"`
	Pipeline   string      `json:"pipeline" yaml:"pipeline"`
	DryRun     bool        `json:"dryRun" yaml:"dryRun"`
	StartedAt  time.Time   `json:"startedAt" yaml:"startedAt"`
	FinishedAt time.Time   `json:"finishedAt" yaml:"finishedAt"`
	Jobs       []JobReport `json:"jobs" yaml:"jobs"`
}

// JobReport is the terminal state of one job and the outcome of each of its
// leaf steps.
type JobReport struct {
	Name  string       `json:"name" yaml:"name"`
	State string       `json:"state" yaml:"state"`
	Error string       `json:"error,omitempty" yaml:"error,omitempty"`
	Steps []StepReport `json:"steps" yaml:"steps"`
}

// StepReport lists recorded attempts of a leaf, oldest first.
type StepReport struct {
	ID       string   `json:"id" yaml:"id"`
	Kind     string   `json:"kind" yaml:"kind"`
	Attempts []string `json:"attempts" yaml:"attempts"`
	Reason   string   `json:"reason,omitempty" yaml:"reason,omitempty"`
	Duration string   `json:"duration,omitempty" yaml:"duration,omitempty"`
}

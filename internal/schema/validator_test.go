package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validPipeline = `
resources:
- name: repo
  type: git
  source: {uri: "git@example.com:repo"}
jobs:
- name: build
  plan:
  - get: repo
    trigger: true
    version: every
  - task: unit
    attempts: 2
    timeout: 1h30m
    config:
      platform: linux
      image_resource:
        type: registry-image
        source: {repository: golang}
      run: {path: go, args: [test, ./...]}
      inputs: [{name: repo}]
  - aggregate:
    - put: repo
      params: {repository: repo}
    - try:
        put: repo
  ensure:
    put: repo
`

func newValidator(t *testing.T) *Validator {
	t.Helper()
	v, err := New()
	require.NoError(t, err)
	return v
}

func TestValidatePipeline(t *testing.T) {
	assert.NoError(t, newValidator(t).ValidatePipeline([]byte(validPipeline)))
}

func TestValidatePipelineJSON(t *testing.T) {
	doc := `{"jobs":[{"name":"build","plan":[{"get":"repo","version":{"ref":"abc"}}]}]}`
	assert.NoError(t, newValidator(t).ValidatePipeline([]byte(doc)))
}

func TestValidatePipelineRejects(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"no jobs", `resources: []`},
		{"unknown top level key", "jobs: [{name: a, plan: []}]\ngroups: []"},
		{"job without name", `jobs: [{plan: []}]`},
		{"unknown step key", `jobs: [{name: a, plan: [{get: repo, bogus: true}]}]`},
		{"step with two kinds", `jobs: [{name: a, plan: [{get: repo, put: repo}]}]`},
		{"step with no kind", `jobs: [{name: a, plan: [{resource: repo}]}]`},
		{"bad version keyword", `jobs: [{name: a, plan: [{get: repo, version: oldest}]}]`},
		{"zero attempts", `jobs: [{name: a, plan: [{get: repo, attempts: 0}]}]`},
		{"bad timeout", `jobs: [{name: a, plan: [{get: repo, timeout: soon}]}]`},
		{"task without run", `jobs: [{name: a, plan: [{task: t, config: {platform: linux}}]}]`},
		{"resource without type", "resources: [{name: r}]\njobs: [{name: a, plan: []}]"},
		{"empty plan", `jobs: [{name: a, plan: []}]`},
		{"empty do", `jobs: [{name: a, plan: [{do: []}]}]`},
		{"empty aggregate", `jobs: [{name: a, plan: [{aggregate: []}]}]`},
	}

	v := newValidator(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, v.ValidatePipeline([]byte(tt.doc)))
		})
	}
}

func TestValidateHistory(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.ValidateHistory([]byte(`{"build/plan[0]/get:repo/get": ["failed", "success"]}`)))
	assert.Error(t, v.ValidateHistory([]byte(`{"a": ["error"]}`)))
	assert.Error(t, v.ValidateHistory([]byte(`["success"]`)))
}

func TestToJSON(t *testing.T) {
	out, err := ToJSON([]byte("a: 1\nb: [x]\n"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":1,"b":["x"]}`, string(out))

	_, err = ToJSON([]byte("a: [unclosed"))
	assert.Error(t, err)
}

package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtarchie/station/internal/model"
)

func TestPipelineDefaults(t *testing.T) {
	p := &model.Pipeline{
		Resources:     []model.Resource{{Name: "repo", Type: "git"}},
		ResourceTypes: []model.ResourceType{{Name: "slack", Type: "registry-image"}},
		Jobs: []model.Job{{
			Name: "build",
			Plan: []model.Step{
				{Get: "repo"},
				{Do: []model.Step{{Put: "repo", Ensure: &model.Step{Get: "repo"}}}},
				{Task: "unit", Config: &model.TaskConfig{
					Inputs:  []model.TaskInput{{Name: "repo"}, {Name: "cache", Path: "tmp/cache"}},
					Outputs: []model.TaskOutput{{Name: "out"}},
				}},
			},
		}},
	}

	require.NoError(t, Pipeline(p))

	r := p.Resources[0]
	assert.Equal(t, "1m", r.CheckEvery)
	assert.NotNil(t, r.Source)
	assert.Equal(t, []string{}, r.Tags)
	assert.Equal(t, "1m", p.ResourceTypes[0].CheckEvery)
	assert.NotNil(t, p.ResourceTypes[0].Params)
	assert.Equal(t, []string{}, p.Jobs[0].SerialGroups)

	plan := p.Jobs[0].Plan
	assert.Equal(t, "repo", plan[0].Resource)
	assert.Equal(t, 1, plan[0].Attempts)
	assert.Equal(t, "repo", plan[1].Do[0].Resource)
	assert.Equal(t, "repo", plan[1].Do[0].Ensure.Resource)
	assert.Equal(t, "repo", plan[2].Config.Inputs[0].Path)
	assert.Equal(t, "tmp/cache", plan[2].Config.Inputs[1].Path)
	assert.Equal(t, "out", plan[2].Config.Outputs[0].Path)
}

func TestPipelineReferenceErrors(t *testing.T) {
	p := &model.Pipeline{
		Resources: []model.Resource{{Name: "repo", Type: "git"}, {Name: "repo", Type: "git"}},
		Jobs: []model.Job{
			{Name: "build", Plan: []model.Step{
				{Get: "missing"},
				{Get: "repo", Passed: []string{"nowhere", "build"}},
				{Try: &model.Step{Task: "unit"}},
			}},
			{Name: "build", Plan: []model.Step{}},
		},
	}

	err := Pipeline(p)
	require.Error(t, err)
	for _, msg := range []string{
		`resource "repo" is declared more than once`,
		`job "build" is declared more than once`,
		`undeclared resource "missing"`,
		`unknown job "nowhere"`,
		"cannot require its own job",
		"task unit has no config",
	} {
		assert.ErrorContains(t, err, msg)
	}
}

func TestPipelineNil(t *testing.T) {
	assert.Error(t, Pipeline(nil))
}

func TestWalkVisitsHooks(t *testing.T) {
	s := &model.Step{
		Do:        []model.Step{{Get: "a"}, {Aggregate: []model.Step{{Put: "b"}}}},
		OnFailure: &model.Step{Task: "c"},
	}

	var names []string
	Walk(s, func(s *model.Step) { names = append(names, s.Name()) })
	assert.Equal(t, []string{"do", "a", "aggregate", "b", "c"}, names)
}

package builder

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
)

func testPipeline() *model.Pipeline {
	return &model.Pipeline{
		Resources: []model.Resource{
			{Name: "repo", Type: "git", Source: map[string]interface{}{"uri": "git@example.com:repo"}},
			{Name: "image", Type: "registry-image"},
		},
		Jobs: []model.Job{
			{
				Name: "build",
				Plan: []model.Step{
					{Get: "repo", Trigger: true, Passed: []string{"lint"}},
					{Task: "unit", Config: &model.TaskConfig{
						Platform: "linux",
						Run:      &model.TaskRun{Path: "make"},
					}, Timeout: "5m"},
					{Put: "image", Params: map[string]interface{}{"build": "repo"}},
				},
			},
		},
	}
}

func ids(step planner.Step) []string {
	out := []string{}
	for _, leaf := range planner.Leaves(step) {
		out = append(out, leaf.ID)
	}
	return out
}

func TestPlanLeafIdentities(t *testing.T) {
	plan, err := New(testPipeline()).Plan("build")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"build/plan[0]/get:repo/trigger",
		"build/plan[0]/get:repo/check",
		"build/plan[0]/get:repo/get",
		"build/plan[1]/task:unit/task",
		"build/plan[2]/put:image/put",
	}, ids(plan))
}

func TestPlanActions(t *testing.T) {
	plan, err := New(testPipeline()).Plan("build")
	require.NoError(t, err)
	leaves := planner.Leaves(plan)

	trigger := leaves[0].Action.(*actions.TriggerResource)
	assert.Equal(t, "repo", trigger.Resource.Name)
	assert.Equal(t, []string{"lint"}, trigger.Passed)

	get := leaves[2].Action.(*actions.GetResource)
	assert.Equal(t, "build", get.Job)
	assert.Equal(t, []string{"lint"}, get.Passed)

	task := leaves[3].Action.(*actions.Task)
	assert.Equal(t, 5*time.Minute, task.Timeout)
	assert.Equal(t, "make", task.Config.Run.Path)

	put := leaves[4].Action.(*actions.PutResource)
	assert.Equal(t, map[string]interface{}{"build": "repo"}, put.Params)
}

func TestPlanShapes(t *testing.T) {
	p := testPipeline()
	p.Jobs[0].Plan = []model.Step{
		{Aggregate: []model.Step{{Get: "repo"}, {Get: "image"}}, Attempts: 2},
		{Do: []model.Step{{Put: "image"}}},
		{Try: &model.Step{Put: "repo"}},
	}

	plan, err := New(p).Plan("build")
	require.NoError(t, err)

	root := plan.(*planner.Serial)
	require.Len(t, root.Steps, 3)

	aggregate := root.Steps[0].(*planner.Parallel)
	assert.Equal(t, 2, aggregate.Attempts)
	assert.Len(t, aggregate.Steps, 2)

	do := root.Steps[1].(*planner.Serial)
	assert.IsType(t, &planner.Serial{}, do.Steps[0])

	try := root.Steps[2].(*planner.Try)
	assert.IsType(t, &planner.Serial{}, try.Step)

	assert.Equal(t, []string{
		"build/plan[0]/aggregate[0]/get:repo/check",
		"build/plan[0]/aggregate[0]/get:repo/get",
		"build/plan[0]/aggregate[1]/get:image/check",
		"build/plan[0]/aggregate[1]/get:image/get",
		"build/plan[1]/do[0]/put:image/put",
		"build/plan[2]/try/put:repo/put",
	}, ids(plan))
}

func TestPlanHooks(t *testing.T) {
	p := testPipeline()
	notify := &model.Step{Put: "image"}
	p.Jobs[0].Plan = []model.Step{
		{Get: "repo", OnFailure: notify, Ensure: &model.Step{Put: "repo"}, Attempts: 3},
	}
	p.Jobs[0].OnSuccess = &model.Step{Put: "image"}

	plan, err := New(p).Plan("build")
	require.NoError(t, err)

	root := plan.(*planner.Serial)
	assert.Equal(t, []string{"build/on_success/put:image/put"}, ids(root.OnSuccess))

	get := root.Steps[0].(*planner.Serial)
	assert.Equal(t, 3, get.Attempts)
	assert.Equal(t, planner.Noop{}, get.OnSuccess)
	assert.Equal(t, []string{"build/plan[0]/get:repo/on_failure/put:image/put"}, ids(get.OnFailure))
	assert.Equal(t, []string{"build/plan[0]/get:repo/ensure/put:repo/put"}, ids(get.OnFinally))
}

func TestPlanTryWithHooksIsWrapped(t *testing.T) {
	p := testPipeline()
	p.Jobs[0].Plan = []model.Step{
		{Try: &model.Step{Put: "repo"}, Ensure: &model.Step{Put: "image"}},
	}

	plan, err := New(p).Plan("build")
	require.NoError(t, err)

	wrapper := plan.(*planner.Serial).Steps[0].(*planner.Serial)
	assert.IsType(t, &planner.Try{}, wrapper.Steps[0])
	assert.Equal(t, []string{"build/plan[0]/try/ensure/put:image/put"}, ids(wrapper.OnFinally))
}

func TestPlanErrors(t *testing.T) {
	_, err := New(testPipeline()).Plan("deploy")
	assert.ErrorIs(t, err, ErrUnknownJob)

	p := testPipeline()
	p.Jobs[0].Plan = []model.Step{{Get: "missing"}}
	_, err = New(p).Plan("build")
	assert.ErrorContains(t, err, `undeclared resource "missing"`)

	p = testPipeline()
	p.Jobs[0].Plan = []model.Step{{Task: "unit"}}
	_, err = New(p).Plan("build")
	assert.ErrorContains(t, err, "has no config")

	p = testPipeline()
	p.Jobs[0].Plan[1].Timeout = "soon"
	_, err = New(p).Plan("build")
	assert.ErrorContains(t, err, `invalid timeout "soon"`)

	p = testPipeline()
	p.Jobs[0].Plan = []model.Step{{}}
	_, err = New(p).Plan("build")
	assert.Error(t, err)
}

func TestPlans(t *testing.T) {
	p := testPipeline()
	p.Jobs = append(p.Jobs, model.Job{Name: "ship", Plan: []model.Step{{Put: "image"}}})

	plans, err := New(p).Plans()
	require.NoError(t, err)
	assert.Len(t, plans, 2)
	assert.Equal(t, []string{"ship/plan[0]/put:image/put"}, ids(plans["ship"]))
}

func TestPlanResourceAlias(t *testing.T) {
	p := testPipeline()
	p.Jobs[0].Plan = []model.Step{{Get: "source", Resource: "repo"}}

	plan, err := New(p).Plan("build")
	require.NoError(t, err)

	get := planner.Leaves(plan)[1].Action.(*actions.GetResource)
	assert.Equal(t, "source", get.Name)
	assert.Equal(t, "repo", get.Resource.Name)
}

package render

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/executor"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
)

func fixedRenderer() *Renderer {
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &Renderer{now: func() time.Time { return at }}
}

func jobTree() planner.Step {
	return planner.NewSerial([]planner.Step{
		planner.NewLeaf("build/plan[0]/get:repo/check", &actions.CheckResource{}),
		planner.NewLeaf("build/plan[0]/get:repo/get", &actions.GetResource{}),
		planner.NewLeaf("build/plan[1]/task:unit/task", &actions.Task{}),
	}, planner.WithAttempts(2))
}

func TestAddJob(t *testing.T) {
	r := fixedRenderer()
	report := r.NewReport("pipeline.yml", true)

	h := planner.History{
		"build/plan[0]/get:repo/check": {planner.Success, planner.Success},
		"build/plan[0]/get:repo/get":   {planner.Success, planner.Success},
		"build/plan[1]/task:unit/task": {planner.Failed, planner.Failed},
	}
	events := []executor.Event{
		{Leaf: "build/plan[1]/task:unit/task", Attempt: 1, Status: planner.Failed, Reason: "task unit exited with code 1", Duration: time.Second},
		{Leaf: "build/plan[1]/task:unit/task", Attempt: 2, Status: planner.Failed, Reason: "task unit exited with code 2", Duration: time.Second},
	}
	r.AddJob(report, "build", jobTree(), h, events, nil)
	r.Finish(report)

	require.Len(t, report.Jobs, 1)
	job := report.Jobs[0]
	assert.Equal(t, "failed", job.State)
	assert.Empty(t, job.Error)
	require.Len(t, job.Steps, 3)
	assert.Equal(t, model.StepReport{
		ID:       "build/plan[1]/task:unit/task",
		Kind:     "task",
		Attempts: []string{"failed", "failed"},
		Reason:   "task unit exited with code 2",
		Duration: "2s",
	}, job.Steps[2])
	assert.Equal(t, "check", job.Steps[0].Kind)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, report.StartedAt, report.FinishedAt)
}

func TestAddJobWithError(t *testing.T) {
	r := fixedRenderer()
	report := r.NewReport("pipeline.yml", false)
	r.AddJob(report, "build", jobTree(), nil, nil, errors.New("unsupported action"))

	job := report.Jobs[0]
	assert.Equal(t, "unsupported action", job.Error)
	assert.Equal(t, []string{}, job.Steps[0].Attempts)
}

func TestWriteReport(t *testing.T) {
	r := fixedRenderer()
	report := r.NewReport("pipeline.yml", true)
	r.AddJob(report, "build", jobTree(), planner.History{}, nil, nil)

	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "out", "report.json")
	require.NoError(t, r.WriteReport(report, jsonPath))
	data, err := os.ReadFile(jsonPath)
	require.NoError(t, err)
	var decoded model.RunReport
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.RunID, decoded.RunID)

	yamlPath := filepath.Join(dir, "report.yaml")
	require.NoError(t, r.WriteReport(report, yamlPath))
	data, err = os.ReadFile(yamlPath)
	require.NoError(t, err)
	var doc map[string]interface{}
	require.NoError(t, yaml.Unmarshal(data, &doc))
	assert.Equal(t, "RunReport", doc["kind"])
}

func TestDebugDump(t *testing.T) {
	r := fixedRenderer()
	report := r.NewReport("pipeline.yml", true)
	r.AddJob(report, "build", jobTree(), planner.History{"build/plan[0]/get:repo/check": {planner.Failed}}, nil, nil)

	out := r.DebugDump(report)
	assert.Contains(t, out, "Job: build")
	assert.Contains(t, out, "build/plan[0]/get:repo/check [check] [failed]")
}

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/jtarchie/station/internal/loader"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/versions"
)

const testPipeline = `
resources:
- name: repo
  type: git
  source: {uri: "git@example.com:repo"}
jobs:
- name: build
  plan:
  - get: repo
    trigger: true
  - task: unit
    config:
      platform: linux
      image_resource: {type: registry-image, source: {repository: golang}}
      run: {path: go, args: [test, ./...]}
      inputs: [{name: repo}]
- name: ship
  plan:
  - get: repo
    trigger: true
    passed: [build]
  - put: repo
`

func execute(t *testing.T, args ...string) error {
	t.Helper()
	t.Setenv("STATION_WORKDIR", t.TempDir())
	runHistory, runReport, runMetricsFile = "", "", ""
	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func writePipeline(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pipeline.yml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestValidateCommand(t *testing.T) {
	require.NoError(t, execute(t, "validate", "-p", writePipeline(t, testPipeline)))
}

func TestValidateCommandRejectsCycles(t *testing.T) {
	cyclic := `
resources:
- {name: repo, type: git}
jobs:
- {name: a, plan: [{get: repo, passed: [b]}]}
- {name: b, plan: [{get: repo, passed: [a]}]}
`
	err := execute(t, "validate", "-p", writePipeline(t, cyclic))
	assert.ErrorContains(t, err, "cycle")
}

func TestRunCommandDryRun(t *testing.T) {
	dir := t.TempDir()
	historyFile := filepath.Join(dir, "history.json")
	reportFile := filepath.Join(dir, "report.yaml")
	metricsFile := filepath.Join(dir, "station.prom")

	err := execute(t, "run", "-p", writePipeline(t, testPipeline),
		"--history", historyFile, "--report", reportFile, "--metrics-file", metricsFile)
	require.NoError(t, err)

	history, err := loader.LoadHistory(historyFile)
	require.NoError(t, err)
	assert.Equal(t, []planner.Status{planner.Success}, history["build/plan[1]/task:unit/task"])
	assert.Equal(t, []planner.Status{planner.Success}, history["ship/plan[1]/put:repo/put"])

	data, err := os.ReadFile(reportFile)
	require.NoError(t, err)
	var report model.RunReport
	require.NoError(t, yaml.Unmarshal(data, &report))
	assert.True(t, report.DryRun)
	require.Len(t, report.Jobs, 2)
	assert.Equal(t, "build", report.Jobs[0].Name)
	assert.Equal(t, "success", report.Jobs[1].State)

	assert.FileExists(t, metricsFile)
}

func TestRunCommandRestartsInterruptedJob(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, loader.SaveHistory(historyFile, planner.History{
		"build/plan[0]/get:repo/trigger": {planner.Success},
		"build/plan[0]/get:repo/check":   {planner.Success},
		"build/plan[0]/get:repo/get":     {planner.Success},
	}))

	require.NoError(t, execute(t, "run", "-p", writePipeline(t, testPipeline), "--history", historyFile))

	history, err := loader.LoadHistory(historyFile)
	require.NoError(t, err)
	assert.Equal(t, []planner.Status{planner.Success}, history["build/plan[0]/get:repo/get"], "the get ran again")
	assert.Equal(t, []planner.Status{planner.Success}, history["build/plan[1]/task:unit/task"], "the task found its input")

	snapshot, err := loader.LoadVersions(loader.VersionsPath(historyFile))
	require.NoError(t, err)
	require.Len(t, snapshot["repo"], 1)
	assert.Equal(t, []string{"build", "ship"}, snapshot["repo"][0].Passed)
}

func TestRunCommandResumesWithSavedVersions(t *testing.T) {
	historyFile := filepath.Join(t.TempDir(), "history.json")
	require.NoError(t, loader.SaveHistory(historyFile, planner.History{
		"build/plan[0]/get:repo/trigger": {planner.Success},
		"build/plan[0]/get:repo/check":   {planner.Success},
		"build/plan[0]/get:repo/get":     {planner.Success},
		"build/plan[1]/task:unit/task":   {planner.Success},
	}))
	require.NoError(t, loader.SaveVersions(loader.VersionsPath(historyFile), map[string][]versions.Entry{
		"repo": {{Version: model.Version{"ref": "abc"}, Passed: []string{"build"}}},
	}))

	require.NoError(t, execute(t, "run", "-p", writePipeline(t, testPipeline), "--history", historyFile))

	history, err := loader.LoadHistory(historyFile)
	require.NoError(t, err)
	assert.Equal(t, []planner.Status{planner.Success}, history["build/plan[1]/task:unit/task"], "the finished job is not run again")
	assert.Equal(t, []planner.Status{planner.Success}, history["ship/plan[0]/get:repo/trigger"], "passed is met by the saved version")
	assert.Equal(t, []planner.Status{planner.Success}, history["ship/plan[1]/put:repo/put"])
}

func TestRestartIfInterrupted(t *testing.T) {
	root := planner.NewSerial([]planner.Step{planner.NewLeaf("j/a", nil), planner.NewLeaf("j/b", nil)})

	finished := planner.History{"j/a": {planner.Success}, "j/b": {planner.Failed}}
	assert.False(t, restartIfInterrupted(finished, root))
	assert.Len(t, finished, 2)

	partial := planner.History{"j/a": {planner.Success}, "other/x": {planner.Success}}
	assert.True(t, restartIfInterrupted(partial, root))
	assert.Equal(t, planner.History{"other/x": {planner.Success}}, partial)

	assert.False(t, restartIfInterrupted(planner.History{}, root))
}

func TestExitError(t *testing.T) {
	err := &exitError{code: 2, msg: "jobs failed: [ship]"}
	assert.Equal(t, "jobs failed: [ship]", err.Error())
}

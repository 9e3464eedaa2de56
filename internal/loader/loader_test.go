package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/versions"
)

const pipelineYAML = `
resources:
- name: repo
  type: git
  source: {uri: "git@example.com:repo"}
jobs:
- name: build
  plan:
  - get: source
    resource: repo
    version: {ref: abc}
    passed: [lint]
  - task: unit
    config:
      platform: linux
      run: {path: make, args: [test]}
      inputs: [{name: source}]
`

func write(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadPipeline(t *testing.T) {
	p, err := LoadPipeline(write(t, "pipeline.yml", pipelineYAML))
	require.NoError(t, err)

	require.Len(t, p.Jobs, 1)
	steps := p.Jobs[0].Plan
	require.Len(t, steps, 2)
	assert.Equal(t, model.KindGet, steps[0].Kind())
	assert.Equal(t, "repo", steps[0].ResourceName())
	assert.Equal(t, model.Version{"ref": "abc"}, steps[0].Version.Pinned)
	assert.Equal(t, []string{"make", "test"}, append([]string{steps[1].Config.Run.Path}, steps[1].Config.Run.Args...))
}

func TestLoadPipelineInvalid(t *testing.T) {
	_, err := LoadPipeline(write(t, "pipeline.yml", "jobs: [{name: build, plan: [{get: repo, nope: 1}]}]"))
	assert.ErrorIs(t, err, ErrInvalidPipeline)
}

func TestLoadPipelineMissing(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yml"))
	assert.ErrorContains(t, err, "failed to read pipeline file")
}

func TestHistoryRoundTrip(t *testing.T) {
	h := planner.History{
		"build/plan[0]/get:repo/get": {planner.Failed, planner.Success},
	}

	for _, name := range []string{"history.json", "history.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveHistory(path, h))

			loaded, err := LoadHistory(path)
			require.NoError(t, err)
			assert.Equal(t, h, loaded)
		})
	}
}

func TestLoadHistoryMissingIsEmpty(t *testing.T) {
	h, err := LoadHistory(filepath.Join(t.TempDir(), "history.json"))
	require.NoError(t, err)
	assert.Empty(t, h)
}

func TestLoadHistoryRejectsUnknownStatus(t *testing.T) {
	_, err := LoadHistory(write(t, "history.json", `{"a": ["errored"]}`))
	assert.ErrorContains(t, err, "invalid history")
}

func TestVersionsRoundTrip(t *testing.T) {
	snapshot := map[string][]versions.Entry{
		"repo": {
			{Version: model.Version{}, Passed: []string{"build"}},
			{Version: model.Version{"ref": "abc"}, Passed: []string{}},
		},
	}

	for _, name := range []string{"history.versions.json", "history.versions.yml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			require.NoError(t, SaveVersions(path, snapshot))

			loaded, err := LoadVersions(path)
			require.NoError(t, err)
			assert.Equal(t, snapshot, loaded)
		})
	}
}

func TestLoadVersionsMissingIsEmpty(t *testing.T) {
	snapshot, err := LoadVersions(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	assert.Empty(t, snapshot)
}

func TestVersionsPath(t *testing.T) {
	assert.Equal(t, "state/history.versions.json", VersionsPath("state/history.json"))
	assert.Equal(t, "run.versions.yml", VersionsPath("run.yml"))
	assert.Equal(t, "history.versions", VersionsPath("history"))
}

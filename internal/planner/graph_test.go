package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTopologicalSort(t *testing.T) {
	g := NewJobGraph(map[string][]string{
		"ship":        {"integration", "unit"},
		"integration": {"build"},
		"unit":        {"build"},
		"build":       nil,
	})

	require.NoError(t, g.DetectCycles())
	sorted, err := g.TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "integration", "unit", "ship"}, sorted)
}

func TestTopologicalSortAddsImplicitJobs(t *testing.T) {
	sorted, err := NewJobGraph(map[string][]string{"ship": {"build"}}).TopologicalSort()
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "ship"}, sorted)
}

func TestDetectCycles(t *testing.T) {
	g := NewJobGraph(map[string][]string{
		"a": {"c"},
		"b": {"a"},
		"c": {"b"},
		"d": nil,
	})

	err := g.DetectCycles()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a -> c -> b -> a")

	_, err = g.TopologicalSort()
	assert.ErrorContains(t, err, "cycle detected")
}

func TestDetectSelfCycle(t *testing.T) {
	assert.Error(t, NewJobGraph(map[string][]string{"a": {"a"}}).DetectCycles())
}

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistoryRecord(t *testing.T) {
	h := History{}

	require.NoError(t, h.Record("A", 1, Failed))
	require.NoError(t, h.Record("A", 2, Success))
	assert.Equal(t, []Status{Failed, Success}, h["A"])
	assert.Equal(t, Failed, h.At("A", 1))
	assert.Equal(t, Success, h.At("A", 2))
	assert.Equal(t, Unstarted, h.At("A", 3))
	assert.Equal(t, Unstarted, h.At("missing", 1))
}

func TestHistoryRecordTwice(t *testing.T) {
	h := History{}
	require.NoError(t, h.Record("A", 1, Success))

	err := h.Record("A", 1, Failed)
	require.ErrorIs(t, err, ErrAlreadyRecorded)
	assert.Equal(t, []Status{Success}, h["A"])
}

func TestHistoryRecordPadsSkippedAttempts(t *testing.T) {
	h := History{}
	require.NoError(t, h.Record("C", 3, Success))
	assert.Equal(t, []Status{Unstarted, Unstarted, Success}, h["C"])

	require.NoError(t, h.Record("C", 1, Failed), "a padded slot is still open")
	assert.Equal(t, []Status{Failed, Unstarted, Success}, h["C"])
}

func TestHistoryRecordRejectsInvalid(t *testing.T) {
	h := History{}
	assert.Error(t, h.Record("A", 0, Success))
	assert.Error(t, h.Record("A", 1, Status("errored")))
	assert.Empty(t, h)
}

func TestHistoryClone(t *testing.T) {
	h := History{"A": {Success}}
	c := h.Clone()
	c["A"][0] = Failed
	c["B"] = []Status{Running}

	assert.Equal(t, Success, h.At("A", 1))
	assert.NotContains(t, h, "B")
}

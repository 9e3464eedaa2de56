package planner

import (
	"errors"
	"fmt"
)

// Status is the outcome of a leaf attempt, or the derived state of a
// container. The zero value means "no state" and is only ever produced by
// Noop.
type Status string

const (
	Unstarted Status = "unstarted"
	Running   Status = "running"
	Success   Status = "success"
	Failed    Status = "failed"
)

// Valid reports whether s is one of the four recordable statuses.
func (s Status) Valid() bool {
	switch s {
	case Unstarted, Running, Success, Failed:
		return true
	}
	return false
}

// ErrAlreadyRecorded is returned when an attempt of a leaf already has an
// outcome.
var ErrAlreadyRecorded = errors.New("attempt already recorded")

// History maps a leaf identity to its outcomes; index k holds attempt k+1.
type History map[string][]Status

// At returns the status of the given attempt, Unstarted when none exists.
func (h History) At(id string, attempt int) Status {
	entries := h[id]
	if attempt < 1 || attempt > len(entries) {
		return Unstarted
	}
	return entries[attempt-1]
}

// Record appends the outcome of an attempt. Attempts that were skipped are
// filled with Unstarted so indices keep their meaning.
func (h History) Record(id string, attempt int, status Status) error {
	if attempt < 1 {
		return fmt.Errorf("invalid attempt %d for %s", attempt, id)
	}
	if !status.Valid() {
		return fmt.Errorf("invalid status %q for %s", status, id)
	}

	entries := h[id]
	if attempt <= len(entries) {
		if entries[attempt-1] != Unstarted {
			return fmt.Errorf("%s attempt %d: %w", id, attempt, ErrAlreadyRecorded)
		}
		entries[attempt-1] = status
		return nil
	}

	for len(entries) < attempt-1 {
		entries = append(entries, Unstarted)
	}
	h[id] = append(entries, status)
	return nil
}

// Clone returns a deep copy.
func (h History) Clone() History {
	out := make(History, len(h))
	for id, entries := range h {
		out[id] = append([]Status(nil), entries...)
	}
	return out
}

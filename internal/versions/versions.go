// Package versions tracks the versions discovered for each resource and the
// jobs each version has passed through.
package versions

import (
	"sort"
	"sync"

	"github.com/jtarchie/station/internal/model"
)

// Entry is one known version of a resource and the jobs it passed, as
// saved between runs.
type Entry struct {
	Version model.Version `json:"version" yaml:"version"`
	Passed  []string      `json:"passed" yaml:"passed"`
}

type entry struct {
	version model.Version
	passed  map[string]bool
}

// Store is safe for concurrent use.
type Store struct {
	mu        sync.RWMutex
	resources map[string][]*entry
}

func New() *Store {
	return &Store{resources: make(map[string][]*entry)}
}

// Add appends versions in discovery order. A version that is already known
// moves to the end with the jobs it passed, so the last version a check
// reports is always the latest.
func (s *Store) Add(resource string, versions ...model.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range versions {
		e := s.getOrInsert(resource, v)
		entries := s.resources[resource]
		for i, other := range entries {
			if other == e {
				entries = append(entries[:i], entries[i+1:]...)
				break
			}
		}
		s.resources[resource] = append(entries, e)
	}
}

// Pass records that version went through job, adding the version if it is
// new.
func (s *Store) Pass(resource string, version model.Version, job string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.getOrInsert(resource, version)
	if job != "" {
		e.passed[job] = true
	}
}

func (s *Store) getOrInsert(resource string, version model.Version) *entry {
	for _, e := range s.resources[resource] {
		if e.version.Equal(version) {
			return e
		}
	}
	e := &entry{version: clone(version), passed: make(map[string]bool)}
	s.resources[resource] = append(s.resources[resource], e)
	return e
}

// Latest returns the most recently discovered version.
func (s *Store) Latest(resource string) (model.Version, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.resources[resource]
	if len(entries) == 0 {
		return model.Version{}, false
	}
	return clone(entries[len(entries)-1].version), true
}

// LatestPassed returns the most recent version that passed every one of
// jobs. With no jobs it behaves like Latest.
func (s *Store) LatestPassed(resource string, jobs []string) (model.Version, bool) {
	if len(jobs) == 0 {
		return s.Latest(resource)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.resources[resource]
	for i := len(entries) - 1; i >= 0; i-- {
		if passedAll(entries[i], jobs) {
			return clone(entries[i].version), true
		}
	}
	return model.Version{}, false
}

// All returns every known version of resource, oldest first.
func (s *Store) All(resource string) []model.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Version, 0, len(s.resources[resource]))
	for _, e := range s.resources[resource] {
		out = append(out, clone(e.version))
	}
	return out
}

// PassedJobs returns the sorted jobs version has passed.
func (s *Store) PassedJobs(resource string, version model.Version) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var jobs []string
	for _, e := range s.resources[resource] {
		if !e.version.Equal(version) {
			continue
		}
		for job := range e.passed {
			jobs = append(jobs, job)
		}
	}
	sort.Strings(jobs)
	return jobs
}

func passedAll(e *entry, jobs []string) bool {
	for _, job := range jobs {
		if !e.passed[job] {
			return false
		}
	}
	return true
}

func clone(v model.Version) model.Version {
	out := make(model.Version, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Snapshot returns every resource's versions, oldest first.
func (s *Store) Snapshot() map[string][]Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string][]Entry, len(s.resources))
	for resource, entries := range s.resources {
		list := make([]Entry, 0, len(entries))
		for _, e := range entries {
			passed := make([]string, 0, len(e.passed))
			for job := range e.passed {
				passed = append(passed, job)
			}
			sort.Strings(passed)
			list = append(list, Entry{Version: clone(e.version), Passed: passed})
		}
		out[resource] = list
	}
	return out
}

// Restore adds the versions of a snapshot in order, merging passed jobs
// into versions the store already knows.
func (s *Store) Restore(snapshot map[string][]Entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resources := make([]string, 0, len(snapshot))
	for resource := range snapshot {
		resources = append(resources, resource)
	}
	sort.Strings(resources)

	for _, resource := range resources {
		for _, saved := range snapshot[resource] {
			e := s.getOrInsert(resource, saved.Version)
			for _, job := range saved.Passed {
				e.passed[job] = true
			}
		}
	}
}

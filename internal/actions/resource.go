package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/runner"
)

// MetadataField is one name/value pair a resource reports about a version.
type MetadataField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type checkRequest struct {
	Source  map[string]interface{} `json:"source"`
	Version model.Version          `json:"version"`
}

type inRequest struct {
	Source  map[string]interface{} `json:"source"`
	Version model.Version          `json:"version"`
	Params  map[string]interface{} `json:"params"`
}

type outRequest struct {
	Source map[string]interface{} `json:"source"`
	Params map[string]interface{} `json:"params"`
}

type versionResponse struct {
	Version  model.Version   `json:"version"`
	Metadata []MetadataField `json:"metadata,omitempty"`
}

// Spec builds the container for a check from the last known version.
func (a *CheckResource) Spec(types *ResourceTypes, version model.Version) (runner.Spec, error) {
	stdin, err := json.Marshal(checkRequest{
		Source:  orEmpty(a.Resource.Source),
		Version: orEmptyVersion(version),
	})
	if err != nil {
		return runner.Spec{}, fmt.Errorf("failed to encode check request for %s: %w", a.Resource.Name, err)
	}
	return runner.Spec{
		Image:      types.Repository(a.Resource.Type),
		Privileged: types.Privileged(a.Resource.Type),
		Command:    []string{"/opt/resource/check"},
		WorkingDir: checkDir,
		Stdin:      stdin,
	}, nil
}

// Perform runs the check and parses the reported version list.
func (a *CheckResource) Perform(ctx context.Context, r runner.Runner, types *ResourceTypes, version model.Version) (*CheckResult, error) {
	spec, err := a.Spec(types, version)
	if err != nil {
		return nil, err
	}
	res, err := r.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to check %s: %w", a.Resource.Name, err)
	}

	result := &CheckResult{Result: toResult(res)}
	if !result.Succeeded() {
		return result, nil
	}
	if len(bytes.TrimSpace(res.Stdout)) > 0 {
		if err := json.Unmarshal(res.Stdout, &result.Versions); err != nil {
			return nil, fmt.Errorf("failed to parse check output of %s: %w", a.Resource.Name, err)
		}
	}
	return result, nil
}

// Spec builds the container for fetching version into dest.
func (a *GetResource) Spec(types *ResourceTypes, version model.Version, dest string) (runner.Spec, error) {
	stdin, err := json.Marshal(inRequest{
		Source:  orEmpty(a.Resource.Source),
		Version: orEmptyVersion(version),
		Params:  orEmpty(a.Params),
	})
	if err != nil {
		return runner.Spec{}, fmt.Errorf("failed to encode get request for %s: %w", a.Name, err)
	}
	return runner.Spec{
		Image:      types.Repository(a.Resource.Type),
		Privileged: types.Privileged(a.Resource.Type),
		Command:    []string{"/opt/resource/in", getDir},
		Volumes:    []runner.Volume{{From: dest, To: getDir}},
		WorkingDir: getDir,
		Stdin:      stdin,
	}, nil
}

// Perform fetches version into dest.
func (a *GetResource) Perform(ctx context.Context, r runner.Runner, types *ResourceTypes, version model.Version, dest string) (*Result, error) {
	spec, err := a.Spec(types, version, dest)
	if err != nil {
		return nil, err
	}
	res, err := r.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", a.Name, err)
	}
	return parseVersionResponse(a.Name, res)
}

// Spec builds the container for a put. Every artifact is mounted under the
// put directory by name so params can refer to files inside them.
func (a *PutResource) Spec(types *ResourceTypes, artifacts map[string]string) (runner.Spec, error) {
	stdin, err := json.Marshal(outRequest{
		Source: orEmpty(a.Resource.Source),
		Params: orEmpty(a.Params),
	})
	if err != nil {
		return runner.Spec{}, fmt.Errorf("failed to encode put request for %s: %w", a.Name, err)
	}

	names := make([]string, 0, len(artifacts))
	for name := range artifacts {
		names = append(names, name)
	}
	sort.Strings(names)

	volumes := make([]runner.Volume, 0, len(names))
	for _, name := range names {
		volumes = append(volumes, runner.Volume{From: artifacts[name], To: path.Join(putDir, name)})
	}

	return runner.Spec{
		Image:      types.Repository(a.Resource.Type),
		Privileged: types.Privileged(a.Resource.Type),
		Command:    []string{"/opt/resource/out", putDir},
		Volumes:    volumes,
		WorkingDir: putDir,
		Stdin:      stdin,
	}, nil
}

// Perform publishes a version and returns the one the resource created.
func (a *PutResource) Perform(ctx context.Context, r runner.Runner, types *ResourceTypes, artifacts map[string]string) (*Result, error) {
	spec, err := a.Spec(types, artifacts)
	if err != nil {
		return nil, err
	}
	res, err := r.Run(ctx, spec)
	if err != nil {
		return nil, fmt.Errorf("failed to put %s: %w", a.Name, err)
	}
	return parseVersionResponse(a.Name, res)
}

// Ready reports whether the trigger condition holds. Without passed
// constraints a trigger always fires; the check that follows it picks up
// new versions.
func (a *TriggerResource) Ready(versions VersionSource) (bool, string) {
	if len(a.Passed) == 0 {
		return true, ""
	}
	if _, ok := versions.LatestPassed(a.Resource.Name, a.Passed); ok {
		return true, ""
	}
	return false, fmt.Sprintf("no version of %s has passed %v", a.Resource.Name, a.Passed)
}

func parseVersionResponse(name string, res *runner.Result) (*Result, error) {
	result := toResult(res)
	if !result.Succeeded() || len(bytes.TrimSpace(res.Stdout)) == 0 {
		return &result, nil
	}

	var resp versionResponse
	if err := json.Unmarshal(res.Stdout, &resp); err != nil {
		return nil, fmt.Errorf("failed to parse output of %s: %w", name, err)
	}
	result.Version = resp.Version
	result.Metadata = resp.Metadata
	return &result, nil
}

func orEmpty(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

func orEmptyVersion(v model.Version) model.Version {
	if v == nil {
		return model.Version{}
	}
	return v
}

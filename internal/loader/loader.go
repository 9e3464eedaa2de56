// Package loader reads pipeline definitions and execution histories from
// disk.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/schema"
	"github.com/jtarchie/station/internal/versions"
)

// ErrInvalidPipeline is returned when a pipeline document does not match
// the pipeline schema.
var ErrInvalidPipeline = errors.New("invalid pipeline")

var validator = sync.OnceValues(schema.New)

// LoadPipeline loads, validates and parses a YAML or JSON pipeline file.
func LoadPipeline(path string) (*model.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipeline file: %w", err)
	}
	return ParsePipeline(data)
}

// ParsePipeline validates data against the pipeline schema and decodes it.
func ParsePipeline(data []byte) (*model.Pipeline, error) {
	v, err := validator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidatePipeline(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPipeline, err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var pipeline model.Pipeline
	if err := dec.Decode(&pipeline); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline YAML: %w", err)
	}
	return &pipeline, nil
}

// LoadHistory reads a history written by SaveHistory. A missing file is an
// empty history so a first run and a resumed run share one code path.
func LoadHistory(path string) (planner.History, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return planner.History{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	v, err := validator()
	if err != nil {
		return nil, err
	}
	if err := v.ValidateHistory(data); err != nil {
		return nil, fmt.Errorf("invalid history %s: %w", path, err)
	}

	h := planner.History{}
	if err := yaml.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse history: %w", err)
	}
	return h, nil
}

// SaveHistory writes h as JSON or YAML depending on the file extension.
func SaveHistory(path string, h planner.History) error {
	if h == nil {
		h = planner.History{}
	}
	return save(path, "history", h)
}

// VersionsPath is where the versions store of a run is kept next to its
// history: history.json keeps its versions in history.versions.json.
func VersionsPath(historyPath string) string {
	ext := filepath.Ext(historyPath)
	return strings.TrimSuffix(historyPath, ext) + ".versions" + ext
}

// LoadVersions reads a versions snapshot written by SaveVersions. A missing
// file is an empty snapshot.
func LoadVersions(path string) (map[string][]versions.Entry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]versions.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read versions file: %w", err)
	}

	snapshot := map[string][]versions.Entry{}
	if err := yaml.Unmarshal(data, &snapshot); err != nil {
		return nil, fmt.Errorf("failed to parse versions: %w", err)
	}
	return snapshot, nil
}

// SaveVersions writes a versions snapshot as JSON or YAML depending on the
// file extension.
func SaveVersions(path string, snapshot map[string][]versions.Entry) error {
	return save(path, "versions", snapshot)
}

func save(path, what string, v any) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(v)
	default:
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", what, err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write %s file: %w", what, err)
	}
	return nil
}

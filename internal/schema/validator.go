// Package schema validates pipeline and history documents against the JSON
// schemas embedded in the binary.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

//go:embed pipeline.schema.yaml
var pipelineSchema []byte

//go:embed history.schema.yaml
var historySchema []byte

const (
	pipelineURI = "station://pipeline.schema.json"
	historyURI  = "station://history.schema.json"
)

// Validator handles JSON schema validation
type Validator struct {
	pipelineSchema *jsonschema.Schema
	historySchema  *jsonschema.Schema
}

// New compiles the embedded schemas.
func New() (*Validator, error) {
	sources := make(map[string][]byte, 2)
	for uri, raw := range map[string][]byte{pipelineURI: pipelineSchema, historyURI: historySchema} {
		data, err := ToJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse schema %s: %w", uri, err)
		}
		sources[uri] = data
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.LoadURL = func(url string) (io.ReadCloser, error) {
		if data, ok := sources[url]; ok {
			return io.NopCloser(bytes.NewReader(data)), nil
		}
		return nil, fmt.Errorf("external schema reference not supported: %s", url)
	}

	v := &Validator{}
	var err error
	if v.pipelineSchema, err = compiler.Compile(pipelineURI); err != nil {
		return nil, fmt.Errorf("failed to compile pipeline schema: %w", err)
	}
	if v.historySchema, err = compiler.Compile(historyURI); err != nil {
		return nil, fmt.Errorf("failed to compile history schema: %w", err)
	}
	return v, nil
}

// ValidatePipeline validates a raw YAML or JSON pipeline document.
func (v *Validator) ValidatePipeline(data []byte) error {
	return validate(v.pipelineSchema, data)
}

// ValidateHistory validates a raw YAML or JSON history document.
func (v *Validator) ValidateHistory(data []byte) error {
	return validate(v.historySchema, data)
}

func validate(schema *jsonschema.Schema, data []byte) error {
	doc, err := decode(data)
	if err != nil {
		return err
	}
	return schema.Validate(doc)
}

// ToJSON converts a YAML (or JSON) document to JSON.
func ToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to convert to JSON: %w", err)
	}
	return out, nil
}

// decode yields the value shape the validator expects: JSON types with
// numbers kept as json.Number.
func decode(data []byte) (interface{}, error) {
	raw, err := ToJSON(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(strings.NewReader(string(raw)))
	dec.UseNumber()

	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return doc, nil
}

package main

import (
	"fmt"

	"github.com/jtarchie/station/internal/loader"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/normalize"
)

// loadPipeline reads, validates and normalises the pipeline file.
func loadPipeline(path string) (*model.Pipeline, error) {
	fmt.Println("□ Loading pipeline...")
	pipeline, err := loader.LoadPipeline(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}

	fmt.Println("□ Normalizing pipeline...")
	if err := normalize.Pipeline(pipeline); err != nil {
		return nil, fmt.Errorf("failed to normalize pipeline: %w", err)
	}
	return pipeline, nil
}

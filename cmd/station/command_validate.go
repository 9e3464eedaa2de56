package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/builder"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a pipeline",
	Long:  "Check the pipeline against its schema, resolve every reference and compile each job without running anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return validatePipeline()
	},
}

func registerValidateCommand(root *cobra.Command) {
	root.AddCommand(validateCmd)
}

func validatePipeline() error {
	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}
	fmt.Println("✓ Pipeline is valid")

	fmt.Println("□ Compiling jobs...")
	plans, err := builder.New(pipeline).Plans()
	if err != nil {
		return fmt.Errorf("compilation failed: %w", err)
	}

	fmt.Println("□ Detecting cycles...")
	order, err := analyze.NewAnalyzer(pipeline).RunOrder()
	if err != nil {
		return fmt.Errorf("cycle detection failed: %w", err)
	}

	fmt.Printf("✓ All validation passed (%d jobs, run order: %v)\n", len(plans), order)
	return nil
}

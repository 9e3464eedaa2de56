package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/render"
)

var resourcesCmd = &cobra.Command{
	Use:     "resources",
	Aliases: []string{"resource"},
	Short:   "List resources and the jobs that use them",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listResources()
	},
}

func registerResourcesCommand(root *cobra.Command) {
	root.AddCommand(resourcesCmd)
}

func listResources() error {
	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}

	resources, err := analyze.NewAnalyzer(pipeline).Resources()
	if err != nil {
		return fmt.Errorf("failed to analyze resources: %w", err)
	}

	fmt.Println("\nResources:")
	fmt.Print(render.ViewResources(resources))
	return nil
}

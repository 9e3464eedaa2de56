package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/builder"
	"github.com/jtarchie/station/internal/planner"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Debug pipeline processing",
	Long:  "Print the normalised pipeline, the job dependencies and the leaf identities each job compiles to.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return debugPipeline()
	},
}

func registerDebugCommand(root *cobra.Command) {
	root.AddCommand(debugCmd)
}

func debugPipeline() error {
	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}

	fmt.Printf("\nResource types: %d\n", len(pipeline.ResourceTypes))
	for _, rt := range pipeline.ResourceTypes {
		fmt.Printf("  - %s: type=%s, privileged=%v\n", rt.Name, rt.Type, rt.Privileged)
	}

	fmt.Printf("Resources: %d\n", len(pipeline.Resources))
	for _, r := range pipeline.Resources {
		fmt.Printf("  - %s: type=%s, check_every=%s, pinned=%v\n", r.Name, r.Type, r.CheckEvery, r.Version)
	}

	resolver := analyze.NewDependencyResolver(pipeline)
	b := builder.New(pipeline)

	fmt.Printf("Jobs: %d\n", len(pipeline.Jobs))
	for _, job := range pipeline.Jobs {
		fmt.Printf("  - %s: steps=%d, upstream=%v, downstream=%v\n",
			job.Name, len(job.Plan), resolver.TransitiveDependencies(job.Name), resolver.TransitiveDependents(job.Name))

		root, err := b.Plan(job.Name)
		if err != nil {
			return err
		}
		for _, leaf := range planner.Leaves(root) {
			fmt.Printf("      %s\n", leaf.ID)
		}
	}
	return nil
}

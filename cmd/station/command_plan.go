package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/builder"
	"github.com/jtarchie/station/internal/loader"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/render"
)

var (
	planJobs    []string
	planHistory string
	planView    string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the step trees of jobs",
	Long:  "Compile jobs into step trees and print them, optionally against a saved history to show progress and the next batch.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showPlan()
	},
}

func registerPlanCommand(root *cobra.Command) {
	root.AddCommand(planCmd)

	planCmd.Flags().StringSliceVarP(&planJobs, "job", "j", nil, "Job to show (repeatable, default all)")
	planCmd.Flags().StringVar(&planHistory, "history", "", "History file to show progress from")
	planCmd.Flags().StringVarP(&planView, "view", "v", "tree", "View (tree/batch)")
}

func showPlan() error {
	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}

	order, err := analyze.NewAnalyzer(pipeline).RunOrder(planJobs...)
	if err != nil {
		return fmt.Errorf("failed to order jobs: %w", err)
	}

	history := planner.History{}
	if planHistory != "" {
		history, err = loader.LoadHistory(planHistory)
		if err != nil {
			return err
		}
	}

	b := builder.New(pipeline)
	for _, name := range order {
		root, err := b.Plan(name)
		if err != nil {
			return err
		}

		viewer := render.NewPlanViewer(name, root, history)
		switch planView {
		case "tree":
			fmt.Println("\n" + viewer.ViewTree())
		case "batch":
			fmt.Println("\n" + viewer.ViewBatch())
		default:
			return fmt.Errorf("unknown view %q, expected tree or batch", planView)
		}
	}
	return nil
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/builder"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/render"
)

var (
	jobsLong   bool
	jobsFormat string
)

var jobsCmd = &cobra.Command{
	Use:     "jobs [job-name]",
	Aliases: []string{"job"},
	Short:   "List and analyze jobs",
	Long:    "List all jobs with the resources they use and the jobs they depend on. Use 'station jobs <name>' for details.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return listJobs(args)
	},
}

func registerJobsCommand(root *cobra.Command) {
	root.AddCommand(jobsCmd)

	jobsCmd.Flags().BoolVarP(&jobsLong, "long", "l", false, "Show the step tree of each job")
	jobsCmd.Flags().StringVarP(&jobsFormat, "format", "f", "text", "Output format (text/yaml)")
}

func listJobs(args []string) error {
	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}
	analyzer := analyze.NewAnalyzer(pipeline)

	var jobs []*analyze.JobSummary
	if len(args) > 0 {
		job, err := analyzer.Job(args[0])
		if err != nil {
			return fmt.Errorf("failed to get job: %w", err)
		}
		jobs = append(jobs, job)
	} else {
		jobs, err = analyzer.Jobs()
		if err != nil {
			return fmt.Errorf("failed to analyze jobs: %w", err)
		}
	}

	if jobsFormat == "yaml" {
		out, err := yaml.Marshal(jobs)
		if err != nil {
			return fmt.Errorf("failed to marshal jobs: %w", err)
		}
		fmt.Print(string(out))
		return nil
	}

	fmt.Println("\n" + render.ViewJobs(jobs))
	if !jobsLong && len(args) == 0 {
		fmt.Println("Run 'station jobs <name>' for detailed information")
		return nil
	}

	b := builder.New(pipeline)
	for _, job := range jobs {
		root, err := b.Plan(job.Name)
		if err != nil {
			return err
		}
		fmt.Println(render.NewPlanViewer(job.Name, root, planner.History{}).ViewTree())
	}
	return nil
}

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/builder"
	"github.com/jtarchie/station/internal/ctxlog"
	"github.com/jtarchie/station/internal/executor"
	"github.com/jtarchie/station/internal/loader"
	"github.com/jtarchie/station/internal/metrics"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
	"github.com/jtarchie/station/internal/render"
	"github.com/jtarchie/station/internal/runner"
	"github.com/jtarchie/station/internal/versions"
	"github.com/jtarchie/station/internal/volumes"
)

var (
	runJobs        []string
	runExecute     bool
	runHistory     string
	runReport      string
	runMetricsFile string
	runDebug       bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run jobs of a pipeline",
	Long:  "Run the selected jobs and their upstream jobs in dependency order, each step in a container. The default is a dry run that prints the containers it would start.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd)
	},
}

func registerRunCommand(root *cobra.Command) {
	root.AddCommand(runCmd)

	runCmd.Flags().StringSliceVarP(&runJobs, "job", "j", nil, "Job to run with its upstream jobs (repeatable, default all)")
	runCmd.Flags().BoolVarP(&runExecute, "execute", "x", false, "Actually start containers (default is dry-run)")
	runCmd.Flags().StringVar(&runHistory, "history", "", "History file to resume from and save to")
	runCmd.Flags().StringVarP(&runReport, "report", "o", "", "Write a run report (json or yaml)")
	runCmd.Flags().StringVar(&runMetricsFile, "metrics-file", "", "Write step metrics in the Prometheus text format")
	runCmd.Flags().Int("concurrency", 0, "Leaves dispatched at once, overrides STATION_CONCURRENCY")
	runCmd.Flags().String("workdir", "", "Directory for artifact volumes, overrides STATION_WORKDIR")
	runCmd.Flags().Duration("step-timeout", 0, "Timeout for steps without their own, overrides STATION_STEP_TIMEOUT")
	runCmd.Flags().Bool("keep-volumes", false, "Keep artifact volumes after the run, overrides STATION_KEEP_VOLUMES")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "Print the run report when done")
}

// applyRunFlags overrides the environment configuration with flags the user
// set explicitly.
func applyRunFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()
	var err error
	if flags.Changed("concurrency") {
		if cfg.Concurrency, err = flags.GetInt("concurrency"); err != nil {
			return err
		}
	}
	if flags.Changed("workdir") {
		if cfg.WorkDir, err = flags.GetString("workdir"); err != nil {
			return err
		}
	}
	if flags.Changed("step-timeout") {
		if cfg.StepTimeout, err = flags.GetDuration("step-timeout"); err != nil {
			return err
		}
	}
	if flags.Changed("keep-volumes") {
		if cfg.KeepVolumes, err = flags.GetBool("keep-volumes"); err != nil {
			return err
		}
	}
	return cfg.Validate()
}

func runPipeline(cmd *cobra.Command) error {
	if err := applyRunFlags(cmd); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger := ctxlog.FromContext(ctx)

	pipeline, err := loadPipeline(pipelineFile)
	if err != nil {
		return err
	}

	fmt.Println("□ Resolving run order...")
	order, err := analyze.NewAnalyzer(pipeline).RunOrder(runJobs...)
	if err != nil {
		return fmt.Errorf("failed to order jobs: %w", err)
	}

	history := planner.History{}
	store := versions.New()
	if runHistory != "" {
		history, err = loader.LoadHistory(runHistory)
		if err != nil {
			return err
		}
		snapshot, err := loader.LoadVersions(loader.VersionsPath(runHistory))
		if err != nil {
			return err
		}
		store.Restore(snapshot)
	}

	dryRun := !runExecute
	if dryRun {
		fmt.Println("□ Dry-run mode enabled. Use --execute to start containers.")
	}

	renderer := render.NewRenderer()
	report := renderer.NewReport(pipelineFile, dryRun)
	m := metrics.New()
	b := builder.New(pipeline)

	r := runner.NewDocker(cfg.Docker, os.Stdout, os.Stderr, dryRun)
	types := actions.NewResourceTypes(pipeline.ResourceTypes...)

	var failed []string
	var runErr error
	for _, name := range order {
		root, err := b.Plan(name)
		if err != nil {
			return err
		}

		if restartIfInterrupted(history, root) {
			fmt.Printf("□ Job %s was interrupted, restarting it...\n", name)
		}
		fmt.Printf("□ Running job %s...\n", name)
		vols, err := volumes.New(filepath.Join(cfg.WorkDir, report.RunID, name))
		if err != nil {
			return err
		}

		dispatcher := executor.NewDispatcher(r, types, store, vols)
		dispatcher.StepTimeout = cfg.StepTimeout
		driver := executor.NewDriver(dispatcher,
			executor.WithConcurrency(cfg.Concurrency),
			executor.WithMetrics(m),
			executor.WithObserver(printEvent),
		)

		history, runErr = driver.Run(ctx, root, history)
		renderer.AddJob(report, name, root, history, driver.Events(), runErr)

		if !cfg.KeepVolumes {
			if err := vols.Cleanup(); err != nil {
				logger.Warn("failed to clean up volumes", "job", name, "error", err)
			}
		}
		if runErr != nil {
			break
		}

		state := planner.State(root, history, 1)
		if state == planner.Success {
			fmt.Printf("✓ Job %s succeeded\n", name)
		} else {
			fmt.Printf("✗ Job %s %s\n", name, state)
			failed = append(failed, name)
		}
	}
	renderer.Finish(report)

	if err := persistRun(renderer, report, m, history, store); err != nil {
		return errors.Join(runErr, err)
	}
	if runDebug {
		fmt.Println("\n" + renderer.DebugDump(report))
	}
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			return fmt.Errorf("run aborted: %w", runErr)
		}
		return fmt.Errorf("run failed: %w", runErr)
	}
	if len(failed) > 0 {
		return &exitError{code: 2, msg: fmt.Sprintf("jobs failed: %v", failed)}
	}

	if dryRun {
		fmt.Println("✓ Dry-run complete")
	} else {
		fmt.Println("✓ Run complete")
	}
	return nil
}

// persistRun writes the history, report and metrics the user asked for.
func persistRun(renderer *render.Renderer, report *model.RunReport, m *metrics.Metrics, history planner.History, store *versions.Store) error {
	if runHistory != "" {
		if err := loader.SaveHistory(runHistory, history); err != nil {
			return err
		}
		if err := loader.SaveVersions(loader.VersionsPath(runHistory), store.Snapshot()); err != nil {
			return err
		}
		fmt.Printf("✓ History saved to: %s\n", runHistory)
	}
	if runReport != "" {
		if err := renderer.WriteReport(report, runReport); err != nil {
			return err
		}
		fmt.Printf("✓ Report saved to: %s\n", runReport)
	}
	if runMetricsFile != "" {
		if err := m.WriteToTextfile(runMetricsFile); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

// restartIfInterrupted drops the recorded attempts of a job that stopped
// part way. The artifacts its finished steps produced lived in the volumes
// of the earlier run, so the job starts over instead of resuming with
// missing inputs. Finished jobs are kept as they are.
func restartIfInterrupted(h planner.History, root planner.Step) bool {
	switch planner.State(root, h, 1) {
	case planner.Success, planner.Failed:
		return false
	}

	restarted := false
	for _, leaf := range planner.Leaves(root) {
		if _, ok := h[leaf.ID]; ok {
			delete(h, leaf.ID)
			restarted = true
		}
	}
	return restarted
}

func printEvent(ev executor.Event) {
	switch ev.Status {
	case planner.Success:
		fmt.Printf("  ✓ %s (attempt %d, %s)\n", ev.Leaf, ev.Attempt, ev.Duration.Round(time.Millisecond))
	default:
		fmt.Printf("  ✗ %s (attempt %d): %s\n", ev.Leaf, ev.Attempt, ev.Reason)
	}
}

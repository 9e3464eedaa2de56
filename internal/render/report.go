package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/executor"
	"github.com/jtarchie/station/internal/model"
	"github.com/jtarchie/station/internal/planner"
)

// Renderer turns driver results into run reports.
type Renderer struct {
	now func() time.Time
}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{now: time.Now}
}

// NewReport starts a report for one run.
func (r *Renderer) NewReport(pipeline string, dryRun bool) *model.RunReport {
	return &model.RunReport{
		APIVersion: "station.jtarchie.com/v1",
		Kind:       "RunReport",
		RunID:      uuid.NewString(),
		Pipeline:   pipeline,
		DryRun:     dryRun,
		StartedAt:  r.now().UTC(),
		Jobs:       []model.JobReport{},
	}
}

// AddJob appends the outcome of one job: its derived state, the attempts
// recorded for each leaf and the reason of the latest failure.
func (r *Renderer) AddJob(report *model.RunReport, name string, root planner.Step, h planner.History, events []executor.Event, runErr error) {
	reasons := make(map[string]string)
	durations := make(map[string]time.Duration)
	for _, ev := range events {
		durations[ev.Leaf] += ev.Duration
		if ev.Reason != "" {
			reasons[ev.Leaf] = ev.Reason
		}
	}

	job := model.JobReport{
		Name:  name,
		State: string(planner.State(root, h, 1)),
		Steps: []model.StepReport{},
	}
	if runErr != nil {
		job.Error = runErr.Error()
	}

	for _, leaf := range planner.Leaves(root) {
		step := model.StepReport{
			ID:       leaf.ID,
			Kind:     string(actions.KindOf(leaf.Action)),
			Attempts: []string{},
			Reason:   reasons[leaf.ID],
		}
		for _, status := range h[leaf.ID] {
			step.Attempts = append(step.Attempts, string(status))
		}
		if d, ok := durations[leaf.ID]; ok {
			step.Duration = d.Round(time.Millisecond).String()
		}
		job.Steps = append(job.Steps, step)
	}

	report.Jobs = append(report.Jobs, job)
}

// Finish stamps the end time.
func (r *Renderer) Finish(report *model.RunReport) {
	report.FinishedAt = r.now().UTC()
}

// RenderJSON renders the report as JSON
func (r *Renderer) RenderJSON(report *model.RunReport) ([]byte, error) {
	return json.MarshalIndent(report, "", "  ")
}

// RenderYAML renders the report as YAML
func (r *Renderer) RenderYAML(report *model.RunReport) ([]byte, error) {
	return yaml.Marshal(report)
}

// WriteReport writes the report to file (JSON or YAML based on extension)
func (r *Renderer) WriteReport(report *model.RunReport, path string) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	var (
		data []byte
		err  error
	)
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		data, err = r.RenderYAML(report)
	default:
		data, err = r.RenderJSON(report)
	}
	if err != nil {
		return fmt.Errorf("failed to render report: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// DebugDump outputs debug information about the report
func (r *Renderer) DebugDump(report *model.RunReport) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %s (pipeline %s, dry run %t)\n", report.RunID, report.Pipeline, report.DryRun)
	fmt.Fprintf(&sb, "Jobs: %d\n\n", len(report.Jobs))

	for _, job := range report.Jobs {
		fmt.Fprintf(&sb, "Job: %s\n", job.Name)
		fmt.Fprintf(&sb, "  State: %s\n", job.State)
		if job.Error != "" {
			fmt.Fprintf(&sb, "  Error: %s\n", job.Error)
		}
		for _, step := range job.Steps {
			fmt.Fprintf(&sb, "  %s [%s] %v", step.ID, step.Kind, step.Attempts)
			if step.Reason != "" {
				fmt.Fprintf(&sb, " %s", step.Reason)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

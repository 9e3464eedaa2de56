package render

import (
	"fmt"
	"strings"

	"github.com/jtarchie/station/internal/analyze"
	"github.com/jtarchie/station/internal/planner"
)

// PlanViewer provides human-readable views of a compiled job and its
// progress.
type PlanViewer struct {
	name    string
	root    planner.Step
	history planner.History
}

// NewPlanViewer creates a viewer for the job tree root. history may be nil.
func NewPlanViewer(name string, root planner.Step, history planner.History) *PlanViewer {
	if history == nil {
		history = planner.History{}
	}
	return &PlanViewer{name: name, root: root, history: history}
}

// ViewTree returns the step tree with the state of every node.
func (pv *PlanViewer) ViewTree() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s %s\n", symbol(planner.State(pv.root, pv.history, 1)), pv.name)
	pv.children(&sb, pv.root, "")

	leaves := planner.Leaves(pv.root)
	done := 0
	for _, leaf := range leaves {
		if len(pv.history[leaf.ID]) > 0 {
			done++
		}
	}
	sb.WriteString("═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(&sb, "Summary: %d steps, %d run, state %s\n", len(leaves), done, stateOrNone(planner.State(pv.root, pv.history, 1)))
	return sb.String()
}

type branch struct {
	label string
	step  planner.Step
}

func (pv *PlanViewer) children(sb *strings.Builder, step planner.Step, indent string) {
	var branches []branch
	var hooks planner.Hooks

	switch s := step.(type) {
	case *planner.Serial:
		for _, child := range s.Steps {
			branches = append(branches, branch{step: child})
		}
		hooks = s.Hooks
	case *planner.Parallel:
		for _, child := range s.Steps {
			branches = append(branches, branch{step: child})
		}
		hooks = s.Hooks
	case *planner.Try:
		branches = append(branches, branch{step: s.Step})
	default:
		return
	}

	for _, hook := range []branch{
		{"on_success", hooks.OnSuccess},
		{"on_failure", hooks.OnFailure},
		{"ensure", hooks.OnFinally},
	} {
		if hook.step == nil {
			continue
		}
		if _, ok := hook.step.(planner.Noop); ok {
			continue
		}
		branches = append(branches, hook)
	}

	for i, b := range branches {
		prefix, connector := "├─ ", "│  "
		if i == len(branches)-1 {
			prefix, connector = "└─ ", "   "
		}
		fmt.Fprintf(sb, "%s%s%s\n", indent, prefix, pv.line(b))
		pv.children(sb, b.step, indent+connector)
	}
}

func (pv *PlanViewer) line(b branch) string {
	state := planner.State(b.step, pv.history, 1)
	var label string

	switch s := b.step.(type) {
	case *planner.Leaf:
		entries := pv.history[s.ID]
		if len(entries) > 0 {
			state = entries[len(entries)-1]
		}
		label = leafLabel(s.ID)
		if len(entries) > 1 {
			label += fmt.Sprintf(" (attempts:%d)", len(entries))
		}
	case *planner.Serial:
		label = "serial"
		if s.Attempts > 1 {
			label += fmt.Sprintf(" (attempts:%d)", s.Attempts)
		}
	case *planner.Parallel:
		label = "parallel"
		if s.Attempts > 1 {
			label += fmt.Sprintf(" (attempts:%d)", s.Attempts)
		}
	case *planner.Try:
		label = "try"
	}

	if b.label != "" {
		label = b.label + ": " + label
	}
	return symbol(state) + " " + label
}

// ViewBatch lists the leaves that are runnable now.
func (pv *PlanViewer) ViewBatch() string {
	batch := planner.Next(pv.root, pv.history, 1)
	if len(batch) == 0 {
		return fmt.Sprintf("Nothing to run for %s (state %s)\n", pv.name, stateOrNone(planner.State(pv.root, pv.history, 1)))
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Next batch for %s (%d steps)\n", pv.name, len(batch))
	for i, r := range batch {
		prefix := "├─ "
		if i == len(batch)-1 {
			prefix = "└─ "
		}
		fmt.Fprintf(&sb, "%s%s (attempt %d)\n", prefix, r.Leaf.ID, r.Attempt)
	}
	return sb.String()
}

// ViewJobs lists job summaries with their dependencies.
func ViewJobs(jobs []*analyze.JobSummary) string {
	if len(jobs) == 0 {
		return "No jobs in pipeline"
	}

	var sb strings.Builder
	sb.WriteString("Jobs\n")
	sb.WriteString("═══════════════════════════════════════════════════════════\n\n")
	for _, job := range jobs {
		fmt.Fprintf(&sb, "%s\n", job.Name)
		writeList(&sb, "gets", job.Gets)
		writeList(&sb, "puts", job.Puts)
		writeList(&sb, "tasks", job.Tasks)
		writeList(&sb, "triggers", job.Triggers)
		if len(job.Dependencies) == 0 {
			sb.WriteString("   (no dependencies)\n")
		}
		for j, dep := range job.Dependencies {
			depPrefix := "  ├─ "
			if j == len(job.Dependencies)-1 {
				depPrefix = "  └─ "
			}
			fmt.Fprintf(&sb, "%s(passed) %s\n", depPrefix, dep)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// ViewResources lists resources with the jobs that use them.
func ViewResources(resources []*analyze.ResourceSummary) string {
	if len(resources) == 0 {
		return "No resources in pipeline"
	}

	var sb strings.Builder
	for i, r := range resources {
		prefix, connector := "├─ ", "│  "
		if i == len(resources)-1 {
			prefix, connector = "└─ ", "   "
		}
		custom := ""
		if r.CustomType {
			custom = ", custom"
		}
		fmt.Fprintf(&sb, "%s%s [%s%s]\n", prefix, r.Name, r.Type, custom)
		fmt.Fprintf(&sb, "%s  fetched by: %s\n", connector, joinOrNone(r.FetchedBy))
		fmt.Fprintf(&sb, "%s  pushed by: %s\n", connector, joinOrNone(r.PushedBy))
		fmt.Fprintf(&sb, "%s  triggers: %s\n", connector, joinOrNone(r.TriggersOn))
	}
	return sb.String()
}

func writeList(sb *strings.Builder, label string, items []string) {
	if len(items) > 0 {
		fmt.Fprintf(sb, "  %s: %s\n", label, strings.Join(items, ", "))
	}
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// leafLabel keeps the last two path segments of a leaf identity, the step
// and the action: get:repo/check.
func leafLabel(id string) string {
	parts := strings.Split(id, "/")
	if len(parts) <= 2 {
		return id
	}
	return strings.Join(parts[len(parts)-2:], "/")
}

func symbol(s planner.Status) string {
	switch s {
	case planner.Success:
		return "✓"
	case planner.Failed:
		return "✗"
	case planner.Running:
		return "●"
	}
	return "□"
}

func stateOrNone(s planner.Status) string {
	if s == "" {
		return "none"
	}
	return string(s)
}

// Package executor drives a compiled plan to completion: it asks the
// scheduler what is runnable, dispatches the batch and records the outcomes
// until nothing is left to run.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jtarchie/station/internal/actions"
	"github.com/jtarchie/station/internal/ctxlog"
	"github.com/jtarchie/station/internal/metrics"
	"github.com/jtarchie/station/internal/planner"
)

// ErrUnsupportedAction is returned when a leaf carries an action no
// strategy knows how to perform. It aborts the run.
var ErrUnsupportedAction = errors.New("unsupported action")

// Outcome is the terminal status of one leaf attempt. Reason explains a
// failure.
type Outcome struct {
	Status planner.Status
	Reason string
}

// Succeeded is the outcome of a leaf that did its work.
func Succeeded() Outcome {
	return Outcome{Status: planner.Success}
}

// Failed is the outcome of a leaf that could not do its work.
func Failed(format string, args ...any) Outcome {
	return Outcome{Status: planner.Failed, Reason: fmt.Sprintf(format, args...)}
}

// Strategy performs the action of a runnable leaf. Returning an error
// aborts the whole run; failures of the work itself belong in the Outcome.
type Strategy interface {
	Execute(ctx context.Context, r planner.Runnable) (Outcome, error)
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(ctx context.Context, r planner.Runnable) (Outcome, error)

func (f StrategyFunc) Execute(ctx context.Context, r planner.Runnable) (Outcome, error) {
	return f(ctx, r)
}

// Event is the journal entry for one finished leaf attempt.
type Event struct {
	Leaf     string
	Kind     string
	Attempt  int
	Status   planner.Status
	Reason   string
	Duration time.Duration
}

// Option configures a Driver.
type Option func(*Driver)

// WithConcurrency bounds how many leaves of a batch run at once.
func WithConcurrency(n int) Option {
	return func(d *Driver) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithObserver is called on the driver goroutine after each outcome is
// recorded.
func WithObserver(fn func(Event)) Option {
	return func(d *Driver) { d.observer = fn }
}

// WithMetrics reports batches and leaf outcomes to m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Driver) { d.metrics = m }
}

// Driver runs the fixpoint loop. A Driver may be reused; its journal keeps
// growing across runs.
type Driver struct {
	strategy    Strategy
	concurrency int
	observer    func(Event)
	metrics     *metrics.Metrics

	mu     sync.Mutex
	events []Event
}

// NewDriver creates a driver dispatching to strategy.
func NewDriver(strategy Strategy, opts ...Option) *Driver {
	d := &Driver{strategy: strategy, concurrency: 1}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Run executes root until the scheduler reports no runnable leaves. A nil
// history starts a fresh run; a populated one resumes. The input history is
// not modified. On error the history recorded so far is returned with it.
func (d *Driver) Run(ctx context.Context, root planner.Step, history planner.History) (planner.History, error) {
	logger := ctxlog.FromContext(ctx)

	h := planner.History{}
	if history != nil {
		h = history.Clone()
	}

	for batchNum := 1; ; batchNum++ {
		if err := ctx.Err(); err != nil {
			return h, fmt.Errorf("run aborted before batch %d: %w", batchNum, err)
		}

		batch := planner.Next(root, h, 1)
		if len(batch) == 0 {
			logger.Debug("no runnable steps left", "state", planner.State(root, h, 1), "batches", batchNum-1)
			return h, nil
		}
		logger.Debug("dispatching batch", "batch", batchNum, "size", len(batch))
		if d.metrics != nil {
			d.metrics.ObserveBatch(len(batch))
		}

		// Leaves that finished before a sibling errored are still recorded
		// so a resumed run does not repeat them.
		events, dispatchErr := d.dispatch(ctx, batch)
		if err := d.record(logger, h, events); err != nil {
			return h, errors.Join(dispatchErr, err)
		}
		if dispatchErr != nil {
			return h, dispatchErr
		}
	}
}

func (d *Driver) record(logger *slog.Logger, h planner.History, events []Event) error {
	for _, ev := range events {
		if err := h.Record(ev.Leaf, ev.Attempt, ev.Status); err != nil {
			return fmt.Errorf("failed to record outcome: %w", err)
		}
		d.journal(ev)

		attrs := []any{"leaf", ev.Leaf, "attempt", ev.Attempt, "status", ev.Status, "duration", ev.Duration}
		if ev.Reason != "" {
			attrs = append(attrs, "reason", ev.Reason)
		}
		logger.Info("step finished", attrs...)
	}
	return nil
}

// dispatch runs one batch. Alongside an error it returns the events of the
// leaves that did finish.
func (d *Driver) dispatch(ctx context.Context, batch []planner.Runnable) ([]Event, error) {
	logger := ctxlog.FromContext(ctx)
	events := make([]Event, len(batch))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for i, r := range batch {
		g.Go(func() error {
			kind := string(actions.KindOf(r.Leaf.Action))
			logger.Debug("step started", "leaf", r.Leaf.ID, "attempt", r.Attempt, "kind", kind)
			if d.metrics != nil {
				d.metrics.InFlight.Inc()
				defer d.metrics.InFlight.Dec()
			}

			start := time.Now()
			outcome, err := d.strategy.Execute(gctx, r)
			if err != nil {
				return fmt.Errorf("step %s attempt %d: %w", r.Leaf.ID, r.Attempt, err)
			}
			if outcome.Status != planner.Success && outcome.Status != planner.Failed {
				return fmt.Errorf("step %s attempt %d finished with non-terminal status %q", r.Leaf.ID, r.Attempt, outcome.Status)
			}

			events[i] = Event{
				Leaf:     r.Leaf.ID,
				Kind:     kind,
				Attempt:  r.Attempt,
				Status:   outcome.Status,
				Reason:   outcome.Reason,
				Duration: time.Since(start),
			}
			return nil
		})
	}

	err := g.Wait()

	// Slots of leaves that errored or never finished stay empty.
	finished := events[:0]
	for _, ev := range events {
		if ev.Leaf != "" {
			finished = append(finished, ev)
		}
	}
	return finished, err
}

func (d *Driver) journal(ev Event) {
	d.mu.Lock()
	d.events = append(d.events, ev)
	d.mu.Unlock()

	if d.metrics != nil {
		d.metrics.ObserveStep(ev.Kind, string(ev.Status), ev.Duration)
	}
	if d.observer != nil {
		d.observer(ev)
	}
}

// Events returns the journal of finished attempts in record order.
func (d *Driver) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Event(nil), d.events...)
}

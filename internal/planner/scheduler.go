package planner

// Runnable is a leaf the scheduler wants executed, together with the
// attempt whose outcome the caller should record.
type Runnable struct {
	Leaf    *Leaf
	Attempt int
}

// Next returns the leaves that can run now given the recorded history.
// attempt is the first attempt a container may use; callers evaluating a
// whole tree pass 1. Next never mutates h.
func Next(step Step, h History, attempt int) []Runnable {
	attempt = clampAttempts(attempt)

	switch s := step.(type) {
	case *Leaf:
		if h.At(s.ID, attempt) != Unstarted {
			return nil
		}
		return []Runnable{{Leaf: s, Attempt: attempt}}
	case *Serial:
		actual, positions := resolveSerial(s, h, attempt)
		if len(positions) > 0 {
			return positions[0]
		}
		return finalSteps(s.Hooks, serialPlanState(s.Steps, h, actual), h, actual)
	case *Parallel:
		actual, runnable := resolveParallel(s, h, attempt)
		if len(runnable) > 0 {
			return runnable
		}
		return finalSteps(s.Hooks, parallelPlanState(s.Steps, h, actual), h, actual)
	case *Try:
		return Next(s.Step, h, attempt)
	case Noop, *Noop, nil:
		return nil
	}
	return nil
}

// State derives the status of step from the recorded history. Noop returns
// the zero Status.
func State(step Step, h History, attempt int) Status {
	attempt = clampAttempts(attempt)

	switch s := step.(type) {
	case *Leaf:
		return h.At(s.ID, attempt)
	case *Serial:
		actual, _ := resolveSerial(s, h, attempt)
		return overallState(serialPlanState(s.Steps, h, actual), s.Hooks, h, actual)
	case *Parallel:
		actual, _ := resolveParallel(s, h, attempt)
		return overallState(parallelPlanState(s.Steps, h, actual), s.Hooks, h, actual)
	case *Try:
		state := State(s.Step, h, attempt)
		if state == Failed || state == "" {
			return Success
		}
		return state
	case Noop, *Noop, nil:
		return ""
	}
	return ""
}

// resolveSerial walks the attempt window of s and returns the attempt that
// is current together with the positions still open in it. Each position is
// the Next of one unfinished child, possibly empty while the child runs.
func resolveSerial(s *Serial, h History, attempt int) (int, [][]Runnable) {
	last := attempt + clampAttempts(s.Attempts) - 1

	for actual := attempt; ; actual++ {
		var positions [][]Runnable
		failed := false

		for _, child := range s.Steps {
			state := State(child, h, actual)
			if state == Success || state == "" {
				continue
			}
			if state == Failed {
				failed = true
				positions = nil
				break
			}
			positions = append(positions, Next(child, h, actual))
		}

		if len(positions) > 0 || !failed || actual >= last {
			return actual, positions
		}
	}
}

// resolveParallel advances to the next attempt only when the current one
// has nothing left to run and failed.
func resolveParallel(p *Parallel, h History, attempt int) (int, []Runnable) {
	last := attempt + clampAttempts(p.Attempts) - 1

	for actual := attempt; ; actual++ {
		var runnable []Runnable
		for _, child := range p.Steps {
			runnable = append(runnable, Next(child, h, actual)...)
		}

		if len(runnable) > 0 || actual >= last {
			return actual, runnable
		}
		if parallelPlanState(p.Steps, h, actual) != Failed {
			return actual, nil
		}
	}
}

// finalSteps applies hook precedence: the success or failure hook first,
// then finally once nothing else is left.
func finalSteps(hooks Hooks, planState Status, h History, attempt int) []Runnable {
	var steps []Runnable
	switch planState {
	case Success:
		steps = Next(hooks.OnSuccess, h, attempt)
	case Failed:
		steps = Next(hooks.OnFailure, h, attempt)
	}
	if len(steps) == 0 {
		steps = Next(hooks.OnFinally, h, attempt)
	}
	return steps
}

// serialPlanState and parallelPlanState report Running for a container
// without children: it never settles, so only its finally hook can run.
func serialPlanState(steps []Step, h History, attempt int) Status {
	states := distinctStates(steps, h, attempt)
	switch {
	case len(states) == 0:
		return Running
	case len(states) == 1:
		return states[0]
	case containsStatus(states, Failed):
		return Failed
	default:
		return Running
	}
}

func parallelPlanState(steps []Step, h History, attempt int) Status {
	states := distinctStates(steps, h, attempt)
	switch {
	case len(states) == 0:
		return Running
	case len(states) == 1:
		return states[0]
	case containsStatus(states, Unstarted), containsStatus(states, Running):
		return Running
	case containsStatus(states, Failed):
		return Failed
	default:
		return Running
	}
}

// overallState folds the body state with the success and finally hooks.
// The failure hook never changes the outcome of a failed body.
func overallState(planState Status, hooks Hooks, h History, attempt int) Status {
	states := compact([]Status{
		planState,
		State(hooks.OnSuccess, h, attempt),
		State(hooks.OnFinally, h, attempt),
	})
	switch {
	case len(states) == 1:
		return states[0]
	case containsStatus(states, Failed):
		return Failed
	default:
		return Running
	}
}

func distinctStates(steps []Step, h History, attempt int) []Status {
	states := make([]Status, 0, len(steps))
	for _, child := range steps {
		states = append(states, State(child, h, attempt))
	}
	return compact(states)
}

// compact drops absent states and duplicates, keeping first-seen order.
func compact(states []Status) []Status {
	out := make([]Status, 0, len(states))
	for _, s := range states {
		if s == "" || containsStatus(out, s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

func containsStatus(states []Status, target Status) bool {
	for _, s := range states {
		if s == target {
			return true
		}
	}
	return false
}

package planner

// Step is a node of a compiled plan tree. The set of implementations is
// closed: Leaf, Serial, Parallel, Try and Noop.
type Step interface {
	step()
}

// Leaf is a unit of work. ID is the identity used in History and must be
// unique within a tree; Action is opaque to the scheduler.
type Leaf struct {
	ID     string
	Action any
}

// Hooks are evaluated after a container's body settles. A nil hook behaves
// as Noop.
type Hooks struct {
	OnSuccess Step
	OnFailure Step
	OnFinally Step
}

// Serial runs its children one position at a time, in order.
type Serial struct {
	Steps    []Step
	Attempts int
	Hooks
}

// Parallel runs all of its children at once.
type Parallel struct {
	Steps    []Step
	Attempts int
	Hooks
}

// Try wraps a step so that its failure is reported as success.
type Try struct {
	Step Step
}

// Noop never has work and has no state.
type Noop struct{}

func (*Leaf) step()     {}
func (*Serial) step()   {}
func (*Parallel) step() {}
func (*Try) step()      {}
func (Noop) step()      {}

// Option configures a Serial or Parallel container.
type Option func(*container)

type container struct {
	attempts int
	hooks    Hooks
}

// WithAttempts sets how many times the container body may be tried.
func WithAttempts(n int) Option {
	return func(c *container) { c.attempts = n }
}

// WithOnSuccess sets the step run after the body succeeds.
func WithOnSuccess(s Step) Option {
	return func(c *container) { c.hooks.OnSuccess = s }
}

// WithOnFailure sets the step run after the body fails.
func WithOnFailure(s Step) Option {
	return func(c *container) { c.hooks.OnFailure = s }
}

// WithOnFinally sets the step run once the body and the success or failure
// hook have nothing left to run.
func WithOnFinally(s Step) Option {
	return func(c *container) { c.hooks.OnFinally = s }
}

func newContainer(opts []Option) container {
	c := container{attempts: 1}
	for _, opt := range opts {
		opt(&c)
	}
	c.attempts = clampAttempts(c.attempts)
	c.hooks = c.hooks.withDefaults()
	return c
}

// NewLeaf creates a leaf step.
func NewLeaf(id string, action any) *Leaf {
	return &Leaf{ID: id, Action: action}
}

// NewSerial creates a serial container.
func NewSerial(steps []Step, opts ...Option) *Serial {
	c := newContainer(opts)
	return &Serial{Steps: steps, Attempts: c.attempts, Hooks: c.hooks}
}

// NewParallel creates a parallel container.
func NewParallel(steps []Step, opts ...Option) *Parallel {
	c := newContainer(opts)
	return &Parallel{Steps: steps, Attempts: c.attempts, Hooks: c.hooks}
}

// NewTry wraps step in a Try.
func NewTry(step Step) *Try {
	return &Try{Step: step}
}

func (h Hooks) withDefaults() Hooks {
	if h.OnSuccess == nil {
		h.OnSuccess = Noop{}
	}
	if h.OnFailure == nil {
		h.OnFailure = Noop{}
	}
	if h.OnFinally == nil {
		h.OnFinally = Noop{}
	}
	return h
}

func clampAttempts(n int) int {
	if n < 1 {
		return 1
	}
	return n
}

// Walk visits step and all of its descendants, hooks included, depth first.
// The callback receives the depth of each node.
func Walk(step Step, fn func(step Step, depth int)) {
	walk(step, 0, fn)
}

func walk(step Step, depth int, fn func(Step, int)) {
	if step == nil {
		return
	}
	fn(step, depth)

	switch s := step.(type) {
	case *Serial:
		for _, child := range s.Steps {
			walk(child, depth+1, fn)
		}
		walkHooks(s.Hooks, depth+1, fn)
	case *Parallel:
		for _, child := range s.Steps {
			walk(child, depth+1, fn)
		}
		walkHooks(s.Hooks, depth+1, fn)
	case *Try:
		walk(s.Step, depth+1, fn)
	}
}

func walkHooks(h Hooks, depth int, fn func(Step, int)) {
	for _, hook := range []Step{h.OnSuccess, h.OnFailure, h.OnFinally} {
		if _, ok := hook.(Noop); ok || hook == nil {
			continue
		}
		walk(hook, depth, fn)
	}
}

// Leaves returns every leaf reachable from step, in walk order.
func Leaves(step Step) []*Leaf {
	var leaves []*Leaf
	Walk(step, func(s Step, _ int) {
		if leaf, ok := s.(*Leaf); ok {
			leaves = append(leaves, leaf)
		}
	})
	return leaves
}

package reactive

// Computation is the closure shape accepted by NewEffect: a plain function
// or a function returning a cleanup callback. The cleanup runs immediately
// before the next re-run and on disposal.
type Computation interface {
	func() | func() func()
}

// Effect is a computation with a dynamically-discovered dependency set.
// The set is rebuilt from scratch on every run: dependencies not re-read
// this run are unregistered, newly read ones are registered.
//
// Effects created during another effect's run become children of that
// effect and are disposed when the parent re-runs or is disposed
// (owner-tracks-children).
type Effect struct {
	rt       *Runtime
	fn       func()
	cleanup  func()
	deps     []*Signal
	children []*Effect
	disposed bool
}

// NewEffect creates an effect and runs it synchronously and immediately.
// It re-runs whenever any signal read during its latest run changes, until
// disposed.
func NewEffect[T Computation](rt *Runtime, computation T) *Effect {
	e := &Effect{rt: rt}

	switch fn := any(computation).(type) {
	case func():
		e.fn = fn
	case func() func():
		e.fn = func() { e.cleanup = fn() }
	}

	if parent := rt.active; parent != nil {
		parent.children = append(parent.children, e)
	}

	rt.runRoot(e)
	return e
}

// Dispose permanently stops the effect: no further re-runs, dependency
// registrations removed, pending cleanup invoked. Idempotent.
func (e *Effect) Dispose() {
	if e.disposed {
		return
	}
	e.clean()
	e.disposed = true
}

// Disposed reports whether the effect has been torn down.
func (e *Effect) Disposed() bool {
	return e.disposed
}

// clean resets the effect to a blank slate between runs: cleanup callback,
// child effects from the prior run, and all dependency registrations.
func (e *Effect) clean() {
	if cb := e.cleanup; cb != nil {
		e.cleanup = nil
		cb()
	}

	for _, child := range e.children {
		child.Dispose()
	}
	e.children = nil

	for _, dep := range e.deps {
		dep.untrack(e)
	}
	e.deps = nil
}

// run executes the computation with this effect as the active tracking
// target, replacing the dependency set with exactly the signals read.
func (e *Effect) run() {
	if e.disposed {
		return
	}

	e.clean()

	prev := e.rt.active
	e.rt.active = e
	defer func() { e.rt.active = prev }()

	e.fn()
}

package reactive

import "slices"

// Signal is a single reactive memory cell. It owns its current value and
// holds non-owning back-references to the effects that read it.
type Signal struct {
	rt    *Runtime
	value any
	subs  []*Effect
}

// NewSignal creates a signal holding initial.
func (rt *Runtime) NewSignal(initial any) *Signal {
	return &Signal{rt: rt, value: initial}
}

// Get returns the current value. Inside an active effect run the effect is
// registered as a dependent exactly once; outside any run this is a plain
// read with no side effect.
func (s *Signal) Get() any {
	if s.rt.active != nil {
		s.track(s.rt.active)
	}
	return s.value
}

// Peek returns the current value without registering a dependency.
func (s *Signal) Peek() any {
	return s.value
}

// Set stores a new value and notifies dependents. Notification is
// unconditional: writing an equal value still re-runs dependents. Callers
// needing equality suppression must compare before writing.
//
// Outside a batch the dependents re-run synchronously before Set returns;
// inside a batch they are deferred and deduplicated to batch close.
func (s *Signal) Set(v any) {
	s.value = v

	// Clone: effect runs mutate subs while we iterate.
	for _, e := range slices.Clone(s.subs) {
		s.rt.enqueue(e)
	}
}

func (s *Signal) track(e *Effect) {
	if slices.Contains(s.subs, e) {
		return
	}
	s.subs = append(s.subs, e)
	e.deps = append(e.deps, s)
}

func (s *Signal) untrack(e *Effect) {
	if i := slices.Index(s.subs, e); i != -1 {
		s.subs = slices.Delete(s.subs, i, i+1)
	}
}

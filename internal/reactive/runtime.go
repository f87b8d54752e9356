package reactive

import (
	"fmt"
	"log/slog"

	mapset "github.com/deckarep/golang-set/v2"
)

// DefaultMaxRunsPerFlush bounds how many effect executions a single flush
// may perform. A program whose effects keep writing their own dependencies
// would otherwise spin the flush loop forever.
const DefaultMaxRunsPerFlush = 10000

// Runtime owns a reactive graph: the currently running effect, the batch
// depth, and the queue of dirty effects awaiting execution.
//
// A Runtime is not safe for concurrent use. All signal reads and writes
// belonging to one graph must happen on the same logical thread; the
// engine's loop guarantees this in production use.
type Runtime struct {
	active     *Effect
	batchDepth int
	flushing   bool

	// pending preserves first-marked order; pendingSet deduplicates so an
	// effect runs at most once per batch regardless of how many of its
	// dependencies changed.
	pending    []*Effect
	pendingSet mapset.Set[*Effect]

	maxRunsPerFlush int
	logger          *slog.Logger
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the runtime's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(rt *Runtime) {
		rt.logger = logger
	}
}

// WithMaxRunsPerFlush overrides the flush quota.
// Use a small value in tests exercising runaway-loop detection.
func WithMaxRunsPerFlush(n int) Option {
	return func(rt *Runtime) {
		rt.maxRunsPerFlush = n
	}
}

// New creates an empty Runtime.
func New(opts ...Option) *Runtime {
	rt := &Runtime{
		pendingSet:      mapset.NewThreadUnsafeSet[*Effect](),
		maxRunsPerFlush: DefaultMaxRunsPerFlush,
		logger:          slog.Default(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

// Batch opens a batch for the duration of fn: writes performed inside it
// coalesce, and each distinct dirty effect runs at most once after fn
// returns. Batches nest; only the outermost close flushes.
func (rt *Runtime) Batch(fn func()) {
	rt.batchDepth++
	defer func() {
		rt.batchDepth--
		if rt.batchDepth == 0 && !rt.flushing {
			rt.flush()
		}
	}()
	fn()
}

// Untrack runs fn with dependency tracking suspended: signal reads inside
// it do not register the calling effect as a dependent.
func (rt *Runtime) Untrack(fn func()) {
	prev := rt.active
	rt.active = nil
	defer func() { rt.active = prev }()
	fn()
}

// enqueue marks an effect dirty. Outside a batch and outside a running
// flush this triggers an immediate synchronous flush, so a plain Set call
// returns only after its dependents have re-run.
func (rt *Runtime) enqueue(e *Effect) {
	if e.disposed || rt.pendingSet.Contains(e) {
		return
	}
	rt.pendingSet.Add(e)
	rt.pending = append(rt.pending, e)

	if rt.batchDepth == 0 && !rt.flushing {
		rt.flush()
	}
}

// runRoot executes a freshly created effect. When the creation happens
// outside any flush, batch, or enclosing effect run, the queue is held
// closed for the duration of the run so that a write the effect performs
// against its own dependency schedules a later re-run instead of recursing
// into the same stack frame.
func (rt *Runtime) runRoot(e *Effect) {
	if rt.flushing || rt.batchDepth > 0 || rt.active != nil {
		e.run()
		return
	}

	rt.flushing = true
	func() {
		defer func() { rt.flushing = false }()
		e.run()
	}()
	rt.flush()
}

// flush drains the dirty queue, running each effect in first-marked order.
// Effects that write signals during their own run re-enter the queue and
// are picked up by the same drain, bounded by the flush quota.
func (rt *Runtime) flush() {
	rt.flushing = true
	defer func() { rt.flushing = false }()

	runs := 0
	for len(rt.pending) > 0 {
		e := rt.pending[0]
		rt.pending = rt.pending[1:]
		rt.pendingSet.Remove(e)

		if e.disposed {
			continue
		}

		runs++
		if runs > rt.maxRunsPerFlush {
			panic(&FlushOverflowError{Runs: runs - 1, Limit: rt.maxRunsPerFlush})
		}

		e.run()
	}

	if runs > 1 {
		rt.logger.Debug("reactive flush", "runs", runs)
	}
}

// FlushOverflowError reports a flush that exceeded its run quota, which
// means some set of effects keeps writing its own dependencies.
type FlushOverflowError struct {
	Runs  int
	Limit int
}

func (e *FlushOverflowError) Error() string {
	return fmt.Sprintf("reactive flush exceeded %d effect runs: effects are writing their own dependencies in a loop", e.Limit)
}

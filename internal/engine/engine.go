package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/reactive"
	"github.com/weftui/weft/internal/store"
)

// Engine wires a compiled program to a live reactive graph: one reactive
// runtime, one state store whose fields come from the program's state
// section, an evaluator bound to that store, and an executor for the
// program's actions.
//
// All mutation happens on a single logical thread. External callers either
// use the engine synchronously (Dispatch then Drain, the CLI's mode) or
// run the loop on one goroutine and post work to it.
type Engine struct {
	program *ir.Program
	rt      *reactive.Runtime
	store   *store.Store
	eval    *Evaluator
	exec    *Executor
	loop    *Loop
	logger  *slog.Logger

	// construction-time configuration
	journal     *store.Journal
	programHash string
	externals   Externals
	route       *RouteContext
	sched       Scheduler
	execOpts    []ExecutorOption
	asyncFetch  bool
}

// EngineOption configures engine construction.
type EngineOption func(*Engine)

// WithJournal attaches a mutation journal to the store.
func WithJournal(j *store.Journal) EngineOption {
	return func(e *Engine) { e.journal = j }
}

// WithProgramHash stamps journaled mutations with the program document's
// content hash.
func WithProgramHash(hash string) EngineOption {
	return func(e *Engine) { e.programHash = hash }
}

// WithExternals provides the host's external reference resolver.
func WithExternals(ext Externals) EngineOption {
	return func(e *Engine) { e.externals = ext }
}

// WithRoute provides the route context for route references.
func WithRoute(route *RouteContext) EngineOption {
	return func(e *Engine) { e.route = route }
}

// WithScheduler overrides timer scheduling. Tests pass the fake clock;
// the default schedules on wall time through the loop.
func WithScheduler(sched Scheduler) EngineOption {
	return func(e *Engine) { e.sched = sched }
}

// WithLogger sets the engine's logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithAsyncFetch runs fetch transport on its own goroutine and posts the
// continuation back onto the loop. Requires Run (or Drain after
// settlement) to be driven by the host. Without it fetch steps settle
// inline, blocking the dispatching thread, which is what the CLI's
// one-shot commands and deterministic tests want.
func WithAsyncFetch() EngineOption {
	return func(e *Engine) { e.asyncFetch = true }
}

// WithExecutorOptions forwards options to the embedded executor
// (fetcher, host effects, step quota, token generator).
func WithExecutorOptions(opts ...ExecutorOption) EngineOption {
	return func(e *Engine) { e.execOpts = append(e.execOpts, opts...) }
}

// New compiles a program into a live engine. The program is validated
// first; construction fails on any validation error.
//
// State fields initialize in sorted name order. A deferred initial
// expression sees the fields initialized before it and reads undefined
// for the rest; an undefined result falls back to the field type's zero
// value. Initialization is not journaled: replay starts from the same
// initials and folds the journal on top.
func New(program *ir.Program, opts ...EngineOption) (*Engine, error) {
	if errs := program.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("invalid program: %w", errs[0])
	}

	e := &Engine{program: program, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}

	e.rt = reactive.New(reactive.WithLogger(e.logger))
	e.loop = NewLoop(e.logger)
	if e.sched == nil {
		e.sched = NewLoopScheduler(e.loop)
	}

	var storeOpts []store.Option
	storeOpts = append(storeOpts, store.WithLogger(e.logger))
	if e.journal != nil {
		storeOpts = append(storeOpts, store.WithJournal(e.journal))
	}
	if e.programHash != "" {
		storeOpts = append(storeOpts, store.WithProgramHash(e.programHash))
	}
	e.store = store.New(e.rt, storeOpts...)
	e.eval = NewEvaluator(e.store, e.externals, e.route)

	for _, name := range program.StateNames() {
		field := program.State[name]
		if err := e.store.Define(name, field.Type, e.initialValue(field)); err != nil {
			return nil, fmt.Errorf("initialize state: %w", err)
		}
	}

	execOpts := []ExecutorOption{WithExecutorLogger(e.logger)}
	if e.asyncFetch {
		execOpts = append(execOpts, WithPoster(func(t Task) { e.loop.Post(t) }))
	}
	e.exec = NewExecutor(e.store, e.eval, e.sched, append(execOpts, e.execOpts...)...)
	return e, nil
}

// initialValue resolves a field's starting value: literal initial,
// deferred expression, or the type's zero value.
func (e *Engine) initialValue(field ir.StateField) ir.Value {
	if field.Initial != nil {
		return field.Initial
	}
	if field.InitialExpr != nil {
		v := e.eval.Evaluate(field.InitialExpr, nil)
		if !ir.IsUndefined(v) {
			return v
		}
	}
	return field.ZeroValue()
}

// Store exposes the engine's state store to the host renderer for
// subscribe/subscribeToPath.
func (e *Engine) Store() *store.Store {
	return e.store
}

// Runtime exposes the reactive runtime for host-created effects.
func (e *Engine) Runtime() *reactive.Runtime {
	return e.rt
}

// Loop exposes the task loop for production wiring.
func (e *Engine) Loop() *Loop {
	return e.loop
}

// Evaluate computes an expression against the current state with no local
// bindings. The host renderer calls this for every dynamic prop.
func (e *Engine) Evaluate(expr ir.Expr) ir.Value {
	return e.eval.Evaluate(expr, nil)
}

// Dispatch runs a named action. The event payload is bound as the local
// "event" inside the action's steps. Synchronous step errors return to
// the caller; asynchronous continuations surface failures through the
// executor's async error handler.
func (e *Engine) Dispatch(ctx context.Context, action string, payload ir.Value) error {
	steps, ok := e.program.Action(action)
	if !ok {
		return NewMissingActionError(action)
	}
	if payload == nil {
		payload = ir.Undefined{}
	}

	scope := NewScope(nil)
	scope.Bind("event", payload)

	e.logger.Debug("dispatching action", "action", action)
	return e.exec.Execute(ctx, action, steps, scope)
}

// Dispatcher builds a rate-limited dispatcher for an event binding to the
// named action. The returned dispatcher's Close is the binding's teardown
// hook.
func (e *Engine) Dispatcher(ctx context.Context, action string, mode DispatchMode, windowMS int) *Dispatcher {
	return NewDispatcher(mode, windowMS, e.sched, func(payload ir.Value) {
		if err := e.Dispatch(ctx, action, payload); err != nil {
			e.logger.Error("rate-limited dispatch failed", "action", action, "error", err)
		}
	})
}

// Run executes the task loop until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
func (e *Engine) Run(ctx context.Context) error {
	return e.loop.Run(ctx)
}

// Drain synchronously runs all queued continuations. One-shot callers
// (CLI, tests) use this instead of Run.
func (e *Engine) Drain() {
	e.loop.Drain()
}

// Stop cancels all live timers and closes the loop.
func (e *Engine) Stop() {
	e.exec.CancelAll()
	e.loop.Stop()
}

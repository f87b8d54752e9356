package engine

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/weftui/weft/internal/ir"
	"github.com/weftui/weft/internal/store"
)

// DefaultMaxSteps bounds how many steps one action invocation may run,
// counting nested branches. Each asynchronous continuation gets a fresh
// budget; the quota catches a single runaway sequence, not the sum of a
// long-lived interval's ticks.
const DefaultMaxSteps = 1000

// Executor interprets ordered action step lists against the state store.
//
// Synchronous steps complete before the next step begins, so their
// mutations are visible to every later step and to evaluator calls inside
// them. Asynchronous steps (delay, interval, fetch) schedule their
// continuation and return immediately; the continuation runs as its own
// step sequence once the operation settles, posted onto the single-writer
// thread, and never blocks sibling steps or other actions.
type Executor struct {
	store  *store.Store
	eval   *Evaluator
	sched  Scheduler
	tokens TokenGenerator

	fetcher Fetcher
	host    HostEffects

	// post moves fetch continuations onto the single-writer thread.
	// When nil, fetches run inline and block the caller, which is the
	// mode the CLI's one-shot commands and most tests use.
	post func(Task)

	// timers maps a cancellation handle to its cancel function.
	timers map[string]func()

	maxSteps     int
	onAsyncError func(error)
	logger       *slog.Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithMaxSteps sets the per-invocation step quota.
func WithMaxSteps(n int) ExecutorOption {
	return func(x *Executor) { x.maxSteps = n }
}

// WithFetcher sets the transport for fetch steps.
func WithFetcher(f Fetcher) ExecutorOption {
	return func(x *Executor) { x.fetcher = f }
}

// WithHost sets the receiver for focus-style side effects.
func WithHost(h HostEffects) ExecutorOption {
	return func(x *Executor) { x.host = h }
}

// WithTokens sets the handle token generator. Tests use FixedGenerator
// for deterministic handles.
func WithTokens(g TokenGenerator) ExecutorOption {
	return func(x *Executor) { x.tokens = g }
}

// WithPoster routes fetch continuations through post instead of running
// them inline. Production wiring passes the loop's Post.
func WithPoster(post func(Task)) ExecutorOption {
	return func(x *Executor) { x.post = post }
}

// WithAsyncErrorHandler sets where continuation failures without an
// onError handler are surfaced. Defaults to error-level logging.
func WithAsyncErrorHandler(fn func(error)) ExecutorOption {
	return func(x *Executor) { x.onAsyncError = fn }
}

// WithExecutorLogger sets the executor's logger.
func WithExecutorLogger(logger *slog.Logger) ExecutorOption {
	return func(x *Executor) { x.logger = logger }
}

// NewExecutor creates an executor over st, evaluating expressions with
// eval and scheduling timers on sched.
func NewExecutor(st *store.Store, eval *Evaluator, sched Scheduler, opts ...ExecutorOption) *Executor {
	x := &Executor{
		store:    st,
		eval:     eval,
		sched:    sched,
		tokens:   UUIDv7Generator{},
		host:     NopHost{},
		timers:   make(map[string]func()),
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(x)
	}
	if x.onAsyncError == nil {
		x.onAsyncError = func(err error) {
			x.logger.Error("unhandled async step failure", "error", err)
		}
	}
	return x
}

// stepBudget tracks the quota for one step sequence and its synchronous
// descendants.
type stepBudget struct {
	action string
	steps  int
	limit  int
}

func (b *stepBudget) charge() error {
	b.steps++
	if b.steps > b.limit {
		return NewQuotaError(b.action, b.steps, b.limit)
	}
	return nil
}

// Execute runs an action's steps in order. scope carries the event
// payload bindings; nil means no locals.
func (x *Executor) Execute(ctx context.Context, action string, steps []ir.Step, scope *Scope) error {
	budget := &stepBudget{action: action, limit: x.maxSteps}
	return x.runSteps(ctx, action, steps, scope, budget)
}

// CancelAll cancels every live timer. Called on engine shutdown.
func (x *Executor) CancelAll() {
	for handle, cancel := range x.timers {
		cancel()
		delete(x.timers, handle)
	}
}

func (x *Executor) runSteps(ctx context.Context, action string, steps []ir.Step, scope *Scope, budget *stepBudget) error {
	for _, step := range steps {
		if err := budget.charge(); err != nil {
			return err
		}
		if err := x.runStep(ctx, action, step, scope, budget); err != nil {
			return err
		}
	}
	return nil
}

func (x *Executor) runStep(ctx context.Context, action string, step ir.Step, scope *Scope, budget *stepBudget) error {
	switch s := step.(type) {
	case *ir.SetStep:
		v := x.eval.Evaluate(s.Value, scope)
		if err := x.store.Set(s.Target, v); err != nil {
			return x.writeError(action, err)
		}
		return nil

	case *ir.SetPathStep:
		v := x.eval.Evaluate(s.Value, scope)
		if err := x.store.SetPath(s.Target, s.Path, v); err != nil {
			return x.writeError(action, err)
		}
		return nil

	case *ir.UpdateStep:
		return x.runUpdate(action, s, scope)

	case *ir.IfStep:
		if ir.Truthy(x.eval.Evaluate(s.If, scope)) {
			return x.runSteps(ctx, action, s.Then, scope, budget)
		}
		return x.runSteps(ctx, action, s.Else, scope, budget)

	case *ir.DelayStep:
		ms := x.evalMS(s.MS, scope)
		x.sched.After(ms, x.continuation(ctx, action, s.Then, NewScope(scope)))
		return nil

	case *ir.IntervalStep:
		return x.runInterval(ctx, action, s, scope)

	case *ir.CancelStep:
		handle, ok := x.eval.Evaluate(s.Handle, scope).(ir.String)
		if !ok {
			return nil
		}
		if cancel, live := x.timers[string(handle)]; live {
			cancel()
			delete(x.timers, string(handle))
		}
		return nil

	case *ir.FetchStep:
		x.runFetch(ctx, action, s, scope)
		return nil

	case *ir.FocusStep:
		x.host.Focus(ir.Render(x.eval.Evaluate(s.Target, scope)))
		return nil

	default:
		return fmt.Errorf("action %q: unknown step type %T", action, step)
	}
}

// runInterval starts a recurring timer, stores the cancellation handle in
// the declared slot, and runs the then-steps on every tick.
func (x *Executor) runInterval(ctx context.Context, action string, s *ir.IntervalStep, scope *Scope) error {
	ms := x.evalMS(s.MS, scope)
	handle := x.tokens.Generate()

	tick := x.continuation(ctx, action, s.Then, NewScope(scope))
	x.timers[handle] = x.sched.Every(ms, tick)

	switch {
	case s.Handle.Local != "":
		if scope != nil {
			scope.Bind(s.Handle.Local, ir.String(handle))
		}
	case s.Handle.Target != "":
		if err := x.store.SetPath(s.Handle.Target, s.Handle.Path, ir.String(handle)); err != nil {
			return x.writeError(action, err)
		}
	}
	return nil
}

// runFetch resolves the URL and hands transport to the Fetcher. With a
// poster configured the request runs on its own goroutine and the
// continuation is posted back to the single-writer thread; without one
// the whole step runs inline.
func (x *Executor) runFetch(ctx context.Context, action string, s *ir.FetchStep, scope *Scope) {
	url := ir.Render(x.eval.Evaluate(s.URL, scope))
	bind := s.Bind
	if bind == "" {
		bind = "response"
	}

	settle := func(v ir.Value, err error) {
		child := NewScope(scope)
		if err != nil {
			if len(s.OnError) == 0 {
				x.onAsyncError(&RuntimeError{
					Code:    ErrCodeFetchFailed,
					Message: err.Error(),
					Action:  action,
				})
				return
			}
			child.Bind(bind, ir.String(err.Error()))
			x.continuation(ctx, action, s.OnError, child)()
			return
		}
		child.Bind(bind, v)
		x.continuation(ctx, action, s.OnSuccess, child)()
	}

	if x.fetcher == nil {
		settle(nil, fmt.Errorf("no fetcher configured"))
		return
	}

	if x.post == nil {
		v, err := x.fetcher.Fetch(ctx, url)
		settle(v, err)
		return
	}
	go func() {
		v, err := x.fetcher.Fetch(ctx, url)
		x.post(func() { settle(v, err) })
	}()
}

// continuation wraps a nested step sequence as a task with its own fresh
// budget. Failures have no caller to return to, so they surface on the
// async error channel.
func (x *Executor) continuation(ctx context.Context, action string, steps []ir.Step, scope *Scope) Task {
	return func() {
		budget := &stepBudget{action: action, limit: x.maxSteps}
		if err := x.runSteps(ctx, action, steps, scope, budget); err != nil {
			x.onAsyncError(err)
		}
	}
}

// evalMS resolves a millisecond duration operand. Non-numeric or negative
// values clamp to zero (immediate).
func (x *Executor) evalMS(expr ir.Expr, scope *Scope) time.Duration {
	n, ok := x.eval.Evaluate(expr, scope).(ir.Number)
	if !ok || math.IsNaN(float64(n)) || n < 0 {
		return 0
	}
	return time.Duration(float64(n) * float64(time.Millisecond))
}

func (x *Executor) writeError(action string, err error) error {
	return &RuntimeError{
		Code:    ErrCodeWriteFailed,
		Message: err.Error(),
		Action:  action,
	}
}

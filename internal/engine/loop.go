package engine

import (
	"context"
	"log/slog"
	"sync"
)

// Task is one unit of deferred work executed on the loop goroutine.
type Task func()

// taskQueue is a thread-safe FIFO queue for deferred continuations.
//
// The queue is unbounded so cascading continuations (a fetch settling
// inside an interval tick) can enqueue without blocking. Thread-safety
// covers external posting (timer goroutines, fetch settlements) while the
// loop's Run goroutine dequeues.
//
// A buffered signal channel enables context-aware waiting in Run.
type taskQueue struct {
	mu     sync.Mutex
	tasks  []Task
	closed bool
	signal chan struct{}
}

func newTaskQueue() *taskQueue {
	return &taskQueue{
		tasks:  make([]Task, 0, 64),
		signal: make(chan struct{}, 1),
	}
}

// Enqueue adds a task to the back of the queue.
// Returns false if the queue is closed.
func (q *taskQueue) Enqueue(t Task) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.tasks = append(q.tasks, t)

	// Non-blocking send; the buffer of 1 coalesces multiple signals.
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue attempts to dequeue without blocking.
func (q *taskQueue) TryDequeue() (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return nil, false
	}
	t := q.tasks[0]

	// Nil out the slot so the closure's captures can be collected.
	q.tasks[0] = nil
	if len(q.tasks) == 1 {
		q.tasks = q.tasks[:0]
	} else {
		q.tasks = q.tasks[1:]
	}
	return t, true
}

// Wait returns a channel that signals when tasks may be available.
func (q *taskQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the current queue length.
func (q *taskQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tasks)
}

// Closed reports whether Close has been called.
func (q *taskQueue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close marks the queue closed and wakes all waiters.
func (q *taskQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.closed = true
	close(q.signal)
}

// Loop is the single-writer task loop. Everything that mutates the store
// after the initial dispatch (timer ticks, fetch continuations) runs here,
// so store access never needs locking.
//
// Post is safe from any goroutine; Run must be called from exactly one.
type Loop struct {
	queue  *taskQueue
	logger *slog.Logger
}

// NewLoop creates an idle loop.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{queue: newTaskQueue(), logger: logger}
}

// Post submits a task for execution on the loop goroutine.
// Returns false if the loop has been stopped; the task is then dropped,
// which is the documented behavior for continuations settling after
// teardown.
func (l *Loop) Post(t Task) bool {
	return l.queue.Enqueue(t)
}

// Pending returns the number of queued tasks.
func (l *Loop) Pending() int {
	return l.queue.Len()
}

// Run executes tasks in FIFO order until the context is cancelled or
// Stop is called. Must be called from exactly one goroutine.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("loop starting")

	for {
		task, ok := l.queue.TryDequeue()
		if ok {
			task()
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Info("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case <-l.queue.Wait():
			// The signal channel closes when the queue closes, so this
			// case also fires on Stop. A leftover signal token from an
			// already-consumed task is not a stop condition.
			if l.queue.Closed() && l.queue.Len() == 0 {
				l.logger.Info("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the task queue, causing Run to return after draining.
func (l *Loop) Stop() {
	l.queue.Close()
}

// Drain synchronously runs queued tasks until the queue is empty.
// Intended for tests and the CLI's one-shot run command, where spinning
// up a Run goroutine is not worth it.
func (l *Loop) Drain() {
	for {
		task, ok := l.queue.TryDequeue()
		if !ok {
			return
		}
		task()
	}
}

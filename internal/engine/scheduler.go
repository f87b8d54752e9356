package engine

import (
	"sync"
	"time"
)

// Scheduler abstracts timer scheduling so tests can drive time manually.
// Callbacks must eventually execute on the single-writer thread; the
// production implementation posts them onto the Loop, the test fake
// invokes them inline from Advance.
//
// Both methods return an idempotent cancel function. Cancelling prevents
// the next fire but never undoes one already delivered.
type Scheduler interface {
	// After runs fn once, d from now.
	After(d time.Duration, fn func()) (cancel func())

	// Every runs fn repeatedly, every d, until cancelled.
	Every(d time.Duration, fn func()) (cancel func())
}

// LoopScheduler schedules on wall-clock time and posts callbacks to the
// loop, keeping all store access single-threaded.
type LoopScheduler struct {
	loop *Loop
}

// NewLoopScheduler creates a scheduler delivering onto loop.
func NewLoopScheduler(loop *Loop) *LoopScheduler {
	return &LoopScheduler{loop: loop}
}

// After implements Scheduler.
func (s *LoopScheduler) After(d time.Duration, fn func()) func() {
	timer := time.AfterFunc(d, func() {
		s.loop.Post(fn)
	})
	var once sync.Once
	return func() {
		once.Do(func() { timer.Stop() })
	}
}

// Every implements Scheduler.
func (s *LoopScheduler) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		d = time.Millisecond
	}
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-done:
				ticker.Stop()
				return
			case <-ticker.C:
				s.loop.Post(fn)
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() { close(done) })
	}
}

// Package testutil provides deterministic stand-ins for the engine's
// time-dependent collaborators: a manually advanced scheduler and a fixed
// token generator. Tests drive virtual time with Advance and get
// byte-identical traces on every run.
package testutil

import (
	"sort"
	"time"
)

// timerEntry is one scheduled callback in virtual time.
type timerEntry struct {
	id        int
	due       time.Duration
	period    time.Duration // 0 for one-shot
	fn        func()
	cancelled bool
}

// FakeScheduler implements engine.Scheduler over a virtual clock.
//
// Nothing fires until Advance moves time forward; callbacks then run
// inline on the caller's goroutine, in due order, with ties broken by
// scheduling order. Tests therefore act as the single-writer thread.
type FakeScheduler struct {
	now    time.Duration
	nextID int
	timers []*timerEntry
}

// NewFakeScheduler creates a scheduler at virtual time zero.
func NewFakeScheduler() *FakeScheduler {
	return &FakeScheduler{}
}

// Now returns the current virtual time.
func (s *FakeScheduler) Now() time.Duration {
	return s.now
}

// After implements engine.Scheduler.
func (s *FakeScheduler) After(d time.Duration, fn func()) func() {
	return s.add(d, 0, fn)
}

// Every implements engine.Scheduler.
func (s *FakeScheduler) Every(d time.Duration, fn func()) func() {
	if d <= 0 {
		d = time.Millisecond
	}
	return s.add(d, d, fn)
}

func (s *FakeScheduler) add(d, period time.Duration, fn func()) func() {
	if d < 0 {
		d = 0
	}
	entry := &timerEntry{id: s.nextID, due: s.now + d, period: period, fn: fn}
	s.nextID++
	s.timers = append(s.timers, entry)
	return func() { entry.cancelled = true }
}

// Advance moves virtual time forward by d, firing every timer that comes
// due, in due order. A callback may schedule or cancel further timers;
// newly scheduled ones fire within the same Advance if they come due
// before it ends.
func (s *FakeScheduler) Advance(d time.Duration) {
	target := s.now + d
	for {
		entry := s.nextDue(target)
		if entry == nil {
			break
		}
		s.now = entry.due
		if entry.period > 0 {
			entry.due += entry.period
		} else {
			entry.cancelled = true
		}
		entry.fn()
	}
	s.now = target
	s.compact()
}

// nextDue returns the earliest live timer due at or before target.
func (s *FakeScheduler) nextDue(target time.Duration) *timerEntry {
	live := make([]*timerEntry, 0, len(s.timers))
	for _, entry := range s.timers {
		if !entry.cancelled && entry.due <= target {
			live = append(live, entry)
		}
	}
	if len(live) == 0 {
		return nil
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].due != live[j].due {
			return live[i].due < live[j].due
		}
		return live[i].id < live[j].id
	})
	return live[0]
}

func (s *FakeScheduler) compact() {
	live := s.timers[:0]
	for _, entry := range s.timers {
		if !entry.cancelled {
			live = append(live, entry)
		}
	}
	s.timers = live
}

// PendingTimers returns the number of live scheduled callbacks.
func (s *FakeScheduler) PendingTimers() int {
	n := 0
	for _, entry := range s.timers {
		if !entry.cancelled {
			n++
		}
	}
	return n
}

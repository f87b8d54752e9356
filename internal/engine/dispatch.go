package engine

import (
	"time"

	"github.com/weftui/weft/internal/ir"
)

// DispatchMode selects the rate limiting behavior of a Dispatcher.
type DispatchMode string

const (
	// Debounce delays firing until events pause for the whole window;
	// only the last event of a burst is delivered, exactly once.
	Debounce DispatchMode = "debounce"

	// Throttle fires the first event of a quiet period immediately and
	// coalesces the rest of the window into at most one trailing fire.
	Throttle DispatchMode = "throttle"
)

// Dispatcher wraps an event-to-action binding with debounce or throttle
// admission control.
//
// A Dispatcher belongs to one element binding and lives on the
// single-writer thread; the scheduler delivers its timer callbacks there
// too, so no locking is needed. Close is the teardown hook the owning
// element must call: it is idempotent and guarantees no fire after it
// returns.
type Dispatcher struct {
	mode   DispatchMode
	window time.Duration
	sched  Scheduler
	fire   func(payload ir.Value)

	cancelPending func()
	trailing      ir.Value
	hasTrailing   bool
	inWindow      bool
	closed        bool
}

// NewDispatcher creates a rate-limited dispatcher around fire. A negative
// window is treated as zero, which disables the machinery entirely: every
// event fires immediately.
func NewDispatcher(mode DispatchMode, windowMS int, sched Scheduler, fire func(payload ir.Value)) *Dispatcher {
	if windowMS < 0 {
		windowMS = 0
	}
	return &Dispatcher{
		mode:   mode,
		window: time.Duration(windowMS) * time.Millisecond,
		sched:  sched,
		fire:   fire,
	}
}

// Dispatch admits one event with its computed payload.
func (d *Dispatcher) Dispatch(payload ir.Value) {
	if d.closed {
		return
	}
	if d.window == 0 {
		d.fire(payload)
		return
	}

	switch d.mode {
	case Debounce:
		// Each event resets the pending timer; only the last payload
		// survives the burst.
		if d.cancelPending != nil {
			d.cancelPending()
		}
		d.cancelPending = d.sched.After(d.window, func() {
			d.cancelPending = nil
			if !d.closed {
				d.fire(payload)
			}
		})

	case Throttle:
		if !d.inWindow {
			d.fire(payload)
			d.openWindow()
			return
		}
		d.trailing = payload
		d.hasTrailing = true

	default:
		d.fire(payload)
	}
}

// openWindow starts a throttle window. At the boundary a coalesced
// trailing event fires and opens the next window; with no trailing event
// the dispatcher returns to quiet.
func (d *Dispatcher) openWindow() {
	d.inWindow = true
	d.cancelPending = d.sched.After(d.window, func() {
		d.cancelPending = nil
		if d.closed {
			return
		}
		if d.hasTrailing {
			payload := d.trailing
			d.trailing = nil
			d.hasTrailing = false
			d.fire(payload)
			d.openWindow()
			return
		}
		d.inWindow = false
	})
}

// Close tears the dispatcher down: the pending timer is cancelled and no
// action fires afterwards. Safe to call more than once.
func (d *Dispatcher) Close() {
	if d.closed {
		return
	}
	d.closed = true
	if d.cancelPending != nil {
		d.cancelPending()
		d.cancelPending = nil
	}
	d.trailing = nil
	d.hasTrailing = false
}

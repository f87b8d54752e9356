package store

import "sync/atomic"

// Clock is a monotonic logical clock. Every journaled mutation is stamped
// with a strictly increasing seq from it, so replay reproduces the exact
// write order without consulting wall time.
//
// Clock is safe for concurrent use, though the store's single-writer
// discipline means one goroutine normally calls Next.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at a specific sequence number.
// Replay uses this to resume from the last journaled position.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next returns the next sequence number and advances the clock.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the current sequence number without advancing.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

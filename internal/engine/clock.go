package engine

import "sync/atomic"

// Sequencer hands out the Seq values that stamp trace events.
// Implementations must return strictly increasing values.
type Sequencer interface {
	Next() int64
}

// Clock is the logical clock that stamps trace events.
//
// Every event gets a strictly increasing Seq. Traces are ordered by Seq,
// never by wall-clock time, so a rerun of the same hierarchy produces the
// same trace.
//
// Clock is safe for concurrent use. Engines that share a Clock interleave
// their Seq values but never repeat one.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock starting at start. Used to continue a trace
// already persisted in a store.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.seq.Store(start)
	return c
}

// Next advances the clock and returns the new value.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last value handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}

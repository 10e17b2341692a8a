package fit

import "sync/atomic"

// Counter numbers posterior evaluations.
//
// Every evaluation is stamped with a strictly increasing sequence number so
// that evaluation logs and the run store order identically. The optimizer
// calls the objective from one goroutine, but the counter is safe for
// concurrent use.
type Counter struct {
	seq atomic.Int64
}

// NewCounter returns a counter starting at 0.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt returns a counter whose next value is start+1.
func NewCounterAt(start int64) *Counter {
	c := &Counter{}
	c.seq.Store(start)
	return c
}

// Next increments the counter and returns the new value.
func (c *Counter) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the number of evaluations stamped so far.
func (c *Counter) Current() int64 {
	return c.seq.Load()
}

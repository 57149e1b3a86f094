package engine

import "sync/atomic"

// Clock hands out the seq numbers stamped on queued events. The queue
// stamps under its lock, so seq order is the order the worker runs them.
type Clock struct {
	seq atomic.Int64
}

// NewClock returns a clock whose first stamp is 1.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next seq.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Package clock provides a time abstraction so time-dependent code can be
// tested without sleeping. Use Real in production and Mock in tests.
package clock

import (
	"sync"
	"time"
)

// Clock is an interface for the time operations the daemon needs.
type Clock interface {
	// Now returns the current time
	Now() time.Time

	// After waits for the duration to elapse and then sends the current time on the returned channel
	After(d time.Duration) <-chan time.Time

	// Since returns the time elapsed since t
	Since(t time.Time) time.Duration
}

// Real implements Clock using the standard time package
type Real struct{}

// NewReal creates a new Real clock
func NewReal() *Real {
	return &Real{}
}

// Now returns the current time
func (c *Real) Now() time.Time {
	return time.Now()
}

// After waits for the duration to elapse and then sends the current time
func (c *Real) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Since returns the time elapsed since t
func (c *Real) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// Mock is a Clock implementation for testing that allows manual time control
type Mock struct {
	mu      sync.Mutex
	current time.Time
	waiters []*waiter
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewMock creates a new Mock clock starting at the given time
func NewMock(start time.Time) *Mock {
	return &Mock{current: start}
}

// Now returns the mock current time
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// After returns a channel that receives the mock time once Advance has moved
// the clock past the deadline
func (c *Mock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	w := &waiter{
		deadline: c.current.Add(d),
		ch:       make(chan time.Time, 1),
	}
	c.waiters = append(c.waiters, w)
	return w.ch
}

// Since returns the time elapsed since t using the mock current time
func (c *Mock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current.Sub(t)
}

// Advance moves the mock clock forward by d and fires any waiters whose
// deadline has passed
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	newTime := c.current.Add(d)
	c.current = newTime

	var due []*waiter
	var remaining []*waiter
	for _, w := range c.waiters {
		if !w.deadline.After(newTime) {
			due = append(due, w)
		} else {
			remaining = append(remaining, w)
		}
	}
	c.waiters = remaining
	c.mu.Unlock()

	// Fire outside the lock so a receiver calling back into the clock
	// cannot deadlock.
	for _, w := range due {
		w.ch <- newTime
	}
}

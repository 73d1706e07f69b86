package host

import (
	"sync"
	"time"
)

// ReplayClock reports the time of the host event being replayed, so that
// durations recorded during a replay match the original run. Until a time is
// set it reports the wall clock.
type ReplayClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewReplayClock() *ReplayClock {
	return &ReplayClock{}
}

// Set moves the clock to t. Zero times and times earlier than the current
// time are ignored.
func (c *ReplayClock) Set(t time.Time) {
	if t.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.now) {
		c.now = t
	}
}

// Reset moves the clock to t, earlier times included. Zero times are
// ignored.
func (c *ReplayClock) Reset(t time.Time) {
	if t.IsZero() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *ReplayClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.now.IsZero() {
		return time.Now()
	}
	return c.now
}

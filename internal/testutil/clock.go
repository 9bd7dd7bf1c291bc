package testutil

import (
	"sync"
	"time"
)

// Epoch is the instant a fresh DeterministicClock reports before its first
// tick.
var Epoch = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)

// DeterministicClock satisfies calib.Clock with timestamps that advance by one
// second per call, so stored metadata and golden snapshots stay stable.
type DeterministicClock struct {
	mu    sync.Mutex
	ticks int64
}

func NewDeterministicClock() *DeterministicClock {
	return &DeterministicClock{}
}

// Now returns Epoch plus one second for every call made so far, this one
// included.
func (c *DeterministicClock) Now() time.Time {
	c.mu.Lock()
	c.ticks++
	n := c.ticks
	c.mu.Unlock()
	return Epoch.Add(time.Duration(n) * time.Second)
}

// Ticks reports how many timestamps have been handed out.
func (c *DeterministicClock) Ticks() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ticks
}

// Reset rewinds the clock to Epoch.
func (c *DeterministicClock) Reset() {
	c.mu.Lock()
	c.ticks = 0
	c.mu.Unlock()
}

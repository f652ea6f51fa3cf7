package timesync

import (
	"sync"
	"time"
)

// Clock is the process-wide wall clock. Set is the only mutation and
// only the Store performs it; everything else reads.
type Clock interface {
	Now() time.Time
	Set(time.Time)
}

// OffsetClock derives wall time from the host monotonic clock plus an
// adjustable offset. On a host build the OS clock cannot be stepped,
// so the dashboard keeps its own notion of "now".
type OffsetClock struct {
	lock   sync.RWMutex
	offset time.Duration
}

// NewOffsetClock creates an OffsetClock tracking the host clock.
func NewOffsetClock() *OffsetClock {
	return &OffsetClock{}
}

// Now implements Clock.
func (c *OffsetClock) Now() time.Time {
	c.lock.RLock()
	defer c.lock.RUnlock()
	return time.Now().Add(c.offset).UTC()
}

// Set implements Clock.
func (c *OffsetClock) Set(t time.Time) {
	c.lock.Lock()
	c.offset = time.Until(t)
	c.lock.Unlock()
}

// Sanity window for candidate and live times. A reading outside the
// window is treated as never-synchronized.
var (
	sanityFloor = time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC)
	sanityCeil  = time.Date(2035, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// Plausible reports whether t falls inside the sanity window and can
// be treated as an already-synchronized reading.
func Plausible(t time.Time) bool {
	return !t.Before(sanityFloor) && t.Before(sanityCeil)
}

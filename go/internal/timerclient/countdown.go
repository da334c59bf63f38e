package timerclient

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Countdown tracks the session start instant in the client's own clock and
// derives elapsed/remaining durations from it.
type Countdown struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	startedAt *int64
}

// NewCountdown creates an empty countdown.
func NewCountdown(clock clockwork.Clock) *Countdown {
	return &Countdown{clock: clock}
}

// Set records the client-relative start instant (Unix milliseconds).
func (c *Countdown) Set(startedAt int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = &startedAt
}

// Clear forgets the start instant.
func (c *Countdown) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.startedAt = nil
}

// StartedAt returns the start instant and whether one is known.
func (c *Countdown) StartedAt() (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.startedAt == nil {
		return 0, false
	}
	return *c.startedAt, true
}

// Elapsed returns how long the timer has been running.
func (c *Countdown) Elapsed() (time.Duration, bool) {
	startedAt, ok := c.StartedAt()
	if !ok {
		return 0, false
	}
	return time.Duration(c.clock.Now().UnixMilli()-startedAt) * time.Millisecond, true
}

// Remaining returns how much of a session of the given length is left,
// clamped at zero.
func (c *Countdown) Remaining(total time.Duration) (time.Duration, bool) {
	elapsed, ok := c.Elapsed()
	if !ok {
		return 0, false
	}
	remaining := total - elapsed
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

package llm

import (
	"sync"
	"time"
)

// DefaultCooldownMin is the shortest window an autonomous cooldown can
// impose.
const DefaultCooldownMin = 10 * time.Minute

// Cooldown suppresses autonomous model calls after connectivity
// failures. The window only ever extends: a later failure can push the
// expiry further out but never pull it in. Exactly one user-visible
// notice is owed per window, tracked by reportedUntil.
type Cooldown struct {
	mu            sync.Mutex
	until         time.Time
	reportedUntil time.Time
	min           time.Duration
	now           func() time.Time
}

func NewCooldown(min time.Duration) *Cooldown {
	if min <= 0 {
		min = DefaultCooldownMin
	}
	return &Cooldown{min: min, now: time.Now}
}

// Trip activates or extends the cooldown by the proposed duration,
// floored at the configured minimum. The expiry never moves earlier.
func (c *Cooldown) Trip(proposed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if proposed < c.min {
		proposed = c.min
	}
	candidate := c.now().Add(proposed)
	if candidate.After(c.until) {
		c.until = candidate
	}
}

func (c *Cooldown) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now().Before(c.until)
}

func (c *Cooldown) Remaining() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	d := c.until.Sub(c.now())
	if d < 0 {
		return 0
	}
	return d
}

// ShouldNotify reports whether the current window still owes its
// one-time user notice, and marks it delivered. Returns the remaining
// window so the caller can phrase the notice.
func (c *Cooldown) ShouldNotify() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if !now.Before(c.until) {
		return 0, false
	}
	if !c.reportedUntil.Before(c.until) {
		return 0, false
	}
	c.reportedUntil = c.until
	return c.until.Sub(now), true
}

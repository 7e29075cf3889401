package llm

import (
	"testing"
	"time"
)

func newTestCooldown(min time.Duration) (*Cooldown, *time.Time) {
	c := NewCooldown(min)
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCooldownInactiveByDefault(t *testing.T) {
	c, _ := newTestCooldown(time.Minute)

	if c.Active() {
		t.Fatalf("fresh cooldown should be inactive")
	}
	if _, notify := c.ShouldNotify(); notify {
		t.Fatalf("inactive cooldown should not owe a notice")
	}
}

func TestCooldownFloorsAtMinimum(t *testing.T) {
	c, _ := newTestCooldown(10 * time.Minute)

	c.Trip(time.Second)
	if got := c.Remaining(); got != 10*time.Minute {
		t.Fatalf("expected minimum window, got %v", got)
	}
}

func TestCooldownNeverShrinks(t *testing.T) {
	c, _ := newTestCooldown(time.Minute)

	c.Trip(30 * time.Minute)
	c.Trip(5 * time.Minute)
	if got := c.Remaining(); got != 30*time.Minute {
		t.Fatalf("later shorter trip shrank the window: %v", got)
	}

	c.Trip(45 * time.Minute)
	if got := c.Remaining(); got != 45*time.Minute {
		t.Fatalf("longer trip should extend the window: %v", got)
	}
}

func TestCooldownNotifiesOncePerWindow(t *testing.T) {
	c, now := newTestCooldown(time.Minute)

	c.Trip(20 * time.Minute)

	remaining, notify := c.ShouldNotify()
	if !notify || remaining != 20*time.Minute {
		t.Fatalf("expected first notice with remaining=20m, got %v %v", remaining, notify)
	}
	if _, notify := c.ShouldNotify(); notify {
		t.Fatalf("second notice for the same window")
	}

	// Extending the window owes a fresh notice.
	c.Trip(40 * time.Minute)
	if _, notify := c.ShouldNotify(); !notify {
		t.Fatalf("extended window should owe a new notice")
	}

	// After expiry nothing is owed.
	*now = now.Add(time.Hour)
	if _, notify := c.ShouldNotify(); notify {
		t.Fatalf("expired window should not notify")
	}
}

package clock

import "time"

// FakeClock is a manually advanced Clock for tests that exercise config
// TTL expiry and snapshot date windows. Times are normalized to UTC, same
// as the system clock.
type FakeClock struct {
	now time.Time
}

func NewFakeClock(start time.Time) *FakeClock {
	return &FakeClock{now: start.UTC()}
}

func (c *FakeClock) Now() time.Time {
	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.now = c.now.Add(d)
}

package service

import (
	"sync"
	"time"
)

// clock hands out UTC timestamps at microsecond precision that strictly
// increase within the process and never fall before the wall clock reading
// they were taken at. Message time columns are created with precision 6 so
// the stored value is exactly the one handed out.
type clock struct {
	mu   sync.Mutex
	last time.Time
	now  func() time.Time
}

func newClock() *clock {
	return &clock{now: time.Now}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	wall := c.now().UTC()
	t := wall.Truncate(time.Microsecond)
	if t.Before(wall) {
		t = t.Add(time.Microsecond)
	}
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}

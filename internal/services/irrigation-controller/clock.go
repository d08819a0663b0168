package irrigation_controller

import (
	"sync"
	"time"
)

// Instant is one sample of the wall clock, taken once per control tick.
type Instant struct {
	Weekday time.Weekday // 0 = Sunday
	Hour    int
	Minute  int
	Second  int
	Epoch   int64
}

func InstantOf(t time.Time) Instant {
	return Instant{
		Weekday: t.Weekday(),
		Hour:    t.Hour(),
		Minute:  t.Minute(),
		Second:  t.Second(),
		Epoch:   t.Unix(),
	}
}

// Time returns the instant as a time.Time in loc.
func (i Instant) Time(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.Unix(i.Epoch, 0).In(loc)
}

// Clock is the real-time clock collaborator.
type Clock interface {
	Now() Instant
}

type SystemClock struct{ Location *time.Location }

func (c SystemClock) Now() Instant {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	return InstantOf(time.Now().In(loc))
}

// ManualClock is a settable clock for tests and simulations.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(t time.Time) *ManualClock { return &ManualClock{now: t} }

func (c *ManualClock) Now() Instant {
	c.mu.Lock()
	defer c.mu.Unlock()
	return InstantOf(c.now)
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

package arena

import (
	"math/rand"
	"sort"
	"time"
)

// manualClock fires timers only when advanced.
type manualClock struct {
	now    time.Time
	timers []*manualTimer
}

type manualTimer struct {
	clock   *manualClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time { return c.now }

func (c *manualClock) AfterFunc(d time.Duration, f func()) Timer {
	t := &manualTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *manualTimer) Stop() bool {
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Advance moves time forward, firing due timers in deadline order.
func (c *manualClock) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		due := c.due(end)
		if due == nil {
			break
		}
		c.now = due.at
		due.fired = true
		due.f()
	}
	c.now = end
}

func (c *manualClock) due(end time.Time) *manualTimer {
	var live []*manualTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			live = append(live, t)
		}
	}
	c.timers = live
	sort.Slice(live, func(i, j int) bool { return live[i].at.Before(live[j].at) })
	if len(live) == 0 || live[0].at.After(end) {
		return nil
	}
	return live[0]
}

// armed returns the number of timers neither stopped nor fired.
func (c *manualClock) armed() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fixedRand returns the same values forever.
type fixedRand struct {
	f float64
	n int
}

func (r fixedRand) Float64() float64 { return r.f }
func (r fixedRand) Intn(int) int     { return r.n }

func seededRand() Rand {
	return rand.New(rand.NewSource(7))
}

// Package schedtest provides manually driven Scheduler and Clock fakes.
package schedtest

import (
	"sort"
	"sync"
	"time"

	"github.com/okian/liveboard/internal/domain/schedule"
)

// Scheduler is a schedule.Scheduler whose ticks are fired by Tick.
type Scheduler struct {
	mu       sync.Mutex
	fn       func()
	interval time.Duration
	running  bool
	starts   int
}

var _ schedule.Scheduler = (*Scheduler)(nil)

// Start implements schedule.Scheduler.
func (s *Scheduler) Start(interval time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.fn, s.interval, s.running = fn, interval, true
	s.starts++
}

// Stop implements schedule.Scheduler.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.fn = nil
}

// Running implements schedule.Scheduler.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Interval returns the interval of the last Start.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Starts returns how many times the scheduler was started.
func (s *Scheduler) Starts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.starts
}

// Tick runs the callback synchronously if running and reports whether it did.
func (s *Scheduler) Tick() bool {
	s.mu.Lock()
	fn := s.fn
	s.mu.Unlock()
	if fn == nil {
		return false
	}
	fn()
	return true
}

// Clock is a schedule.Clock advanced by hand.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*timer
}

var _ schedule.Clock = (*Clock)(nil)

type timer struct {
	clock   *Clock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *timer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// NewClock returns a clock frozen at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now implements schedule.Clock.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// AfterFunc implements schedule.Clock.
func (c *Clock) AfterFunc(d time.Duration, f func()) schedule.Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &timer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

// Pending returns the number of timers that have neither fired nor been stopped.
func (c *Clock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// Advance moves time forward and runs due callbacks in deadline order on the
// calling goroutine.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*timer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(c.now) {
			t.fired = true
			due = append(due, t)
		}
	}
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.f()
	}
}

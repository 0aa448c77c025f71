// Package schedule decouples periodic work and delayed callbacks from the
// components that need them, so both can be driven by fakes in tests.
package schedule

import (
	"sync"
	"time"
)

// Scheduler runs a callback periodically until stopped.
type Scheduler interface {
	// Start begins calling fn every interval. Calling Start on a running
	// scheduler is a no-op.
	Start(interval time.Duration, fn func())
	// Stop halts the schedule and waits for the loop to exit. In-flight
	// callbacks are not waited for. Stop is idempotent.
	Stop()
	Running() bool
}

// Ticker implements Scheduler with a time.Ticker. Each tick runs fn in its
// own goroutine so a slow callback never delays the next tick.
type Ticker struct {
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	running bool
}

// NewTicker returns a stopped Ticker.
func NewTicker() *Ticker {
	return &Ticker{}
}

// Start implements Scheduler.
func (t *Ticker) Start(interval time.Duration, fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.running || interval <= 0 {
		return
	}
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	t.running = true
	go t.loop(interval, fn, t.stop, t.done)
}

func (t *Ticker) loop(interval time.Duration, fn func(), stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			go fn()
		}
	}
}

// Stop implements Scheduler.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return
	}
	close(t.stop)
	done := t.done
	t.running = false
	t.mu.Unlock()

	<-done
}

// Running implements Scheduler.
func (t *Ticker) Running() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.running
}

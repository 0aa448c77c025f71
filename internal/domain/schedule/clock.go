package schedule

import "time"

// Timer is a pending delayed callback.
type Timer interface {
	// Stop prevents the callback from firing; it reports whether the call
	// stopped the timer.
	Stop() bool
}

// Clock provides time and delayed callbacks.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// AfterFunc implements Clock.
func (SystemClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}

package aggregator

import (
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule"
	"github.com/okian/liveboard/pkg/logger"
)

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithInterval sets the polling period.
func WithInterval(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.interval = d
		}
	}
}

// WithSnapshotCap sets how many results a snapshot keeps. Zero is allowed and
// yields empty snapshots.
func WithSnapshotCap(n int) Option {
	return func(a *Aggregator) {
		if n >= 0 {
			a.limit = n
		}
	}
}

// WithMaxStageConcurrency bounds concurrent stage fetches per entity.
func WithMaxStageConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.stageConcurrency = n
		}
	}
}

// WithScheduler replaces the periodic scheduler.
func WithScheduler(s schedule.Scheduler) Option {
	return func(a *Aggregator) {
		if s != nil {
			a.scheduler = s
		}
	}
}

// WithClock sets the clock used for UpdatedAt stamps.
func WithClock(c schedule.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithListener sets the function notified after each commit. It runs with the
// aggregator lock held and must not block or call back into the Aggregator.
func WithListener(fn func(model.Update)) Option {
	return func(a *Aggregator) {
		if fn != nil {
			a.listener = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Aggregator) {
		if l != nil {
			a.logger = l
		}
	}
}

package worker

import (
	"time"

	"github.com/okian/liveboard/pkg/logger"
)

// Option applies a configuration option to the Pool.
type Option func(*Pool)

// WithWorkers sets how many workers drain the queue. One worker keeps views
// of the same entity in publication order.
func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workerCount = n
		}
	}
}

// WithDeliveryTimeout bounds one Deliver call.
func WithDeliveryTimeout(d time.Duration) Option {
	return func(p *Pool) {
		if d > 0 {
			p.deliveryTimeout = d
		}
	}
}

// WithLogger sets a custom logger for the pool.
func WithLogger(l logger.Logger) Option {
	return func(p *Pool) {
		if l != nil {
			p.logger = l
		}
	}
}

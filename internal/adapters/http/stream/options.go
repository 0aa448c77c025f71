package stream

import (
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
)

// Option applies a configuration option to the Hub.
type Option func(*Hub)

// WithPingInterval sets how often clients are pinged.
func WithPingInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
		}
	}
}

// WithSendBuffer sets how many views may wait per client before it is dropped.
func WithSendBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.sendBuffer = n
		}
	}
}

// WithInitialViews sets the function providing views sent on connect.
func WithInitialViews(fn func() []model.View) Option {
	return func(h *Hub) {
		if fn != nil {
			h.initial = fn
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

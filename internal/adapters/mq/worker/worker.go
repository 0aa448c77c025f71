// Package worker delivers queued views to sinks.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultWorkerCount     = 1
	defaultDeliveryTimeout = 5 * time.Second
	poolShutdownTimeout    = 30 * time.Second
)

// Sink receives every published view.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, v model.View) error
}

// Queue defines how workers receive views.
type Queue interface {
	Dequeue(ctx context.Context) <-chan model.View
}

// Pool runs workers that fan each dequeued view out to all sinks. A failing
// sink is logged and counted and never stops the worker.
type Pool struct {
	queue           Queue
	sinks           []Sink
	workerCount     int
	deliveryTimeout time.Duration
	logger          logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	started   bool
	delivered int64
}

// NewPool creates a worker pool over q delivering to sinks.
func NewPool(q Queue, sinks []Sink, opts ...Option) *Pool {
	p := &Pool{
		queue:           q,
		sinks:           sinks,
		workerCount:     defaultWorkerCount,
		deliveryTimeout: defaultDeliveryTimeout,
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Calling Start twice is a no-op.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	ctx, p.cancel = context.WithCancel(ctx)
	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.run(ctx, p.logger.Named("worker-"+strconv.Itoa(i)))
	}
}

func (p *Pool) run(ctx context.Context, log logger.Logger) {
	defer p.wg.Done()
	for v := range p.queue.Dequeue(ctx) {
		p.deliver(ctx, log, v)
	}
}

func (p *Pool) deliver(ctx context.Context, log logger.Logger, v model.View) { //nolint:gocritic // hugeParam: View is passed by value for channel semantics
	for _, s := range p.sinks {
		dctx, cancel := context.WithTimeout(ctx, p.deliveryTimeout)
		err := s.Deliver(dctx, v)
		cancel()
		if err != nil {
			metrics.RecordSinkError(s.Name())
			log.Error(ctx, "view delivery failed",
				logger.String("sink", s.Name()),
				logger.String("entity", v.EntityID),
				logger.Error(err),
			)
			continue
		}
		metrics.RecordViewDelivered(s.Name())
	}
	p.mu.Lock()
	p.delivered++
	p.mu.Unlock()
}

// Delivered returns how many views have been fanned out.
func (p *Pool) Delivered() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delivered
}

// Shutdown closes the queue when it supports it, lets the workers drain it,
// and waits for them until ctx expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	defer p.stop()

	select {
	case <-done:
		return nil
	case <-shutdownCtx.Done():
		p.logger.Warn(ctx, "worker shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
	}
}

func (p *Pool) stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
	}
}

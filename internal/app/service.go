// Package service wires the aggregator, the annotating tracker and the
// delivery pipeline into the dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/liveboard/internal/adapters/http/stream"
	"github.com/okian/liveboard/internal/adapters/mq/kafka"
	"github.com/okian/liveboard/internal/adapters/mq/queue"
	"github.com/okian/liveboard/internal/adapters/mq/worker"
	"github.com/okian/liveboard/internal/adapters/rankingapi"
	"github.com/okian/liveboard/internal/aggregator"
	"github.com/okian/liveboard/internal/config"
	"github.com/okian/liveboard/internal/domain/annotate"
	"github.com/okian/liveboard/internal/domain/live"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

const shutdownTimeout = 10 * time.Second

// ErrNotStarted is returned by operations that need a started service.
var ErrNotStarted = errors.New("service not started")

// EventLister lists the events discovery selects live entities from.
type EventLister interface {
	ListEvents(ctx context.Context) ([]model.Event, error)
}

// Source is the full data source contract of the service.
type Source interface {
	aggregator.Source
	EventLister
}

// Service implements the API dependencies for the live board.
type Service struct {
	mu sync.RWMutex

	cfg *config.Config

	// Core components
	source     Source
	aggregator *aggregator.Aggregator
	tracker    *annotate.Tracker
	viewQueue  *queue.InMemoryQueue
	workerPool *worker.Pool
	hub        *stream.Hub
	publisher  *kafka.Publisher
	sinks      []worker.Sink

	// Scheduling
	pollScheduler      schedule.Scheduler
	discoveryScheduler schedule.Scheduler
	clock              schedule.Clock

	// State
	started   bool
	pinned    bool
	stopCh    chan struct{}
	runCtx    context.Context
	cancelRun context.CancelFunc

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSource replaces the ranking API client built from the config.
func WithSource(src Source) Option {
	return func(s *Service) {
		if src != nil {
			s.source = src
		}
	}
}

// WithPollScheduler sets the scheduler driving refresh cycles.
func WithPollScheduler(sc schedule.Scheduler) Option {
	return func(s *Service) {
		if sc != nil {
			s.pollScheduler = sc
		}
	}
}

// WithDiscoveryScheduler sets the scheduler driving discovery runs.
func WithDiscoveryScheduler(sc schedule.Scheduler) Option {
	return func(s *Service) {
		if sc != nil {
			s.discoveryScheduler = sc
		}
	}
}

// WithClock sets the clock used for decay timers and live selection.
func WithClock(c schedule.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithSink adds a delivery sink next to the stream hub and Kafka publisher.
func WithSink(sink worker.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.sinks = append(s.sinks, sink)
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service. A nil cfg uses config.New defaults.
func New(cfg *config.Config, opts ...Option) *Service {
	if cfg == nil {
		cfg = config.New()
	}
	s := &Service{
		cfg:                cfg,
		pollScheduler:      schedule.NewTicker(),
		discoveryScheduler: schedule.NewTicker(),
		clock:              schedule.SystemClock{},
		stopCh:             make(chan struct{}),
		logger:             logger.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.source == nil {
		s.source = rankingapi.NewClient(cfg.APIBaseURL,
			rankingapi.WithToken(cfg.APIToken),
			rankingapi.WithTimeout(cfg.RequestTimeout()),
			rankingapi.WithLogger(s.logger.Named("rankingapi")),
		)
	}
	return s
}

// Start builds the pipeline from the sinks back to the aggregator and begins
// tracking either the static entity list or the discovered live events.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	s.logger.Info(ctx, "starting live board service...")

	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers: s.cfg.KafkaBrokers,
		Topic:   s.cfg.KafkaTopic,
	}, s.logger.Named("kafka"))
	if err != nil {
		return err
	}
	s.publisher = publisher

	s.runCtx, s.cancelRun = context.WithCancel(context.WithoutCancel(ctx))

	s.hub = stream.NewHub(
		stream.WithInitialViews(s.Views),
		stream.WithLogger(s.logger.Named("stream")),
	)
	sinks := []worker.Sink{s.hub}
	if publisher.Enabled() {
		sinks = append(sinks, publisher)
	}
	sinks = append(sinks, s.sinks...)

	s.viewQueue = queue.NewInMemoryQueue(queue.WithCapacity(s.cfg.QueueSize))
	s.workerPool = worker.NewPool(s.viewQueue, sinks,
		worker.WithWorkers(s.cfg.WorkerCount),
		worker.WithLogger(s.logger.Named("worker")),
	)
	s.workerPool.Start(s.runCtx)

	s.tracker = annotate.NewTracker(
		annotate.WithClock(s.clock),
		annotate.WithWindow(s.cfg.PresentationWindow()),
		annotate.WithOnView(s.enqueue),
		annotate.WithLogger(s.logger.Named("annotate")),
	)

	s.aggregator = aggregator.New(s.source,
		aggregator.WithInterval(s.cfg.PollInterval()),
		aggregator.WithSnapshotCap(s.cfg.SnapshotCap),
		aggregator.WithMaxStageConcurrency(s.cfg.MaxStageConcurrency),
		aggregator.WithScheduler(s.pollScheduler),
		aggregator.WithClock(s.clock),
		aggregator.WithListener(s.tracker.Observe),
		aggregator.WithLogger(s.logger.Named("aggregator")),
	)

	s.started = true
	s.pinned = false

	if static := s.cfg.StaticEntities(); len(static) > 0 {
		s.pinned = true
		if err := s.aggregator.Configure(ctx, static); err != nil {
			return err
		}
	} else {
		s.discoveryScheduler.Start(s.cfg.DiscoveryInterval(), s.discoverTick)
		go s.discoverTick()
	}

	s.logger.Info(ctx, "live board service started",
		logger.Int("workers", s.cfg.WorkerCount),
		logger.Int("queueSize", s.cfg.QueueSize),
		logger.Bool("discovery", !s.pinned),
		logger.Bool("kafka", publisher.Enabled()),
	)
	return nil
}

// enqueue hands a tracker view to the delivery queue. It runs under the
// tracker lock and must not block.
func (s *Service) enqueue(v model.View) { //nolint:gocritic // hugeParam: signature fixed by annotate.WithOnView
	if err := s.viewQueue.Enqueue(s.runCtx, v); err != nil {
		if !errors.Is(err, queue.ErrClosed) {
			s.logger.Warn(s.runCtx, "view dropped",
				logger.String("entity", v.EntityID),
				logger.Error(err),
			)
		}
		return
	}
	metrics.UpdateQueueSize(s.viewQueue.Len())
}

// Stop gracefully shuts down the service. Views already queued are still
// delivered before the sinks are closed.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	ctx := context.Background()
	s.logger.Info(ctx, "stopping live board service...")

	s.discoveryScheduler.Stop()
	s.aggregator.Close()
	s.tracker.Close()

	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	if err := s.workerPool.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn(ctx, "worker pool shutdown incomplete", logger.Error(err))
	}

	s.hub.Close()
	if err := s.publisher.Close(); err != nil {
		s.logger.Warn(ctx, "kafka publisher close failed", logger.Error(err))
	}
	s.cancelRun()

	// Signal any waiters that the service is gone
	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "live board service stopped")
}

// Done is closed once the service has been stopped.
func (s *Service) Done() <-chan struct{} {
	return s.stopCh
}

// Stream returns the websocket handler, or nil before Start.
func (s *Service) Stream() *stream.Hub {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hub
}

func (s *Service) discoverTick() {
	s.mu.RLock()
	ctx := s.runCtx
	s.mu.RUnlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	if err := s.Discover(ctx); err != nil && ctx.Err() == nil {
		s.logger.Warn(ctx, "discovery failed", logger.Error(err))
	}
}

// Discover selects the events live now and retargets the aggregator when the
// selection differs from the tracked set. Failures keep the previous set.
func (s *Service) Discover(ctx context.Context) error {
	s.mu.RLock()
	started, pinned, agg := s.started, s.pinned, s.aggregator
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	if pinned {
		metrics.RecordDiscoveryRun("pinned")
		return nil
	}

	events, err := s.source.ListEvents(ctx)
	if err != nil {
		metrics.RecordDiscoveryRun("error")
		return err
	}

	ids := live.Select(events, s.clock.Now())
	if live.Equal(ids, agg.Tracked()) {
		metrics.RecordDiscoveryRun("unchanged")
		return nil
	}
	if err := agg.Configure(ctx, ids); err != nil {
		metrics.RecordDiscoveryRun("error")
		return err
	}
	metrics.RecordDiscoveryRun("changed")
	s.logger.Info(ctx, "live set changed", logger.Strings("entities", ids))
	return nil
}

// Configure pins the tracked set. Discovery stops so it cannot override an
// explicit selection.
func (s *Service) Configure(ctx context.Context, entityIDs []string) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return ErrNotStarted
	}
	if !s.pinned {
		s.pinned = true
		s.discoveryScheduler.Stop()
		s.logger.Info(ctx, "entity set pinned, discovery stopped")
	}
	agg := s.aggregator
	s.mu.Unlock()

	return agg.Configure(ctx, entityIDs)
}

// RefreshAll runs one refresh cycle over every tracked entity.
func (s *Service) RefreshAll(ctx context.Context) error {
	s.mu.RLock()
	started, agg := s.started, s.aggregator
	s.mu.RUnlock()
	if !started {
		return ErrNotStarted
	}
	return agg.RefreshAll(ctx)
}

// View returns the view of a tracked entity. Entities still waiting for
// their first commit are reported as loading.
func (s *Service) View(entityID string) (model.View, bool) {
	s.mu.RLock()
	started, agg, tr := s.started, s.aggregator, s.tracker
	s.mu.RUnlock()
	if !started {
		return model.View{}, false
	}
	st, ok := agg.State(entityID)
	if !ok {
		return model.View{}, false
	}
	if v, ok := tr.View(entityID); ok {
		return v, true
	}
	return pendingView(st), true
}

// Views returns the views of all tracked entities ordered by entity id.
func (s *Service) Views() []model.View {
	s.mu.RLock()
	started, agg, tr := s.started, s.aggregator, s.tracker
	s.mu.RUnlock()
	if !started {
		return []model.View{}
	}

	states := agg.States()
	out := make([]model.View, 0, len(states))
	for _, st := range states {
		if v, ok := tr.View(st.EntityID); ok {
			out = append(out, v)
			continue
		}
		out = append(out, pendingView(st))
	}
	slices.SortFunc(out, func(a, b model.View) int { return strings.Compare(a.EntityID, b.EntityID) })
	return out
}

func pendingView(st model.State) model.View { //nolint:gocritic // hugeParam: State is a read-only copy
	return model.View{
		EntityID:  st.EntityID,
		Results:   annotate.Plain(st.Snapshot),
		Loading:   st.Loading,
		Error:     st.Error,
		Version:   st.Version,
		UpdatedAt: st.UpdatedAt,
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.WorkerCount,
		"queueSize":   s.cfg.QueueSize,
		"discovery":   s.started && !s.pinned,
	}

	if s.started {
		queueLen := s.viewQueue.Len()
		tracked := s.aggregator.Tracked()

		stats["queueLength"] = queueLen
		stats["tracked"] = tracked
		stats["trackedCount"] = len(tracked)
		stats["delivered"] = s.workerPool.Delivered()
		stats["streamClients"] = s.hub.Clients()
		stats["kafka"] = s.publisher.Enabled()

		metrics.UpdateQueueSize(queueLen)
	}

	return stats
}

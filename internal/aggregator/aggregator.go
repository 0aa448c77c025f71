// Package aggregator keeps a periodically refreshed top-N ranking snapshot
// for every live entity.
//
// Each refresh cycle fetches an entity's stages, then every stage's ranked
// results concurrently, merges them and publishes the capped snapshot. A
// failing stage counts as empty; a failing stage list records an error on the
// entity and keeps its last snapshot. Entities never affect each other.
//
// Overlapping cycles for one entity (timer and manual refresh) resolve
// last-write-wins by completion time. A cycle only commits while its entity
// is still tracked by the same slot, so results arriving after Close or after
// the entity was dropped are discarded.
package aggregator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/liveboard/internal/domain/merge"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule"
	"github.com/okian/liveboard/pkg/logger"
	"github.com/okian/liveboard/pkg/metrics"
)

// Default aggregator configuration constants.
const (
	DefaultInterval            = 5 * time.Second
	DefaultMaxStageConcurrency = 8
)

// Source is the remote ranking data the aggregator polls.
type Source interface {
	ListStages(ctx context.Context, entityID string) ([]model.Stage, error)
	ListRankedResults(ctx context.Context, stageID string) ([]model.RankedResult, error)
}

// Aggregator maintains per-entity snapshots for a configurable set of entities.
type Aggregator struct {
	source           Source
	scheduler        schedule.Scheduler
	clock            schedule.Clock
	interval         time.Duration
	limit            int
	stageConcurrency int
	listener         func(model.Update)
	logger           logger.Logger

	// cfgMu serializes Configure and Close so scheduler start/stop follows
	// the order of tracked-set changes.
	cfgMu sync.Mutex

	mu     sync.Mutex
	slots  map[string]*slot
	closed bool
	// seq hands out versions across all entities, so an entity that is
	// dropped and tracked again never reuses a version.
	seq uint64

	ctx    context.Context
	cancel context.CancelFunc
}

type slot struct {
	id        string
	current   []model.RankedResult
	previous  []model.RankedResult
	loading   bool
	err       string
	version   uint64
	updatedAt time.Time
}

func (s *slot) state() model.State {
	return model.State{
		EntityID:  s.id,
		Snapshot:  slices.Clone(s.current),
		Previous:  slices.Clone(s.previous),
		Loading:   s.loading,
		Error:     s.err,
		Version:   s.version,
		UpdatedAt: s.updatedAt,
	}
}

// New creates an idle Aggregator. Nothing is fetched until Configure is
// called with at least one entity.
func New(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:           source,
		scheduler:        schedule.NewTicker(),
		clock:            schedule.SystemClock{},
		interval:         DefaultInterval,
		limit:            merge.DefaultCap,
		stageConcurrency: DefaultMaxStageConcurrency,
		listener:         func(model.Update) {},
		logger:           logger.Nop(),
		slots:            make(map[string]*slot),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	return a
}

// Configure replaces the tracked set. Dropped entities lose all state and are
// announced with a Removed update; new entities are fetched right away. An
// empty set stops polling.
func (a *Aggregator) Configure(ctx context.Context, ids []string) error {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			want[id] = struct{}{}
		}
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	var removed []string
	for id := range a.slots {
		if _, keep := want[id]; keep {
			continue
		}
		delete(a.slots, id)
		removed = append(removed, id)
		a.seq++
		a.listener(model.Update{
			State:   model.State{EntityID: id, Version: a.seq, UpdatedAt: a.clock.Now()},
			Removed: true,
		})
	}
	var added []*slot
	for id := range want {
		if _, ok := a.slots[id]; ok {
			continue
		}
		s := &slot{id: id, loading: true}
		a.slots[id] = s
		added = append(added, s)
	}
	tracked := len(a.slots)
	a.mu.Unlock()

	metrics.UpdateTrackedEntities(tracked)
	if len(removed) > 0 || len(added) > 0 {
		slices.Sort(removed)
		a.logger.Info(ctx, "tracked entities changed",
			logger.Int("tracked", tracked),
			logger.Int("added", len(added)),
			logger.Strings("removed", removed),
		)
	}

	if tracked == 0 {
		a.scheduler.Stop()
		return nil
	}
	if !a.scheduler.Running() {
		a.scheduler.Start(a.interval, a.tick)
	}
	if len(added) > 0 {
		go a.runCycle(a.ctx, added)
	}
	return nil
}

func (a *Aggregator) tick() {
	if err := a.RefreshAll(a.ctx); err != nil && !errors.Is(err, ErrClosed) && a.ctx.Err() == nil {
		a.logger.Warn(a.ctx, "scheduled refresh failed", logger.Error(err))
	}
}

// RefreshAll runs one cycle for every tracked entity and returns when each
// entity has committed or discarded its result. Cancelling ctx abandons the
// cycle without touching state.
func (a *Aggregator) RefreshAll(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return ErrClosed
	}
	slots := make([]*slot, 0, len(a.slots))
	for _, s := range a.slots {
		slots = append(slots, s)
	}
	a.mu.Unlock()

	a.runCycle(ctx, slots)
	return ctx.Err()
}

func (a *Aggregator) runCycle(ctx context.Context, slots []*slot) {
	if len(slots) == 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(a.ctx, cancel)
	defer stop()

	cycleID := uuid.NewString()
	start := time.Now()

	var wg sync.WaitGroup
	for _, s := range slots {
		wg.Add(1)
		go func(s *slot) {
			defer wg.Done()
			a.refresh(ctx, cycleID, s)
		}(s)
	}
	wg.Wait()

	took := time.Since(start)
	metrics.RecordPollCycle(float64(took.Milliseconds()))
	a.logger.Debug(ctx, "refresh cycle finished",
		logger.String("cycle", cycleID),
		logger.Int("entities", len(slots)),
		logger.Duration("took", took),
	)
}

// refresh runs one cycle for s. Loading is only true until the first commit;
// later cycles keep showing the previous snapshot while they run.
func (a *Aggregator) refresh(ctx context.Context, cycleID string, s *slot) {
	a.mu.Lock()
	owned := a.ownsLocked(s)
	a.mu.Unlock()
	if !owned {
		return
	}

	stages, err := a.source.ListStages(ctx, s.id)
	if ctx.Err() != nil {
		metrics.RecordEntityRefresh(metrics.OutcomeDiscarded)
		return
	}
	if err != nil {
		a.logger.Warn(ctx, "stage list fetch failed",
			logger.String("cycle", cycleID),
			logger.String("entity", s.id),
			logger.Error(err),
		)
		msg := fmt.Errorf("%w: %v", ErrStages, err).Error()
		if a.commit(s, false, func(s *slot) {
			s.loading = false
			s.err = msg
		}) {
			metrics.RecordEntityRefresh(metrics.OutcomeStageError)
		}
		return
	}

	if len(stages) == 0 {
		if a.commit(s, true, func(s *slot) { s.publish([]model.RankedResult{}) }) {
			metrics.RecordEntityRefresh(metrics.OutcomeEmpty)
			metrics.RecordSnapshotSize(0)
		}
		return
	}

	results := make([]merge.StageResults, len(stages))
	var g errgroup.Group
	g.SetLimit(a.stageConcurrency)
	for i, st := range stages {
		g.Go(func() error {
			rs, err := a.source.ListRankedResults(ctx, st.ID)
			if err != nil {
				if ctx.Err() == nil {
					metrics.RecordStageFetchError()
					a.logger.Warn(ctx, "stage results fetch failed; treating as empty",
						logger.String("cycle", cycleID),
						logger.String("entity", s.id),
						logger.String("stage", st.ID),
						logger.Error(err),
					)
				}
				rs = nil
			}
			results[i] = merge.StageResults{Stage: st, Results: rs}
			return nil
		})
	}
	_ = g.Wait() // stage errors are absorbed above

	if ctx.Err() != nil {
		metrics.RecordEntityRefresh(metrics.OutcomeDiscarded)
		return
	}

	snapshot := merge.Merge(results, a.limit)
	if a.commit(s, true, func(s *slot) { s.publish(snapshot) }) {
		metrics.RecordEntityRefresh(metrics.OutcomeOK)
		metrics.RecordSnapshotSize(len(snapshot))
	}
}

func (s *slot) publish(snapshot []model.RankedResult) {
	s.previous = s.current
	s.current = snapshot
	s.loading = false
	s.err = ""
}

// commit applies mutate if s is still the tracked slot for its entity and
// notifies the listener. It reports whether the change was applied.
func (a *Aggregator) commit(s *slot, refreshed bool, mutate func(*slot)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.ownsLocked(s) {
		metrics.RecordEntityRefresh(metrics.OutcomeDiscarded)
		return false
	}
	mutate(s)
	a.seq++
	s.version = a.seq
	s.updatedAt = a.clock.Now()
	a.listener(model.Update{State: s.state(), Refreshed: refreshed})
	return true
}

func (a *Aggregator) ownsLocked(s *slot) bool {
	return !a.closed && a.slots[s.id] == s
}

// State returns the current state of one entity.
func (a *Aggregator) State(id string) (model.State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.slots[id]
	if !ok {
		return model.State{}, false
	}
	return s.state(), true
}

// States returns the state of every tracked entity ordered by id.
func (a *Aggregator) States() []model.State {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]model.State, 0, len(a.slots))
	for _, s := range a.slots {
		out = append(out, s.state())
	}
	slices.SortFunc(out, func(x, y model.State) int { return strings.Compare(x.EntityID, y.EntityID) })
	return out
}

// Tracked returns the tracked entity ids in order.
func (a *Aggregator) Tracked() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	ids := make([]string, 0, len(a.slots))
	for id := range a.slots {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Close stops polling and cancels in-flight fetches. No state changes or
// listener calls happen after Close returns.
func (a *Aggregator) Close() {
	a.cfgMu.Lock()
	defer a.cfgMu.Unlock()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return
	}
	a.closed = true
	a.slots = make(map[string]*slot)
	a.mu.Unlock()

	a.cancel()
	a.scheduler.Stop()
	metrics.UpdateTrackedEntities(0)
}

package annotate

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule"
	"github.com/okian/liveboard/pkg/logger"
)

// DefaultWindow is how long movement flags stay visible.
const DefaultWindow = 1200 * time.Millisecond

// Tracker turns aggregator updates into views, annotating each new snapshot
// against the previous one and resetting the flags after the window.
type Tracker struct {
	mu       sync.Mutex
	clock    schedule.Clock
	window   time.Duration
	onView   func(model.View)
	logger   logger.Logger
	entities map[string]*entry
	closed   bool
}

type entry struct {
	view  model.View
	timer schedule.Timer
	// token identifies the live decay timer; a timer holding an older token
	// was replaced and must not touch the view.
	token uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for decay timers.
func WithClock(c schedule.Clock) Option {
	return func(t *Tracker) {
		if c != nil {
			t.clock = c
		}
	}
}

// WithWindow sets the presentation window.
func WithWindow(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.window = d
		}
	}
}

// WithOnView sets the callback receiving every published view. It is called
// with the tracker lock held, in publication order; it must not block or call
// back into the Tracker.
func WithOnView(fn func(model.View)) Option {
	return func(t *Tracker) {
		t.onView = fn
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(t *Tracker) {
		if l != nil {
			t.logger = l
		}
	}
}

// NewTracker creates a Tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		clock:    schedule.SystemClock{},
		window:   DefaultWindow,
		onView:   func(model.View) {},
		logger:   logger.Nop(),
		entities: make(map[string]*entry),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Observe applies an aggregator update. Updates whose version is not newer
// than the last applied one for the entity are ignored.
func (t *Tracker) Observe(u model.Update) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}

	id := u.EntityID
	e, known := t.entities[id]

	if u.Removed {
		if !known {
			return
		}
		t.stopTimer(e)
		delete(t.entities, id)
		t.onView(model.View{EntityID: id, Removed: true, Version: u.Version, UpdatedAt: u.UpdatedAt})
		return
	}

	if known && u.Version <= e.view.Version {
		t.logger.Debug(context.Background(), "stale update ignored",
			logger.String("entity", id),
			logger.Int("version", int(u.Version)),
			logger.Int("applied", int(e.view.Version)),
		)
		return
	}
	if !known {
		e = &entry{}
		t.entities[id] = e
	}

	e.view.EntityID = id
	e.view.Version = u.Version
	e.view.Loading = u.Loading
	e.view.Error = u.Error
	e.view.UpdatedAt = u.UpdatedAt

	switch {
	case u.Refreshed:
		e.view.Results = Annotate(u.Snapshot, u.Previous)
		t.stopTimer(e)
		if len(u.Snapshot) > 0 {
			t.scheduleDecay(id, e)
		}
	case !known:
		e.view.Results = Plain(u.Snapshot)
	}

	t.onView(e.view)
}

func (t *Tracker) scheduleDecay(id string, e *entry) {
	e.token++
	token := e.token
	e.timer = t.clock.AfterFunc(t.window, func() { t.decay(id, token) })
}

func (t *Tracker) stopTimer(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.token++
}

func (t *Tracker) decay(id string, token uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	e, ok := t.entities[id]
	if !ok || e.token != token {
		return
	}
	e.timer = nil
	e.view.Results = Neutral(e.view.Results)
	t.onView(e.view)
}

// View returns the current view of an entity.
func (t *Tracker) View(id string) (model.View, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entities[id]
	if !ok {
		return model.View{}, false
	}
	return e.view, true
}

// Views returns all current views ordered by entity id.
func (t *Tracker) Views() []model.View {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]model.View, 0, len(t.entities))
	for _, e := range t.entities {
		out = append(out, e.view)
	}
	slices.SortFunc(out, func(a, b model.View) int { return strings.Compare(a.EntityID, b.EntityID) })
	return out
}

// Close stops all pending decay timers. Later updates are ignored.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.closed = true
	for _, e := range t.entities {
		t.stopTimer(e)
	}
}

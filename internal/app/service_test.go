package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	service "github.com/okian/liveboard/internal/app"
	"github.com/okian/liveboard/internal/config"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule/schedtest"
	"github.com/okian/liveboard/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

var now = time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu        sync.Mutex
	events    []model.Event
	eventsErr error
	stages    map[string][]model.Stage
	results   map[string][]model.RankedResult
	gate      chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		stages:  map[string][]model.Stage{},
		results: map[string][]model.RankedResult{},
	}
}

func (f *fakeSource) ListEvents(context.Context) ([]model.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventsErr != nil {
		return nil, f.eventsErr
	}
	return append([]model.Event(nil), f.events...), nil
}

func (f *fakeSource) ListStages(ctx context.Context, entityID string) ([]model.Stage, error) {
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.Stage(nil), f.stages[entityID]...), nil
}

func (f *fakeSource) ListRankedResults(_ context.Context, stageID string) ([]model.RankedResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]model.RankedResult(nil), f.results[stageID]...), nil
}

// board sets one stage per entity with the participants ranked in order.
func (f *fakeSource) board(entityID string, participants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stageID := entityID + "-heat"
	f.stages[entityID] = []model.Stage{{ID: stageID, Name: "Heat"}}
	rs := make([]model.RankedResult, 0, len(participants))
	for i, p := range participants {
		rs = append(rs, model.RankedResult{ID: stageID + "-" + p, RankPosition: i + 1, Participant: p})
	}
	f.results[stageID] = rs
}

type recordingSink struct {
	mu    sync.Mutex
	views []model.View
}

func (s *recordingSink) Name() string { return "recording" }

func (s *recordingSink) Deliver(_ context.Context, v model.View) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views = append(s.views, v)
	return nil
}

func (s *recordingSink) last(entityID string) (model.View, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.views) - 1; i >= 0; i-- {
		if s.views[i].EntityID == entityID {
			return s.views[i], true
		}
	}
	return model.View{}, false
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

type harness struct {
	svc       *service.Service
	src       *fakeSource
	sink      *recordingSink
	clock     *schedtest.Clock
	poll      *schedtest.Scheduler
	discovery *schedtest.Scheduler
}

func newHarness(cfg *config.Config) *harness {
	h := &harness{
		src:       newFakeSource(),
		sink:      &recordingSink{},
		clock:     schedtest.NewClock(now),
		poll:      &schedtest.Scheduler{},
		discovery: &schedtest.Scheduler{},
	}
	h.svc = service.New(cfg,
		service.WithSource(h.src),
		service.WithSink(h.sink),
		service.WithClock(h.clock),
		service.WithPollScheduler(h.poll),
		service.WithDiscoveryScheduler(h.discovery),
	)
	return h
}

func tracked(svc *service.Service) []string {
	ids, _ := svc.GetStats()["tracked"].([]string)
	return ids
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New(nil)

		Convey("Then it should report itself as stopped", func() {
			So(svc, ShouldNotBeNil)
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Views(), ShouldBeEmpty)
			So(svc.Stream(), ShouldBeNil)
		})

		Convey("And operations needing a started service should fail", func() {
			ctx := context.Background()
			_, ok := svc.View("ev-1")
			So(ok, ShouldBeFalse)
			So(errors.Is(svc.RefreshAll(ctx), service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Configure(ctx, []string{"ev-1"}), service.ErrNotStarted), ShouldBeTrue)
			So(errors.Is(svc.Discover(ctx), service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("And stopping it should be a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})
}

func TestService_StaticEntities(t *testing.T) {
	Convey("Given a service pinned to a static entity list", t, func() {
		cfg := config.New()
		cfg.Entities = []string{"ev-1"}
		cfg.PollIntervalMS = 2_000
		h := newHarness(cfg)
		h.src.board("ev-1", "ada", "grace", "linus")
		ctx := context.Background()

		So(h.svc.Start(ctx), ShouldBeNil)
		defer h.svc.Stop()

		Convey("Then the first snapshot is published without waiting for a tick", func() {
			So(eventually(func() bool {
				v, ok := h.svc.View("ev-1")
				return ok && !v.Loading && len(v.Results) == 3
			}), ShouldBeTrue)
			So(h.poll.Running(), ShouldBeTrue)
			So(h.poll.Interval(), ShouldEqual, 2*time.Second)
			So(h.discovery.Running(), ShouldBeFalse)

			stats := h.svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["discovery"], ShouldEqual, false)
			So(stats["trackedCount"], ShouldEqual, 1)
		})

		Convey("Then views reach the sinks", func() {
			So(eventually(func() bool {
				v, ok := h.sink.last("ev-1")
				return ok && len(v.Results) == 3
			}), ShouldBeTrue)
			v, _ := h.sink.last("ev-1")
			So(v.Results[0].Participant, ShouldEqual, "ada")
			So(v.Results[0].IsNew, ShouldBeTrue)
		})

		Convey("When the ranking changes and a refresh runs", func() {
			So(eventually(func() bool {
				v, ok := h.svc.View("ev-1")
				return ok && len(v.Results) == 3
			}), ShouldBeTrue)
			h.src.board("ev-1", "grace", "ada", "margaret")
			So(h.svc.RefreshAll(ctx), ShouldBeNil)

			Convey("Then the view carries movement flags", func() {
				v, ok := h.svc.View("ev-1")
				So(ok, ShouldBeTrue)
				So(v.Results[0].Participant, ShouldEqual, "grace")
				So(v.Results[0].MovingUp, ShouldBeTrue)
				So(v.Results[1].MovingDown, ShouldBeTrue)
				So(v.Results[2].IsNew, ShouldBeTrue)
			})

			Convey("Then the flags decay after the presentation window", func() {
				h.clock.Advance(cfg.PresentationWindow())
				v, _ := h.svc.View("ev-1")
				So(v.Results[0].MovingUp, ShouldBeFalse)
				So(v.Results[2].IsNew, ShouldBeFalse)
				So(eventually(func() bool {
					last, ok := h.sink.last("ev-1")
					return ok && len(last.Results) == 3 && last.Results[0].Participant == "grace" && !last.Results[0].MovingUp
				}), ShouldBeTrue)
			})
		})

		Convey("When an untracked entity is requested", func() {
			_, ok := h.svc.View("ev-2")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestService_PendingView(t *testing.T) {
	Convey("Given an entity whose first fetch is still in flight", t, func() {
		cfg := config.New()
		cfg.Entities = []string{"ev-1"}
		h := newHarness(cfg)
		h.src.board("ev-1", "ada")
		h.src.gate = make(chan struct{})

		So(h.svc.Start(context.Background()), ShouldBeNil)
		defer h.svc.Stop()

		Convey("Then it is reported as loading", func() {
			v, ok := h.svc.View("ev-1")
			So(ok, ShouldBeTrue)
			So(v.Loading, ShouldBeTrue)
			So(v.Results, ShouldBeEmpty)
			So(h.svc.Views(), ShouldHaveLength, 1)

			close(h.src.gate)
			So(eventually(func() bool {
				v, _ := h.svc.View("ev-1")
				return !v.Loading && len(v.Results) == 1
			}), ShouldBeTrue)
		})
	})
}

func TestService_Discovery(t *testing.T) {
	Convey("Given a service discovering live events", t, func() {
		h := newHarness(config.New())
		h.src.events = []model.Event{
			{ID: "ev-live", StartsAt: now.Add(-time.Hour)},
			{ID: "ev-done", StartsAt: now.Add(-3 * time.Hour), EndsAt: now.Add(-time.Hour)},
		}
		h.src.board("ev-live", "ada", "grace")
		ctx := context.Background()

		So(h.svc.Start(ctx), ShouldBeNil)
		defer h.svc.Stop()

		Convey("Then only running events are tracked", func() {
			So(h.discovery.Running(), ShouldBeTrue)
			So(h.discovery.Interval(), ShouldEqual, 30*time.Second)
			So(eventually(func() bool {
				ids := tracked(h.svc)
				return len(ids) == 1 && ids[0] == "ev-live"
			}), ShouldBeTrue)
		})

		Convey("When the live set changes", func() {
			So(eventually(func() bool { return len(tracked(h.svc)) == 1 }), ShouldBeTrue)
			h.src.mu.Lock()
			h.src.events = []model.Event{{ID: "ev-next", StartsAt: now.Add(-time.Minute)}}
			h.src.mu.Unlock()
			h.src.board("ev-next", "linus")

			So(h.svc.Discover(ctx), ShouldBeNil)

			Convey("Then the aggregator is retargeted and the removal is delivered", func() {
				So(tracked(h.svc), ShouldResemble, []string{"ev-next"})
				So(eventually(func() bool {
					v, ok := h.sink.last("ev-live")
					return ok && v.Removed
				}), ShouldBeTrue)
				_, ok := h.svc.View("ev-live")
				So(ok, ShouldBeFalse)
			})
		})

		Convey("When listing events fails", func() {
			So(eventually(func() bool { return len(tracked(h.svc)) == 1 }), ShouldBeTrue)
			h.src.mu.Lock()
			h.src.eventsErr = errors.New("calendar unavailable")
			h.src.mu.Unlock()

			err := h.svc.Discover(ctx)

			Convey("Then the previous set is kept", func() {
				So(err, ShouldNotBeNil)
				So(tracked(h.svc), ShouldResemble, []string{"ev-live"})
			})
		})

		Convey("When the set is configured explicitly", func() {
			So(eventually(func() bool { return len(tracked(h.svc)) == 1 }), ShouldBeTrue)
			So(h.svc.Configure(ctx, []string{"ev-done"}), ShouldBeNil)

			Convey("Then discovery stops overriding it", func() {
				So(h.discovery.Running(), ShouldBeFalse)
				So(h.svc.Discover(ctx), ShouldBeNil)
				So(tracked(h.svc), ShouldResemble, []string{"ev-done"})
				So(h.svc.GetStats()["discovery"], ShouldEqual, false)
			})
		})
	})
}

func TestService_Stop(t *testing.T) {
	Convey("Given a started service", t, func() {
		cfg := config.New()
		cfg.Entities = []string{"ev-1"}
		h := newHarness(cfg)
		h.src.board("ev-1", "ada")
		So(h.svc.Start(context.Background()), ShouldBeNil)
		So(eventually(func() bool {
			_, ok := h.sink.last("ev-1")
			return ok
		}), ShouldBeTrue)

		Convey("When stopping the service", func() {
			h.svc.Stop()

			Convey("Then it should be marked as stopped", func() {
				So(h.svc.GetStats()["started"], ShouldEqual, false)
				So(h.poll.Running(), ShouldBeFalse)
				done := false
				select {
				case <-h.svc.Done():
					done = true
				default:
				}
				So(done, ShouldBeTrue)
			})

			Convey("And stopping again should be safe", func() {
				So(func() { h.svc.Stop() }, ShouldNotPanic)
			})
		})
	})
}

package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/liveboard/internal/aggregator"
	"github.com/okian/liveboard/internal/domain/annotate"
	"github.com/okian/liveboard/internal/domain/model"
	"github.com/okian/liveboard/internal/domain/schedule/schedtest"
	"github.com/okian/liveboard/pkg/logger"
)

type fakeWriter struct {
	mu     sync.Mutex
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) written() []kafka.Message {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.msgs...)
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func TestPublisher(t *testing.T) {
	Convey("Given publisher configs", t, func() {
		ctx := context.Background()

		Convey("When no brokers are configured", func() {
			p, err := NewPublisher(Config{Brokers: []string{" "}, Topic: "views"}, nil)

			Convey("Then delivery is a no-op", func() {
				So(err, ShouldBeNil)
				So(p.Enabled(), ShouldBeFalse)
				So(p.Deliver(ctx, model.View{EntityID: "ev-1"}), ShouldBeNil)
				So(p.Close(), ShouldBeNil)
			})
		})

		Convey("When brokers are configured without a topic", func() {
			_, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}}, logger.Nop())

			Convey("Then construction fails", func() {
				So(errors.Is(err, ErrNoTopic), ShouldBeTrue)
			})
		})

		Convey("When brokers and topic are configured", func() {
			p, err := NewPublisher(Config{Brokers: []string{"localhost:9092"}, Topic: "views"}, logger.Nop())

			Convey("Then a real writer is built without dialing", func() {
				So(err, ShouldBeNil)
				So(p.Enabled(), ShouldBeTrue)
				So(p.Name(), ShouldEqual, SinkName)
			})
		})
	})
}

func TestPublisherDeliver(t *testing.T) {
	Convey("Given a publisher over a fake writer", t, func() {
		w := &fakeWriter{}
		p := newPublisherWithWriter("views", w, logger.Nop())
		ctx := context.Background()
		v := model.View{
			EntityID: "ev-1",
			Version:  7,
			Results: []model.AnnotatedResult{
				{RankedResult: model.RankedResult{ID: "r1", RankPosition: 1, Participant: "Ada"}, IsNew: true},
			},
		}

		Convey("When a view is delivered", func() {
			So(p.Deliver(ctx, v), ShouldBeNil)

			Convey("Then it is keyed by entity and encoded as JSON", func() {
				So(w.msgs, ShouldHaveLength, 1)
				So(string(w.msgs[0].Key), ShouldEqual, "ev-1")
				So(string(w.msgs[0].Headers[0].Value), ShouldEqual, "7")

				var decoded model.View
				So(json.Unmarshal(w.msgs[0].Value, &decoded), ShouldBeNil)
				So(decoded.Results[0].Participant, ShouldEqual, "Ada")
				So(decoded.Results[0].IsNew, ShouldBeTrue)
			})
		})

		Convey("When the writer fails", func() {
			w.err = errors.New("leader not available")
			err := p.Deliver(ctx, v)

			Convey("Then the error names the entity and topic", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "ev-1")
				So(err.Error(), ShouldContainSubstring, "views")
			})
		})

		Convey("When the same version is delivered again", func() {
			So(p.Deliver(ctx, v), ShouldBeNil)
			So(p.Deliver(ctx, v), ShouldBeNil)

			Convey("Then it is published once", func() {
				So(w.msgs, ShouldHaveLength, 1)
			})

			Convey("Then a newer version is published", func() {
				next := v
				next.Version = 8
				So(p.Deliver(ctx, next), ShouldBeNil)
				So(w.msgs, ShouldHaveLength, 2)
				So(string(w.msgs[1].Headers[0].Value), ShouldEqual, "8")
			})
		})

		Convey("When a failed version is delivered again", func() {
			w.err = errors.New("leader not available")
			So(p.Deliver(ctx, v), ShouldNotBeNil)
			w.err = nil

			Convey("Then the retry is published", func() {
				So(p.Deliver(ctx, v), ShouldBeNil)
				So(w.msgs, ShouldHaveLength, 1)
			})
		})

		Convey("When the publisher is closed", func() {
			So(p.Close(), ShouldBeNil)
			So(w.closed, ShouldBeTrue)
		})
	})
}

type boardSource struct{}

func (boardSource) ListStages(context.Context, string) ([]model.Stage, error) {
	return []model.Stage{{ID: "s1", Name: "Final"}}, nil
}

func (boardSource) ListRankedResults(context.Context, string) ([]model.RankedResult, error) {
	return []model.RankedResult{{ID: "r1", RankPosition: 1, Participant: "Ada"}}, nil
}

func publishedWithin(w *fakeWriter, n int) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(w.written()) >= n {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return len(w.written()) >= n
}

func TestPublisherRetrackedEntity(t *testing.T) {
	Convey("Given views flowing from the aggregator into the publisher", t, func() {
		w := &fakeWriter{}
		p := newPublisherWithWriter("views", w, logger.Nop())
		ctx := context.Background()

		tracker := annotate.NewTracker(
			annotate.WithClock(schedtest.NewClock(time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC))),
			annotate.WithOnView(func(v model.View) { _ = p.Deliver(ctx, v) }),
		)
		defer tracker.Close()
		agg := aggregator.New(boardSource{},
			aggregator.WithScheduler(&schedtest.Scheduler{}),
			aggregator.WithListener(tracker.Observe),
		)
		defer agg.Close()

		So(agg.Configure(ctx, []string{"ev-1"}), ShouldBeNil)
		So(publishedWithin(w, 1), ShouldBeTrue)
		So(agg.RefreshAll(ctx), ShouldBeNil)
		So(w.written(), ShouldHaveLength, 2)

		Convey("When the entity is dropped and tracked again", func() {
			So(agg.Configure(ctx, nil), ShouldBeNil)
			So(w.written(), ShouldHaveLength, 3)
			So(agg.Configure(ctx, []string{"ev-1"}), ShouldBeNil)
			So(publishedWithin(w, 4), ShouldBeTrue)
			So(agg.RefreshAll(ctx), ShouldBeNil)

			Convey("Then every new commit is published with a fresh version", func() {
				msgs := w.written()
				So(msgs, ShouldHaveLength, 5)
				seen := make(map[string]bool)
				for _, m := range msgs {
					version := string(m.Headers[0].Value)
					So(seen[version], ShouldBeFalse)
					seen[version] = true
				}
			})
		})
	})
}

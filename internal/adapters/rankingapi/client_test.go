package rankingapi

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func newServer(handler http.HandlerFunc) (*httptest.Server, *Client) {
	srv := httptest.NewServer(handler)
	return srv, NewClient(srv.URL+"/", WithTimeout(2*time.Second))
}

func TestNewClient(t *testing.T) {
	Convey("Given client options", t, func() {
		Convey("When none are passed", func() {
			c := NewClient("https://rankings.example.com/")

			Convey("Then defaults apply", func() {
				So(c.baseURL, ShouldEqual, "https://rankings.example.com")
				So(c.httpClient.Timeout, ShouldEqual, DefaultTimeout)
				So(c.token, ShouldBeEmpty)
				So(c.logger, ShouldNotBeNil)
			})
		})

		Convey("When options are passed", func() {
			hc := &http.Client{}
			c := NewClient("https://rankings.example.com", WithHTTPClient(hc), WithTimeout(time.Second), WithToken("secret"))

			Convey("Then they are applied in order", func() {
				So(c.httpClient, ShouldEqual, hc)
				So(hc.Timeout, ShouldEqual, time.Second)
				So(c.token, ShouldEqual, "secret")
			})
		})
	})
}

func TestEndpoints(t *testing.T) {
	Convey("Given a ranking API server", t, func() {
		var gotPath, gotAuth string
		srv, c := newServer(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.EscapedPath()
			gotAuth = r.Header.Get("Authorization")
			w.Header().Set("Content-Type", "application/json")
			switch {
			case r.URL.Path == "/events":
				_, _ = w.Write([]byte(`[
					{"id":"ev-1","name":"Spring Classic","start_time":"2026-04-01T09:00:00Z","end_time":"2026-04-01T17:00:00Z"},
					{"id":"ev-2","name":"Open Day","start_time":"2026-04-02T09:00:00","end_time":""}
				]`))
			case r.URL.Path == "/events/ev 1/stages":
				_, _ = w.Write([]byte(`[{"id":"st-1","name":"Heat 1"},{"id":"st-2","name":"Heat 2"}]`))
			case r.URL.Path == "/stages/st-1/rankings":
				_, _ = w.Write([]byte(`[
					{"id":"r1","rank_position":1,"participant":"Ada","bib_number":"A7"},
					{"id":"r2","rank_position":2,"participant":"Grace","bib_number":42},
					{"id":"r3","rank_position":3,"participant":"Linus"}
				]`))
			default:
				http.NotFound(w, r)
			}
		})
		defer srv.Close()
		ctx := context.Background()

		Convey("When listing events", func() {
			events, err := c.ListEvents(ctx)

			Convey("Then timestamps are parsed", func() {
				So(err, ShouldBeNil)
				So(events, ShouldHaveLength, 2)
				So(events[0].StartsAt, ShouldEqual, time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC))
				So(events[0].EndsAt, ShouldEqual, time.Date(2026, 4, 1, 17, 0, 0, 0, time.UTC))
				So(events[1].StartsAt, ShouldEqual, time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC))
				So(events[1].EndsAt.IsZero(), ShouldBeTrue)
			})
		})

		Convey("When listing stages of an id that needs escaping", func() {
			stages, err := c.ListStages(ctx, "ev 1")

			Convey("Then the path is escaped and order is kept", func() {
				So(err, ShouldBeNil)
				So(gotPath, ShouldEqual, "/events/ev%201/stages")
				So(stages, ShouldHaveLength, 2)
				So(stages[1].Name, ShouldEqual, "Heat 2")
			})
		})

		Convey("When listing rankings", func() {
			rs, err := c.ListRankedResults(ctx, "st-1")

			Convey("Then bib numbers accept strings, numbers and absence", func() {
				So(err, ShouldBeNil)
				So(rs, ShouldHaveLength, 3)
				So(rs[0].BibNumber, ShouldEqual, "A7")
				So(rs[1].BibNumber, ShouldEqual, "42")
				So(rs[2].BibNumber, ShouldBeEmpty)
				So(rs[1].RankPosition, ShouldEqual, 2)
				So(gotAuth, ShouldBeEmpty)
			})
		})

		Convey("When the resource does not exist", func() {
			_, err := c.ListRankedResults(ctx, "missing")

			Convey("Then an APIError wrapping ErrFetch is returned", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				var apiErr *APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.StatusCode, ShouldEqual, http.StatusNotFound)
				So(err.Error(), ShouldContainSubstring, "missing")
			})
		})
	})
}

func TestRequestFailures(t *testing.T) {
	Convey("Given misbehaving servers", t, func() {
		ctx := context.Background()

		Convey("When the server returns invalid JSON", func() {
			srv, c := newServer(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(`{not json`))
			})
			defer srv.Close()
			_, err := c.ListStages(ctx, "ev-1")

			Convey("Then the decode error wraps ErrFetch", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "unmarshal response")
			})
		})

		Convey("When a token is configured and the server fails", func() {
			var gotAuth string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotAuth = r.Header.Get("Authorization")
				http.Error(w, "upstream down", http.StatusServiceUnavailable)
			}))
			defer srv.Close()
			c := NewClient(srv.URL, WithToken("t0k"))
			_, err := c.ListEvents(ctx)

			Convey("Then the bearer header is sent and the status surfaces", func() {
				So(gotAuth, ShouldEqual, "Bearer t0k")
				var apiErr *APIError
				So(errors.As(err, &apiErr), ShouldBeTrue)
				So(apiErr.StatusCode, ShouldEqual, http.StatusServiceUnavailable)
				So(err.Error(), ShouldContainSubstring, "upstream down")
			})
		})

		Convey("When the context is cancelled", func() {
			srv, c := newServer(func(w http.ResponseWriter, r *http.Request) {
				<-r.Context().Done()
			})
			defer srv.Close()
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := c.ListEvents(cctx)

			Convey("Then the error wraps both ErrFetch and the cancellation", func() {
				So(errors.Is(err, ErrFetch), ShouldBeTrue)
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
			})
		})
	})
}

func TestParseTimestamp(t *testing.T) {
	Convey("Given timestamp strings", t, func() {
		So(ParseTimestamp("").IsZero(), ShouldBeTrue)
		So(ParseTimestamp("yesterday").IsZero(), ShouldBeTrue)
		So(ParseTimestamp("2026-01-02T03:04:05+02:00").UTC(), ShouldEqual, time.Date(2026, 1, 2, 1, 4, 5, 0, time.UTC))
		So(ParseTimestamp(" 2026-01-02T03:04:05 "), ShouldEqual, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	})
}

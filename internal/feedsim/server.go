package feedsim

import (
	"context"
	"encoding/json"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/okian/liveboard/pkg/logger"
)

// Feed is an in-memory ranking API.
type Feed struct {
	cfg    Config
	logger logger.Logger

	mu       sync.RWMutex
	events   []Event
	stages   map[string][]Stage
	rankings map[string][]Ranking
	stats    Stats
}

// Option configures a Feed.
type Option func(*Feed)

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(f *Feed) {
		if l != nil {
			f.logger = l
		}
	}
}

// New generates a feed whose events are live at now.
func New(cfg Config, now time.Time, opts ...Option) *Feed {
	cfg = cfg.normalized()
	g := generate(cfg, now)
	f := &Feed{
		cfg:      cfg,
		logger:   logger.Nop(),
		events:   g.events,
		stages:   g.stages,
		rankings: g.rankings,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Events returns the generated events.
func (f *Feed) Events() []Event {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.events)
}

// Stages returns the stages of one event.
func (f *Feed) Stages(eventID string) []Stage {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.stages[eventID])
}

// Rankings returns the current ranking of one stage ordered by position.
func (f *Feed) Rankings(stageID string) []Ranking {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return slices.Clone(f.rankings[stageID])
}

// Stats returns request and shuffle counters.
func (f *Feed) Stats() Stats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.stats
}

// Shuffle swaps one random pair of adjacent participants in every stage and
// returns how many swaps were made. Positions stay 1..n.
func (f *Feed) Shuffle() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	moves := 0
	for id, field := range f.rankings {
		if len(field) < 2 {
			continue
		}
		i := getRandomInt(len(field) - 1)
		field[i], field[i+1] = field[i+1], field[i]
		field[i].RankPosition = i + 1
		field[i+1].RankPosition = i + 2
		f.rankings[id] = field
		moves++
	}
	f.stats.Shuffles++
	f.stats.Moves += int64(moves)
	return moves
}

// Run shuffles every interval until ctx is done.
func (f *Feed) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			moves := f.Shuffle()
			f.logger.Debug(ctx, "rankings shuffled", logger.Int("moves", moves))
		}
	}
}

// Handler returns the HTTP routes of the ranking API contract.
func (f *Feed) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/events", f.handleEvents).Methods(http.MethodGet)
	r.HandleFunc("/events/{eventID}/stages", f.handleStages).Methods(http.MethodGet)
	r.HandleFunc("/stages/{stageID}/rankings", f.handleRankings).Methods(http.MethodGet)
	return r
}

func (f *Feed) count(failed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stats.Requests++
	if failed {
		f.stats.Failures++
	}
}

func (f *Feed) handleEvents(w http.ResponseWriter, _ *http.Request) {
	f.count(false)
	writeJSON(w, http.StatusOK, f.Events())
}

func (f *Feed) handleStages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["eventID"]
	f.mu.RLock()
	stages, ok := f.stages[id]
	f.mu.RUnlock()
	if !ok {
		f.count(true)
		http.Error(w, "unknown event "+id, http.StatusNotFound)
		return
	}
	f.count(false)
	writeJSON(w, http.StatusOK, stages)
}

func (f *Feed) handleRankings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["stageID"]
	f.mu.RLock()
	_, ok := f.rankings[id]
	f.mu.RUnlock()
	if !ok {
		f.count(true)
		http.Error(w, "unknown stage "+id, http.StatusNotFound)
		return
	}
	if f.cfg.FailureRate > 0 && getRandomFloat() < f.cfg.FailureRate {
		f.count(true)
		f.logger.Debug(r.Context(), "injected rankings failure", logger.String("stage", id))
		http.Error(w, "simulated outage", http.StatusServiceUnavailable)
		return
	}
	f.count(false)
	writeJSON(w, http.StatusOK, f.Rankings(id))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

package feedsim

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Constants for random number generation.
const (
	randomFloatDivisor = 1000000
	bibNumberMax       = 900
	bibNumberMin       = 100
)

var eventNames = []string{
	"Harbour Sprint", "Valley Classic", "Ridge Relay", "City Open",
	"Lakeside Trophy", "Summit Series", "Coastal Cup", "Forest Derby",
}

var participantNames = []string{
	"Ada", "Grace", "Linus", "Margaret", "Ken", "Barbara", "Dennis", "Frances",
	"Edsger", "Radia", "Donald", "Hedy", "Alan", "Katherine", "John", "Sophie",
}

// getRandomFloat returns a random float64 between 0.0 and 1.0 using crypto/rand.
func getRandomFloat() float64 {
	n, _ := rand.Int(rand.Reader, big.NewInt(randomFloatDivisor))
	return float64(n.Int64()) / float64(randomFloatDivisor)
}

// getRandomInt returns a random int in [0, n).
func getRandomInt(n int) int {
	if n <= 1 {
		return 0
	}
	v, _ := rand.Int(rand.Reader, big.NewInt(int64(n)))
	return int(v.Int64())
}

type generated struct {
	events   []Event
	stages   map[string][]Stage
	rankings map[string][]Ranking
}

// generate builds the calendar. Every event gets the configured number of
// stages, every stage a full field of uniquely identified participants.
func generate(cfg Config, now time.Time) generated {
	g := generated{
		stages:   make(map[string][]Stage, cfg.Events),
		rankings: make(map[string][]Ranking, cfg.Events*cfg.Stages),
	}

	for i := range cfg.Events {
		start := now.Add(-time.Minute)
		if getRandomFloat() < cfg.UpcomingRate {
			start = now.Add(cfg.LiveFor)
		}
		ev := Event{
			ID:        uuid.NewString(),
			Name:      eventNames[i%len(eventNames)],
			StartTime: start.UTC().Format(time.RFC3339),
			EndTime:   start.Add(cfg.LiveFor).UTC().Format(time.RFC3339),
		}
		g.events = append(g.events, ev)

		for s := range cfg.Stages {
			st := Stage{ID: uuid.NewString(), Name: fmt.Sprintf("Heat %d", s+1)}
			g.stages[ev.ID] = append(g.stages[ev.ID], st)
			g.rankings[st.ID] = generateField(cfg.Participants)
		}
	}
	return g
}

func generateField(n int) []Ranking {
	field := make([]Ranking, n)
	for i := range field {
		name := participantNames[i%len(participantNames)]
		if i >= len(participantNames) {
			name += " " + strconv.Itoa(i/len(participantNames)+1)
		}
		field[i] = Ranking{
			ID:           uuid.NewString(),
			RankPosition: i + 1,
			Participant:  name,
		}
		// Bibs alternate between JSON numbers and strings.
		bib := bibNumberMin + getRandomInt(bibNumberMax)
		if i%2 == 0 {
			field[i].BibNumber = bib
		} else {
			field[i].BibNumber = strconv.Itoa(bib)
		}
	}
	return field
}

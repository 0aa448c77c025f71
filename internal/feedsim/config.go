// Package feedsim serves a simulated ranking API. Events, stages and
// participants are generated up front; Shuffle moves participants around so
// a live board pointed at the simulator keeps changing.
package feedsim

import "time"

// Default generation settings.
const (
	DefaultEvents       = 3
	DefaultStages       = 2
	DefaultParticipants = 8
	DefaultLiveFor      = 2 * time.Hour
)

// Config holds the generation settings of a Feed.
type Config struct {
	Events       int           // Number of events, all live from generation time
	Stages       int           // Stages per event
	Participants int           // Ranked entries per stage
	LiveFor      time.Duration // How long generated events stay live
	FailureRate  float64       // Probability in [0,1] that a rankings request fails
	UpcomingRate float64       // Share of events scheduled to start after LiveFor
}

// DefaultConfig returns the settings used by the feedsim binary.
func DefaultConfig() Config {
	return Config{
		Events:       DefaultEvents,
		Stages:       DefaultStages,
		Participants: DefaultParticipants,
		LiveFor:      DefaultLiveFor,
	}
}

func (c Config) normalized() Config {
	if c.Events <= 0 {
		c.Events = DefaultEvents
	}
	if c.Stages <= 0 {
		c.Stages = DefaultStages
	}
	if c.Participants <= 0 {
		c.Participants = DefaultParticipants
	}
	if c.LiveFor <= 0 {
		c.LiveFor = DefaultLiveFor
	}
	c.FailureRate = clampRate(c.FailureRate)
	c.UpcomingRate = clampRate(c.UpcomingRate)
	return c
}

func clampRate(r float64) float64 {
	switch {
	case r < 0:
		return 0
	case r > 1:
		return 1
	}
	return r
}

// Event is an event in the wire shape of GET /events.
type Event struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// Stage is a stage in the wire shape of GET /events/{id}/stages.
type Stage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Ranking is an entry in the wire shape of GET /stages/{id}/rankings.
type Ranking struct {
	ID           string `json:"id"`
	RankPosition int    `json:"rank_position"`
	Participant  string `json:"participant"`
	BibNumber    any    `json:"bib_number,omitempty"`
}

// Stats counts served requests.
type Stats struct {
	Requests int64
	Failures int64
	Shuffles int64
	Moves    int64
}

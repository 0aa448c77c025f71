// Package model contains domain models passed between layers.
package model

import "time"

// Event is a competitive event that may be live and subject to ranking polling.
type Event struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	StartsAt time.Time `json:"start_time"`
	EndsAt   time.Time `json:"end_time"` // zero means open-ended
}

// LiveAt reports whether the event is running at t. Both bounds are inclusive.
func (e Event) LiveAt(t time.Time) bool {
	if e.StartsAt.IsZero() || t.Before(e.StartsAt) {
		return false
	}
	return e.EndsAt.IsZero() || !t.After(e.EndsAt)
}

// Stage is a sub-competition of an Event; ranked results are recorded per stage.
type Stage struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

package model

import "time"

// State is the observable output of the aggregator for one entity.
type State struct {
	EntityID string         `json:"entity_id"`
	Snapshot []RankedResult `json:"snapshot"`
	Previous []RankedResult `json:"-"`
	Loading  bool           `json:"loading"`
	Error    string         `json:"error,omitempty"`
	// Version increases with every committed change of the entity and keeps
	// increasing when the entity is dropped and tracked again.
	Version   uint64    `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update is emitted by the aggregator after each commit.
type Update struct {
	State
	// Refreshed is set when the commit published a new snapshot.
	Refreshed bool
	// Removed is set when the entity stopped being tracked.
	Removed bool
}

// View is what presentation layers render for one entity.
type View struct {
	EntityID  string            `json:"entity_id"`
	Results   []AnnotatedResult `json:"results"`
	Loading   bool              `json:"loading"`
	Error     string            `json:"error,omitempty"`
	Version   uint64            `json:"version"`
	UpdatedAt time.Time         `json:"updated_at"`
	Removed   bool              `json:"removed,omitempty"`
}

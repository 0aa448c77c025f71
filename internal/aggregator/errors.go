package aggregator

import "errors"

// Sentinel kinds for aggregator errors.
var (
	ErrClosed = errors.New("aggregator closed")
	// ErrStages prefixes the per-entity error recorded when the stage list
	// cannot be fetched.
	ErrStages = errors.New("failed to load stages")
)

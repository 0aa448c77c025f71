package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest  = errors.New("bad request")
	ErrNotTracked  = errors.New("entity not tracked")
	ErrUnavailable = errors.New("service unavailable")
)

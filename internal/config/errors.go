package config

import "errors"

var (
	// ErrInvalidConfig wraps every validation failure of a loaded Config,
	// such as an empty api_base_url or a presentation window out of range.
	ErrInvalidConfig = errors.New("invalid liveboard config")
	// ErrLoadConfig wraps failures reading the LIVEBOARD_CONFIG file or the
	// LIVEBOARD_ environment.
	ErrLoadConfig = errors.New("loading liveboard config failed")
)

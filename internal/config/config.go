// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Durations are configured as integer milliseconds and read through methods.
// - Provide New() to build a Config with defaults; Load layers file and env on top.
// - Validation errors wrap ErrInvalidConfig.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Presentation window bounds for movement indicators.
const (
	MinPresentationWindow = 1000 * time.Millisecond
	MaxPresentationWindow = 1500 * time.Millisecond
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// APIBaseURL is the root of the remote ranking API.
	APIBaseURL string `koanf:"api_base_url"`

	// APIToken is sent as a bearer token when set.
	APIToken string `koanf:"api_token"`

	// RequestTimeoutMS bounds each ranking API request.
	RequestTimeoutMS int `koanf:"request_timeout_ms"`

	// PollIntervalMS is the fixed refresh period of tracked entities.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// SnapshotCap is how many merged results each entity keeps.
	SnapshotCap int `koanf:"snapshot_cap"`

	// PresentationWindowMS is how long movement indicators stay visible.
	PresentationWindowMS int `koanf:"presentation_window_ms"`

	// MaxStageConcurrency bounds concurrent stage fetches per entity.
	MaxStageConcurrency int `koanf:"max_stage_concurrency"`

	// DiscoveryIntervalMS is how often the live set is recomputed from events.
	DiscoveryIntervalMS int `koanf:"discovery_interval_ms"`

	// Entities pins the tracked set and disables discovery when non-empty.
	Entities []string `koanf:"entities"`

	// QueueSize bounds the in-memory view delivery queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of delivery workers.
	WorkerCount int `koanf:"worker_count"`

	// KafkaBrokers enables the Kafka sink when non-empty.
	KafkaBrokers []string `koanf:"kafka_brokers"`

	// KafkaTopic is the topic views are published to.
	KafkaTopic string `koanf:"kafka_topic"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		APIBaseURL:           "http://localhost:9090",
		RequestTimeoutMS:     10_000,
		PollIntervalMS:       5_000,
		SnapshotCap:          5,
		PresentationWindowMS: 1_200,
		MaxStageConcurrency:  8,
		DiscoveryIntervalMS:  30_000,
		QueueSize:            1_024,
		WorkerCount:          1,
		KafkaTopic:           "liveboard.views",
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.APIBaseURL == "":
		return fmt.Errorf("%w: api_base_url must not be empty", ErrInvalidConfig)
	case c.PollIntervalMS <= 0:
		return fmt.Errorf("%w: poll_interval_ms must be positive, got %d", ErrInvalidConfig, c.PollIntervalMS)
	case c.SnapshotCap < 0:
		return fmt.Errorf("%w: snapshot_cap must not be negative, got %d", ErrInvalidConfig, c.SnapshotCap)
	case c.PresentationWindow() < MinPresentationWindow || c.PresentationWindow() > MaxPresentationWindow:
		return fmt.Errorf("%w: presentation_window_ms must be within %d-%d, got %d",
			ErrInvalidConfig, MinPresentationWindow.Milliseconds(), MaxPresentationWindow.Milliseconds(), c.PresentationWindowMS)
	}
	return nil
}

// PollInterval returns PollIntervalMS as a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// PresentationWindow returns PresentationWindowMS as a duration.
func (c *Config) PresentationWindow() time.Duration {
	return time.Duration(c.PresentationWindowMS) * time.Millisecond
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// DiscoveryInterval returns DiscoveryIntervalMS as a duration.
func (c *Config) DiscoveryInterval() time.Duration {
	return time.Duration(c.DiscoveryIntervalMS) * time.Millisecond
}

// StaticEntities returns the configured entity ids without blanks.
func (c *Config) StaticEntities() []string {
	out := make([]string, 0, len(c.Entities))
	for _, id := range c.Entities {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}

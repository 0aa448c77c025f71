// Package rankingapi is the HTTP client for the remote ranking API.
//
// Endpoints:
//   - GET {base}/events
//   - GET {base}/events/{id}/stages
//   - GET {base}/stages/{id}/rankings
//
// The client never retries; the aggregator's poll interval is the retry policy.
package rankingapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/okian/liveboard/pkg/logger"
)

// DefaultTimeout bounds a single request when no other timeout is configured.
const DefaultTimeout = 10 * time.Second

// Client provides access to the ranking REST API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// NewClient creates a new REST API client.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		logger: logger.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// WithToken sends the token as a bearer Authorization header.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

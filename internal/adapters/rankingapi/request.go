package rankingapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/okian/liveboard/pkg/logger"
)

// ErrFetch is wrapped by every error the client returns.
var ErrFetch = errors.New("ranking api fetch failed")

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// APIError represents a non-2xx response from the ranking API.
type APIError struct {
	StatusCode int
	Message    string
	Body       []byte
}

func (e *APIError) Error() string {
	if len(e.Body) > 0 {
		return fmt.Sprintf("ranking api error %d: %s: %s", e.StatusCode, e.Message, strings.TrimSpace(string(e.Body)))
	}
	return fmt.Sprintf("ranking api error %d: %s", e.StatusCode, e.Message)
}

// Unwrap lets errors.Is match ErrFetch.
func (e *APIError) Unwrap() error { return ErrFetch }

// get performs a GET request and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %w", ErrFetch, err)
	}

	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: do request: %w", ErrFetch, err)
	}
	defer resp.Body.Close()

	c.logger.Debug(ctx, "ranking api request",
		logger.String("path", path),
		logger.Int("status", resp.StatusCode),
		logger.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
			Body:       body,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("%w: unmarshal response: %w", ErrFetch, err)
	}

	return nil
}

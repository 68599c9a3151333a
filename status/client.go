package status

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultFetchTimeout bounds a single /stats request.
const DefaultFetchTimeout = 2 * time.Second

// Client reads a running agent's status endpoint.
type Client struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a client for the agent at baseURL (e.g. "http://127.0.0.1:8080").
// A bare host:port is treated as http.
func NewClient(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("status client requires an address")
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &Client{baseURL: baseURL, timeout: timeout}, nil
}

// Stats fetches /stats.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	var stats Stats
	code, body, errs := fiber.Get(c.baseURL + "/stats").Timeout(timeout).Struct(&stats)
	if code != 0 && code != fiber.StatusOK {
		return nil, fmt.Errorf("fetch %s/stats: status %d: %s", c.baseURL, code, strings.TrimSpace(string(body)))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("fetch %s/stats: %w", c.baseURL, errors.Join(errs...))
	}
	return &stats, nil
}

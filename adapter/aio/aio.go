// Package aio implements the request-upload adapter against the Adafruit IO
// REST API.
//
// Each frame is one authenticated POST of {"value": "<base64>"} to the
// account's feed data endpoint. Requests are independent; there is no
// session state beyond the API key.
package aio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/justapithecus/snapfeed/adapter"
	"github.com/justapithecus/snapfeed/iox"
)

// DefaultBaseURL is the Adafruit IO API host.
const DefaultBaseURL = "https://io.adafruit.com"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 2

// DefaultBackoff is the delay before the first retry. It doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// keyHeader carries the account key on every request.
const keyHeader = "X-AIO-Key"

// Config configures the upload adapter.
type Config struct {
	// Username is the account name (required).
	Username string
	// Key is the account API key (required).
	Key string
	// BaseURL overrides DefaultBaseURL.
	BaseURL string
	// Feed is the feed key (default "img").
	Feed string
	// Timeout is the per-request timeout (default 10s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	// Nil means DefaultRetries.
	Retries *int
	// Backoff is the delay before the first retry (default 500ms).
	Backoff time.Duration
}

// Adapter uploads frames as feed data points.
type Adapter struct {
	config   Config
	endpoint string
	client   *http.Client
}

// dataPoint is the request body of the create-data endpoint.
type dataPoint struct {
	Value string `json:"value"`
}

// New creates an upload adapter from the given config.
func New(cfg Config) (*Adapter, error) {
	if cfg.Username == "" {
		return nil, errors.New("aio adapter requires a username")
	}
	if cfg.Key == "" {
		return nil, errors.New("aio adapter requires a key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Feed == "" {
		cfg.Feed = adapter.DefaultFeed
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Retries == nil {
		r := DefaultRetries
		cfg.Retries = &r
	}
	if *cfg.Retries < 0 {
		return nil, fmt.Errorf("retries must be >= 0, got %d", *cfg.Retries)
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("aio adapter: invalid base URL: %w", err)
	}
	endpoint := base.JoinPath("api", "v2", cfg.Username, "feeds", cfg.Feed, "data")

	return &Adapter{
		config:   cfg,
		endpoint: endpoint.String(),
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// Endpoint returns the data endpoint frames are posted to.
func (a *Adapter) Endpoint() string {
	return a.endpoint
}

// Send posts the payload as the value of a new feed data point.
// Retries with exponential backoff on 5xx, 429 and network errors.
// Other 4xx responses are non-retriable and fail immediately.
func (a *Adapter) Send(ctx context.Context, payload []byte) error {
	body, err := json.Marshal(dataPoint{Value: string(payload)})
	if err != nil {
		return &adapter.TransportError{Adapter: "aio", Err: fmt.Errorf("marshal value: %w", err)}
	}

	var lastErr error
	attempts := 1 + *a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return &adapter.TransportError{Adapter: "aio", Err: fmt.Errorf("context canceled: %w", err)}
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * a.config.Backoff
			select {
			case <-ctx.Done():
				return &adapter.TransportError{Adapter: "aio", Err: fmt.Errorf("context canceled during backoff: %w", ctx.Err())}
			case <-time.After(backoff):
			}
		}

		lastErr = a.doRequest(ctx, body)
		if lastErr == nil {
			return nil
		}

		var statusErr *StatusError
		if errors.As(lastErr, &statusErr) && !statusErr.Retriable() {
			return &adapter.TransportError{Adapter: "aio", Err: fmt.Errorf("non-retriable error: %w", lastErr)}
		}
	}

	return &adapter.TransportError{Adapter: "aio", Err: fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)}
}

// StatusError is returned for non-2xx HTTP responses.
type StatusError struct {
	Code int
	// Body holds the start of the error response, if any.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("unexpected status %d: %s", e.Code, e.Body)
	}
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Retriable reports whether the request may succeed if repeated.
func (e *StatusError) Retriable() bool {
	return e.Code >= 500 || e.Code == http.StatusTooManyRequests
}

// errorBodyLimit caps how much of an error response is kept.
const errorBodyLimit = 256

// doRequest performs a single POST and returns nil on 2xx.
func (a *Adapter) doRequest(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(keyHeader, a.config.Key)

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer iox.DrainClose(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyLimit))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	return nil
}

// Close releases idle connections.
func (a *Adapter) Close() error {
	a.client.CloseIdleConnections()
	return nil
}

var _ adapter.Adapter = (*Adapter)(nil)

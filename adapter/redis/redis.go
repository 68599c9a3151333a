// Package redis implements the publish-message adapter over Redis pub/sub.
//
// It is the alternative broker for the MQTT transport mode: each frame is
// one PUBLISH of the base64 payload to the account feed channel.
// Connection management is handled by the go-redis connection pool.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/justapithecus/snapfeed/adapter"
)

// DefaultTimeout is the default per-publish timeout.
const DefaultTimeout = 5 * time.Second

// DefaultRetries is the default number of retry attempts.
const DefaultRetries = 2

// DefaultBackoff is the delay before the first retry. It doubles per retry.
const DefaultBackoff = 500 * time.Millisecond

// Config configures the Redis pub/sub adapter.
type Config struct {
	// URL is the Redis connection URL (required).
	// Format: redis://[:password@]host:port[/db]
	URL string
	// Channel is the pub/sub channel name (required), normally
	// adapter.FeedTopic(username, "img").
	Channel string
	// Timeout is the per-publish timeout (default 5s).
	Timeout time.Duration
	// Retries is the number of retry attempts on failure.
	// Nil means DefaultRetries.
	Retries *int
	// Backoff is the delay before the first retry (default 500ms).
	Backoff time.Duration
}

// Adapter publishes frames via Redis PUBLISH.
type Adapter struct {
	config Config
	client *goredis.Client
}

// New creates a Redis pub/sub adapter from the given config.
// Returns an error if the URL is empty or invalid.
func New(cfg Config) (*Adapter, error) {
	if cfg.URL == "" {
		return nil, errors.New("redis adapter requires a URL")
	}
	if cfg.Channel == "" {
		return nil, errors.New("redis adapter requires a channel")
	}

	opts, err := goredis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis adapter: invalid URL: %w", err)
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

	return &Adapter{
		config: cfg,
		client: goredis.NewClient(opts),
	}, nil
}

// Ping checks the server is reachable. The CLI calls it once at startup so
// a misconfigured broker fails before the loop starts.
func (a *Adapter) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, a.config.Timeout)
	defer cancel()
	if err := a.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis: ping: %w", err)
	}
	return nil
}

// Send publishes the payload to the configured channel.
// Retries with exponential backoff on failures.
func (a *Adapter) Send(ctx context.Context, payload []byte) error {
	var lastErr error
	attempts := 1 + *a.config.Retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return &adapter.TransportError{Adapter: "redis", Err: fmt.Errorf("context canceled: %w", err)}
		}

		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * a.config.Backoff
			select {
			case <-ctx.Done():
				return &adapter.TransportError{Adapter: "redis", Err: fmt.Errorf("context canceled during backoff: %w", ctx.Err())}
			case <-time.After(backoff):
			}
		}

		publishCtx, cancel := context.WithTimeout(ctx, a.config.Timeout)
		lastErr = a.client.Publish(publishCtx, a.config.Channel, payload).Err()
		cancel()

		if lastErr == nil {
			return nil
		}
	}

	return &adapter.TransportError{Adapter: "redis", Err: fmt.Errorf("failed after %d attempts: %w", attempts, lastErr)}
}

// Close releases adapter resources.
func (a *Adapter) Close() error {
	return a.client.Close()
}

var _ adapter.Adapter = (*Adapter)(nil)
